package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput 成本、供给或需求缺失、为负或维度不匹配。
	ErrInvalidInput = errors.New("invalid transportation problem input")
	// ErrMalformedCell 已标注的单元格无法还原为 (单位成本, 分配量)。
	ErrMalformedCell = errors.New("malformed allocation cell")
)

// InvalidInputError 描述一次输入校验失败，Row/Col 为 -1 表示不适用。
type InvalidInputError struct {
	Field  string
	Reason string
	Row    int
	Col    int
}

func newInvalidInput(field string, row, col int, reason string) *InvalidInputError {
	return &InvalidInputError{Field: field, Row: row, Col: col, Reason: reason}
}

func (e *InvalidInputError) Error() string {
	switch {
	case e.Row >= 0 && e.Col >= 0:
		return fmt.Sprintf("%s[%d][%d]: %s", e.Field, e.Row, e.Col, e.Reason)
	case e.Row >= 0:
		return fmt.Sprintf("%s[%d]: %s", e.Field, e.Row, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
}

// Is 使 errors.Is(err, ErrInvalidInput) 成立。
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// MalformedCellError 是求解结果内部一致性被破坏时的错误，Raw 保存单元格原始内容以便排查。
type MalformedCellError struct {
	Raw    string
	Reason string
	Row    int
	Col    int
}

func newMalformedCell(raw string, row, col int, reason string) *MalformedCellError {
	return &MalformedCellError{Raw: raw, Row: row, Col: col, Reason: reason}
}

func (e *MalformedCellError) Error() string {
	if e.Row >= 0 && e.Col >= 0 {
		return fmt.Sprintf("cell[%d][%d] %q: %s", e.Row, e.Col, e.Raw, e.Reason)
	}
	return fmt.Sprintf("cell %q: %s", e.Raw, e.Reason)
}

// Is 使 errors.Is(err, ErrMalformedCell) 成立。
func (e *MalformedCellError) Is(target error) bool {
	return target == ErrMalformedCell
}
