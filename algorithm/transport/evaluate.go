package transport

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Evaluation 是总运输成本 Z 及其展开式。
type Evaluation struct {
	Total decimal.Decimal `json:"total"`
	Terms []string        `json:"terms"`
}

// Expression 返回 "Z = 4(20) + 8(5) + 2(25) = 170" 形式的展开式。
func (e *Evaluation) Expression() string {
	if len(e.Terms) == 0 {
		return "Z = " + e.Total.String()
	}
	return "Z = " + strings.Join(e.Terms, " + ") + " = " + e.Total.String()
}

type cellKey struct{ row, col int }

// Evaluate 按行优先扫描已标注的单元格，累加 unit_cost × quantity。
// 单元格与分配记录不一致时返回 MalformedCellError，不返回部分结果。
func Evaluate(m *CostMatrix, assignments []Assignment) (*Evaluation, error) {
	if m == nil {
		return nil, newInvalidInput("matrix", -1, -1, "matrix is nil")
	}

	ledger := make(map[cellKey]decimal.Decimal, len(assignments))
	for _, a := range assignments {
		if a.Row < 0 || a.Row >= m.Rows() || a.Col < 0 || a.Col >= m.Cols() {
			return nil, newMalformedCell(a.UnitCost.String()+"("+a.Quantity.String()+")", a.Row, a.Col, "assignment is outside the matrix")
		}
		k := cellKey{a.Row, a.Col}
		ledger[k] = ledger[k].Add(a.Quantity)
	}

	eval := &Evaluation{Total: decimal.Zero, Terms: make([]string, 0, len(assignments))}
	for i := range m.Rows() {
		for j := range m.Cols() {
			c := m.At(i, j)
			recorded, inLedger := ledger[cellKey{i, j}]
			if !c.IsAssigned() {
				if inLedger {
					return nil, newMalformedCell(c.String(), i, j, "assignment recorded but cell is not annotated")
				}
				continue
			}
			if c.UnitCost.IsNegative() {
				return nil, newMalformedCell(c.String(), i, j, "unit cost is negative")
			}
			if !c.Assigned.IsPositive() {
				return nil, newMalformedCell(c.String(), i, j, "quantity must be positive")
			}
			if !inLedger || !recorded.Equal(*c.Assigned) {
				return nil, newMalformedCell(c.String(), i, j, "annotation does not match recorded assignments")
			}

			eval.Total = eval.Total.Add(c.UnitCost.Mul(*c.Assigned))
			eval.Terms = append(eval.Terms, c.String())
		}
	}
	return eval, nil
}
