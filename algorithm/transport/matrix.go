// Package transport 实现了运输问题的 Demaxmin 启发式求解（最大需求、最小成本）。
// 流程: Balance 平衡供需 -> Solve 主循环分配 + 零成本清扫 -> Evaluate 计算总成本 Z。
// 本包为纯计算逻辑，不做任何 I/O，相同输入总是得到相同的分配序列。
package transport

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Cell 是成本矩阵中的一个单元格。
// UnitCost 在整个求解过程中保持不变，分配结果只作为标注记录在 Assigned 中。
type Cell struct {
	UnitCost decimal.Decimal  `json:"unit_cost"`
	Assigned *decimal.Decimal `json:"assigned,omitempty"`
}

// IsAssigned 判断单元格是否已有分配量。
func (c Cell) IsAssigned() bool {
	return c.Assigned != nil
}

// Quantity 返回分配量，未分配时为 0。
func (c Cell) Quantity() decimal.Decimal {
	if c.Assigned == nil {
		return decimal.Zero
	}
	return *c.Assigned
}

// String 渲染单元格，未分配为 "5"，已分配为 "5(10)"。
func (c Cell) String() string {
	if c.Assigned == nil {
		return c.UnitCost.String()
	}
	var b strings.Builder
	b.WriteString(c.UnitCost.String())
	b.WriteByte('(')
	b.WriteString(c.Assigned.String())
	b.WriteByte(')')
	return b.String()
}

// CostMatrix 是行为起点、列为终点的单位成本矩阵，按行优先存储。
type CostMatrix struct {
	cells []Cell
	rows  int
	cols  int
}

// NewCostMatrix 从二维成本切片构建矩阵，要求非空且每行长度一致。
func NewCostMatrix(costs [][]decimal.Decimal) (*CostMatrix, error) {
	if len(costs) == 0 || len(costs[0]) == 0 {
		return nil, newInvalidInput("costs", -1, -1, "cost matrix must have at least one row and one column")
	}

	rows, cols := len(costs), len(costs[0])
	m := &CostMatrix{rows: rows, cols: cols, cells: make([]Cell, rows*cols)}
	for i, row := range costs {
		if len(row) != cols {
			return nil, newInvalidInput("costs", i, -1, "ragged cost matrix row")
		}
		for j, c := range row {
			if c.IsNegative() {
				return nil, newInvalidInput("costs", i, j, "unit cost must be non-negative")
			}
			m.cells[i*cols+j] = Cell{UnitCost: c}
		}
	}
	return m, nil
}

// Rows 返回起点数量。
func (m *CostMatrix) Rows() int { return m.rows }

// Cols 返回终点数量。
func (m *CostMatrix) Cols() int { return m.cols }

// At 返回 (i, j) 处单元格的副本。
func (m *CostMatrix) At(i, j int) Cell {
	return m.cells[i*m.cols+j]
}

// Clone 深拷贝矩阵，包括分配标注。
func (m *CostMatrix) Clone() *CostMatrix {
	out := &CostMatrix{rows: m.rows, cols: m.cols, cells: make([]Cell, len(m.cells))}
	for k, c := range m.cells {
		out.cells[k] = Cell{UnitCost: c.UnitCost}
		if c.Assigned != nil {
			q := *c.Assigned
			out.cells[k].Assigned = &q
		}
	}
	return out
}

// Render 将矩阵渲染为字符串表格。
func (m *CostMatrix) Render() [][]string {
	out := make([][]string, m.rows)
	for i := range m.rows {
		out[i] = make([]string, m.cols)
		for j := range m.cols {
			out[i][j] = m.At(i, j).String()
		}
	}
	return out
}

// ParseMatrix 将 Render 的输出还原为矩阵，任何无法解析的单元格返回 MalformedCellError。
func ParseMatrix(table [][]string) (*CostMatrix, error) {
	if len(table) == 0 || len(table[0]) == 0 {
		return nil, newInvalidInput("table", -1, -1, "rendered table is empty")
	}
	cols := len(table[0])
	m := &CostMatrix{rows: len(table), cols: cols, cells: make([]Cell, len(table)*cols)}
	for i, row := range table {
		if len(row) != cols {
			return nil, newInvalidInput("table", i, -1, "ragged rendered table row")
		}
		for j, raw := range row {
			c, err := parseCellAt(raw, i, j)
			if err != nil {
				return nil, err
			}
			m.cells[i*cols+j] = c
		}
	}
	return m, nil
}

func (m *CostMatrix) clearAssignments() {
	for k := range m.cells {
		m.cells[k].Assigned = nil
	}
}

// assign 在 (i, j) 上累加分配量。
func (m *CostMatrix) assign(i, j int, q decimal.Decimal) {
	c := &m.cells[i*m.cols+j]
	total := q
	if c.Assigned != nil {
		total = c.Assigned.Add(q)
	}
	c.Assigned = &total
}

// appendColumn 在末尾追加一列统一成本。
func (m *CostMatrix) appendColumn(cost decimal.Decimal) {
	cells := make([]Cell, 0, m.rows*(m.cols+1))
	for i := range m.rows {
		cells = append(cells, m.cells[i*m.cols:(i+1)*m.cols]...)
		cells = append(cells, Cell{UnitCost: cost})
	}
	m.cells = cells
	m.cols++
}

// appendRow 在末尾追加一行统一成本。
func (m *CostMatrix) appendRow(cost decimal.Decimal) {
	for range m.cols {
		m.cells = append(m.cells, Cell{UnitCost: cost})
	}
	m.rows++
}

// MarshalJSON 以二维单元格数组编码矩阵。
func (m *CostMatrix) MarshalJSON() ([]byte, error) {
	grid := make([][]Cell, m.rows)
	for i := range m.rows {
		grid[i] = m.cells[i*m.cols : (i+1)*m.cols]
	}
	return json.Marshal(grid)
}

// UnmarshalJSON 从二维单元格数组解码矩阵。
func (m *CostMatrix) UnmarshalJSON(data []byte) error {
	var grid [][]Cell
	if err := json.Unmarshal(data, &grid); err != nil {
		return err
	}
	if len(grid) == 0 || len(grid[0]) == 0 {
		return newInvalidInput("matrix", -1, -1, "matrix must have at least one row and one column")
	}
	cols := len(grid[0])
	cells := make([]Cell, 0, len(grid)*cols)
	for i, row := range grid {
		if len(row) != cols {
			return newInvalidInput("matrix", i, -1, "ragged matrix row")
		}
		cells = append(cells, row...)
	}
	m.rows, m.cols, m.cells = len(grid), cols, cells
	return nil
}

// ParseCell 解析渲染后的单元格文本 ("5" 或 "5(10)")。
func ParseCell(raw string) (Cell, error) {
	return parseCellAt(raw, -1, -1)
}

func parseCellAt(raw string, row, col int) (Cell, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Cell{}, newMalformedCell(raw, row, col, "empty cell")
	}

	open := strings.IndexByte(text, '(')
	if open < 0 {
		cost, err := decimal.NewFromString(text)
		if err != nil {
			return Cell{}, newMalformedCell(raw, row, col, "unit cost is not a number")
		}
		if cost.IsNegative() {
			return Cell{}, newMalformedCell(raw, row, col, "unit cost is negative")
		}
		return Cell{UnitCost: cost}, nil
	}

	if !strings.HasSuffix(text, ")") || strings.Count(text, "(") != 1 || strings.Count(text, ")") != 1 {
		return Cell{}, newMalformedCell(raw, row, col, "unbalanced annotation")
	}
	costText := strings.TrimSpace(text[:open])
	qtyText := strings.TrimSpace(text[open+1 : len(text)-1])
	if costText == "" || qtyText == "" {
		return Cell{}, newMalformedCell(raw, row, col, "annotation is missing cost or quantity")
	}

	cost, err := decimal.NewFromString(costText)
	if err != nil {
		return Cell{}, newMalformedCell(raw, row, col, "unit cost is not a number")
	}
	qty, err := decimal.NewFromString(qtyText)
	if err != nil {
		return Cell{}, newMalformedCell(raw, row, col, "quantity is not a number")
	}
	if cost.IsNegative() {
		return Cell{}, newMalformedCell(raw, row, col, "unit cost is negative")
	}
	if !qty.IsPositive() {
		return Cell{}, newMalformedCell(raw, row, col, "quantity must be positive")
	}
	return Cell{UnitCost: cost, Assigned: &qty}, nil
}
