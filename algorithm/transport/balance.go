package transport

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// DummySuffix 是虚拟起点/终点名称的后缀。
const DummySuffix = "F"

// DummyKind 标识平衡时追加的虚拟行/列。
type DummyKind string

const (
	DummyNone        DummyKind = "none"
	DummyOrigin      DummyKind = "origin"
	DummyDestination DummyKind = "destination"
)

// Input 是未经平衡的原始运输问题，缺失值以 NullDecimal.Valid=false 表示。
type Input struct {
	OriginLabel      string                  `json:"origin_label"`
	DestinationLabel string                  `json:"destination_label"`
	Origins          []string                `json:"origins,omitempty"`
	Destinations     []string                `json:"destinations,omitempty"`
	Costs            [][]decimal.NullDecimal `json:"costs"`
	Supply           []decimal.NullDecimal   `json:"supply"`
	Demand           []decimal.NullDecimal   `json:"demand"`
}

// Problem 是平衡后的运输问题，构造后只读。
type Problem struct {
	Matrix           *CostMatrix       `json:"matrix"`
	OriginLabel      string            `json:"origin_label"`
	DestinationLabel string            `json:"destination_label"`
	Dummy            DummyKind         `json:"dummy"`
	Origins          []string          `json:"origins"`
	Destinations     []string          `json:"destinations"`
	Supply           []decimal.Decimal `json:"supply"`
	Demand           []decimal.Decimal `json:"demand"`
	GrandTotal       decimal.Decimal   `json:"grand_total"`
}

// Balance 校验输入并在供需总量不等时追加零成本的虚拟起点或终点。
func Balance(in Input) (*Problem, error) {
	rows := len(in.Costs)
	if rows == 0 || len(in.Costs[0]) == 0 {
		return nil, newInvalidInput("costs", -1, -1, "cost matrix must have at least one row and one column")
	}
	cols := len(in.Costs[0])

	if len(in.Supply) != rows {
		return nil, newInvalidInput("supply", -1, -1, fmt.Sprintf("expected %d values, got %d", rows, len(in.Supply)))
	}
	if len(in.Demand) != cols {
		return nil, newInvalidInput("demand", -1, -1, fmt.Sprintf("expected %d values, got %d", cols, len(in.Demand)))
	}

	costs := make([][]decimal.Decimal, rows)
	for i, row := range in.Costs {
		if len(row) != cols {
			return nil, newInvalidInput("costs", i, -1, "ragged cost matrix row")
		}
		costs[i] = make([]decimal.Decimal, cols)
		for j, v := range row {
			if !v.Valid {
				return nil, newInvalidInput("costs", i, j, "value is missing")
			}
			costs[i][j] = v.Decimal
		}
	}

	supply, err := requireValues("supply", in.Supply)
	if err != nil {
		return nil, err
	}
	demand, err := requireValues("demand", in.Demand)
	if err != nil {
		return nil, err
	}

	matrix, err := NewCostMatrix(costs)
	if err != nil {
		return nil, err
	}

	origins, err := resolveNames("origins", in.Origins, in.OriginLabel, rows)
	if err != nil {
		return nil, err
	}
	destinations, err := resolveNames("destinations", in.Destinations, in.DestinationLabel, cols)
	if err != nil {
		return nil, err
	}

	p := &Problem{
		Matrix:           matrix,
		OriginLabel:      in.OriginLabel,
		DestinationLabel: in.DestinationLabel,
		Dummy:            DummyNone,
		Origins:          origins,
		Destinations:     destinations,
		Supply:           supply,
		Demand:           demand,
	}

	totalSupply, totalDemand := sum(supply), sum(demand)
	switch totalSupply.Cmp(totalDemand) {
	case 1:
		p.Matrix.appendColumn(decimal.Zero)
		p.Destinations = append(p.Destinations, dummyName(in.DestinationLabel))
		p.Demand = append(p.Demand, totalSupply.Sub(totalDemand))
		p.Dummy = DummyDestination
	case -1:
		p.Matrix.appendRow(decimal.Zero)
		p.Origins = append(p.Origins, dummyName(in.OriginLabel))
		p.Supply = append(p.Supply, totalDemand.Sub(totalSupply))
		p.Dummy = DummyOrigin
	}
	p.GrandTotal = decimal.Max(totalSupply, totalDemand)

	return p, nil
}

// TotalSupply 返回供给总量。
func (p *Problem) TotalSupply() decimal.Decimal { return sum(p.Supply) }

// TotalDemand 返回需求总量。
func (p *Problem) TotalDemand() decimal.Decimal { return sum(p.Demand) }

// IsBalanced 判断供需总量是否相等。
func (p *Problem) IsBalanced() bool {
	return p.TotalSupply().Equal(p.TotalDemand())
}

// Table 渲染带供给列、需求行与右下角总量的平衡表，首行为表头。
func (p *Problem) Table(supplyHeader, demandHeader string) [][]string {
	rows := p.Matrix.Rows()
	cols := p.Matrix.Cols()
	out := make([][]string, 0, rows+2)

	header := make([]string, 0, cols+2)
	header = append(header, "")
	header = append(header, p.Destinations...)
	header = append(header, supplyHeader)
	out = append(out, header)

	for i := range rows {
		line := make([]string, 0, cols+2)
		line = append(line, p.Origins[i])
		for j := range cols {
			line = append(line, p.Matrix.At(i, j).String())
		}
		line = append(line, p.Supply[i].String())
		out = append(out, line)
	}

	footer := make([]string, 0, cols+2)
	footer = append(footer, demandHeader)
	for _, d := range p.Demand {
		footer = append(footer, d.String())
	}
	footer = append(footer, p.GrandTotal.String())
	return append(out, footer)
}

// clone 深拷贝问题，求解只修改副本。
func (p *Problem) clone() *Problem {
	out := *p
	out.Matrix = p.Matrix.Clone()
	out.Origins = append([]string(nil), p.Origins...)
	out.Destinations = append([]string(nil), p.Destinations...)
	out.Supply = append([]decimal.Decimal(nil), p.Supply...)
	out.Demand = append([]decimal.Decimal(nil), p.Demand...)
	return &out
}

func (p *Problem) validate() error {
	if p == nil || p.Matrix == nil {
		return newInvalidInput("problem", -1, -1, "problem is nil")
	}
	if len(p.Supply) != p.Matrix.Rows() || len(p.Origins) != p.Matrix.Rows() {
		return newInvalidInput("supply", -1, -1, "supply vector does not match matrix rows")
	}
	if len(p.Demand) != p.Matrix.Cols() || len(p.Destinations) != p.Matrix.Cols() {
		return newInvalidInput("demand", -1, -1, "demand vector does not match matrix columns")
	}
	for i, s := range p.Supply {
		if s.IsNegative() {
			return newInvalidInput("supply", i, -1, "value must be non-negative")
		}
	}
	for j, d := range p.Demand {
		if d.IsNegative() {
			return newInvalidInput("demand", j, -1, "value must be non-negative")
		}
	}
	if !p.IsBalanced() {
		return newInvalidInput("problem", -1, -1, "total supply must equal total demand, call Balance first")
	}
	return nil
}

func requireValues(field string, values []decimal.NullDecimal) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		if !v.Valid {
			return nil, newInvalidInput(field, i, -1, "value is missing")
		}
		if v.Decimal.IsNegative() {
			return nil, newInvalidInput(field, i, -1, "value must be non-negative")
		}
		out[i] = v.Decimal
	}
	return out, nil
}

func resolveNames(field string, names []string, label string, n int) ([]string, error) {
	if len(names) == 0 {
		out := make([]string, n)
		for i := range n {
			out[i] = label + " " + strconv.Itoa(i+1)
		}
		return out, nil
	}
	if len(names) != n {
		return nil, newInvalidInput(field, -1, -1, fmt.Sprintf("expected %d names, got %d", n, len(names)))
	}
	return append([]string(nil), names...), nil
}

func dummyName(label string) string {
	return label + " " + DummySuffix
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
