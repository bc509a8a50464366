package transport

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Phase 标识分配来自哪个阶段。
type Phase string

const (
	PhaseAllocate Phase = "allocate"
	PhaseSweep    Phase = "sweep"
)

// Assignment 是一次运输决策，记录后不可变。
type Assignment struct {
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	Phase       Phase           `json:"phase"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Quantity    decimal.Decimal `json:"quantity"`
	Row         int             `json:"row"`
	Col         int             `json:"col"`
}

// Cost 返回本次分配的成本 unit_cost × quantity。
func (a Assignment) Cost() decimal.Decimal {
	return a.UnitCost.Mul(a.Quantity)
}

// Step 是每次分配之后的表格快照。
type Step struct {
	Assignment Assignment        `json:"assignment"`
	Table      [][]string        `json:"table"`
	Supply     []decimal.Decimal `json:"supply"`
	Demand     []decimal.Decimal `json:"demand"`
}

// Solution 是 Solve 的结果。
type Solution struct {
	Problem     *Problem     `json:"problem"`
	Matrix      *CostMatrix  `json:"matrix"`
	Assignments []Assignment `json:"assignments"`
	Steps       []Step       `json:"steps"`
	// Supply/Demand 为求解结束时的剩余量，平衡问题下应全部为 0。
	Supply     []decimal.Decimal `json:"supply"`
	Demand     []decimal.Decimal `json:"demand"`
	Iterations int               `json:"iterations"`
	// Swept 为零成本清扫阶段产生的分配数。
	Swept int `json:"swept"`
}

// Evaluate 对求解结果计算总成本。
func (s *Solution) Evaluate() (*Evaluation, error) {
	return Evaluate(s.Matrix, s.Assignments)
}

// Solve 在问题副本上先执行主循环分配，再执行零成本清扫。
// p 必须已平衡且不会被修改。
func Solve(p *Problem) (*Solution, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	w := newWorkspace(p.clone())
	iterations := w.allocate()
	swept := w.sweep()

	return &Solution{
		Problem:     p,
		Matrix:      w.problem.Matrix,
		Assignments: w.assignments,
		Steps:       w.steps,
		Supply:      w.problem.Supply,
		Demand:      w.problem.Demand,
		Iterations:  iterations,
		Swept:       swept,
	}, nil
}

// Replay 在 p 的未标注副本上按顺序重放 assignments，重建每次分配后的快照。
// 分配的下标、单位成本与数量必须与 p 的剩余供需一致，否则返回 InvalidInputError。
func Replay(p *Problem, assignments []Assignment) ([]Step, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	w := newWorkspace(p.clone())
	w.problem.Matrix.clearAssignments()
	for k, a := range assignments {
		if err := w.check(a); err != nil {
			return nil, newInvalidInput("assignments", k, -1, err.Error())
		}
		w.apply(a.Row, a.Col, a.Quantity, a.Phase)
	}
	return w.steps, nil
}

// workspace 独占求解期间可变的矩阵与供需向量。
type workspace struct {
	problem     *Problem
	assignments []Assignment
	steps       []Step
}

func newWorkspace(p *Problem) *workspace {
	return &workspace{problem: p}
}

// allocate 执行最大需求、最小成本主循环，返回迭代次数。
func (w *workspace) allocate() int {
	p := w.problem
	iterations := 0
	for sum(p.Supply).IsPositive() && sum(p.Demand).IsPositive() {
		col := stableArgmax(p.Demand, w.allocatable)
		if col < 0 {
			// 剩余需求只能通过零成本单元格满足，交给清扫阶段。
			break
		}
		row := stableArgmin(p.Supply, func(i int) decimal.Decimal {
			return p.Matrix.At(i, col).UnitCost
		})
		w.assign(row, col, PhaseAllocate)
		iterations++
	}
	return iterations
}

// sweep 按行优先遍历零成本单元格直到一轮内不再产生分配，返回清扫产生的分配数。
// 每次分配都会使该行供给或该列需求归零，所以第一轮之后的遍历只确认已到达不动点。
func (w *workspace) sweep() int {
	p := w.problem
	swept := 0
	for {
		assigned := 0
		for i := range p.Matrix.Rows() {
			for j := range p.Matrix.Cols() {
				if !p.Matrix.At(i, j).UnitCost.IsZero() {
					continue
				}
				if p.Supply[i].IsPositive() && p.Demand[j].IsPositive() {
					w.assign(i, j, PhaseSweep)
					assigned++
				}
			}
		}
		if assigned == 0 {
			return swept
		}
		swept += assigned
	}
}

// allocatable 判断终点 j 是否仍有需求且至少有一个正成本、有供给的起点。
func (w *workspace) allocatable(j int) bool {
	p := w.problem
	if !p.Demand[j].IsPositive() {
		return false
	}
	for i, s := range p.Supply {
		if s.IsPositive() && p.Matrix.At(i, j).UnitCost.IsPositive() {
			return true
		}
	}
	return false
}

func (w *workspace) assign(i, j int, phase Phase) {
	p := w.problem
	w.apply(i, j, decimal.Min(p.Supply[i], p.Demand[j]), phase)
}

// apply 从供需中扣除 q 并记录分配与快照。
func (w *workspace) apply(i, j int, q decimal.Decimal, phase Phase) {
	p := w.problem
	p.Supply[i] = p.Supply[i].Sub(q)
	p.Demand[j] = p.Demand[j].Sub(q)
	p.Matrix.assign(i, j, q)

	a := Assignment{
		Origin:      p.Origins[i],
		Destination: p.Destinations[j],
		Phase:       phase,
		UnitCost:    p.Matrix.At(i, j).UnitCost,
		Quantity:    q,
		Row:         i,
		Col:         j,
	}
	w.assignments = append(w.assignments, a)
	w.steps = append(w.steps, Step{
		Assignment: a,
		Table:      p.Matrix.Render(),
		Supply:     append([]decimal.Decimal(nil), p.Supply...),
		Demand:     append([]decimal.Decimal(nil), p.Demand...),
	})
}

// check 校验一条已记录的分配能否在当前剩余供需上重放。
func (w *workspace) check(a Assignment) error {
	p := w.problem
	if a.Row < 0 || a.Row >= p.Matrix.Rows() || a.Col < 0 || a.Col >= p.Matrix.Cols() {
		return fmt.Errorf("cell (%d, %d) is outside the matrix", a.Row, a.Col)
	}
	if !a.UnitCost.Equal(p.Matrix.At(a.Row, a.Col).UnitCost) {
		return fmt.Errorf("unit cost %s does not match matrix cost %s", a.UnitCost, p.Matrix.At(a.Row, a.Col).UnitCost)
	}
	if !a.Quantity.IsPositive() {
		return fmt.Errorf("quantity %s must be positive", a.Quantity)
	}
	if a.Quantity.GreaterThan(p.Supply[a.Row]) || a.Quantity.GreaterThan(p.Demand[a.Col]) {
		return fmt.Errorf("quantity %s exceeds remaining supply %s or demand %s", a.Quantity, p.Supply[a.Row], p.Demand[a.Col])
	}
	return nil
}

// stableArgmax 返回满足 eligible 的最大值下标，相等时取最靠前者，无候选返回 -1。
func stableArgmax(values []decimal.Decimal, eligible func(int) bool) int {
	best := -1
	for j, v := range values {
		if !eligible(j) {
			continue
		}
		if best < 0 || v.GreaterThan(values[best]) {
			best = j
		}
	}
	return best
}

// stableArgmin 在有剩余供给的起点中选择单位成本最小者。
// 成本为 0 视为正无穷，即不参与比较；相等时取最靠前者；无候选返回 -1。
func stableArgmin(supply []decimal.Decimal, cost func(int) decimal.Decimal) int {
	best := -1
	var bestCost decimal.Decimal
	for i, s := range supply {
		if !s.IsPositive() {
			continue
		}
		c := cost(i)
		if c.IsZero() {
			continue
		}
		if best < 0 || c.LessThan(bestCost) {
			best, bestCost = i, c
		}
	}
	return best
}
