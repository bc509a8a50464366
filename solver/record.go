package solver

import (
	"slices"
	"sort"

	"github.com/wyfcoding/demaxmin/algorithm/transport"
	"github.com/wyfcoding/demaxmin/xerrors"
)

func newRecord(res *Result, p *transport.Problem) *SolutionRecord {
	rec := &SolutionRecord{
		ID:               res.ID,
		ProblemID:        res.ProblemID,
		OriginLabel:      p.OriginLabel,
		DestinationLabel: p.DestinationLabel,
		Dummy:            string(res.Dummy),
		Origins:          res.Origins,
		Destinations:     res.Destinations,
		Supply:           res.Supply,
		Demand:           res.Demand,
		Table:            res.Table,
		Total:            res.Total,
		Expression:       res.Expression,
		Iterations:       res.Iterations,
		Swept:            res.Swept,
		CreatedAt:        res.CreatedAt,
		Assignments:      make([]AssignmentRecord, len(res.Assignments)),
	}
	for i, a := range res.Assignments {
		rec.Assignments[i] = AssignmentRecord{
			SolutionID:  res.ID,
			Seq:         i,
			Row:         a.Row,
			Col:         a.Col,
			Origin:      a.Origin,
			Destination: a.Destination,
			UnitCost:    a.UnitCost,
			Quantity:    a.Quantity,
			Phase:       string(a.Phase),
		}
	}
	return rec
}

// result 重新解析保存的表格并复算总成本，再按分配顺序重放出逐步快照。
// 任何不一致都视为数据损坏。
func (r *SolutionRecord) result() (*Result, error) {
	m, err := transport.ParseMatrix(r.Table)
	if err != nil {
		return nil, xerrors.ErrMalformedCell.WithContext("solution_id", r.ID).WithCause(err)
	}

	records := append([]AssignmentRecord(nil), r.Assignments...)
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })

	assignments := make([]transport.Assignment, len(records))
	for i, a := range records {
		assignments[i] = transport.Assignment{
			Row:         a.Row,
			Col:         a.Col,
			Origin:      a.Origin,
			Destination: a.Destination,
			UnitCost:    a.UnitCost,
			Quantity:    a.Quantity,
			Phase:       transport.Phase(a.Phase),
		}
	}

	eval, err := transport.Evaluate(m, assignments)
	if err != nil {
		return nil, xerrors.ErrMalformedCell.WithContext("solution_id", r.ID).WithCause(err)
	}
	if !eval.Total.Equal(r.Total) {
		return nil, xerrors.ErrMalformedCell.
			WithContext("solution_id", r.ID).
			WithDetail("stored total %s does not match recomputed %s", r.Total, eval.Total)
	}

	steps, err := transport.Replay(&transport.Problem{
		Matrix:           m,
		OriginLabel:      r.OriginLabel,
		DestinationLabel: r.DestinationLabel,
		Dummy:            transport.DummyKind(r.Dummy),
		Origins:          r.Origins,
		Destinations:     r.Destinations,
		Supply:           r.Supply,
		Demand:           r.Demand,
	}, assignments)
	if err != nil {
		return nil, xerrors.ErrMalformedCell.WithContext("solution_id", r.ID).WithCause(err)
	}
	if len(steps) > 0 && !slices.EqualFunc(steps[len(steps)-1].Table, r.Table, slices.Equal) {
		return nil, xerrors.ErrMalformedCell.
			WithContext("solution_id", r.ID).
			WithDetail("replayed assignments do not reproduce the stored table")
	}

	return &Result{
		ID:           r.ID,
		ProblemID:    r.ProblemID,
		Dummy:        transport.DummyKind(r.Dummy),
		Origins:      r.Origins,
		Destinations: r.Destinations,
		Supply:       r.Supply,
		Demand:       r.Demand,
		Table:        m.Render(),
		Assignments:  assignments,
		Steps:        steps,
		Total:        eval.Total,
		Terms:        eval.Terms,
		Expression:   eval.Expression(),
		Iterations:   r.Iterations,
		Swept:        r.Swept,
		CreatedAt:    r.CreatedAt,
	}, nil
}
