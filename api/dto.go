package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/demaxmin/algorithm/transport"
	"github.com/wyfcoding/demaxmin/solver"
	"github.com/wyfcoding/demaxmin/xerrors"
)

// ProblemRequest 是运输问题的输入，null 表示缺失值。
type ProblemRequest struct {
	OriginLabel      string                  `json:"origin_label"      binding:"omitempty,nodigits,max=64"`
	DestinationLabel string                  `json:"destination_label" binding:"omitempty,nodigits,max=64"`
	Origins          []string                `json:"origins"           binding:"omitempty,dive,required,max=64"`
	Destinations     []string                `json:"destinations"      binding:"omitempty,dive,required,max=64"`
	Costs            [][]decimal.NullDecimal `json:"costs"             binding:"required,min=1"`
	Supply           []decimal.NullDecimal   `json:"supply"            binding:"required,min=1"`
	Demand           []decimal.NullDecimal   `json:"demand"            binding:"required,min=1"`
}

func (r ProblemRequest) input() transport.Input {
	return transport.Input{
		OriginLabel:      r.OriginLabel,
		DestinationLabel: r.DestinationLabel,
		Origins:          r.Origins,
		Destinations:     r.Destinations,
		Costs:            r.Costs,
		Supply:           r.Supply,
		Demand:           r.Demand,
	}
}

// BatchRequest 是批量求解的输入。
type BatchRequest struct {
	Problems []ProblemRequest `json:"problems" binding:"required,min=1,dive"`
}

// ProblemResponse 描述平衡后的问题，Table 包含供给列、需求行与右下角的总量。
type ProblemResponse struct {
	ID               string              `json:"id"`
	OriginLabel      string              `json:"origin_label"`
	DestinationLabel string              `json:"destination_label"`
	Dummy            transport.DummyKind `json:"dummy"`
	Origins          []string            `json:"origins"`
	Destinations     []string            `json:"destinations"`
	Supply           []decimal.Decimal   `json:"supply"`
	Demand           []decimal.Decimal   `json:"demand"`
	GrandTotal       decimal.Decimal     `json:"grand_total"`
	Table            [][]string          `json:"table"`
	SolutionID       string              `json:"solution_id,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

func newProblemResponse(sess *solver.Session, supplyHeader, demandHeader string) ProblemResponse {
	p := sess.Problem
	resp := ProblemResponse{
		ID:               sess.ID,
		OriginLabel:      p.OriginLabel,
		DestinationLabel: p.DestinationLabel,
		Dummy:            p.Dummy,
		Origins:          p.Origins,
		Destinations:     p.Destinations,
		Supply:           p.Supply,
		Demand:           p.Demand,
		GrandTotal:       p.GrandTotal,
		Table:            p.Table(supplyHeader, demandHeader),
		CreatedAt:        sess.CreatedAt,
	}
	if sess.Result != nil {
		resp.SolutionID = sess.Result.ID
	}
	return resp
}

// ErrorBody 是批量结果中单项失败的描述。
type ErrorBody struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func newErrorBody(err error) *ErrorBody {
	if xe, ok := xerrors.FromError(err); ok {
		return &ErrorBody{Code: xe.Code, Msg: xe.Message, Detail: xe.Detail}
	}
	return &ErrorBody{Code: 500, Msg: "internal error"}
}

// BatchItemResponse 是批量结果中的一项。
type BatchItemResponse struct {
	Index  int            `json:"index"`
	Result *solver.Result `json:"result,omitempty"`
	Error  *ErrorBody     `json:"error,omitempty"`
}

// BatchResponse 是批量求解的响应。
type BatchResponse struct {
	ID        string              `json:"id"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Items     []BatchItemResponse `json:"items"`
}

func newBatchResponse(b *solver.BatchResult) BatchResponse {
	resp := BatchResponse{
		ID:        b.ID,
		Succeeded: b.Succeeded,
		Failed:    b.Failed,
		Items:     make([]BatchItemResponse, len(b.Items)),
	}
	for i, item := range b.Items {
		resp.Items[i] = BatchItemResponse{Index: item.Index, Result: item.Result}
		if item.Error != nil {
			resp.Items[i].Error = newErrorBody(item.Error)
		}
	}
	return resp
}
