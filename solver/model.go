package solver

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/demaxmin/algorithm/transport"
)

// Session 是配置阶段与求解阶段之间保存的问题状态，构造后只读。
type Session struct {
	ID        string             `json:"id"`
	Problem   *transport.Problem `json:"problem"`
	Result    *Result            `json:"result,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Result 是一次求解的完整输出。
type Result struct {
	ID           string                 `json:"id"`
	ProblemID    string                 `json:"problem_id,omitempty"`
	Dummy        transport.DummyKind    `json:"dummy"`
	Origins      []string               `json:"origins"`
	Destinations []string               `json:"destinations"`
	Supply       []decimal.Decimal      `json:"supply"`
	Demand       []decimal.Decimal      `json:"demand"`
	Table        [][]string             `json:"table"`
	Assignments  []transport.Assignment `json:"assignments"`
	Steps        []transport.Step       `json:"steps,omitempty"`
	Total        decimal.Decimal        `json:"total"`
	Terms        []string               `json:"terms"`
	Expression   string                 `json:"expression"`
	Iterations   int                    `json:"iterations"`
	Swept        int                    `json:"swept"`
	CreatedAt    time.Time              `json:"created_at"`
}

// BatchItem 是批量求解中单个问题的结果，Result 与 Error 互斥。
type BatchItem struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Error  error   `json:"-"`
}

// BatchResult 按输入顺序保存批量求解结果。
type BatchResult struct {
	ID        string      `json:"id"`
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// SolutionRecord 是持久化的求解结果，表格以渲染后的单元格文本保存。
type SolutionRecord struct {
	ID               string            `gorm:"primaryKey;size:32"`
	ProblemID        string            `gorm:"size:32;index"`
	OriginLabel      string            `gorm:"size:64"`
	DestinationLabel string            `gorm:"size:64"`
	Dummy            string            `gorm:"size:16"`
	Origins          []string          `gorm:"serializer:json"`
	Destinations     []string          `gorm:"serializer:json"`
	Supply           []decimal.Decimal `gorm:"serializer:json"`
	Demand           []decimal.Decimal `gorm:"serializer:json"`
	Table            [][]string        `gorm:"serializer:json"`
	Total            decimal.Decimal   `gorm:"type:numeric(24,6)"`
	Expression       string            `gorm:"type:text"`
	Iterations       int
	Swept            int
	CreatedAt        time.Time          `gorm:"index"`
	Assignments      []AssignmentRecord `gorm:"foreignKey:SolutionID;constraint:OnDelete:CASCADE"`
}

// AssignmentRecord 是一条持久化的分配记录，Seq 为分配发生的顺序。
type AssignmentRecord struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	SolutionID  string `gorm:"size:32;index"`
	Seq         int
	Row         int
	Col         int
	Origin      string          `gorm:"size:64"`
	Destination string          `gorm:"size:64"`
	UnitCost    decimal.Decimal `gorm:"type:numeric(24,6)"`
	Quantity    decimal.Decimal `gorm:"type:numeric(24,6)"`
	Phase       string          `gorm:"size:16"`
}
