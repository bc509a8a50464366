package solver

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/demaxmin/breaker"
	"github.com/wyfcoding/demaxmin/database"
	"github.com/wyfcoding/demaxmin/xerrors"
)

// SolutionRepository 持久化求解结果。
type SolutionRepository interface {
	Save(ctx context.Context, rec *SolutionRecord) error
	Find(ctx context.Context, id string) (*SolutionRecord, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// GormSolutionRepository 基于 GORM 的实现，写入时连同分配记录一起创建。
type GormSolutionRepository struct {
	solutions   *database.GormRepository[SolutionRecord]
	assignments *database.GormRepository[AssignmentRecord]
}

// NewGormSolutionRepository 创建仓储，cb 可为 nil。
func NewGormSolutionRepository(db *gorm.DB, cb *breaker.Breaker) *GormSolutionRepository {
	return &GormSolutionRepository{
		solutions:   database.NewGormRepository[SolutionRecord](db, cb),
		assignments: database.NewGormRepository[AssignmentRecord](db, cb),
	}
}

// Migrate 创建或更新表结构。
func (r *GormSolutionRepository) Migrate(ctx context.Context) error {
	return r.solutions.DB(ctx).AutoMigrate(&SolutionRecord{}, &AssignmentRecord{})
}

// Save 写入求解记录。
func (r *GormSolutionRepository) Save(ctx context.Context, rec *SolutionRecord) error {
	if err := r.solutions.Create(ctx, rec); err != nil {
		return xerrors.ErrDependencyUnavailable.WithContext("solution_id", rec.ID).WithCause(err)
	}
	return nil
}

// Find 按 ID 读取求解记录及其分配。
func (r *GormSolutionRepository) Find(ctx context.Context, id string) (*SolutionRecord, error) {
	rec, err := r.solutions.FindByID(ctx, id, "Assignments")
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, xerrors.ErrSolutionNotFound.WithContext("solution_id", id)
		}
		return nil, xerrors.ErrDependencyUnavailable.WithContext("solution_id", id).WithCause(err)
	}
	return rec, nil
}

// PurgeBefore 在同一事务中删除 cutoff 之前创建的求解记录及其分配，返回删除的求解记录数。
func (r *GormSolutionRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.solutions.Transaction(ctx, func(ctx context.Context) error {
		expired := r.solutions.DB(ctx).Model(&SolutionRecord{}).Select("id").Where("created_at < ?", cutoff)
		if _, err := r.assignments.DeleteWhere(ctx, "solution_id IN (?)", expired); err != nil {
			return err
		}
		var err error
		n, err = r.solutions.DeleteWhere(ctx, "created_at < ?", cutoff)
		return err
	})
	if err != nil {
		return 0, xerrors.ErrDependencyUnavailable.WithCause(err)
	}
	return n, nil
}
