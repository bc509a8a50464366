package database

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/demaxmin/breaker"
	"github.com/wyfcoding/demaxmin/contextx"
)

// ErrNotFound 记录不存在。
var ErrNotFound = errors.New("record not found")

// GormRepository 是基于 GORM 的泛型仓储，所有调用经过熔断器。
// ctx 中带有事务句柄时，所有操作在该事务内执行。
type GormRepository[T any] struct {
	db *gorm.DB
	cb *breaker.Breaker
}

// NewGormRepository 创建仓储，cb 可为 nil。
func NewGormRepository[T any](db *gorm.DB, cb *breaker.Breaker) *GormRepository[T] {
	return &GormRepository[T]{db: db, cb: cb}
}

// RunInTx 在 db 上开启事务，并通过 ctx 把事务句柄交给 fn 内的仓储调用。
// ctx 已处于事务中时直接复用该事务。fn 返回错误时整体回滚。
func RunInTx(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}

func txFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := contextx.GetTx(ctx).(*gorm.DB)
	return tx, ok && tx != nil
}

// DB 返回绑定 ctx 的 GORM 会话，优先使用 ctx 中的事务。
func (r *GormRepository[T]) DB(ctx context.Context) *gorm.DB {
	if tx, ok := txFrom(ctx); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// Transaction 在一个事务中执行 fn，fn 内的仓储调用各自经过熔断器。
func (r *GormRepository[T]) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return RunInTx(ctx, r.db, fn)
}

// Create 写入实体及其关联。
func (r *GormRepository[T]) Create(ctx context.Context, entity *T) error {
	return r.cb.Execute(func() error {
		return r.DB(ctx).Create(entity).Error
	})
}

// FindByID 按主键查询，preloads 指定需要预加载的关联。
func (r *GormRepository[T]) FindByID(ctx context.Context, id any, preloads ...string) (*T, error) {
	return breaker.ExecuteTyped(r.cb, func() (*T, error) {
		q := r.DB(ctx)
		for _, p := range preloads {
			q = q.Preload(p)
		}

		var entity T
		if err := q.First(&entity, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return &entity, nil
	})
}

// DeleteWhere 按条件删除，返回删除行数。
func (r *GormRepository[T]) DeleteWhere(ctx context.Context, query string, args ...any) (int64, error) {
	return breaker.ExecuteTyped(r.cb, func() (int64, error) {
		var entity T
		res := r.DB(ctx).Where(query, args...).Delete(&entity)
		return res.RowsAffected, res.Error
	})
}
