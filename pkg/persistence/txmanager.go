package persistence

import "context"

// TxManager runs fn inside a database transaction. Every repository call made
// with txCtx joins the same transaction; returning an error rolls it back.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(txCtx context.Context) (any, error)) (any, error)
}
