// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"
)

// CounterStore é um keyspace compartilhado com contadores atômicos e expiração.
// Increment deve ser linearizável por chave e devolver o valor já incrementado.
type CounterStore interface {
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// WindowReader é implementado pelos stores que sabem informar quanto falta para
// a chave expirar. Um valor <= 0 indica chave ausente ou sem TTL.
type WindowReader interface {
	Remaining(ctx context.Context, key string) (time.Duration, error)
}
