// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/request-throttle/internal/core/domain"
)

// Throttler avalia cada requisição recebida contra o orçamento configurado.
type Throttler interface {
	Evaluate(ctx context.Context, req domain.ThrottleRequest) (domain.Verdict, error)
	IsEnabled() bool
}

// RetryAdvisor é implementado pelos throttlers capazes de estimar quanto um
// cliente rejeitado deve aguardar.
type RetryAdvisor interface {
	RetryAfter(ctx context.Context, verdict domain.Verdict) time.Duration
}
