// Package domain concentra entidades e estruturas centrais do throttle.
package domain

import "time"

const (
	DefaultMaxRequests   = 1000
	DefaultPeriodSeconds = 60

	// RejectStatusCode é o 429 Too Many Requests do HTTP.
	RejectStatusCode = 429
	RejectReason     = "Too many requests"
)

// ThrottleConfig define o orçamento de requisições. O throttling só fica ativo
// quando os dois campos são positivos.
type ThrottleConfig struct {
	MaxRequests   int
	PeriodSeconds int
}

func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{MaxRequests: DefaultMaxRequests, PeriodSeconds: DefaultPeriodSeconds}
}

func (c ThrottleConfig) Enabled() bool {
	return c.MaxRequests > 0 && c.PeriodSeconds > 0
}

func (c ThrottleConfig) Period() time.Duration {
	return time.Duration(c.PeriodSeconds) * time.Second
}

type ThrottleRequest struct {
	ClientAddr string
}

type Verdict struct {
	Allowed bool
	Key     string
	Count   int64
	Limit   int
	Period  time.Duration
}

func Allow() Verdict {
	return Verdict{Allowed: true}
}

// StatusCode devolve o status de rejeição, ou 200 para veredictos permitidos.
func (v Verdict) StatusCode() int {
	if v.Allowed {
		return 200
	}
	return RejectStatusCode
}
