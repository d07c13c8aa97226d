// Package middleware disponibiliza middlewares HTTP específicos da aplicação.
package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/JeanGrijp/request-throttle/internal/core/domain"
	"github.com/JeanGrijp/request-throttle/internal/core/ports"
)

// Options controla como veredictos e falhas do store chegam ao cliente.
type Options struct {
	// FailOpen deixa a requisição passar quando o counter store falha.
	// O padrão é responder 503.
	FailOpen bool
	// TrustProxyHeaders usa X-Forwarded-For / X-Real-IP no lugar de RemoteAddr.
	TrustProxyHeaders bool
	// StoreTimeout limita cada avaliação além do contexto da requisição. Zero desativa.
	StoreTimeout time.Duration
	Logger       zerolog.Logger
}

// NewThrottleMiddleware cria o middleware net/http (chi) que avalia cada requisição.
func NewThrottleMiddleware(throttler ports.Throttler, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Check(w, r, throttler, opts) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Check avalia r e, quando a requisição não deve seguir, escreve a resposta final.
// Informa se o chamador deve continuar processando a requisição.
func Check(w http.ResponseWriter, r *http.Request, throttler ports.Throttler, opts Options) bool {
	if throttler == nil {
		return true
	}

	ctx := r.Context()
	if opts.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.StoreTimeout)
		defer cancel()
	}

	req := domain.ThrottleRequest{ClientAddr: ClientAddr(r, opts.TrustProxyHeaders)}

	verdict, err := throttler.Evaluate(ctx, req)
	if err != nil {
		opts.Logger.Error().
			Err(err).
			Str("client", req.ClientAddr).
			Bool("fail_open", opts.FailOpen).
			Msg("throttle evaluation failed")
		if opts.FailOpen {
			return true
		}
		WriteUnavailable(w)
		return false
	}

	if !verdict.Allowed {
		opts.Logger.Debug().
			Str("key", verdict.Key).
			Int64("count", verdict.Count).
			Int("limit", verdict.Limit).
			Msg("request throttled")
		retryAfter := verdict.Period
		if advisor, ok := throttler.(ports.RetryAdvisor); ok {
			retryAfter = advisor.RetryAfter(ctx, verdict)
		}
		WriteTooManyRequests(w, verdict, retryAfter)
		return false
	}

	return true
}

// ClientAddr devolve o endereço usado como chave da requisição. Os cabeçalhos de
// proxy só são consultados com trustProxy, pois o cliente pode forjá-los.
func ClientAddr(r *http.Request, trustProxy bool) string {
	if trustProxy {
		xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
		if xForwardedFor != "" {
			first, _, _ := strings.Cut(xForwardedFor, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}

		xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
		if xRealIP != "" {
			return xRealIP
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}

	return host
}

// WriteTooManyRequests escreve a rejeição. Retry-After é arredondado para cima
// em segundos e omitido quando retryAfter não é positivo.
func WriteTooManyRequests(w http.ResponseWriter, verdict domain.Verdict, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(verdict.StatusCode())
	_, _ = w.Write([]byte(domain.RejectReason))
}

// WriteUnavailable responde 503 quando o store falha e a política é fail-closed.
func WriteUnavailable(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
}
