package services

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JeanGrijp/request-throttle/internal/core/domain"
	"github.com/JeanGrijp/request-throttle/internal/core/ports"
)

const (
	tracerName       = "github.com/JeanGrijp/request-throttle/internal/core/services"
	defaultKeyPrefix = "throttle"
	unknownClient    = "unknown"
)

// Config agrega o orçamento de requisições e o prefixo das chaves no store.
// Sem TracerProvider, o provider global do otel é usado.
type Config struct {
	Throttle       domain.ThrottleConfig
	KeyPrefix      string
	TracerProvider trace.TracerProvider
}

// ThrottleService implementa a contagem em janela fixa sobre um counter store compartilhado.
// Não guarda estado mutável; todas as contagens vivem no store.
type ThrottleService struct {
	store  ports.CounterStore
	config Config
	tracer trace.Tracer
}

var (
	_ ports.Throttler    = (*ThrottleService)(nil)
	_ ports.RetryAdvisor = (*ThrottleService)(nil)
)

// NewThrottleService cria uma nova instância do serviço. Um store só é exigido
// quando o throttling está habilitado.
func NewThrottleService(store ports.CounterStore, cfg Config) (*ThrottleService, error) {
	if cfg.Throttle.Enabled() && store == nil {
		return nil, domain.ErrStoreMissing
	}
	cfg.KeyPrefix = strings.TrimSpace(cfg.KeyPrefix)
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}

	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	return &ThrottleService{
		store:  store,
		config: cfg,
		tracer: provider.Tracer(tracerName),
	}, nil
}

// IsEnabled informa se o orçamento está ativo.
func (s *ThrottleService) IsEnabled() bool {
	return s.config.Throttle.Enabled()
}

// DeriveKey devolve a chave do contador de uma requisição. Requisições sem
// endereço utilizável compartilham o bucket "unknown".
func (s *ThrottleService) DeriveKey(req domain.ThrottleRequest) string {
	return fmt.Sprintf("%s:ip:%s", s.config.KeyPrefix, normalizeClientAddr(req.ClientAddr))
}

// Evaluate conta a requisição na janela corrente e decide se ela pode prosseguir.
//
// O incremento e a expiração são duas chamadas separadas ao store. Se o processo
// morrer entre elas a chave fica sem TTL; essa janela é aceita.
func (s *ThrottleService) Evaluate(ctx context.Context, req domain.ThrottleRequest) (domain.Verdict, error) {
	if !s.IsEnabled() {
		return domain.Allow(), nil
	}

	key := s.DeriveKey(req)
	ctx, span := s.tracer.Start(ctx, "throttle.evaluate", trace.WithAttributes(
		attribute.String("throttle.key", key),
		attribute.Int("throttle.limit", s.config.Throttle.MaxRequests),
	))
	defer span.End()

	count, err := s.store.Increment(ctx, key)
	if err != nil {
		return s.fail(span, &domain.StoreError{Op: "increment", Key: key, Err: err})
	}

	if count == 1 {
		if err := s.store.Expire(ctx, key, s.config.Throttle.Period()); err != nil {
			return s.fail(span, &domain.StoreError{Op: "expire", Key: key, Err: err})
		}
	}

	verdict := domain.Verdict{
		Allowed: count <= int64(s.config.Throttle.MaxRequests),
		Key:     key,
		Count:   count,
		Limit:   s.config.Throttle.MaxRequests,
		Period:  s.config.Throttle.Period(),
	}
	span.SetAttributes(
		attribute.Int64("throttle.count", count),
		attribute.Bool("throttle.allowed", verdict.Allowed),
	)

	return verdict, nil
}

// RetryAfter estima quanto um cliente rejeitado deve esperar. Usa o TTL restante
// da chave quando o store sabe informá-lo e, do contrário, o período inteiro,
// que é um limite superior.
func (s *ThrottleService) RetryAfter(ctx context.Context, verdict domain.Verdict) time.Duration {
	period := s.config.Throttle.Period()
	reader, ok := s.store.(ports.WindowReader)
	if !ok || verdict.Key == "" {
		return period
	}

	remaining, err := reader.Remaining(ctx, verdict.Key)
	if err != nil || remaining <= 0 || remaining > period {
		return period
	}
	return remaining
}

func (s *ThrottleService) fail(span trace.Span, err error) (domain.Verdict, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return domain.Verdict{}, err
}

func normalizeClientAddr(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return unknownClient
	}

	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().WithZone("").Unmap().String()
	}

	addr = strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
	if ip, err := netip.ParseAddr(addr); err == nil {
		return ip.WithZone("").Unmap().String()
	}

	return addr
}
