// Package memory disponibiliza um counter store em memória para uma única instância.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JeanGrijp/request-throttle/internal/core/ports"
)

type entry struct {
	count     int64
	expiresAt time.Time // zero significa sem TTL
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Storage reproduz a semântica de INCR/EXPIRE do Redis dentro de um único processo.
type Storage struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

var (
	_ ports.CounterStore = (*Storage)(nil)
	_ ports.WindowReader = (*Storage)(nil)
)

type Option func(*Storage)

// WithClock substitui time.Now, usado principalmente em testes.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

func New(opts ...Option) *Storage {
	s := &Storage{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) Increment(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) {
		e = entry{}
	}
	e.count++
	s.entries[key] = e
	return e.count, nil
}

// Expire arma o TTL de uma chave existente. Chaves ausentes são ignoradas, como no Redis.
func (s *Storage) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || e.expired(now) {
		delete(s.entries, key)
		return nil
	}
	if ttl <= 0 {
		delete(s.entries, key)
		return nil
	}
	e.expiresAt = now.Add(ttl)
	s.entries[key] = e
	return nil
}

// Count devolve a contagem viva da chave, ou 0 quando ela está ausente ou expirada.
func (s *Storage) Count(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) {
		return 0
	}
	return e.count
}

// TTL devolve o tempo de vida restante da chave e se há um TTL armado.
func (s *Storage) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || e.expiresAt.IsZero() || e.expired(now) {
		return 0, false
	}
	return e.expiresAt.Sub(now), true
}

// Remaining implementa ports.WindowReader sobre TTL.
func (s *Storage) Remaining(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ttl, _ := s.TTL(key)
	return ttl, nil
}

// Sweep descarta entradas expiradas e informa quantas foram removidas.
func (s *Storage) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Run varre as entradas expiradas a cada intervalo até ctx terminar.
func (s *Storage) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	return nil
}
