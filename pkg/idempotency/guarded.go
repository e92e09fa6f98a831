package idempotency

import (
	"context"

	"github.com/jwalitptl/hms-api/pkg/circuitbreaker"
)

// GuardedStore fails fast once the wrapped store keeps erroring. Callers
// already treat store errors as a miss, so an open breaker only costs the
// replay guarantee, never the request.
type GuardedStore struct {
	store   Store
	breaker *circuitbreaker.CircuitBreaker
}

func NewGuardedStore(store Store, breaker *circuitbreaker.CircuitBreaker) *GuardedStore {
	return &GuardedStore{store: store, breaker: breaker}
}

func (s *GuardedStore) Get(ctx context.Context, key string) (*Record, bool, error) {
	var (
		rec *Record
		ok  bool
	)
	err := s.breaker.Execute(func() error {
		var err error
		rec, ok, err = s.store.Get(ctx, key)
		return err
	})
	return rec, ok, err
}

func (s *GuardedStore) Put(ctx context.Context, key string, rec Record) (bool, error) {
	var won bool
	err := s.breaker.Execute(func() error {
		var err error
		won, err = s.store.Put(ctx, key, rec)
		return err
	})
	return won, err
}
