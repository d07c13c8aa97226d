package domain

import (
	"errors"
	"fmt"
)

var (
	ErrStoreFailure = errors.New("counter store failure")
	ErrStoreMissing = errors.New("counter store is required when throttling is enabled")
)

// StoreError descreve uma falha do counter store durante a avaliação de uma requisição.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("counter store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}

func IsStoreError(err error) bool {
	return errors.Is(err, ErrStoreFailure)
}
