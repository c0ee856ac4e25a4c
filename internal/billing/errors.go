package billing

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrStockExceeded = errors.New("stock exceeded")
	ErrValidation    = errors.New("validation failed")
	ErrPersistence   = errors.New("persistence failure")
)

// ValidationError carries the message shown to the cashier.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(field string, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type StockError struct {
	ItemID    int64
	Name      string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("only %d of %s available", e.Available, e.Name)
}

func (e *StockError) Is(target error) bool {
	return target == ErrStockExceeded
}

// Persistence wraps a storage failure unless it already belongs to the
// taxonomy.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStockExceeded) || errors.Is(err, ErrValidation) || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: failed to %s: %v", ErrPersistence, op, err)
}
