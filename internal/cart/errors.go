package cart

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidOwner is returned when no owner identity was supplied.
	ErrInvalidOwner = errors.New("owner identity required")
	// ErrInvalidQuantity is returned for amounts outside the accepted range.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrProductNotFound indicates the referenced product does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrCartNotFound indicates the owner has no cart.
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartItemNotFound indicates the line item is not part of the owner's cart.
	ErrCartItemNotFound = errors.New("cart item not found")
	// ErrPersistence wraps failures reported by the store.
	ErrPersistence = errors.New("cart persistence failure")
)

var typed = []error{
	ErrInvalidOwner,
	ErrInvalidQuantity,
	ErrProductNotFound,
	ErrCartNotFound,
	ErrCartItemNotFound,
	ErrPersistence,
}

// storeError keeps typed errors intact and marks anything else as a persistence failure.
func storeError(action string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range typed {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", action, ErrPersistence, err)
}

// Message converts an operation error into the text shown to the shopper.
// Persistence failures never leak driver details.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidOwner):
		return "please sign in to use the cart"
	case errors.Is(err, ErrInvalidQuantity):
		return "amount is outside the allowed range"
	case errors.Is(err, ErrProductNotFound):
		return "product not found"
	case errors.Is(err, ErrCartNotFound):
		return "cart not found"
	case errors.Is(err, ErrCartItemNotFound):
		return "cart item not found"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "the request timed out, please try again"
	default:
		return "there was an error updating the cart"
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidOwner), errors.Is(err, ErrInvalidQuantity):
		return "invalid"
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrCartNotFound), errors.Is(err, ErrCartItemNotFound):
		return "not_found"
	default:
		return "error"
	}
}
