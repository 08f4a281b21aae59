package service

import (
	"context"
	"errors"

	"github.com/segyhp/guild-ledger/internal/keylock"
	"github.com/segyhp/guild-ledger/internal/money"
	customErrors "github.com/segyhp/guild-ledger/pkg/errors"
)

// errConcurrentUpdate is returned when a compare-and-set write kept losing.
var errConcurrentUpdate = errors.New("loan changed concurrently, retry")

// wrapStorage passes typed errors through and marks everything else as a
// database failure.
func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	var be *customErrors.BusinessError
	switch {
	case errors.As(err, &be),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, keylock.ErrClosed),
		errors.Is(err, errConcurrentUpdate):
		return err
	}
	return customErrors.WrapDatabaseError(err)
}

// ParseAmount parses user input such as "2.5m" into minor units. Malformed
// input yields a BAD_AMOUNT error carrying suffix suggestions.
func ParseAmount(input string, allowNegative bool, maxExponent int) (money.Amount, error) {
	amount, err := money.ParseHuman(input, money.ParseOptions{
		AllowNegative: allowNegative,
		MaxExponent:   maxExponent,
	})
	if err == nil {
		return amount, nil
	}

	var pe *money.ParseError
	if errors.As(err, &pe) {
		return money.Zero, customErrors.WrapBadAmount(input, pe, pe.Suggestions)
	}
	return money.Zero, customErrors.WrapBadAmount(input, err, nil)
}
