package errors

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestKindOf_WrappedErrors(t *testing.T) {
	err := Wrap(ErrOrderNotFound, "release escrow")

	assert.True(t, IsNotFound(err))
	assert.False(t, IsState(err))
	assert.True(t, errors.Is(err, ErrOrderNotFound))
	assert.False(t, errors.Is(err, ErrListingNotFound))
}

func TestKindOf_PriceLimitIsValidation(t *testing.T) {
	err := Wrap(&PriceLimitError{
		FaceValue:  decimal.RequireFromString("300"),
		Ceiling:    decimal.RequireFromString("1.2"),
		MaxAllowed: decimal.RequireFromString("360"),
		Asked:      decimal.RequireFromString("360.01"),
	}, "create listing")

	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "300.00")
	assert.Contains(t, err.Error(), "360.00")
	assert.Contains(t, err.Error(), "120%")
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Nil(t, Wrap(nil, "ignored"))
}
