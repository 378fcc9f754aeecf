package domainerrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeInsufficientFunds, "balance too low")
		assert.True(t, HasCode(err, CodeInsufficientFunds))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches wrapped code anywhere in chain", func(t *testing.T) {
		inner := New(CodeInsufficientFunds, "balance too low")
		outer := Wrap(inner, CodeInternal, "trade failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeInsufficientFunds))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "store unavailable")
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeListingNotActive, CodeOf(New(CodeListingNotActive, "sold")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("untyped")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidPrice:          http.StatusBadRequest,
		CodeAlreadyInitialized:    http.StatusConflict,
		CodeListingNotSold:        http.StatusConflict,
		CodeInsufficientFunds:     http.StatusUnprocessableEntity,
		CodeInsufficientLiquidity: http.StatusUnprocessableEntity,
		CodeNotFound:              http.StatusNotFound,
		CodeInternal:              http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
