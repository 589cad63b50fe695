package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationList(t *testing.T) {
	msgs := []string{"Almeno un prodotto obbligatorio", "Cliente obbligatorio"}
	err := NewValidationList("invalid order", msgs)
	msgs[0] = "mutated"

	assert.True(t, IsValidation(err))
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(err))
	assert.Equal(t, []string{"Almeno un prodotto obbligatorio", "Cliente obbligatorio"}, ValidationMessages(err))
}

func TestAsAppErrorThroughWrapping(t *testing.T) {
	base := NewStorage("save", "orders", errors.New("disk full"))
	wrapped := fmt.Errorf("create order: %w", base)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeStorage, appErr.Code)
	assert.Equal(t, "orders", appErr.Details["collection"])
	assert.Contains(t, wrapped.Error(), "disk full")
	assert.Nil(t, ValidationMessages(wrapped))
}

func TestGetHTTPStatusForPlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
	assert.False(t, IsNotFound(errors.New("boom")))
	assert.True(t, IsNotFound(NewNotFound("order", "order_1")))
}
