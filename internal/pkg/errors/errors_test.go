package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("formats code and wrapped error", func(t *testing.T) {
		err := Unprocessable("bad attributes").WithError(fmt.Errorf("boom"))
		assert.Equal(t, "UNPROCESSABLE_ENTITY: bad attributes (boom)", err.Error())
		assert.Equal(t, http.StatusUnprocessableEntity, err.StatusCode)
	})

	t.Run("survives wrapping", func(t *testing.T) {
		err := fmt.Errorf("decode span: %w", Validation("name is required"))
		assert.True(t, IsValidation(err))
		assert.Equal(t, http.StatusBadRequest, GetStatusCode(err))
	})

	t.Run("details", func(t *testing.T) {
		err := NotFound("blob").WithDetail("key", "abc")
		assert.Equal(t, "abc", err.Details["key"])
		assert.True(t, IsNotFound(err))
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"plain error", fmt.Errorf("connection reset"), true},
		{"unavailable", Unavailable("blob store"), true},
		{"internal", Internal("oops"), true},
		{"validation", Validation("bad"), false},
		{"bad request", BadRequest("bad"), false},
		{"wrapped unprocessable", fmt.Errorf("span: %w", Unprocessable("bad")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}
