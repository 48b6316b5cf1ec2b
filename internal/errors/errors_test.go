package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"validation", ValidationError("bad input"), 400},
		{"not found", NotFoundError("missing"), 404},
		{"too many requests", TooManyRequestsError("slow down"), 429},
		{"internal", InternalError("boom", nil), 500},
		{"unknown type", &Error{Type: "mystery"}, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestError_ErrorString(t *testing.T) {
	err := ValidationError("bad input")
	assert.Equal(t, "validation: bad input", err.Error())

	wrapped := InternalError("query failed", fmt.Errorf("connection reset"))
	assert.Equal(t, "internal: query failed: connection reset", wrapped.Error())
}

func TestError_WithField(t *testing.T) {
	err := ValidationError("bad fps").WithField("fps", -1.0).WithField("frames", 10)
	assert.Equal(t, -1.0, err.Context["fps"])
	assert.Equal(t, 10, err.Context["frames"])
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := InternalError("wrapper", cause)
	assert.ErrorIs(t, err, cause)
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("already structured", func(t *testing.T) {
		original := ValidationError("bad")
		got := AsStructuredError(original)
		assert.Same(t, original, got)
	})

	t.Run("wrapped structured", func(t *testing.T) {
		original := NotFoundError("missing")
		got := AsStructuredError(fmt.Errorf("outer: %w", original))
		assert.Same(t, original, got)
	})

	t.Run("plain error", func(t *testing.T) {
		got := AsStructuredError(fmt.Errorf("plain"))
		require.NotNil(t, got)
		assert.Equal(t, TypeInternal, got.Type)
	})
}

func TestError_ToResponse(t *testing.T) {
	err := ValidationError("bad input").WithField("field", "fps")
	resp := err.ToResponse()
	assert.Equal(t, "bad input", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, "fps", resp.Context["field"])
}
