package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespond(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"validation", Invalid("name already exists."), http.StatusBadRequest, ErrCodeInvalidInput, "name already exists."},
		{"wrapped not found", fmt.Errorf("get: %w", NotFound("record not found")), http.StatusNotFound, ErrCodeNotFound, "record not found"},
		{"forbidden", Forbidden("unauthorized"), http.StatusForbidden, ErrCodeForbidden, "unauthorized"},
		{"bare kind", ErrConflict, http.StatusConflict, ErrCodeConflict, "conflict"},
		{"unknown", stderrors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Respond(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.Equal(t, []string{tt.wantMessage}, body.Errors)
		})
	}
}

func TestError_IsCause(t *testing.T) {
	cause := stderrors.New("constraint")
	err := Wrap(ErrInvalidInput, "name already exists.", cause)

	assert.True(t, stderrors.Is(err, ErrInvalidInput))
	assert.True(t, stderrors.Is(err, cause))
	assert.False(t, stderrors.Is(err, ErrNotFound))
	assert.Equal(t, "name already exists.: constraint", err.Error())
}
