package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"txboundary/internal/core/tx"
)

func TestResolve(t *testing.T) {
	notFound := NewNotFound("account", "42")
	commitErr := &tx.CommitError{Err: errors.New("serialization failure")}

	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"app error passes through", notFound, CodeNotFound, http.StatusNotFound},
		{"wrapped app error", fmt.Errorf("load: %w", notFound), CodeNotFound, http.StatusNotFound},
		{"commit failure", commitErr, CodeTransaction, http.StatusServiceUnavailable},
		{"provider failure", fmt.Errorf("%w: boom", tx.ErrNoHandle), CodeTransaction, http.StatusInternalServerError},
		{"begin failure", fmt.Errorf("%w: boom", tx.ErrBegin), CodeTransaction, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.status, got.HTTPStatus)
			assert.Equal(t, tt.status, GetHTTPStatus(tt.err))
		})
	}
}

func TestResolve_KeepsCause(t *testing.T) {
	commitErr := &tx.CommitError{Err: errors.New("disk full")}

	got := Resolve(commitErr)

	assert.ErrorIs(t, got, tx.ErrCommit)
}
