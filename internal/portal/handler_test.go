package portal

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"joblinker/internal/auth/client"
	"joblinker/pkg/platform/sentinel"
)

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                   "/me",
		"/api/jobs?page=2":   "/api/jobs?page=2",
		"https://evil.test/": "/me",
		"//evil.test/":       "/me",
		"/\\evil.test":       "/me",
		"relative/path":      "/me",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeNext(in), "next=%q", in)
	}
}

func TestStatusAndMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"backend 401", &client.APIError{Status: 401, Message: "Unauthorized"}, http.StatusUnauthorized, "Unauthorized"},
		{"envelope error on 200", &client.APIError{Status: 200, Message: "Verify your email"}, http.StatusUnauthorized, "Verify your email"},
		{"invalid input", fmt.Errorf("%w: invalid email", sentinel.ErrInvalidInput), http.StatusBadRequest, "invalid input: invalid email"},
		{"network", errors.New("dial tcp: refused"), http.StatusBadGateway, client.GenericMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
			assert.Equal(t, tt.message, userMessage(tt.err))
		})
	}
}
