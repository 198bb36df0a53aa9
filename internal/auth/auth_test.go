package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iurnickita/pixrecon/internal/auth/config"
	"github.com/iurnickita/pixrecon/internal/token"
)

func echoOperator(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(Operator(r.Context())))
}

func TestMiddleware(t *testing.T) {
	a := NewAuth(config.Config{Secret: "secret", TTL: time.Hour}, zaptest.NewLogger(t))
	h := a.Middleware(echoOperator)

	valid, err := token.BuildJWTString("secret", time.Hour, "joana")
	require.NoError(t, err)
	forged, err := token.BuildJWTString("other", time.Hour, "mallory")
	require.NoError(t, err)

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
		wantBody string
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) }, http.StatusOK, "joana"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: cookieOperatorToken, Value: valid}) }, http.StatusOK, "joana"},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+valid) }, http.StatusUnauthorized, ""},
		{"forged", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+forged) }, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/payments/pending", nil)
			tt.prepare(r)
			w := httptest.NewRecorder()
			h(w, r)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	a := NewAuth(config.Config{}, zaptest.NewLogger(t))
	require.False(t, a.Enabled())

	w := httptest.NewRecorder()
	a.Middleware(echoOperator)(w, httptest.NewRequest(http.MethodGet, "/payments/pending", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}
