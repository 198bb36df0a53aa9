package logger

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iurnickita/pixrecon/internal/logger/config"
)

func TestNewZapLog(t *testing.T) {
	zl, err := NewZapLog(config.Config{LogLevel: "debug"})
	require.NoError(t, err)
	assert.True(t, zl.Core().Enabled(zapcore.DebugLevel))

	_, err = NewZapLog(config.Config{LogLevel: "loud"})
	assert.Error(t, err)
}

func TestRequestLogMdlw(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestLogMdlw(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":`))
		w.Write([]byte(`true}`))
	}, zap.New(core))

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"payerId":"123"}`)))

	require.Equal(t, http.StatusCreated, w.Code)
	requestID := w.Header().Get(HeaderRequestID)
	require.NotEmpty(t, requestID)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, requestID, entries[0].ContextMap()["requestId"])
	assert.Equal(t, `{"payerId":"123"}`, entries[0].ContextMap()["body"])
	assert.Equal(t, int64(http.StatusCreated), entries[1].ContextMap()["code"])
	assert.Equal(t, `{"ok":true}`, entries[1].ContextMap()["body"])
}

func TestRequestLogMdlwKeepsIncomingID(t *testing.T) {
	h := RequestLogMdlw(func(w http.ResponseWriter, r *http.Request) {}, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	h(w, r)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}
