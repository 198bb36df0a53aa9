package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/provider/config"
)

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/payments/1319", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) Client {
	return NewClient(config.Config{BaseURL: url, Token: "token-1", Timeout: time.Second})
}

func TestGetPayment(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{
		"id": 1319,
		"status": "approved",
		"transaction_amount": 45.0,
		"date_approved": "2025-01-06T09:30:00.000-03:00",
		"external_reference": "",
		"description": "20250101230000019"
	}`)

	p, err := newTestClient(srv.URL).GetPayment(context.Background(), "1319")
	require.NoError(t, err)
	assert.Equal(t, ID("1319"), p.ID)
	assert.True(t, p.Approved())
	assert.Equal(t, "45.00", p.TransactionAmount.StringFixed(2))
	require.NotNil(t, p.DateApproved)
	assert.Equal(t, time.Date(2025, 1, 6, 12, 30, 0, 0, time.UTC), p.DateApproved.UTC())
	// без external_reference идентификатор берется из описания
	assert.Equal(t, "20250101230000019", p.Reference())
}

func TestGetPaymentStringID(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"id":"1319","status":"pending","external_reference":"ABCD2345","date_approved":null}`)

	p, err := newTestClient(srv.URL).GetPayment(context.Background(), "1319")
	require.NoError(t, err)
	assert.Equal(t, ID("1319"), p.ID)
	assert.False(t, p.Approved())
	assert.Nil(t, p.DateApproved)
	assert.Equal(t, "ABCD2345", p.Reference())
}

func TestGetPaymentNotFound(t *testing.T) {
	srv := newTestServer(t, http.StatusNotFound, `{"message":"not found"}`)

	_, err := newTestClient(srv.URL).GetPayment(context.Background(), "1319")
	assert.True(t, errs.Is(err, ErrPaymentNotFound))
	assert.True(t, errs.Is(err, errs.ErrProviderUnavailable))
}

func TestGetPaymentServerError(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, `oops`)

	_, err := newTestClient(srv.URL).GetPayment(context.Background(), "1319")
	assert.True(t, errs.Is(err, errs.ErrProviderUnavailable))
}

func TestGetPaymentBadBody(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"id":`)

	_, err := newTestClient(srv.URL).GetPayment(context.Background(), "1319")
	assert.True(t, errs.Is(err, errs.ErrProviderUnavailable))
}

func TestGetPaymentTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(config.Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := c.GetPayment(context.Background(), "1319")
	assert.True(t, errs.Is(err, errs.ErrProviderUnavailable))
}

func TestGetPaymentEscapesID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/77?x=1", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetPayment(context.Background(), "77?x=1")
	assert.True(t, errs.Is(err, ErrPaymentNotFound))
}
