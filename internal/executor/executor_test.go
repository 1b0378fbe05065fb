package executor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/txq/internal/classify"
)

func TestHTTPSuccess(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"reference":"IRN-1"}`))
	}))
	defer srv.Close()

	ex, err := NewHTTP(HTTPOptions{URL: srv.URL, Timeout: time.Second, Headers: map[string]string{"X-Api-Key": "secret"}})
	require.NoError(t, err)

	res, err := ex.Execute(context.Background(), json.RawMessage(`{"transaction_id":"T1"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "IRN-1", res.Reference)
	assert.JSONEq(t, `{"transaction_id":"T1"}`, string(got))
}

func TestHTTPStatusErrorsClassify(t *testing.T) {
	cases := []struct {
		code int
		want classify.Class
	}{
		{http.StatusNotFound, classify.Permanent},
		{http.StatusUnprocessableEntity, classify.Permanent},
		{http.StatusServiceUnavailable, classify.Retriable},
		{http.StatusTooManyRequests, classify.Retriable},
	}
	c, err := classify.New(classify.DefaultOptions())
	require.NoError(t, err)
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream says no", tc.code)
		}))
		ex, err := NewHTTP(HTTPOptions{URL: srv.URL})
		require.NoError(t, err)
		_, err = ex.Execute(context.Background(), json.RawMessage(`{}`))
		srv.Close()

		var se *classify.StatusError
		require.True(t, errors.As(err, &se), "code %d", tc.code)
		assert.Equal(t, tc.code, se.StatusCode())
		class, _ := c.Classify(err)
		assert.Equal(t, tc.want, class, "code %d", tc.code)
	}
}

func TestHTTPHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	ex, err := NewHTTP(HTTPOptions{URL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = ex.Execute(ctx, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewHTTPRequiresURL(t *testing.T) {
	_, err := NewHTTP(HTTPOptions{})
	assert.Error(t, err)
}

func TestAcceptAndFunc(t *testing.T) {
	res, err := Accept{}.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Accept{}.Execute(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)

	var calls int
	f := Func(func(context.Context, json.RawMessage) (Result, error) {
		calls++
		return Result{Reference: "x"}, nil
	})
	res, err = f.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "x", res.Reference)
	assert.Equal(t, 1, calls)
}

func TestHTTPRefusedConnectionIsRetriable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c, err := classify.New(classify.DefaultOptions())
	require.NoError(t, err)
	for _, path := range []string{"/api/v1/invoice/validation", "/api/v1/invoice/invalidate"} {
		ex, err := NewHTTP(HTTPOptions{URL: "http://" + addr + path, Timeout: time.Second})
		require.NoError(t, err)
		_, err = ex.Execute(context.Background(), json.RawMessage(`{}`))
		require.Error(t, err)
		cls, reason := c.Classify(err)
		assert.Equal(t, classify.Retriable, cls, "%s: %v (%s)", path, err, reason)
		assert.Equal(t, "network", reason)
	}
}
