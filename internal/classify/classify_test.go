package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "call timed out" }
func (timeoutErr) Unwrap() error { return context.DeadlineExceeded }

// refusedAt builds the error net/http returns when nothing listens at u.
func refusedAt(u string) error {
	op := &net.OpError{Op: "dial", Net: "tcp", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}}
	return fmt.Errorf("executor: post: %w", &url.Error{Op: "Post", URL: u, Err: op})
}

func TestClassify(t *testing.T) {
	c, err := New(DefaultOptions())
	require.NoError(t, err)

	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"404", &StatusError{Code: 404}, Permanent},
		{"422 wrapped", fmt.Errorf("submit: %w", &StatusError{Code: 422, Message: "bad tin"}), Permanent},
		{"503", &StatusError{Code: 503}, Retriable},
		{"429", &StatusError{Code: 429}, Retriable},
		{"500 with keyword body", &StatusError{Code: 500, Message: "invalid state"}, Retriable},
		{"timeout", timeoutErr{}, Retriable},
		{"deadline", context.DeadlineExceeded, Retriable},
		{"canceled", context.Canceled, Retriable},
		{"duplicate sentinel", fmt.Errorf("irn 42: %w", ErrDuplicate), Permanent},
		{"validation sentinel", ErrValidation, Permanent},
		{"keyword", errors.New("Schema mismatch on field amount"), Permanent},
		{"already exists", errors.New("invoice already exists"), Permanent},
		{"network", errors.New("dial tcp 10.0.0.1:443: connect: connection refused"), Retriable},
		{"unknown", errors.New("something odd"), Retriable},
		{"refused on keyword url", refusedAt("http://einvoice.local/api/v1/invoice/validation"), Retriable},
		{"refused on invalidate url", refusedAt("http://einvoice.local/api/v1/invoice/invalidate"), Retriable},
		{"bare errno", fmt.Errorf("submit duplicate check: %w", syscall.ECONNRESET), Retriable},
		{"truncated response", fmt.Errorf("read invalid body: %w", io.ErrUnexpectedEOF), Retriable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reason := c.Classify(tc.err)
			assert.Equal(t, tc.want, got, "reason: %s", reason)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestClassifyRules(t *testing.T) {
	opts := DefaultOptions()
	opts.PermanentRules = []string{
		`status == 410`,
		`kind == "error" && message.contains("tin rejected")`,
	}
	c, err := New(opts)
	require.NoError(t, err)

	cls, reason := c.Classify(&StatusError{Code: 410})
	assert.Equal(t, Permanent, cls)
	assert.Contains(t, reason, "rule")

	cls, _ = c.Classify(errors.New("TIN rejected by registry"))
	assert.Equal(t, Permanent, cls)

	cls, _ = c.Classify(&StatusError{Code: 502})
	assert.Equal(t, Retriable, cls)
}

func TestCustomStatusCodes(t *testing.T) {
	c, err := New(Options{PermanentStatusCodes: []int{418}})
	require.NoError(t, err)
	cls, _ := c.Classify(&StatusError{Code: 418})
	assert.Equal(t, Permanent, cls)
	cls, _ = c.Classify(&StatusError{Code: 404})
	assert.Equal(t, Retriable, cls)
	cls, _ = c.Classify(errors.New("not found"))
	assert.Equal(t, Retriable, cls, "no keywords configured")
}

func TestInvalidRuleFails(t *testing.T) {
	_, err := New(Options{PermanentRules: []string{"status +"}})
	require.Error(t, err)
	_, err = New(Options{PermanentRules: []string{"unknown_var == 1"}})
	require.Error(t, err)
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "permanent", Permanent.String())
	assert.Equal(t, "retriable", Retriable.String())
	assert.Equal(t, "downstream returned status 404", (&StatusError{Code: 404}).Error())
}

func TestTransportErrorsSkipRulesAndKeywords(t *testing.T) {
	opts := DefaultOptions()
	opts.PermanentRules = []string{`message.contains("invoice")`, `kind == "timeout"`}
	c, err := New(opts)
	require.NoError(t, err)

	cls, reason := c.Classify(refusedAt("http://einvoice.local/api/v1/invoice/validation"))
	assert.Equal(t, Retriable, cls)
	assert.Equal(t, "network", reason)

	cls, reason = c.Classify(fmt.Errorf("invoice submit: %w", context.DeadlineExceeded))
	assert.Equal(t, Retriable, cls)
	assert.Equal(t, "timeout", reason)

	// a response error still goes through the rules
	cls, _ = c.Classify(&StatusError{Code: 500, Message: "invoice store down"})
	assert.Equal(t, Permanent, cls)
}
