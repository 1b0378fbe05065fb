// Package classify decides whether a failed delivery attempt may succeed if
// repeated (Retriable) or never will (Permanent).
//
// Checks run in order: timeouts and cancellation, sentinel errors, status
// codes, transport errors, CEL rules, message keywords. Anything left over is
// Retriable. Rules and keywords never see transport errors.
package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/google/cel-go/cel"
)

// Class is the outcome of classification. The zero value is Retriable.
type Class int

const (
	Retriable Class = iota
	Permanent
)

func (c Class) String() string {
	if c == Permanent {
		return "permanent"
	}
	return "retriable"
}

// Sentinels executors wrap to signal permanent failures.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation failed")
	ErrDuplicate    = errors.New("duplicate submission")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

var permanentSentinels = []error{ErrInvalidInput, ErrValidation, ErrDuplicate, ErrUnauthorized, ErrForbidden, ErrNotFound}

// StatusCoder is implemented by errors that carry a downstream status code.
type StatusCoder interface {
	StatusCode() int
}

// StatusError is a downstream response with a non-success status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("downstream returned status %d", e.Code)
	}
	return fmt.Sprintf("downstream returned status %d: %s", e.Code, e.Message)
}

func (e *StatusError) StatusCode() int { return e.Code }

// Options configures a Classifier.
type Options struct {
	PermanentStatusCodes []int
	PermanentKeywords    []string
	// PermanentRules are CEL expressions over status (int), message (string)
	// and kind (string: status, error). Timeouts, cancellation and transport
	// errors are settled before rules run.
	PermanentRules []string
}

// DefaultOptions returns the built-in allow-lists.
func DefaultOptions() Options {
	return Options{
		PermanentStatusCodes: []int{400, 401, 403, 404, 409, 422},
		PermanentKeywords: []string{
			"invalid", "malformed", "validation", "schema", "duplicate",
			"already exists", "unauthorized", "forbidden", "not found",
		},
	}
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	codes    map[int]struct{}
	keywords []string
	rules    []rule
}

type rule struct {
	expr string
	prog cel.Program
}

// New compiles opts.
func New(opts Options) (*Classifier, error) {
	c := &Classifier{codes: make(map[int]struct{}, len(opts.PermanentStatusCodes))}
	for _, code := range opts.PermanentStatusCodes {
		c.codes[code] = struct{}{}
	}
	for _, kw := range opts.PermanentKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			c.keywords = append(c.keywords, kw)
		}
	}
	for _, expr := range opts.PermanentRules {
		prog, err := compileRule(expr)
		if err != nil {
			return nil, fmt.Errorf("classify: rule %q: %w", expr, err)
		}
		c.rules = append(c.rules, rule{expr: expr, prog: prog})
	}
	return c, nil
}

// Classify returns the class of err and a short reason.
func (c *Classifier) Classify(err error) (Class, string) {
	if err == nil {
		return Retriable, "no error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Retriable, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return Retriable, "canceled"
	}
	for _, s := range permanentSentinels {
		if errors.Is(err, s) {
			return Permanent, s.Error()
		}
	}

	status := 0
	var sc StatusCoder
	if errors.As(err, &sc) {
		status = sc.StatusCode()
		if _, ok := c.codes[status]; ok {
			return Permanent, fmt.Sprintf("status %d", status)
		}
	}

	if status == 0 && isTransport(err) {
		return Retriable, "network"
	}

	msg := strings.ToLower(err.Error())
	kind := "error"
	if status != 0 {
		kind = "status"
	}
	for _, r := range c.rules {
		if evalRule(r.prog, status, msg, kind) {
			return Permanent, "rule: " + r.expr
		}
	}

	// a status outside the permanent set is the downstream's verdict, keywords in
	// its body do not override it
	if status != 0 {
		return Retriable, fmt.Sprintf("status %d", status)
	}
	for _, kw := range c.keywords {
		if strings.Contains(msg, kw) {
			return Permanent, "keyword: " + kw
		}
	}
	return Retriable, "unclassified"
}

// isTransport reports whether err came from the connection rather than from
// a downstream response.
func isTransport(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
