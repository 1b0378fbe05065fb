package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rzbill/txq/internal/classify"
)

func TestOutcomeKind(t *testing.T) {
	cases := []struct {
		kind  OutcomeKind
		name  string
		class classify.Class
	}{
		{OutcomeOK, "ok", classify.Retriable},
		{OutcomeCircuitOpen, "circuit_open", classify.Retriable},
		{OutcomeRetriable, "retriable", classify.Retriable},
		{OutcomePermanent, "permanent", classify.Permanent},
		{OutcomeKind(42), "unknown", classify.Retriable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.name, tc.kind.String())
		assert.Equal(t, tc.class, tc.kind.class(), tc.name)
	}
}
