package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayDoublesFromBase(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, BackoffFactor: 2}
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	assert.Equal(t, 2*time.Second, p.Delay(0), "attempt below one is treated as the first")
}

func TestDelayCap(t *testing.T) {
	p := Policy{MaxAttempts: 50, BaseDelay: time.Second, BackoffFactor: 3, MaxDelay: time.Minute}
	assert.Equal(t, 27*time.Second, p.Delay(4))
	assert.Equal(t, time.Minute, p.Delay(5))
	assert.Equal(t, time.Minute, p.Delay(400), "overflow clamps to the cap")
}

func TestFlatBackoff(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, BackoffFactor: 1}
	for n := 1; n <= 5; n++ {
		assert.Equal(t, 500*time.Millisecond, p.Delay(n))
	}
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{MaxAttempts: 0, BackoffFactor: 2}.Validate())
	assert.Error(t, Policy{MaxAttempts: 3, BackoffFactor: 0.5}.Validate())
	assert.Error(t, Policy{MaxAttempts: 3, BackoffFactor: 2, BaseDelay: -time.Second}.Validate())
}
