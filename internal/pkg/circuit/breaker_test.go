package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("warehouse", 2, 30*time.Second)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	assert.ErrorIs(t, cb.Do(func() error { return boom }, nil), boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Do(func() error { return boom }, nil), boom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Do(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	now = now.Add(31 * time.Second)
	assert.NoError(t, cb.Do(func() error { return nil }, nil))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerIgnoresFilteredErrors(t *testing.T) {
	cb := NewCircuitBreaker("warehouse", 1, time.Minute)
	canceled := errors.New("canceled")
	ignore := func(err error) bool { return errors.Is(err, canceled) }
	for i := 0; i < 3; i++ {
		_ = cb.Do(func() error { return canceled }, ignore)
	}
	assert.Equal(t, StateClosed, cb.State())
}
