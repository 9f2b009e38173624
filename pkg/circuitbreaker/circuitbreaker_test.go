package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New(Settings{Name: "test", MaxFailures: 2, OpenTimeout: time.Minute, HalfOpenRequests: 1}, nil)

	assert.ErrorIs(t, b.Do(func() error { return errBoom }), errBoom)
	assert.ErrorIs(t, b.Do(func() error { return errBoom }), errBoom)

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := New(Settings{Name: "test", MaxFailures: 2, OpenTimeout: time.Minute}, nil)

	_ = b.Do(func() error { return errBoom })
	require.NoError(t, b.Do(func() error { return nil }))
	_ = b.Do(func() error { return errBoom })

	assert.Equal(t, "closed", b.State())
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b := New(Settings{Name: "test", MaxFailures: 1, OpenTimeout: 50 * time.Millisecond, HalfOpenRequests: 1}, nil)

	_ = b.Do(func() error { return errBoom })
	assert.Equal(t, "open", b.State())

	time.Sleep(80 * time.Millisecond)

	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, "closed", b.State())
}
