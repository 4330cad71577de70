package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOnce(t *testing.T) {
	s := New(time.Minute)

	assert.True(t, s.Add("1700000000.000100"))
	assert.False(t, s.Add("1700000000.000100"))
	assert.True(t, s.Has("1700000000.000100"))
	assert.False(t, s.Has("other"))
	assert.Equal(t, 1, s.Len())
}

func TestEntriesExpire(t *testing.T) {
	s := New(20 * time.Millisecond)
	require.True(t, s.Add("a"))

	assert.Eventually(t, func() bool { return !s.Has("a") }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.Add("a"), "an expired id can be recorded again")
}

func TestZeroTTLKeepsEntries(t *testing.T) {
	s := New(0)
	s.Add("a")
	time.Sleep(10 * time.Millisecond)
	assert.True(t, s.Has("a"))
}
