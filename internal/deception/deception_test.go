package deception

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_UnknownPartnerIsUnarmed(t *testing.T) {
	m := NewMachine()
	st := m.State("acme")
	assert.Equal(t, "acme", st.PartnerID)
	assert.False(t, st.Armed)
	assert.Nil(t, st.ArmedAt)
	assert.False(t, m.IsArmed("acme"))
}

func TestMachine_ActivateOnce(t *testing.T) {
	m := NewMachine()
	first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, m.Activate("acme", first))
	assert.False(t, m.Activate("acme", first.Add(time.Minute)))

	st := m.State("acme")
	require.True(t, st.Armed)
	require.NotNil(t, st.ArmedAt)
	assert.Equal(t, first, *st.ArmedAt, "later activations must not move armed_at")
}

func TestMachine_ConcurrentActivateTransitionsOnce(t *testing.T) {
	m := NewMachine()
	var transitions atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Activate("acme", time.Now()) {
				transitions.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), transitions.Load())
}

func TestMachine_Snapshot(t *testing.T) {
	m := NewMachine()
	now := time.Now()
	m.Activate("zeta", now)
	m.Activate("alpha", now)

	snap := m.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "alpha", snap[0].PartnerID)
	assert.Equal(t, "zeta", snap[1].PartnerID)
	assert.True(t, snap[0].Armed)
}
