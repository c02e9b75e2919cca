package dialogue

import (
	"context"
	"testing"
	"time"

	apperrors "protein-advisor/internal/common/errors"
	"protein-advisor/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(time.Hour, logger.NewTestLogger(t))

	a := m.Create()
	b := m.Create()
	assert.NotEqual(t, a.ID, b.ID)

	got, err := m.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Len(t, m.List(), 2)

	require.NoError(t, m.End(a.ID))
	_, err = m.Get(a.ID)
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.CodeOf(err))
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.CodeOf(m.End(a.ID)))
	assert.Len(t, m.List(), 1)
}

func TestManager_Reap(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	now := base
	m := NewManager(30*time.Minute, logger.NewNoOpLogger())
	m.now = func() time.Time { return now }

	idle := m.Create()
	busy := m.Create()
	busy.chatting = true
	_, accepted, err := busy.begin("hi", base)
	require.NoError(t, err)
	require.True(t, accepted)

	now = base.Add(20 * time.Minute)
	fresh := m.Create()

	now = base.Add(40 * time.Minute)
	assert.Equal(t, 1, m.Reap())

	_, err = m.Get(idle.ID)
	assert.Error(t, err)
	_, err = m.Get(busy.ID)
	assert.NoError(t, err)
	_, err = m.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m := NewManager(time.Millisecond, logger.NewNoOpLogger())
	m.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(m.List()) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
