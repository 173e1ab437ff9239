package server

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-import/internal/fetcher"
	"github.com/sells-group/crm-import/internal/importer"
	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/review"
)

func newSession(t *testing.T) *review.Session {
	t.Helper()
	tbl, err := fetcher.ParseCSV(strings.NewReader(companiesCSV))
	require.NoError(t, err)
	s, err := importer.New(importer.Options{}).Run(context.Background(), importer.Input{
		Entity: model.EntityCompanies,
		Table:  tbl,
	})
	require.NoError(t, err)
	return s
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestManager_PutGet(t *testing.T) {
	m := NewManager(time.Hour, 0)
	s := newSession(t)
	m.Put(s)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestManager_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager(10*time.Minute, 0)
	m.now = clock.now

	a, b := newSession(t), newSession(t)
	m.Put(a)
	clock.t = clock.t.Add(6 * time.Minute)
	m.Put(b)

	clock.t = clock.t.Add(6 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.True(t, a.Closed())
	assert.False(t, b.Closed())

	// Get refreshes the idle timer.
	clock.t = clock.t.Add(3 * time.Minute)
	_, ok := m.Get(b.ID)
	require.True(t, ok)
	clock.t = clock.t.Add(9 * time.Minute)
	_, ok = m.Get(b.ID)
	assert.True(t, ok)

	clock.t = clock.t.Add(11 * time.Minute)
	_, ok = m.Get(b.ID)
	assert.False(t, ok)
	assert.True(t, b.Closed())
	assert.Equal(t, 0, m.Len())
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager(time.Hour, 2)
	m.now = clock.now

	a, b, c := newSession(t), newSession(t), newSession(t)
	m.Put(a)
	clock.t = clock.t.Add(time.Minute)
	m.Put(b)
	clock.t = clock.t.Add(time.Minute)
	_, _ = m.Get(a.ID)
	clock.t = clock.t.Add(time.Minute)
	m.Put(c)

	assert.Equal(t, 2, m.Len())
	assert.True(t, b.Closed())
	_, ok := m.Get(a.ID)
	assert.True(t, ok)
}

func TestManager_DeleteAndRemove(t *testing.T) {
	m := NewManager(time.Hour, 0)
	a, b := newSession(t), newSession(t)
	m.Put(a)
	m.Put(b)

	assert.True(t, m.Delete(a.ID))
	assert.True(t, a.Closed())
	assert.False(t, m.Delete(a.ID))

	m.Remove(b.ID)
	assert.False(t, b.Closed())
	assert.Equal(t, 0, m.Len())
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m := NewManager(time.Millisecond, 0)
	m.Put(newSession(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
