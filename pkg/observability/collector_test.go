package observability_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/aretw0/sessiondb/pkg/observability"
	"github.com/aretw0/sessiondb/pkg/sessionstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_LiveSessions(t *testing.T) {
	ctx := context.Background()
	store, err := sessionstore.New(sessionstore.Options{InMemoryOnly: true})
	require.NoError(t, err)
	defer store.Close()

	c := observability.NewCollector(store, time.Second)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	require.NoError(t, store.Set(ctx, "a", domain.Session{}))
	require.NoError(t, store.Set(ctx, "b", domain.Session{}))

	expected := `
# HELP sessiondb_live_sessions Number of stored sessions that have not expired.
# TYPE sessiondb_live_sessions gauge
sessiondb_live_sessions 2
# HELP sessiondb_up Whether the last session count succeeded.
# TYPE sessiondb_up gauge
sessiondb_up 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected), "sessiondb_live_sessions", "sessiondb_up")
	assert.NoError(t, err)
}

type fakeSource struct {
	listener domain.EventListener
	err      error
}

func (f *fakeSource) Length(ctx context.Context) (int, error) { return 0, f.err }
func (f *fakeSource) Subscribe(l domain.EventListener)         { f.listener = l }

func TestCollector_Events(t *testing.T) {
	src := &fakeSource{err: domain.ErrNotLoaded}
	c := observability.NewCollector(src, 0)
	require.NotNil(t, src.listener, "collector subscribes on construction")

	src.listener(domain.Event{Type: domain.EventDisconnect})
	src.listener(domain.Event{Type: domain.EventError})
	src.listener(domain.Event{Type: domain.EventError})

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	expected := `
# HELP sessiondb_events_total Store events by type.
# TYPE sessiondb_events_total counter
sessiondb_events_total{type="disconnect"} 1
sessiondb_events_total{type="error"} 2
# HELP sessiondb_up Whether the last session count succeeded.
# TYPE sessiondb_up gauge
sessiondb_up 0
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "sessiondb_events_total", "sessiondb_up")
	assert.NoError(t, err)
}
