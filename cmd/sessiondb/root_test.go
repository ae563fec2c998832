package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/sessiondb/internal/cli"
	"github.com/aretw0/sessiondb/internal/logging"
	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/aretw0/sessiondb/pkg/sessionstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs one CLI invocation, answering confirmations with answer.
func execute(t *testing.T, answer string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{prompter: &cli.Prompter{
		In:         strings.NewReader(answer),
		Out:        &out,
		IsTerminal: func() bool { return true },
	}}

	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seed writes sessions into the datafile and closes it again.
func seed(t *testing.T, filename string, sessions map[string]domain.Session) {
	t.Helper()
	store, err := sessionstore.New(sessionstore.Options{Filename: filename})
	require.NoError(t, err)
	for id, sess := range sessions {
		require.NoError(t, store.Set(context.Background(), id, sess))
	}
	require.NoError(t, store.Close())
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "sessiondb version "))
}

func TestSessionCommands(t *testing.T) {
	data := filepath.Join(t.TempDir(), "sessions.db")

	out, err := execute(t, "", "session", "ls", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "No active sessions found.")

	seed(t, data, map[string]domain.Session{
		"alpha": {"user": "ana"},
		"beta":  {"user": "bo"},
	})

	t.Run("Ls", func(t *testing.T) {
		out, err := execute(t, "", "session", "ls", "--data", data)
		require.NoError(t, err)
		assert.Contains(t, out, "ID")
		assert.Contains(t, out, "alpha")
		assert.Contains(t, out, "beta")
	})

	t.Run("Ls JSON", func(t *testing.T) {
		out, err := execute(t, "", "session", "ls", "--json", "--data", data)
		require.NoError(t, err)
		assert.Contains(t, out, `"id": "alpha"`)
	})

	t.Run("Inspect", func(t *testing.T) {
		out, err := execute(t, "", "session", "inspect", "alpha", "--data", data)
		require.NoError(t, err)
		assert.Contains(t, out, `"user": "ana"`)

		_, err = execute(t, "", "session", "inspect", "ghost", "--data", data)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Touch", func(t *testing.T) {
		_, err := execute(t, "", "session", "touch", "ghost", "--data", data)
		require.Error(t, err)
		assert.Equal(t, "No Session exists with ID ghost", err.Error())

		out, err := execute(t, "", "session", "touch", "alpha", "--extend", "1h", "--data", data)
		require.NoError(t, err)
		assert.Contains(t, out, "Touched session 'alpha'")
	})

	t.Run("Rm", func(t *testing.T) {
		out, err := execute(t, "", "session", "rm", "beta", "--data", data)
		require.NoError(t, err)
		assert.Contains(t, out, "Removed session 'beta'")

		out, err = execute(t, "", "session", "ls", "--data", data)
		require.NoError(t, err)
		assert.NotContains(t, out, "beta")
	})

	t.Run("Clear Aborted", func(t *testing.T) {
		out, err := execute(t, "n\n", "session", "clear", "--data", data)
		require.NoError(t, err)
		assert.Contains(t, out, "Aborted.")

		out, err = execute(t, "", "session", "ls", "--data", data)
		require.NoError(t, err)
		assert.Contains(t, out, "alpha")
	})

	t.Run("Clear", func(t *testing.T) {
		out, err := execute(t, "", "session", "clear", "--yes", "--data", data)
		require.NoError(t, err)
		assert.Contains(t, out, ">>> Removed 1 sessions.")

		out, err = execute(t, "", "session", "ls", "--data", data)
		require.NoError(t, err)
		assert.Contains(t, out, "No active sessions found.")
	})
}

func TestCompact(t *testing.T) {
	data := filepath.Join(t.TempDir(), "sessions.db")

	out, err := execute(t, "", "compact", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Compacted sqlite:"+data)

	_, err = execute(t, "", "compact", "--memory")
	assert.ErrorIs(t, err, domain.ErrCompactionUnsupported)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "from-config.db")
	configPath := filepath.Join(dir, "sessiondb.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("store:\n  filename: "+data+"\n  default_expiry: 1d\n"), 0o644))

	_, err := execute(t, "", "session", "ls", "--config", configPath)
	require.NoError(t, err)

	_, err = os.Stat(data)
	assert.NoError(t, err, "the datafile comes from the config file")
}

func TestServeHandler(t *testing.T) {
	store, err := sessionstore.New(sessionstore.Options{InMemoryOnly: true})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Set(context.Background(), "sid", domain.Session{}))

	srv := httptest.NewServer(newServeHandler(store, logging.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body.String(), "sessiondb_live_sessions 1")
	assert.Contains(t, body.String(), "go_goroutines")
}

func TestServe_Shutdown(t *testing.T) {
	sc := cli.NewSignalContext(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(sc, "127.0.0.1:0", http.NotFoundHandler(), logging.NewNop())
	}()

	time.Sleep(20 * time.Millisecond)
	sc.Cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
