package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/tracker"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "../../examples/restaurant/domain.yml")
	require.NoError(t, err)
	assert.Contains(t, out, "ok (5 intents")

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("intents: [greet]\nrules:\n  - intent: order\n    actions: [utter_x]\n"), 0o600))
	_, err = execute(t, "validate", bad)
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown intent")
}

func TestReplay(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "events.db")
	t.Setenv("DIALOGMESH_STORE_TYPE", "sql")
	t.Setenv("DIALOGMESH_STORE_DIALECT", "sqlite")
	t.Setenv("DIALOGMESH_STORE_DSN", dsn)

	ctx := context.Background()
	store, closeFn, err := tracker.New(ctx, tracker.Config{Type: tracker.TypeSQL, Dialect: tracker.DialectSQLite, DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "c1", []core.Event{
		core.NewSlotSet("city", "Rome"),
		core.NewFormStarted("booking_form"),
	}))
	require.NoError(t, store.Append(ctx, "c2", []core.Event{
		core.NewSessionStarted(), core.NewSlotSet("city", "Rome"),
		core.NewSessionStarted(), core.NewSlotSet("city", "Oslo"),
	}))
	require.NoError(t, closeFn())

	out, err := execute(t, "replay")
	require.NoError(t, err)
	assert.Equal(t, "c1\nc2\n", out)

	out, err = execute(t, "replay", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, "active form:  booking_form")
	assert.Contains(t, out, "city=Rome")

	out, err = execute(t, "--json", "replay", "c1")
	require.NoError(t, err)
	var res replayOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, map[string]any{"city": "Rome"}, res.State.Slots)
	assert.Len(t, res.Events, 2)

	out, err = execute(t, "--json", "replay", "--session", "c2")
	require.NoError(t, err)
	var session replayOutput
	require.NoError(t, json.Unmarshal([]byte(out), &session))
	assert.Len(t, session.Events, 2)
	assert.Equal(t, map[string]any{"city": "Oslo"}, session.State.Slots)

	_, err = execute(t, "replay", "nope")
	assert.ErrorContains(t, err, `unknown conversation "nope"`)
}
