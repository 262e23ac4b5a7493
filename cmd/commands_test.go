package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFlow = `
services:
  - id: db
    type: connection-pool
    enabled: true
  - id: cache
    type: cache
    enabled: true
    references:
      backing-store: db
components:
  - id: ingest
    kind: processor
    autoStart: true
    running: true
    references:
      cache: cache
  - id: report
    kind: reporting-task
    autoStart: true
    running: true
    references:
      pool: db
`

func writeFlow(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with every persistent flag set explicitly,
// so values from an earlier run do not leak into this one.
func execute(t *testing.T, dir, format string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		applyKeep = false
	}()

	full := append([]string{"--config-path", dir, "--flow=", "--quiet", "--no-color", "-o", format}, args...)
	rootCmd.SetArgs(full)
	err := rootCmd.Execute()
	return out.String(), err
}

// decodeAll splits a stream of JSON documents.
func decodeAll(t *testing.T, out string) []map[string]json.RawMessage {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(out))
	var docs []map[string]json.RawMessage
	for dec.More() {
		var doc map[string]json.RawMessage
		require.NoError(t, dec.Decode(&doc))
		docs = append(docs, doc)
	}
	return docs
}

func TestPlanCommand(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, testFlow)

	out, err := execute(t, dir, "json", "plan")
	require.NoError(t, err)

	var plan struct {
		EnableLevels [][]string `json:"enableLevels"`
		Start        []string   `json:"start"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, [][]string{{"db"}, {"cache"}}, plan.EnableLevels)
	assert.Equal(t, []string{"ingest", "report"}, plan.Start)
}

func TestPlanCommandTable(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, testFlow)

	out, err := execute(t, dir, "table", "plan")
	require.NoError(t, err)
	assert.Contains(t, out, "enable (level 0)")
	assert.Contains(t, out, "ingest, report")
}

func TestPlanCommandInvalidFlow(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, `
services:
  - id: cache
    type: cache
    references:
      store: missing
`)

	_, err := execute(t, dir, "json", "plan")
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalidConfig, getExitCode(err))
}

func TestPlanCommandBadFormat(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, testFlow)

	_, err := execute(t, dir, "xml", "plan")
	assert.Error(t, err)
}

func TestApplyCommand(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, testFlow)

	out, err := execute(t, dir, "json", "apply")
	require.NoError(t, err)

	docs := decodeAll(t, out)
	require.Len(t, docs, 3)

	var enabled, started []string
	require.NoError(t, json.Unmarshal(docs[0]["enabled"], &enabled))
	require.NoError(t, json.Unmarshal(docs[0]["started"], &started))
	assert.Equal(t, []string{"cache", "db"}, enabled)
	assert.Equal(t, []string{"ingest", "report"}, started)

	var svcs []struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(docs[1]["services"], &svcs))
	require.Len(t, svcs, 2)
	for _, s := range svcs {
		assert.Equal(t, "ENABLED", s.State, s.ID)
	}

	var components []struct {
		ID      string `json:"id"`
		Running bool   `json:"running"`
	}
	require.NoError(t, json.Unmarshal(docs[2]["components"], &components))
	require.Len(t, components, 2)
	for _, c := range components {
		assert.True(t, c.Running, c.ID)
	}
}

func TestApplyCommandMissingFlow(t *testing.T) {
	_, err := execute(t, t.TempDir(), "json", "apply")
	assert.Error(t, err)
}

func TestCascadeDeactivateCommand(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, testFlow)

	out, err := execute(t, dir, "json", "cascade", "deactivate", "db")
	require.NoError(t, err)

	docs := decodeAll(t, out)
	require.Len(t, docs, 3)

	var applied []string
	require.NoError(t, json.Unmarshal(docs[0]["applied"], &applied))
	require.Len(t, applied, 3)
	assert.Contains(t, applied, "controller-service:cache")
	assert.Less(t, indexOf(applied, "processor:ingest"), indexOf(applied, "controller-service:cache"),
		"the processor referencing cache is stopped before cache is disabled")

	var svcs []struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(docs[1]["services"], &svcs))
	states := map[string]string{}
	for _, s := range svcs {
		states[s.ID] = s.State
	}
	assert.Equal(t, map[string]string{"db": "ENABLED", "cache": "DISABLED"}, states)
}

func TestCascadeActivateCommand(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, `
services:
  - id: db
    type: connection-pool
  - id: cache
    type: cache
    references:
      backing-store: db
components:
  - id: ingest
    kind: processor
    autoStart: true
    references:
      cache: cache
`)

	out, err := execute(t, dir, "json", "cascade", "activate", "db")
	require.NoError(t, err)

	docs := decodeAll(t, out)
	require.NotEmpty(t, docs)
	var applied []string
	require.NoError(t, json.Unmarshal(docs[0]["applied"], &applied))
	assert.Equal(t, []string{"controller-service:db", "controller-service:cache", "processor:ingest"}, applied)
}

func TestCascadeCommandUnknownService(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, testFlow)

	_, err := execute(t, dir, "json", "cascade", "deactivate", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCodeNotFound, getExitCode(err))
}

func TestCascadeCommandRequiresService(t *testing.T) {
	_, err := execute(t, t.TempDir(), "json", "cascade", "activate")
	assert.Error(t, err)
}

// syncBuffer is written to by the watcher goroutine while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchFlow(t *testing.T) {
	dir := t.TempDir()
	path := writeFlow(t, dir, testFlow)

	oldDir, oldFlow, oldQuiet, oldFormat, oldNoColor := configDir, flowFile, quiet, outputFormat, noColor
	defer func() {
		configDir, flowFile, quiet, outputFormat, noColor = oldDir, oldFlow, oldQuiet, oldFormat, oldNoColor
	}()
	configDir, flowFile, quiet, outputFormat, noColor = dir, path, true, "table", true

	var out syncBuffer
	c := &cobra.Command{}
	c.SetOut(&out)
	c.SetErr(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watchFlow(ctx, c) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "ingest")
	}, 5*time.Second, 20*time.Millisecond)

	// give the watcher time to register before editing
	time.Sleep(200 * time.Millisecond)
	writeFlow(t, dir, testFlow+`  - id: audit
    kind: reporting-task
    autoStart: true
    running: true
    references:
      pool: db
`)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "audit")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return after cancellation")
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
