package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"gopherai-workspace/internal/session"
)

// writeConfig points the file state driver at a temp dir and seeds it.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	cfgPath := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf("[state]\ndriver = \"file\"\nfile_path = %q\n", statePath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	kv, err := session.NewFileKV(statePath)
	require.NoError(t, err)
	store, err := session.Open(context.Background(), session.Config{KV: kv, Logger: zerolog.Nop()})
	require.NoError(t, err)
	store.Init(context.Background(), 7, "sess-7")
	store.RecordDocument(context.Background(), 7, "guide.pdf")
	return cfgPath, statePath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDumpJSON(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, "dump", "--config", cfgPath)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"workspace_session_ids": {"7": "sess-7"},
		"workspace_session_types": {"7": "pdf"},
		"workspace_session_documents": {"7": ["guide.pdf"]}
	}`, out)
}

func TestDumpYAML(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, "dump", "-c", cfgPath, "--format", "yaml")
	require.NoError(t, err)

	var decoded session.Snapshot
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	require.Equal(t, "sess-7", decoded.SessionIDs[7])
	require.Equal(t, []string{"guide.pdf"}, decoded.SessionDocuments[7])
}

func TestDumpRejectsUnknownFormat(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := run(t, "dump", "-c", cfgPath, "--format", "xml")
	require.Error(t, err)
}

func TestForget(t *testing.T) {
	cfgPath, statePath := writeConfig(t)

	out, err := run(t, "forget", "7", "-c", cfgPath)
	require.NoError(t, err)
	require.Contains(t, out, "forgot workspace 7")

	out, err = run(t, "forget", "7", "-c", cfgPath)
	require.NoError(t, err)
	require.Contains(t, out, "no state stored")

	kv, err := session.NewFileKV(statePath)
	require.NoError(t, err)
	store, err := session.Open(context.Background(), session.Config{KV: kv, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.Empty(t, store.Snapshot().SessionIDs)

	_, err = run(t, "forget", "abc", "-c", cfgPath)
	require.Error(t, err)
}
