package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args after restoring every flag to its
// default, since cobra commands are package globals.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	for _, name := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "TAVILY_API_KEY", "RAGMESH_LOG_LEVEL"} {
		t.Setenv(name, "")
	}

	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				if sv, ok := f.Value.(pflag.SliceValue); ok {
					_ = sv.Replace(nil)
				} else {
					_ = f.Value.Set(f.DefValue)
				}
				f.Changed = false
			})
		}
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return out.String(), err
}

func TestAsk_Offline(t *testing.T) {
	out, err := execute(t, "ask", "--provider", "mock", "What", "is", "the", "capital", "of", "France?")
	require.NoError(t, err)

	assert.Contains(t, out, "FINAL ANSWER")
	assert.Contains(t, out, "Documents:")
	assert.Contains(t, out, "Web:")
}

func TestAsk_JSONWithDocument(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "atlas.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Paris is the capital of France."), 0o600))

	out, err := execute(t, "ask", "--provider", "mock", "--json", "--doc", doc, "What is the capital of France?")
	require.NoError(t, err)

	var got struct {
		RunID  string   `json:"run_id"`
		Answer string   `json:"answer"`
		Steps  int      `json:"steps"`
		Path   []string `json:"path"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	assert.NotEmpty(t, got.RunID)
	assert.Equal(t, 8, got.Steps)
	assert.Equal(t, "Coordinator", got.Path[0])
	assert.Contains(t, got.Answer, "Paris is the capital of France.")
}

func TestAsk_RequiresQuestion(t *testing.T) {
	_, err := execute(t, "ask", "--provider", "mock")
	assert.Error(t, err)
}

func TestAsk_InvalidConfig(t *testing.T) {
	_, err := execute(t, "ask", "--provider", "openai", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai.api_key")
}

func TestIngest_MissingFile(t *testing.T) {
	_, err := execute(t, "ingest", "--provider", "mock", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestConfig_PrintsRedacted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tavily:\n  api_key: tvly-secret\n"), 0o600))

	out, err := execute(t, "config", "--config", path, "--provider", "mock", "--validate")
	require.NoError(t, err)

	assert.Contains(t, out, "provider: mock")
	assert.Contains(t, out, "recursion_limit: 25")
	assert.NotContains(t, out, "tvly-secret")
}

func TestRootFlags(t *testing.T) {
	for _, name := range []string{"config", "provider", "log-level"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}
