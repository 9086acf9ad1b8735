package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipkit/quipkit/internal/core"
	apperrors "github.com/quipkit/quipkit/internal/errors"
	"github.com/quipkit/quipkit/internal/quip/quiptest"
)

const (
	testThread = "TDOCONEAAAA"
	testFolder = "FROOTAAAAAA"
	testUser   = "UALICEAAAAA"
)

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCLI executes the root command against a memory filesystem with no user
// config file and returns everything written to stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, afero.Fs, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("QUIPKIT_API_TOKEN", "")

	fs := afero.NewMemMapFs()
	previous := appFs
	appFs = fs
	t.Cleanup(func() { appFs = previous })

	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), fs, err
}

func newServer(t *testing.T) *quiptest.Server {
	t.Helper()
	server := quiptest.New()
	t.Cleanup(server.Close)
	return server
}

func apiArgs(server *quiptest.Server, args ...string) []string {
	return append([]string{"--base-url", server.URL, "--token", "test-token", "--no-auto-limit"}, args...)
}

func TestThreadGetJSON(t *testing.T) {
	server := newServer(t)
	server.AddThread(quiptest.Thread{ID: testThread, Title: "Plan", Type: "document", HTML: "<p>hi</p>"})

	out, _, err := runCLI(t, "", apiArgs(server, "-o", "json", "thread", "get", testThread)...)
	require.NoError(t, err)

	var decoded []map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, testThread, decoded[0]["thread"]["id"])
	assert.Equal(t, "Plan", decoded[0]["thread"]["title"])
}

func TestThreadGetTable(t *testing.T) {
	server := newServer(t)
	server.AddThread(quiptest.Thread{ID: testThread, Title: "Plan", Type: "document"})

	out, _, err := runCLI(t, "", apiArgs(server, "thread", "get", testThread)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Plan")
	assert.Contains(t, out, "1 threads")
}

func TestThreadHTMLWritesFile(t *testing.T) {
	server := newServer(t)
	server.AddThread(quiptest.Thread{ID: testThread, Title: "Plan", Pages: []string{"<h1>a</h1>", "<p>b</p>"}})

	_, fs, err := runCLI(t, "", apiArgs(server, "thread", "html", testThread, "--out", "docs/plan.html")...)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "docs/plan.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>a</h1><p>b</p>", string(data))
}

func TestThreadNewReadsContentFromStdin(t *testing.T) {
	server := newServer(t)

	_, _, err := runCLI(t, "# Notes", apiArgs(server, "thread", "new", "--title", "Notes", "--content", "-", "--format", "markdown")...)
	require.NoError(t, err)

	posted := server.Posted()
	require.Len(t, posted, 1)
	assert.Equal(t, "/1/threads/new-document", posted[0].Path)
	assert.Equal(t, "# Notes", posted[0].Form["content"])
	assert.Equal(t, "markdown", posted[0].Form["format"])
}

func TestThreadEditRejectsUnknownLocation(t *testing.T) {
	server := newServer(t)

	_, _, err := runCLI(t, "", apiArgs(server, "thread", "edit", testThread, "--content", "x", "--location", "middle")...)
	require.Error(t, err)
	assert.Zero(t, server.Requests())
}

func TestFolderGetMarkdown(t *testing.T) {
	server := newServer(t)
	server.AddFolder(quiptest.Folder{ID: testFolder, Title: "Team", Threads: []string{testThread}})

	out, _, err := runCLI(t, "", apiArgs(server, "-o", "markdown", "folder", "get", testFolder)...)
	require.NoError(t, err)
	assert.Contains(t, out, "## Team")
	assert.Contains(t, out, "| thread | "+testThread+" |")
}

func TestUserMe(t *testing.T) {
	server := newServer(t)
	server.AddUser(testUser, "Alice")

	out, _, err := runCLI(t, "", apiArgs(server, "user", "me")...)
	require.NoError(t, err)
	assert.Contains(t, out, "alice@example.com")
}

func TestMissingTokenIsConfigError(t *testing.T) {
	server := newServer(t)

	_, _, err := runCLI(t, "", "--base-url", server.URL, "user", "me")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.FromError(context.Background(), err).Code)
	assert.Zero(t, server.Requests())
}

func TestInvalidIDMakesNoRequest(t *testing.T) {
	server := newServer(t)

	_, _, err := runCLI(t, "", apiArgs(server, "thread", "get", "short")...)
	require.ErrorIs(t, err, core.ErrInvalidID)
	assert.Zero(t, server.Requests())
}

func TestRateLimitStatus(t *testing.T) {
	server := newServer(t)
	server.AddUser(testUser, "Alice")
	server.SetRateLimit(50, 40, time.Now().Add(time.Minute))

	out, _, err := runCLI(t, "", apiArgs(server, "-o", "json", "rate-limit", "status")...)
	require.NoError(t, err)

	var statuses []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	require.NotEmpty(t, statuses)
	assert.Equal(t, "minute", statuses[0]["window"])
	snapshot, ok := statuses[0]["snapshot"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 40, snapshot["remaining"])
}

func TestExportWritesTreeAndCheckpoint(t *testing.T) {
	server := newServer(t)
	server.AddFolder(quiptest.Folder{ID: testFolder, Title: "Team", Threads: []string{testThread}})
	server.AddThread(quiptest.Thread{ID: testThread, Title: "Plan", Type: "document", HTML: "<p>plan</p>"})

	out, fs, err := runCLI(t, "", apiArgs(server, "-o", "json", "export", testFolder, "--out", "backup")...)
	require.NoError(t, err)
	assert.Contains(t, out, `"threads_downloaded": 1`)

	data, err := afero.ReadFile(fs, "backup/Team/Plan-"+testThread+".html")
	require.NoError(t, err)
	assert.Equal(t, "<p>plan</p>", string(data))

	exists, err := afero.Exists(fs, "backup/.quipkit-checkpoint.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	out, fs, err := runCLI(t, "", "config", "init", "--path", "conf/config.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "conf/config.yaml")

	data, err := afero.ReadFile(fs, "conf/config.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "base_url:")

	previous := appFs
	appFs = fs
	defer func() { appFs = previous }()
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"config", "init", "--path", "conf/config.yaml"})
	require.Error(t, rootCmd.ExecuteContext(context.Background()))
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "today")

	out, _, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "quipkit 1.2.3\n", out)
}

func TestUnknownOutputFormat(t *testing.T) {
	server := newServer(t)
	server.AddThread(quiptest.Thread{ID: testThread, Title: "Plan"})

	_, _, err := runCLI(t, "", apiArgs(server, "-o", "csv", "thread", "get", testThread)...)
	require.Error(t, err)
}
