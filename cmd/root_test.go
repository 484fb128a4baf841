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

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/subjecthierarchy/internal/consistency"
	"github.com/zjrosen/subjecthierarchy/internal/persist"
	"github.com/zjrosen/subjecthierarchy/internal/plugins"
	"github.com/zjrosen/subjecthierarchy/internal/presentation"
	"github.com/zjrosen/subjecthierarchy/internal/pubsub"
)

const testScene = `
folders:
  - path: Scans
objects:
  - id: ct
    name: CT
    kind: volume
    folder: Scans
  - id: reg
    name: Registration
    kind: transform
`

// workspace moves the test into an empty directory with no user config.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.yaml"), []byte(testScene), 0o600))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root, a := newRoot(strings.NewReader(""), &out, &errOut)
	defer a.shutdown()
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "shctl %s", strings.Join(args, " "))
	return out
}

func TestImportAndTree(t *testing.T) {
	workspace(t)

	out := mustRun(t, "import", "scene.yaml")
	require.Contains(t, out, "Imported 2 objects, 0 legacy nodes, 1 new folders")

	out = mustRun(t, "tree")
	require.Contains(t, out, "├── Scans")
	require.Contains(t, out, "│   └── CT")
	require.Contains(t, out, "[Volumes] Volume")
	require.Contains(t, out, "└── Registration")
	require.Contains(t, out, "[Transforms] Transform")
	require.NotContains(t, out, "\x1b[", "no styling when the output is not a terminal")

	require.FileExists(t, filepath.Join(".shctl", "scene.db"))
	require.FileExists(t, filepath.Join(".shctl", "config.yaml"))
}

func TestTree_JSON(t *testing.T) {
	workspace(t)
	mustRun(t, "import", "scene.yaml")

	var root presentation.ItemDTO
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "tree", "--format", "json")), &root))
	require.Len(t, root.Children, 2)
	require.Equal(t, "Scans", root.Children[0].Name)
	require.Equal(t, "Scans/CT", root.Children[0].Children[0].Path)
}

func TestReparent(t *testing.T) {
	workspace(t)
	mustRun(t, "import", "scene.yaml")

	out := mustRun(t, "reparent", "ct", "reg")
	require.Contains(t, out, plugins.TransformsName+" applied its effect")

	out = mustRun(t, "reparent", "Scans/CT", "/")
	require.Equal(t, "Moved to CT\n", out)

	out = mustRun(t, "tree")
	require.NotContains(t, out, "Scans", "the emptied folder is removed by the pass")
	require.Contains(t, out, "CT")
}

func TestReparent_Rejected(t *testing.T) {
	workspace(t)
	mustRun(t, "import", "scene.yaml")

	_, err := run(t, "reparent", "Scans", "Scans/CT")
	require.Error(t, err)
}

func TestPlugins(t *testing.T) {
	workspace(t)
	mustRun(t, "import", "scene.yaml")

	var names []string
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "plugins", "-f", "json")), &names))
	require.Equal(t, plugins.FolderName, names[0])
	require.Contains(t, names, plugins.VolumesName)

	var rows []presentation.CandidateDTO
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "plugins", "--item", "ct", "-f", "json")), &rows))
	for _, r := range rows {
		require.Equal(t, r.Plugin == plugins.VolumesName, r.Winner, r.Plugin)
	}

	out := mustRun(t, "plugins", "--item", "Scans/CT")
	require.Contains(t, out, "CONFIDENCE")

	_, err := run(t, "plugins", "-f", "xml")
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	workspace(t)
	mustRun(t, "import", "scene.yaml")

	require.Equal(t, "No changes\n", mustRun(t, "resolve", "--dry-run"))
	require.Contains(t, mustRun(t, "resolve"), "owners changed")
}

func TestResolve_DryRunShowsPinnedOwnerChange(t *testing.T) {
	dir := workspace(t)
	mustRun(t, "import", "scene.yaml")

	db, err := persist.Open(filepath.Join(dir, ".shctl", "scene.db"))
	require.NoError(t, err)
	doc, found, err := db.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	for i := range doc.Items {
		if doc.Items[i].Name == "CT" {
			doc.Items[i].Owner = "Retired"
			doc.Items[i].OwnerAutoSearch = false
		}
	}
	require.NoError(t, db.Save(context.Background(), doc))
	require.NoError(t, db.Close())

	out := mustRun(t, "resolve", "--dry-run")
	require.Contains(t, out, "- │   └── CT")
	require.Contains(t, out, "[Retired!]")
	require.Contains(t, out, "+ │   └── CT")
	require.Contains(t, out, "[Volumes] Volume")
}

func TestColor(t *testing.T) {
	workspace(t)
	mustRun(t, "import", "scene.yaml")

	out := mustRun(t, "color", "Scans", "#ff0000", "--branch=on")
	require.Equal(t, "Scans: color \"#ff0000\", branch override on\n", out)

	var root presentation.ItemDTO
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "tree", "-f", "json")), &root))
	require.Equal(t, "#ff0000", root.Children[0].Children[0].Color)

	out = mustRun(t, "color", "Scans", "--branch", "off")
	require.Contains(t, out, "branch override off")

	_, err := run(t, "color", "Scans")
	require.Error(t, err)
	_, err = run(t, "color", "ct", "#00ff00")
	require.ErrorIs(t, err, plugins.ErrNotFolder)
}

func TestVisibility(t *testing.T) {
	workspace(t)
	mustRun(t, "import", "scene.yaml")

	require.Equal(t, "Scans: visible\n", mustRun(t, "visibility", "Scans"))
	require.Equal(t, "Scans: hidden\n", mustRun(t, "visibility", "Scans", "off"))
	require.Equal(t, "Scans/CT: hidden\n", mustRun(t, "visibility", "ct"))
}

func TestRemove(t *testing.T) {
	workspace(t)
	mustRun(t, "import", "scene.yaml")

	require.Equal(t, "Removed Scans (1 data objects)\n", mustRun(t, "remove", "Scans", "--cascade"))
	out := mustRun(t, "tree")
	require.NotContains(t, out, "CT")
	require.Contains(t, out, "Registration")

	_, err := run(t, "remove", "Scans")
	require.ErrorIs(t, err, errNoSuchItem)
}

func TestRemove_KeepsChildren(t *testing.T) {
	workspace(t)
	mustRun(t, "import", "scene.yaml")

	require.Equal(t, "Removed Registration (1 data objects)\n", mustRun(t, "remove", "reg"))
	require.Contains(t, mustRun(t, "tree"), "CT")
}

func TestExplain(t *testing.T) {
	workspace(t)
	mustRun(t, "import", "scene.yaml")

	out := mustRun(t, "explain", "ct", "--markdown")
	require.Contains(t, out, "# CT")
	require.Contains(t, out, "| winner |")

	out = mustRun(t, "explain", "ct")
	require.Contains(t, out, "CT")
	require.Contains(t, out, plugins.VolumesName)

	var e presentation.Explanation
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "explain", "ct", "-f", "json")), &e))
	require.Equal(t, plugins.VolumesName, e.Resolved)

	_, err := run(t, "explain", "nope")
	require.ErrorIs(t, err, errNoSuchItem)
}

func TestConfigCommands(t *testing.T) {
	workspace(t)

	require.Equal(t, ".shctl/config.yaml\n", mustRun(t, "config", "path"))

	mustRun(t, "config", "order", "Models,Volumes")
	var names []string
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "plugins", "-f", "json")), &names))
	require.Equal(t, []string{plugins.ModelsName, plugins.VolumesName}, names[:2])

	_, err := run(t, "config", "order", "Bogus")
	require.Error(t, err)
	_, err = run(t, "config", "order", "Models,Models")
	require.Error(t, err)

	mustRun(t, "config", "order")
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "plugins", "-f", "json")), &names))
	require.Equal(t, plugins.FolderName, names[0])

	mustRun(t, "config", "mode", "bulk")
	mustRun(t, "config", "flag", "ownership-cache", "on")
	listing := mustRun(t, "config", "flag")
	require.Regexp(t, `ownership-cache\s+on `, listing)
	require.Regexp(t, `tie-warnings\s+on `, listing)
	_, err = run(t, "config", "flag", "session-resume", "on")
	require.ErrorContains(t, err, "unknown flag")
	_, err = run(t, "config", "flag", "ownership-cache")
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(".shctl", "config.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "mode: bulk")
	require.Contains(t, string(data), "ownership-cache: true")
	require.Contains(t, string(data), "# shctl configuration", "comments survive edits")

	_, err = run(t, "config", "mode", "sideways")
	require.Error(t, err)
}

func TestBulkModeImport(t *testing.T) {
	workspace(t)
	mustRun(t, "config", "mode", "bulk")
	mustRun(t, "import", "scene.yaml")
	require.Contains(t, mustRun(t, "tree"), "│   └── CT")
}

func TestWatchRebuild(t *testing.T) {
	dir := workspace(t)
	root, a := newRoot(strings.NewReader(""), io.Discard, io.Discard)
	defer a.shutdown()
	root.SetArgs([]string{"config", "path"})
	require.NoError(t, root.Execute())

	db, err := persist.Open(a.cfg.Database)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	broker := pubsub.NewBroker[consistency.Notice]()
	defer broker.Close()
	ctx := context.Background()
	scene := filepath.Join(dir, "scene.yaml")

	first, err := a.rebuild(ctx, db, scene, broker, io.Discard)
	require.NoError(t, err)
	require.Contains(t, first, "CT")

	again, err := a.rebuild(ctx, db, scene, broker, io.Discard)
	require.NoError(t, err, "rebuilding starts from an empty scene")
	require.Equal(t, first, again)

	require.NoError(t, os.WriteFile(scene, []byte(testScene+"  - name: MR\n    kind: volume\n    folder: Scans\n"), 0o600))
	changed, err := a.rebuild(ctx, db, scene, broker, io.Discard)
	require.NoError(t, err)
	diff := presentation.DiffTrees(first, changed)
	require.True(t, presentation.Changed(diff))

	var added []string
	for _, l := range diff {
		if l.Op == '+' {
			added = append(added, l.Text)
		}
	}
	require.NotEmpty(t, added)
	require.Contains(t, strings.Join(added, "\n"), "MR")

	doc, found, err := db.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, doc.Contents.Objects, 3)
}

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

func TestWatchPrintsDiffOnEdit(t *testing.T) {
	dir := workspace(t)
	root, a := newRoot(strings.NewReader(""), io.Discard, io.Discard)
	defer a.shutdown()
	root.SetArgs([]string{"config", "path"})
	require.NoError(t, root.Execute())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scene := filepath.Join(dir, "scene.yaml")
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- a.watch(ctx, scene, &out, io.Discard) }()

	contains := func(s string) func() bool {
		return func() bool { return strings.Contains(out.String(), s) }
	}
	require.Eventually(t, contains("Watching "+scene), 5*time.Second, 10*time.Millisecond)
	require.Contains(t, out.String(), "CT")

	require.NoError(t, os.WriteFile(scene, []byte(testScene+"  - name: MR\n    kind: volume\n"), 0o600))
	require.Eventually(t, contains("+ └── MR"), 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "watch did not stop")
	}
}

func TestParseOnOff(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "ON": true, "yes": true, "true": true, "1": true, "off": false, "no": false, "false": false} {
		got, err := parseOnOff(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := parseOnOff("maybe")
	require.Error(t, err)
}
