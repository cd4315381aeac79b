package terminal

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"
	"shop_replay/infrastructure/browser"
	"shop_replay/infrastructure/config"
	"shop_replay/infrastructure/storage"
	"shop_replay/internal/fakepage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBrowser struct {
	page   *fakepage.Page
	closed bool
}

func (b *fakeBrowser) Page() interfaces.Page { return b.page }

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	v.Set("OUTPUT_DIR", t.TempDir())
	v.SetDefault("BROWSER_BACKEND", "playwright")
	v.SetDefault("SCRIPT_DIALECT", "go")
	v.SetDefault("PROBE_TIMEOUT", "10ms")
	v.SetDefault("REVEAL_TIMEOUT", "10ms")
	v.SetDefault("NETWORK_IDLE_TIMEOUT", "10ms")
	v.SetDefault("NAVIGATION_TIMEOUT", "10ms")
	v.SetDefault("RECORDING_ENABLED", true)
	v.SetDefault("LOG_LEVEL", "info")
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func shopPage() *fakepage.Page {
	box := fakepage.El("input", map[string]string{"id": "search"})
	card := fakepage.El("div", nil,
		fakepage.El("img", map[string]string{"src": "/p/1.jpg"}),
		fakepage.Text("h3", "Blue Kettle", nil),
	)
	cart := fakepage.Text("button", "Add to Cart", nil)
	order := fakepage.Text("button", "Place Order", nil)
	return fakepage.New("about:blank", fakepage.El("body", nil, box, card, cart, order)).
		Bind("button:has-text('Add to Cart')", cart).
		Bind("button:has-text('Place Order')", order)
}

func newTestInterface(t *testing.T, input string, interactive bool) (*TerminalInterface, *fakeBrowser, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	fb := &fakeBrowser{page: shopPage()}
	ui := &TerminalInterface{
		cfg:         testConfig(t),
		logger:      quietLogger(),
		reader:      bufio.NewReader(strings.NewReader(input)),
		out:         out,
		interactive: interactive,
		launch: func(opts browser.Options, logger *logrus.Logger) (browser.Browser, error) {
			return fb, nil
		},
		settle: time.Millisecond,
	}
	return ui, fb, out
}

func outputFiles(t *testing.T, dir, pattern string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	require.NoError(t, err)
	return matches
}

func TestRunRecordsAndCompilesSession(t *testing.T) {
	ui, fb, out := newTestInterface(t, "", false)

	err := ui.Run(context.Background(), RunOptions{URL: "https://shop.test", Query: "blue kettle", Buttons: []string{"add-to-cart"}})
	require.NoError(t, err)

	assert.True(t, fb.closed)
	assert.Contains(t, out.String(), "Done:")
	assert.Contains(t, out.String(), "Clicked button:has-text('Add to Cart') via static")

	logs := outputFiles(t, ui.cfg.OutputDir, "actions_*.json")
	scripts := outputFiles(t, ui.cfg.OutputDir, "replay_*.go")
	require.Len(t, logs, 1)
	require.Len(t, scripts, 1)

	st, err := storage.NewSessionStore(ui.cfg.OutputDir)
	require.NoError(t, err)
	log, err := st.LoadLog(logs[0])
	require.NoError(t, err)
	assert.Equal(t, "blue kettle", log.Query)
	last := log.Actions[len(log.Actions)-2]
	assert.Equal(t, entities.Click{Selector: "button:has-text('Add to Cart')", ElementType: entities.ElementGeneric}, last.Payload)

	script, err := os.ReadFile(scripts[0])
	require.NoError(t, err)
	assert.Contains(t, string(script), "// Original query: blue kettle")
}

func TestRunWithoutQueryNeedsTerminal(t *testing.T) {
	ui, fb, _ := newTestInterface(t, "", false)

	err := ui.Run(context.Background(), RunOptions{URL: "https://shop.test"})
	require.Error(t, err)
	assert.False(t, fb.closed, "browser must not start")
}

func TestInteractiveLoopRunsUntilQuit(t *testing.T) {
	ui, fb, out := newTestInterface(t, "https://shop.test\nblue kettle\n\nquit\n", true)

	require.NoError(t, ui.Run(context.Background(), RunOptions{}))

	assert.True(t, fb.closed)
	assert.Equal(t, []string{"https://shop.test"}, fb.page.Navigations)
	assert.Contains(t, out.String(), "Product: ")
	assert.Contains(t, out.String(), "Done:")
}

func TestInteractiveLoopStopsAtEOF(t *testing.T) {
	ui, _, _ := newTestInterface(t, "https://shop.test\n", true)
	assert.NoError(t, ui.Run(context.Background(), RunOptions{}))
}

func TestRiskyButtonIsRefusedWithoutApproval(t *testing.T) {
	ui, fb, out := newTestInterface(t, "", false)

	err := ui.Run(context.Background(), RunOptions{URL: "https://shop.test", Query: "blue kettle", Buttons: []string{"place-order"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires approval")
	assert.Contains(t, out.String(), "Approval required:")

	order, _ := fb.page.Query(context.Background(), "button:has-text('Place Order')")
	assert.Zero(t, order.(*fakepage.Element).Node().Clicks)

	// The steps before the refusal are still exported.
	assert.Len(t, outputFiles(t, ui.cfg.OutputDir, "actions_*.json"), 1)
}

func TestRiskyButtonClickedAfterApproval(t *testing.T) {
	ui, fb, _ := newTestInterface(t, "y\n", true)

	err := ui.Run(context.Background(), RunOptions{URL: "https://shop.test", Query: "blue kettle", Buttons: []string{"place-order"}})
	require.NoError(t, err)

	order, _ := fb.page.Query(context.Background(), "button:has-text('Place Order')")
	assert.Equal(t, 1, order.(*fakepage.Element).Node().Clicks)
}

func TestRecordingDisabledWritesNothing(t *testing.T) {
	ui, _, _ := newTestInterface(t, "", false)
	ui.cfg.RecordingEnabled = false

	require.NoError(t, ui.Run(context.Background(), RunOptions{URL: "https://shop.test", Query: "blue kettle"}))
	assert.Empty(t, outputFiles(t, ui.cfg.OutputDir, "*"))
}

func savedLog(t *testing.T, dir string) string {
	t.Helper()
	st, err := storage.NewSessionStore(dir)
	require.NoError(t, err)
	path, err := st.SaveLog(&entities.ActionLog{
		SessionID: "s1",
		Query:     "kettle",
		StartTime: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Sealed:    true,
		Actions: []entities.ActionRecord{
			{Index: 0, Type: entities.ActionNavigate, Payload: entities.Navigate{URL: "https://shop.test"}},
			{Index: 1, Type: entities.ActionFill, Payload: entities.Fill{Selector: "#search", Text: "kettle"}},
		},
	})
	require.NoError(t, err)
	return path
}

func TestCompileWritesRequestedDialect(t *testing.T) {
	ui, _, _ := newTestInterface(t, "", false)
	logPath := savedLog(t, ui.cfg.OutputDir)
	out := filepath.Join(t.TempDir(), "replay.py")

	path, err := ui.Compile(logPath, "python", out)
	require.NoError(t, err)
	assert.Equal(t, out, path)

	script, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(script), "async def replay()")
	assert.Contains(t, string(script), `page.goto("https://shop.test"`)

	_, err = ui.Compile(logPath, "ruby", "")
	assert.ErrorContains(t, err, "unknown script dialect")
}

func TestCompileCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OUTPUT_DIR", dir)
	t.Chdir(t.TempDir())
	logPath := savedLog(t, dir)

	root := newRootCommand(&cli{newInterface: NewTerminalInterface})
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{"compile", logPath})

	require.NoError(t, root.Execute())
	assert.Contains(t, stdout.String(), "Script written to ")
	assert.Len(t, outputFiles(t, dir, "replay_*.go"), 1)
}

func TestRunCommandRejectsArgs(t *testing.T) {
	t.Setenv("OUTPUT_DIR", t.TempDir())
	t.Chdir(t.TempDir())

	root := NewRootCommand()
	root.SetArgs([]string{"run", "extra"})
	assert.Error(t, root.Execute())
}
