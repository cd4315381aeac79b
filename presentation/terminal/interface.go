package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"shop_replay/application/agent"
	"shop_replay/application/compiler"
	"shop_replay/application/navigator"
	"shop_replay/application/recorder"
	"shop_replay/application/resolver"
	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"
	"shop_replay/infrastructure/ai"
	"shop_replay/infrastructure/browser"
	"shop_replay/infrastructure/config"
	"shop_replay/infrastructure/markup"
	"shop_replay/infrastructure/recipes"
	"shop_replay/infrastructure/security"
	"shop_replay/infrastructure/storage"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// buttonPresets expands well known button names into their synonym sets
var buttonPresets = map[string][]string{
	"add-to-cart": entities.AddToCartSynonyms,
	"cart":        entities.CartSynonyms,
	"checkout":    entities.CheckoutSynonyms,
	"place-order": entities.PlaceOrderSynonyms,
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Launcher starts a browser backend
type Launcher func(opts browser.Options, logger *logrus.Logger) (browser.Browser, error)

// RunOptions describe one run command
type RunOptions struct {
	URL     string
	Query   string
	Buttons []string
}

// TerminalInterface wires configuration, the browser and the application
// layer together for the command line
type TerminalInterface struct {
	cfg         *config.Config
	logger      *logrus.Logger
	reader      *bufio.Reader
	out         io.Writer
	interactive bool
	launch      Launcher
	// settle overrides the navigator and search settle pauses when positive
	settle time.Duration
}

// NewTerminalInterface - creates the interface over stdin and stdout
func NewTerminalInterface(cfg *config.Config, logger *logrus.Logger) *TerminalInterface {
	return &TerminalInterface{
		cfg:         cfg,
		logger:      logger,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		interactive: isTTY(),
		launch:      browser.Launch,
	}
}

// session is everything bound to one open page
type session struct {
	recorder interfaces.Recorder
	nav      *navigator.Navigator
	agent    *agent.Agent
}

func (t *TerminalInterface) newRecorder() interfaces.Recorder {
	if !t.cfg.RecordingEnabled {
		return recorder.Nop()
	}
	return recorder.New(t.logger)
}

func (t *TerminalInterface) newResolver(rec interfaces.Recorder) (*resolver.Resolver, error) {
	loaded, err := recipes.Load(t.cfg.RecipesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}

	opts := []resolver.Option{
		resolver.WithRecipes(loaded...),
		resolver.WithParser(markup.NewParser()),
		resolver.WithRecorder(rec),
		resolver.WithTimeouts(t.cfg.ProbeTimeout, t.cfg.RevealTimeout),
		resolver.WithExcerptLimit(t.cfg.MarkupExcerptLimit),
	}
	if t.cfg.InferenceEnabled {
		client, err := ai.NewOpenAIClient(ai.Config{
			APIKey:  t.cfg.OpenAIAPIKey,
			Model:   t.cfg.OpenAIModel,
			BaseURL: t.cfg.OpenAIBaseURL,
		}, t.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize inference: %w", err)
		}
		opts = append(opts, resolver.WithInference(client))
	} else {
		t.logger.Info("Inference disabled, using deterministic strategies only")
	}
	return resolver.New(t.logger, opts...), nil
}

func (t *TerminalInterface) newSession(page interfaces.Page) (*session, error) {
	rec := t.newRecorder()
	res, err := t.newResolver(rec)
	if err != nil {
		return nil, err
	}
	nav := navigator.New(page, rec, security.NewClickGuard(t.cfg.AllowRiskyClicks, t.logger), t.logger, navigator.Timeouts{
		Navigation:  t.cfg.NavigationTimeout,
		NetworkIdle: t.cfg.NetworkIdleTimeout,
		Settle:      t.settle,
	})
	ag := agent.New(res, nav, t.logger)
	if t.settle > 0 {
		ag.SetResultsSettle(t.settle)
	}
	return &session{recorder: rec, nav: nav, agent: ag}, nil
}

func (t *TerminalInterface) store() (*storage.SessionStore, error) {
	return storage.NewSessionStore(t.cfg.OutputDir)
}

func (t *TerminalInterface) compiler(dialectName string) (*compiler.Compiler, error) {
	if dialectName == "" {
		dialectName = t.cfg.ScriptDialect
	}
	dialect, ok := compiler.DialectByName(dialectName)
	if !ok {
		return nil, fmt.Errorf("unknown script dialect %q", dialectName)
	}
	return compiler.New(t.logger,
		compiler.WithDialect(dialect),
		compiler.WithBrowser(t.cfg.BrowserHeadless, t.cfg.BrowserSlowMo),
	), nil
}

// Run - launches the browser and executes one task, or prompts for tasks
// until the user quits when no query was given
func (t *TerminalInterface) Run(ctx context.Context, opts RunOptions) error {
	if opts.Query == "" && !t.interactive {
		return errors.New("--query is required when stdin is not a terminal")
	}

	st, err := t.store()
	if err != nil {
		return err
	}
	br, err := t.launch(browser.Options{
		Backend:      t.cfg.BrowserBackend,
		Headless:     t.cfg.BrowserHeadless,
		SlowMo:       t.cfg.BrowserSlowMo,
		DriverPath:   t.cfg.BrowserDriverPath,
		ChromeBinary: t.cfg.ChromeBinaryPath,
		StateFile:    filepath.Join(st.Dir(), "browser_state.json"),
	}, t.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer func() {
		if err := br.Close(); err != nil {
			t.logger.WithError(err).Warn("Browser did not close cleanly")
		}
	}()

	s, err := t.newSession(br.Page())
	if err != nil {
		return err
	}

	if opts.Query != "" {
		return t.runTask(ctx, s, opts)
	}

	fmt.Fprintln(t.out, bold("Shop replay"))
	fmt.Fprintln(t.out, "Enter a product to search for, or 'quit' to exit")
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		url, err := t.prompt(fmt.Sprintf("URL [%s]: ", opts.URL))
		if errors.Is(err, io.EOF) || isQuit(url) {
			return nil
		}
		if err != nil {
			return err
		}
		if url != "" {
			opts.URL = url
		}
		query, err := t.prompt("Product: ")
		if errors.Is(err, io.EOF) || isQuit(query) {
			return nil
		}
		if err != nil {
			return err
		}
		if query == "" {
			continue
		}
		opts.Query = query
		if err := t.runTask(ctx, s, opts); err != nil {
			fmt.Fprintf(t.out, "%s %v\n\n", red("Task failed:"), err)
		}
	}
}

func isQuit(s string) bool {
	return s == "quit" || s == "exit" || s == "q"
}

// prompt reads one trimmed line; io.EOF is returned only when nothing was read
func (t *TerminalInterface) prompt(label string) (string, error) {
	fmt.Fprint(t.out, label)
	line, err := t.reader.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (t *TerminalInterface) confirm(label string) bool {
	if !t.interactive {
		return false
	}
	answer, err := t.prompt(label + " [y/N]: ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

// runTask executes one task on the session page and saves what was recorded
func (t *TerminalInterface) runTask(ctx context.Context, s *session, opts RunOptions) error {
	s.recorder.Start()
	if q, ok := s.recorder.(interface{ SetQuery(string) }); ok {
		q.SetQuery(opts.Query)
	}

	task := &entities.Task{ID: uuid.NewString(), URL: opts.URL, Query: opts.Query, Status: entities.TaskStatusPending}
	fmt.Fprintf(t.out, "\nSearching %s for %s\n", opts.URL, bold(opts.Query))

	result := s.agent.ExecuteTask(ctx, task)
	t.printResult(result)

	var runErr error
	if result.Status == entities.ResultSuccess {
		for _, name := range opts.Buttons {
			if err := t.clickButton(ctx, s, name); err != nil {
				runErr = err
				break
			}
		}
	} else {
		runErr = errors.New(result.Message)
	}

	if err := t.saveSession(s.recorder.Stop()); err != nil {
		if runErr == nil {
			return err
		}
		t.logger.WithError(err).Error("Failed to save session")
	}
	return runErr
}

// clickButton clicks a preset or literal button, asking before risky clicks
func (t *TerminalInterface) clickButton(ctx context.Context, s *session, name string) error {
	synonyms, ok := buttonPresets[strings.ToLower(name)]
	if !ok {
		synonyms = []string{name}
	}
	label := strings.ReplaceAll(name, "-", " ") + " button"

	loc, err := s.agent.ClickButton(ctx, label, synonyms...)
	var approval *navigator.ApprovalError
	if errors.As(err, &approval) {
		fmt.Fprintf(t.out, "%s %s (%s)\n", yellow("Approval required:"), approval.Action.Selector, approval.Action.Reason)
		if !t.confirm("Click it anyway?") {
			return err
		}
		s.nav.Approve(approval.Action.Selector)
		loc, err = s.agent.ClickButton(ctx, label, synonyms...)
	}
	if err != nil {
		return fmt.Errorf("failed to click %s: %w", label, err)
	}
	fmt.Fprintf(t.out, "%s %s via %s\n", green("Clicked"), loc.Selector, loc.Method)
	return nil
}

func (t *TerminalInterface) printResult(result entities.TaskResult) {
	switch result.Status {
	case entities.ResultSuccess:
		fmt.Fprintf(t.out, "%s %s\n", green("Done:"), result.Message)
	case entities.ResultNotFound:
		fmt.Fprintf(t.out, "%s %s\n", yellow("Not found:"), result.Message)
	default:
		fmt.Fprintf(t.out, "%s %s\n", red("Failed:"), result.Message)
	}

	keys := make([]string, 0, len(result.Data))
	for k := range result.Data {
		if k == "attempts" || k == "pending_action" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(t.out, "  %s: %v\n", k, result.Data[k])
	}
}

// saveSession writes the action log and its compiled script
func (t *TerminalInterface) saveSession(log *entities.ActionLog) error {
	if log == nil || len(log.Actions) == 0 {
		t.logger.Debug("Nothing recorded, skipping export")
		return nil
	}
	st, err := t.store()
	if err != nil {
		return err
	}
	logPath, err := st.SaveLog(log)
	if err != nil {
		return err
	}
	c, err := t.compiler("")
	if err != nil {
		return err
	}
	scriptPath, err := st.SaveScript(c.Compile(log), c.Extension())
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "Recorded %d actions\n  log: %s\n  script: %s\n", len(log.Actions), logPath, scriptPath)
	return nil
}

// Compile - compiles a saved action log; out may be empty to save under the output dir
func (t *TerminalInterface) Compile(logPath, dialect, out string) (string, error) {
	st, err := t.store()
	if err != nil {
		return "", err
	}
	log, err := st.LoadLog(logPath)
	if err != nil {
		return "", err
	}
	c, err := t.compiler(dialect)
	if err != nil {
		return "", err
	}
	script := c.Compile(log)

	if out == "" {
		return st.SaveScript(script, c.Extension())
	}
	if err := os.WriteFile(out, []byte(script), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", out, err)
	}
	return out, nil
}
