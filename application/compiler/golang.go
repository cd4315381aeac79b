package compiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"shop_replay/domain/entities"
)

const goPlaywrightImport = "github.com/playwright-community/playwright-go"

// GoDialect emits a standalone Go program driving playwright-go
type GoDialect struct{}

func (GoDialect) Name() string      { return "go" }
func (GoDialect) Extension() string { return ".go" }

func (GoDialect) Navigate(p entities.Navigate) Block {
	return Block{
		Title: "Navigate to " + p.URL,
		Lines: []string{
			fmt.Sprintf("if _, err := page.Goto(%s, playwright.PageGotoOptions{", strconv.Quote(p.URL)),
			"\tWaitUntil: playwright.WaitUntilStateNetworkidle,",
			"}); err != nil {",
			"\treturn err",
			"}",
			"time.Sleep(2 * time.Second)",
			"return nil",
		},
		Imports: []string{"time"},
	}
}

func (GoDialect) Click(p entities.Click) Block {
	elementType := p.ElementType
	if elementType == "" {
		elementType = entities.ElementGeneric
	}

	if isImageClick(elementType) {
		// The resolved image handle is a run-time fact, so replay clicks
		// the first visible image instead of the recorded placeholder.
		return Block{
			Title: "Click " + elementType + " (first visible image)",
			Lines: []string{
				`images, err := page.QuerySelectorAll("img")`,
				"if err != nil {",
				"\treturn err",
				"}",
				"for _, img := range images {",
				"\tvisible, err := img.IsVisible()",
				"\tif err != nil || !visible {",
				"\t\tcontinue",
				"\t}",
				"\tif err := img.ScrollIntoViewIfNeeded(); err != nil {",
				"\t\tcontinue",
				"\t}",
				"\tif err := img.Click(); err != nil {",
				"\t\tcontinue",
				"\t}",
				"\ttime.Sleep(2 * time.Second)",
				"\treturn page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{",
				"\t\tState:   playwright.LoadStateNetworkidle,",
				"\t\tTimeout: playwright.Float(10000),",
				"\t})",
				"}",
				`return fmt.Errorf("no visible image to click")`,
			},
			Imports: []string{"fmt", "time"},
		}
	}

	return Block{
		Title: "Click " + elementType,
		Lines: []string{
			fmt.Sprintf("element, err := page.WaitForSelector(%s, playwright.PageWaitForSelectorOptions{", strconv.Quote(p.Selector)),
			"\tTimeout: playwright.Float(5000),",
			"})",
			"if err != nil {",
			"\treturn err",
			"}",
			"if err := element.Click(); err != nil {",
			"\treturn err",
			"}",
			"time.Sleep(1 * time.Second)",
			"return nil",
		},
		Imports: []string{"time"},
	}
}

func (GoDialect) Fill(p entities.Fill) Block {
	return Block{
		Title: "Fill input field",
		Lines: []string{
			fmt.Sprintf("input, err := page.WaitForSelector(%s, playwright.PageWaitForSelectorOptions{", strconv.Quote(p.Selector)),
			"\tTimeout: playwright.Float(5000),",
			"\tState:   playwright.WaitForSelectorStateVisible,",
			"})",
			"if err != nil {",
			"\treturn err",
			"}",
			"if err := input.Click(); err != nil {",
			"\treturn err",
			"}",
			`if err := input.Fill(""); err != nil {`,
			"\treturn err",
			"}",
			fmt.Sprintf("if err := input.Fill(%s); err != nil {", strconv.Quote(p.Text)),
			"\treturn err",
			"}",
			"time.Sleep(500 * time.Millisecond)",
			"return nil",
		},
		Imports: []string{"time"},
	}
}

func (GoDialect) KeyPress(p entities.KeyPress) Block {
	return Block{
		Title: fmt.Sprintf("Press key '%s'", p.Key),
		Lines: []string{
			fmt.Sprintf("element, err := page.WaitForSelector(%s, playwright.PageWaitForSelectorOptions{", strconv.Quote(p.Selector)),
			"\tTimeout: playwright.Float(5000),",
			"})",
			"if err != nil {",
			"\treturn err",
			"}",
			fmt.Sprintf("if err := element.Press(%s); err != nil {", strconv.Quote(p.Key)),
			"\treturn err",
			"}",
			"time.Sleep(1 * time.Second)",
			"return nil",
		},
		Imports: []string{"time"},
	}
}

func (GoDialect) Wait(p entities.Wait) Block {
	ms := p.Timeout.Milliseconds()

	if p.WaitKind == entities.WaitSelector && p.Selector != "" {
		return Block{
			Title: "Wait for selector " + p.Selector,
			Lines: []string{
				fmt.Sprintf("_, err := page.WaitForSelector(%s, playwright.PageWaitForSelectorOptions{", strconv.Quote(p.Selector)),
				fmt.Sprintf("\tTimeout: playwright.Float(%d),", ms),
				"})",
				"return err",
			},
		}
	}
	if p.WaitKind == entities.WaitSelector {
		return Block{
			Title: "Wait for selector (none recorded)",
			Lines: []string{"return nil"},
		}
	}

	return Block{
		Title: "Wait for page load",
		Lines: []string{
			"return page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{",
			"\tState:   playwright.LoadStateNetworkidle,",
			fmt.Sprintf("\tTimeout: playwright.Float(%d),", ms),
			"})",
		},
	}
}

func (GoDialect) Sleep(p entities.Sleep) Block {
	return Block{
		Title: fmt.Sprintf("Wait %s seconds", formatSeconds(p.Seconds())),
		Lines: []string{
			fmt.Sprintf("time.Sleep(%d * time.Millisecond)", p.Duration.Milliseconds()),
			"return nil",
		},
		Imports: []string{"time"},
	}
}

func (GoDialect) Unsupported(t entities.ActionType) Block {
	return Block{
		Title: fmt.Sprintf("Unsupported action %q", string(t)),
		Lines: []string{
			fmt.Sprintf("fmt.Println(%s)", strconv.Quote("skipping unsupported action "+string(t))),
			"return nil",
		},
		Imports: []string{"fmt"},
	}
}

func (GoDialect) Assemble(meta Meta, steps []Step) string {
	imports := map[string]bool{"fmt": true, "os": true}
	for _, s := range steps {
		for _, imp := range s.Block.Imports {
			imports[imp] = true
		}
	}
	std := make([]string, 0, len(imports))
	for imp := range imports {
		std = append(std, imp)
	}
	sort.Strings(std)

	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\n")
	}

	line("// Code generated by shop_replay from a recorded session. DO NOT EDIT.")
	line("// %s%s", GeneratedAtPrefix, meta.GeneratedAt.Format("2006-01-02 15:04:05"))
	if meta.SessionID != "" {
		line("// Session: %s", meta.SessionID)
	}
	if meta.Query != "" {
		line("// Original query: %s", oneLine(meta.Query))
	}
	line("// Steps: %d", len(steps))
	line("")
	line("package main")
	line("")
	line("import (")
	for _, imp := range std {
		line("\t%s", strconv.Quote(imp))
	}
	line("")
	line("\t%s", strconv.Quote(goPlaywrightImport))
	line(")")
	line("")
	line("func main() {")
	line("\tos.Exit(run())")
	line("}")
	line("")
	line("func run() int {")
	line("\tpw, err := playwright.Run()")
	line("\tif err != nil {")
	line("\t\tfmt.Fprintf(os.Stderr, \"could not start playwright: %%v\\n\", err)")
	line("\t\treturn 1")
	line("\t}")
	line("\tdefer pw.Stop()")
	line("")
	line("\tbrowser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{")
	line("\t\tHeadless: playwright.Bool(%t),", meta.Headless)
	line("\t\tSlowMo:   playwright.Float(%d),", meta.SlowMo.Milliseconds())
	line("\t})")
	line("\tif err != nil {")
	line("\t\tfmt.Fprintf(os.Stderr, \"could not launch browser: %%v\\n\", err)")
	line("\t\treturn 1")
	line("\t}")
	line("\tdefer browser.Close()")
	line("")
	line("\tpage, err := browser.NewPage()")
	line("\tif err != nil {")
	line("\t\tfmt.Fprintf(os.Stderr, \"could not open page: %%v\\n\", err)")
	line("\t\treturn 1")
	line("\t}")
	line("")

	if len(steps) == 0 {
		line("\tfmt.Println(\"No recorded steps to replay\")")
	} else {
		line("\tfailed := 0")
		line("\tstep := func(n int, title string, fn func() error) {")
		line("\t\tdefer func() {")
		line("\t\t\tif r := recover(); r != nil {")
		line("\t\t\t\tfailed++")
		line("\t\t\t\tfmt.Fprintf(os.Stderr, \"step %%d (%%s) panicked: %%v\\n\", n, title, r)")
		line("\t\t\t}")
		line("\t\t}()")
		line("\t\tif err := fn(); err != nil {")
		line("\t\t\tfailed++")
		line("\t\t\tfmt.Fprintf(os.Stderr, \"step %%d (%%s) failed: %%v\\n\", n, title, err)")
		line("\t\t}")
		line("\t}")
		line("")
		for _, s := range steps {
			annotation := s.Annotation()
			line("\t// Step %d [record %d]: %s", s.Number, s.Index, annotation)
			line("\tstep(%d, %s, func() error {", s.Number, strconv.Quote(annotation))
			for _, l := range s.Block.Lines {
				line("\t\t%s", l)
			}
			line("\t})")
			line("")
		}
	}

	line("\ttitle, _ := page.Title()")
	line("\tfmt.Println(\"Replay finished\")")
	line("\tfmt.Printf(\"Final URL: %%s\\n\", page.URL())")
	line("\tfmt.Printf(\"Final title: %%s\\n\", title)")
	if len(steps) > 0 {
		line("\tif failed > 0 {")
		line("\t\tfmt.Fprintf(os.Stderr, \"%%d step(s) failed\\n\", failed)")
		line("\t\treturn 1")
		line("\t}")
	}
	line("\treturn 0")
	line("}")

	return b.String()
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
