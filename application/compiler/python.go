package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"shop_replay/domain/entities"
)

// PythonDialect emits an async playwright script for Python
type PythonDialect struct{}

func (PythonDialect) Name() string      { return "python" }
func (PythonDialect) Extension() string { return ".py" }

// pyQuote relies on Go escapes being a subset of Python string escapes
func pyQuote(s string) string {
	return strconv.Quote(s)
}

// pyDocText makes s safe inside a non-raw triple-quoted docstring
func pyDocText(s string) string {
	s = strings.ReplaceAll(oneLine(s), `\`, `\\`)
	return strings.ReplaceAll(s, `"""`, `\"\"\"`)
}

func (PythonDialect) Navigate(p entities.Navigate) Block {
	return Block{
		Title: "Navigate to " + p.URL,
		Lines: []string{
			fmt.Sprintf(`await page.goto(%s, wait_until="networkidle")`, pyQuote(p.URL)),
			"await asyncio.sleep(2)",
		},
	}
}

func (PythonDialect) Click(p entities.Click) Block {
	elementType := p.ElementType
	if elementType == "" {
		elementType = entities.ElementGeneric
	}

	if isImageClick(elementType) {
		return Block{
			Title: "Click " + elementType + " (first visible image)",
			Lines: []string{
				`images = await page.query_selector_all("img")`,
				"clicked = False",
				"for img in images:",
				"    try:",
				"        if await img.is_visible():",
				"            await img.scroll_into_view_if_needed()",
				"            await img.click()",
				"            clicked = True",
				"            break",
				"    except Exception:",
				"        continue",
				"if not clicked:",
				`    raise RuntimeError("no visible image to click")`,
				"await asyncio.sleep(2)",
				`await page.wait_for_load_state("networkidle", timeout=10000)`,
			},
		}
	}

	return Block{
		Title: "Click " + elementType,
		Lines: []string{
			fmt.Sprintf("element = await page.wait_for_selector(%s, timeout=5000)", pyQuote(p.Selector)),
			"await element.click()",
			"await asyncio.sleep(1)",
		},
	}
}

func (PythonDialect) Fill(p entities.Fill) Block {
	return Block{
		Title: "Fill input field",
		Lines: []string{
			fmt.Sprintf(`field = await page.wait_for_selector(%s, timeout=5000, state="visible")`, pyQuote(p.Selector)),
			"await field.click()",
			`await field.fill("")`,
			fmt.Sprintf("await field.fill(%s)", pyQuote(p.Text)),
			"await asyncio.sleep(0.5)",
		},
	}
}

func (PythonDialect) KeyPress(p entities.KeyPress) Block {
	return Block{
		Title: fmt.Sprintf("Press key '%s'", p.Key),
		Lines: []string{
			fmt.Sprintf("element = await page.wait_for_selector(%s, timeout=5000)", pyQuote(p.Selector)),
			fmt.Sprintf("await element.press(%s)", pyQuote(p.Key)),
			"await asyncio.sleep(1)",
		},
	}
}

func (PythonDialect) Wait(p entities.Wait) Block {
	ms := p.Timeout.Milliseconds()

	if p.WaitKind == entities.WaitSelector && p.Selector != "" {
		return Block{
			Title: "Wait for selector " + p.Selector,
			Lines: []string{
				fmt.Sprintf("await page.wait_for_selector(%s, timeout=%d)", pyQuote(p.Selector), ms),
			},
		}
	}
	if p.WaitKind == entities.WaitSelector {
		return Block{
			Title: "Wait for selector (none recorded)",
			Lines: []string{"pass"},
		}
	}

	return Block{
		Title: "Wait for page load",
		Lines: []string{
			fmt.Sprintf(`await page.wait_for_load_state("networkidle", timeout=%d)`, ms),
		},
	}
}

func (PythonDialect) Sleep(p entities.Sleep) Block {
	secs := formatSeconds(p.Seconds())
	return Block{
		Title: fmt.Sprintf("Wait %s seconds", secs),
		Lines: []string{fmt.Sprintf("await asyncio.sleep(%s)", secs)},
	}
}

func (PythonDialect) Unsupported(t entities.ActionType) Block {
	return Block{
		Title: fmt.Sprintf("Unsupported action %q", string(t)),
		Lines: []string{fmt.Sprintf("print(%s)", pyQuote("skipping unsupported action "+string(t)))},
	}
}

func (PythonDialect) Assemble(meta Meta, steps []Step) string {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\n")
	}
	headless := "False"
	if meta.Headless {
		headless = "True"
	}

	line(`"""`)
	line("Replay script generated by shop_replay from a recorded session.")
	line("%s%s", GeneratedAtPrefix, meta.GeneratedAt.Format("2006-01-02 15:04:05"))
	if meta.SessionID != "" {
		line("Session: %s", meta.SessionID)
	}
	if meta.Query != "" {
		line("Original query: %s", pyDocText(meta.Query))
	}
	line("Steps: %d", len(steps))
	line(`"""`)
	line("import asyncio")
	line("import sys")
	line("from playwright.async_api import async_playwright")
	line("")
	line("")
	line("async def replay():")
	line("    driver = await async_playwright().start()")
	line("    browser = await driver.chromium.launch(headless=%s, slow_mo=%d)", headless, meta.SlowMo.Milliseconds())
	line("    page = await browser.new_page()")
	line("    failed = 0")
	line("")
	line("    try:")
	for _, s := range steps {
		annotation := s.Annotation()
		line("        # Step %d [record %d]: %s", s.Number, s.Index, annotation)
		line("        try:")
		for _, l := range s.Block.Lines {
			line("            %s", l)
		}
		line("        except Exception as e:")
		line("            failed += 1")
		line("            print(f\"Step %d failed: {e}\", file=sys.stderr)", s.Number)
		line("")
	}
	line("        print(\"Replay finished\")")
	line("        print(f\"Final URL: {page.url}\")")
	line("        print(f\"Final title: {await page.title()}\")")
	line("    finally:")
	line("        await browser.close()")
	line("        await driver.stop()")
	line("")
	line("    return 1 if failed else 0")
	line("")
	line("")
	line(`if __name__ == "__main__":`)
	line("    sys.exit(asyncio.run(replay()))")

	return b.String()
}
