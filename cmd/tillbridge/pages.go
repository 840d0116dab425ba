package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jetsetgo/till-bridge/internal/page"
	"github.com/jetsetgo/till-bridge/internal/page/memdom"
)

var pagesCmd = &cobra.Command{
	Use:   "pages <url>",
	Short: "Show which drawer rules apply to a POS page",
	Long: `Lists the page rules matching a URL. With --html the rules are also
tried against a saved copy of the page, showing which buttons would be
replaced and which rules would be skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runPages,
}

var pagesHTML string

func init() {
	pagesCmd.Flags().StringVar(&pagesHTML, "html", "", "Saved HTML of the page to dry-run against")
}

func runPages(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	url := args[0]

	engine, err := page.NewEngineFromConfig(cfg.Page)
	if err != nil {
		return err
	}

	rules := engine.Detect(url)
	if len(rules) == 0 {
		pterm.Warning.Printf("No drawer rules apply to %s\n", url)
		return nil
	}

	if pagesHTML == "" {
		table := pterm.TableData{{"Rule", "Selector", "Drawer button", "Flags"}}
		for _, r := range rules {
			table = append(table, []string{r.Description, r.Selector, r.DrawerButtonText, ruleFlags(r)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	}

	f, err := os.Open(pagesHTML)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := memdom.Parse(url, f)
	if err != nil {
		return err
	}
	matches := lo.Map(rules, func(r page.PageRule, _ int) int { return doc.Count(r.Selector) })

	a, err := newApp(cfg, zap.NewNop())
	if err != nil {
		return err
	}
	orch, detach := a.orchestrator(doc)
	defer detach()
	if _, err := orch.Initialize(context.Background()); err != nil {
		return fmt.Errorf("dry run: %w", err)
	}

	table := pterm.TableData{{"Rule", "Selector", "Matches", "Bound", "Flags"}}
	for i, r := range rules {
		bound := lo.CountBy(orch.Bindings(), func(b *page.Binding) bool {
			return b.Rule.URLPattern == r.URLPattern && b.Rule.Selector == r.Selector
		})
		table = append(table, []string{
			r.Description,
			r.Selector,
			strconv.Itoa(matches[i]),
			strconv.Itoa(bound),
			ruleFlags(r),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func ruleFlags(r page.PageRule) string {
	var flags []string
	if r.Regexp {
		flags = append(flags, "regexp")
	}
	if r.SkipIfWriteoff {
		flags = append(flags, "skip-writeoff")
	}
	if r.RequireSessionRegisterMatch {
		flags = append(flags, "session-register")
	}
	return strings.Join(flags, ", ")
}
