package main

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/jetsetgo/till-bridge/internal/printer"
)

var codesCmd = &cobra.Command{
	Use:   "codes [printer name]",
	Short: "Show drawer codes, or the code used for one printer",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCodes,
}

func runCodes(cmd *cobra.Command, args []string) error {
	codes := printer.NewCodeRegistry()

	if len(args) == 1 {
		e := codes.Lookup(args[0])
		pterm.Info.Printf("%q uses %s (%s)\n", args[0], formatBytes(e.Bytes), e.Description)
		return nil
	}

	table := pterm.TableData{{"Pattern", "Bytes", "Description"}}
	for _, e := range codes.Entries() {
		table = append(table, []string{e.Pattern, formatBytes(e.Bytes), e.Description})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func formatBytes(b []byte) string {
	return strings.Join(lo.Map(b, func(v byte, _ int) string {
		return fmt.Sprintf("%d", v)
	}), ",")
}
