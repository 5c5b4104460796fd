package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/witanlabs/gridcmd/command"
	"github.com/witanlabs/gridcmd/lookup"
	"github.com/witanlabs/gridcmd/sheet"
	"github.com/witanlabs/gridcmd/workbook"
)

var (
	lookupRowHeader string
	lookupRowValue  string
	lookupColHeader string
	lookupSet       string
	lookupRaw       bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <file> --row-header <h> --row-value <v> --col-header <h> [--set <value>]",
	Short: "Find a cell by row key and column header, optionally update it",
	Long: `Resolve the cell where the row whose --row-header column equals
--row-value meets the column headed --col-header.

Behavior:
  - Headers are matched exactly against the first row.
  - The key is compared exactly and by type: "123" (text) does not match 123
    (number). Numeric-looking input is a number unless --raw is set.
  - Without --set, prints the cell reference and its current value.
  - With --set, runs excel_update_cell_by_lookup and saves the workbook,
    in a server session when --remote is set.

Examples:
  gridcmd lookup projects.xlsx --row-header "Project Name" --row-value Project-123 --col-header Status
  gridcmd lookup projects.xlsx --row-header "Project Name" --row-value Project-123 --col-header Status --set Completed`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().StringVar(&lookupRowHeader, "row-header", "", "Header of the key column")
	lookupCmd.Flags().StringVar(&lookupRowValue, "row-value", "", "Key value identifying the row")
	lookupCmd.Flags().StringVar(&lookupColHeader, "col-header", "", "Header of the column to read or update")
	lookupCmd.Flags().StringVar(&lookupSet, "set", "", "New value to write into the resolved cell")
	lookupCmd.Flags().BoolVar(&execRemote, "remote", false, "With --set, run in a session on the gridcmd server (see --api-url)")
	lookupCmd.Flags().BoolVar(&lookupRaw, "raw", false, "Treat --row-value and --set as text even if they look like numbers")
	_ = lookupCmd.MarkFlagRequired("row-header")
	_ = lookupCmd.MarkFlagRequired("row-value")
	_ = lookupCmd.MarkFlagRequired("col-header")
	rootCmd.AddCommand(lookupCmd)
}

type lookupResult struct {
	Cell  string      `json:"cell"`
	Value sheet.Value `json:"value"`
}

func runLookup(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if cmd.Flags().Changed("set") {
		c, err := command.New(string(command.UpdateCellByLookup), map[string]any{
			"row_header": lookupRowHeader,
			"row_value":  cellParam(lookupRowValue, lookupRaw),
			"col_header": lookupColHeader,
			"new_value":  cellParam(lookupSet, lookupRaw),
		})
		if err != nil {
			return err
		}
		return runCommands(args[0], []command.Command{c})
	}

	store, err := workbook.Load(args[0], workbookOptions())
	if err != nil {
		return err
	}
	key := sheet.Text(lookupRowValue)
	if !lookupRaw {
		key = sheet.ParseValue(lookupRowValue)
	}
	target, err := lookup.New(store).Resolve(lookupRowHeader, key, lookupColHeader)
	if err != nil {
		return err
	}
	v, err := store.Cell(target.Row, target.Col)
	if err != nil {
		return err
	}

	if jsonOutput {
		return jsonPrint(lookupResult{Cell: target.Ref, Value: v})
	}
	fmt.Printf("%s = %s\n", target.Ref, displayValue(v))
	return nil
}
