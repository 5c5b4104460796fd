package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/witanlabs/gridcmd/internal"
	"github.com/witanlabs/gridcmd/sheet"
	"github.com/witanlabs/gridcmd/workbook"
)

var getCmd = &cobra.Command{
	Use:   "get <file> [ref|range]",
	Short: "Print cell values",
	Long: `Print the values of a cell, a range, or the whole used sheet.

Inputs:
  - [ref|range] is an A1 reference (B2) or range (A1:C10). An optional
    "Sheet!" prefix is accepted and ignored; use --sheet to pick the sheet.
  - Omit it to print every used cell.

Output:
  - Default mode prints a tab-aligned grid with column letters and row numbers.
  - --json prints {"range":"A1:C3","cells":[[...],...]}.

Examples:
  gridcmd get projects.xlsx
  gridcmd get projects.xlsx B2
  gridcmd get projects.xlsx A1:H5 --json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

type getResult struct {
	Range string          `json:"range"`
	Cells [][]sheet.Value `json:"cells"`
}

func runGet(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	store, err := workbook.Load(args[0], workbookOptions())
	if err != nil {
		return err
	}

	var r0, c0, r1, c1 int
	if len(args) == 2 {
		if r0, c0, r1, c1, err = internal.ParseRange(args[1]); err != nil {
			return err
		}
	} else {
		if store.RowCount() == 0 {
			fmt.Fprintln(os.Stderr, "Sheet is empty")
			return nil
		}
		r0, c0, r1, c1 = 1, 1, store.RowCount(), store.ColumnCount()
	}

	res, err := readRange(store, r0, c0, r1, c1)
	if err != nil {
		return err
	}
	if jsonOutput {
		return jsonPrint(res)
	}
	if r0 == r1 && c0 == c1 {
		fmt.Println(displayValue(res.Cells[0][0]))
		return nil
	}
	return printGrid(res.Cells, r0, c0)
}

// readRange copies a rectangle out of the store. Cells beyond the used area
// read as empty.
func readRange(store *sheet.Store, r0, c0, r1, c1 int) (*getResult, error) {
	res := &getResult{Range: internal.FormatRange(r0, c0, r1, c1)}
	for r := r0; r <= r1; r++ {
		row := make([]sheet.Value, 0, c1-c0+1)
		for c := c0; c <= c1; c++ {
			v, err := store.Cell(r, c)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		res.Cells = append(res.Cells, row)
	}
	return res, nil
}

func printGrid(cells [][]sheet.Value, r0, c0 int) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if len(cells) > 0 {
		letters := make([]string, len(cells[0]))
		for i := range letters {
			letters[i] = internal.ColToLetter(c0 + i)
		}
		fmt.Fprintf(tw, "\t%s\n", strings.Join(letters, "\t"))
	}
	for i, row := range cells {
		fmt.Fprintf(tw, "%d\t%s\n", r0+i, strings.Join(sheet.Strings(row), "\t"))
	}
	return tw.Flush()
}
