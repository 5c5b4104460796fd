package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/witanlabs/gridcmd/command"
)

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the operations and their parameters",
	Long: `List every function_name the dispatcher accepts with its required
parameters. The "excel_" prefix may be omitted when calling.

Examples:
  gridcmd functions
  gridcmd functions --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !jsonOutput {
			printFunctions(os.Stdout)
			return nil
		}
		type function struct {
			Name       command.Name `json:"function_name"`
			Parameters []string     `json:"parameters"`
			Mutates    bool         `json:"mutates"`
		}
		var out []function
		for _, n := range command.Names() {
			out = append(out, function{Name: n, Parameters: n.Params(), Mutates: n.Mutates()})
		}
		return jsonPrint(out)
	},
}

func init() {
	rootCmd.AddCommand(functionsCmd)
}

func printFunctions(w io.Writer) {
	fmt.Fprintln(w, "Operations:")
	for _, n := range command.Names() {
		params := strings.Join(n.Params(), ", ")
		if params == "" {
			params = "-"
		}
		fmt.Fprintf(w, "  %-34s %s\n", n, params)
	}
	fmt.Fprintln(w, `
row_index is 1-based; excel_add_row also accepts "next_available".
col_index is 1-based or a column letter ("B").
Example: {"function_name": "excel_write_cell", "parameters": {"row_index": 2, "col_index": "B", "text": "Done"}}`)
}
