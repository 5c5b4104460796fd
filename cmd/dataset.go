package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/witanlabs/gridcmd/dataset"
	"github.com/witanlabs/gridcmd/reward"
	"github.com/witanlabs/gridcmd/workbook"
)

var (
	synthRows int
	synthSeed uint64

	generateCount     int
	generateOut       string
	generateKeyHeader string
	generateSeed      uint64

	evalScenarios string
)

var synthCmd = &cobra.Command{
	Use:   "synth <out.xlsx>",
	Short: "Write a workbook of synthetic project data",
	Long: `Write a header row plus --rows rows of synthetic project data.

Project names are unique, so every row can be addressed by lookup. The same
--seed always produces the same workbook.

Examples:
  gridcmd synth projects.xlsx --rows 50 --seed 7`,
	Args: cobra.ExactArgs(1),
	RunE: runSynth,
}

var generateCmd = &cobra.Command{
	Use:   "generate <file>",
	Short: "Generate lookup-update training examples from a workbook",
	Long: `Generate natural-language update instructions paired with the
excel_update_cell_by_lookup command that carries them out.

Each example picks a different data row. The command is executed against a
copy of the sheet, so target_cell and expected_cell_value are exactly what a
run would report. The workbook itself is never modified.

Output:
  - JSON Lines, one example per line, to --out or stdout.

Examples:
  gridcmd generate projects.xlsx -n 100 --out train.jsonl
  gridcmd generate inventory.xlsx --key-header SKU --seed 42`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var evalCmd = &cobra.Command{
	Use:   "eval <file> --scenarios <file.jsonl>",
	Short: "Score model completions against a workbook",
	Long: `Grade each scenario: extract the JSON command from the completion,
compare it with the expected function and parameters, and run it against a
fresh copy of the sheet.

Inputs:
  - --scenarios is JSON Lines of {"prompt","completion","expected_function","expected_params"}.
    expected_function defaults to excel_update_cell_by_lookup.

Output:
  - Default mode prints one line per scenario and the aggregate metrics.
  - --json prints {"results":[...],"metrics":{...}}.

Examples:
  gridcmd eval projects.xlsx --scenarios completions.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	synthCmd.Flags().IntVar(&synthRows, "rows", 20, "Number of data rows")
	synthCmd.Flags().Uint64Var(&synthSeed, "seed", 0, "Random seed (default: config dataset.seed, else time-based)")
	rootCmd.AddCommand(synthCmd)

	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 10, "Number of examples (at most one per data row)")
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "", "Output .jsonl path (default: stdout)")
	generateCmd.Flags().StringVar(&generateKeyHeader, "key-header", "", "Header of the column that identifies rows (default: config dataset.key_header)")
	generateCmd.Flags().Uint64Var(&generateSeed, "seed", 0, "Random seed (default: config dataset.seed, else time-based)")
	rootCmd.AddCommand(generateCmd)

	evalCmd.Flags().StringVar(&evalScenarios, "scenarios", "", "Path to scenarios as JSON Lines")
	_ = evalCmd.MarkFlagRequired("scenarios")
	rootCmd.AddCommand(evalCmd)
}

// newRand seeds from the flag, then the config, then the clock.
func newRand(cmd *cobra.Command, seed uint64) *rand.Rand {
	if !cmd.Flags().Changed("seed") {
		seed = cfg.Dataset.Seed
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger.Debug("seeding generator", zap.Uint64("seed", seed))
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

func runSynth(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	if synthRows < 1 {
		return fmt.Errorf("--rows must be at least 1")
	}

	store := dataset.SynthTable(newRand(cmd, synthSeed), synthRows)
	if err := workbook.Save(args[0], store, workbookOptions()); err != nil {
		return err
	}
	if !jsonOutput {
		fmt.Printf("Wrote %d rows to %s\n", synthRows, args[0])
		return nil
	}
	return jsonPrint(map[string]any{"file": args[0], "rows": synthRows})
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	if generateCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	store, err := workbook.Load(args[0], workbookOptions())
	if err != nil {
		return err
	}
	keyHeader := generateKeyHeader
	if keyHeader == "" {
		keyHeader = cfg.Dataset.KeyHeader
	}
	b, err := dataset.NewBuilder(newRand(cmd, generateSeed),
		dataset.WithKeyHeader(keyHeader),
		dataset.WithFilePath(args[0]),
		dataset.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	examples, err := b.Build(store, generateCount)
	if err != nil {
		return err
	}

	if generateOut == "" {
		return dataset.WriteJSONL(os.Stdout, examples)
	}
	f, err := os.Create(generateOut)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := dataset.WriteJSONL(w, examples); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", generateOut, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", generateOut, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d example(s) to %s\n", len(examples), generateOut)
	return nil
}

type evalResult struct {
	Results []reward.Grading `json:"results"`
	Metrics reward.Metrics   `json:"metrics"`
}

func readScenarios(r io.Reader) ([]reward.Scenario, error) {
	var out []reward.Scenario
	dec := json.NewDecoder(r)
	for i := 1; ; i++ {
		var sc reward.Scenario
		if err := dec.Decode(&sc); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i, err)
		}
		out = append(out, sc)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no scenarios found")
	}
	return out, nil
}

func runEval(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	store, err := workbook.Load(args[0], workbookOptions())
	if err != nil {
		return err
	}
	f, err := os.Open(evalScenarios)
	if err != nil {
		return fmt.Errorf("reading scenarios: %w", err)
	}
	scenarios, err := readScenarios(f)
	f.Close()
	if err != nil {
		return err
	}

	res := evalResult{Results: make([]reward.Grading, len(scenarios))}
	for i, sc := range scenarios {
		res.Results[i] = reward.Grade(store, sc)
	}
	res.Metrics = reward.Summarize(res.Results)

	if jsonOutput {
		return jsonPrint(res)
	}
	for i, g := range res.Results {
		fmt.Printf("[%d] %+d  %s\n", i+1, g.Report.Reward, g.Report.Feedback)
	}
	m := res.Metrics
	fmt.Printf("\n%d scenario(s): json %.0f%%, function %.0f%%, params %.0f%%, success %.0f%%, mean reward %.2f\n",
		m.Total, 100*m.JSONExtractionRate, 100*m.FunctionAccuracy, 100*m.ParameterAccuracy, 100*m.SuccessRate, m.MeanReward)
	return nil
}
