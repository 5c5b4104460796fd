package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/witanlabs/gridcmd/client"
	"github.com/witanlabs/gridcmd/reward"
	"github.com/witanlabs/gridcmd/session"
	"github.com/witanlabs/gridcmd/sheet"
	"github.com/witanlabs/gridcmd/workbook"
)

var (
	execCommand   string
	execScript    string
	execStdin     bool
	execRemote    bool
	execDiff      bool
	execDryRun    bool
	execKeepGoing bool
)

var execCmd = &cobra.Command{
	Use:   "exec <file>",
	Short: "Run JSON commands against a workbook",
	Long: `Run one or more JSON commands against a worksheet and save the result.

Contract:
  - Provide exactly one command source: --command, --script, or --stdin.
  - --script and --stdin take one JSON command per line. Blank lines and
    lines starting with # are skipped.
  - Commands run in order against the same sheet. Execution stops at the
    first command scored -1 unless --keep-going is set.

Inputs:
  - <file> is the .xlsx workbook. A missing file starts an empty sheet and
    is created on save.
  - An .xls file holding .xlsx content is renamed to .xlsx first.

Behavior:
  - The workbook is saved once, after all commands, if any command changed it.
  - --dry-run never writes the workbook.
  - --remote runs the commands in a server session instead of in-process.
  - --diff prints the cells that changed.

Output:
  - Default mode prints one line per command: the reward and the feedback.
  - --json prints {"file":...,"reports":[...],"revision":n,"saved":bool}.

Exit codes:
  - 0: every command scored 1
  - 1: a command scored -1, or an I/O or transport error

Examples:
  gridcmd exec projects.xlsx --command '{"function_name":"excel_read_header_row"}'
  gridcmd exec projects.xlsx --script ./updates.jsonl --diff
  echo '{"function_name":"excel_clear_sheet"}' | gridcmd exec scratch.xlsx --stdin --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVarP(&execCommand, "command", "c", "", "Inline JSON command")
	execCmd.Flags().StringVar(&execScript, "script", "", "Path to a file of JSON commands, one per line")
	execCmd.Flags().BoolVar(&execStdin, "stdin", false, "Read JSON commands from stdin, one per line")
	execCmd.Flags().BoolVar(&execRemote, "remote", false, "Run in a session on the gridcmd server (see --api-url)")
	execCmd.Flags().BoolVar(&execDiff, "diff", false, "Print the cells that changed")
	execCmd.Flags().BoolVar(&execDryRun, "dry-run", false, "Run the commands but do not save the workbook")
	execCmd.Flags().BoolVar(&execKeepGoing, "keep-going", false, "Run all commands even after one scores -1")
	rootCmd.AddCommand(execCmd)
}

type execResult struct {
	File     string          `json:"file"`
	Reports  []reward.Report `json:"reports"`
	Revision int             `json:"revision"`
	Saved    bool            `json:"saved"`
	Changes  []cellChange    `json:"changes,omitempty"`

	diffTotal int
}

func (r *execResult) failed() bool {
	for _, rep := range r.Reports {
		if !rep.OK() {
			return true
		}
	}
	return false
}

func runExec(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	filePath, renamed, err := workbook.FixExtension(args[0])
	if err != nil {
		return err
	}
	if renamed {
		fmt.Fprintf(os.Stderr, "Renamed %s to %s (file contents are .xlsx)\n", filepath.Base(args[0]), filepath.Base(filePath))
	}

	commands, err := resolveCommandSource(cmd, os.Stdin)
	if err != nil {
		return err
	}

	var result *execResult
	if execRemote {
		result, err = execRemoteCommands(filePath, commands)
	} else {
		result, err = execLocalCommands(filePath, commands)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := jsonPrint(result); err != nil {
			return err
		}
	} else {
		for _, rep := range result.Reports {
			printReport(os.Stdout, rep)
		}
		if execDiff {
			printDiff(os.Stdout, result.Changes, result.diffTotal)
		}
		if result.Saved {
			fmt.Printf("Saved %s (%d change(s))\n", filePath, result.Revision)
		} else if result.Revision > 0 {
			fmt.Printf("Not saved (--dry-run); %d change(s) discarded\n", result.Revision)
		}
	}

	if result.failed() {
		return &ExitError{Code: 1}
	}
	return nil
}

func execLocalCommands(filePath string, commands [][]byte) (*execResult, error) {
	opts := workbookOptions()
	store, err := workbook.Load(filePath, opts)
	if err != nil {
		return nil, err
	}
	var before *sheet.Store
	if execDiff {
		before = store.Clone()
	}

	sess := session.New(store, logger)
	result := &execResult{File: filePath}
	for _, c := range commands {
		rep := sess.RunJSON(c)
		result.Reports = append(result.Reports, rep)
		if !rep.OK() && !execKeepGoing {
			break
		}
	}
	result.Revision = sess.Revision()

	after := sess.Snapshot()
	if execDiff {
		result.Changes, result.diffTotal = diffStores(before, after)
	}
	if result.Revision > 0 && !execDryRun {
		if err := workbook.Save(filePath, after, opts); err != nil {
			return nil, err
		}
		result.Saved = true
		logger.Debug("saved workbook", zap.String("file", filePath), zap.Int("revision", result.Revision))
	}
	return result, nil
}

func execRemoteCommands(filePath string, commands [][]byte) (*execResult, error) {
	opts := workbookOptions()
	c := newClient(filePath)

	var before *sheet.Store
	if execDiff {
		var err error
		if before, err = workbook.Load(filePath, opts); err != nil {
			return nil, err
		}
	}

	// A dry run must not leave a modified session behind in the cache.
	var id string
	if execDryRun {
		created, err := c.CreateSession(existingOrEmpty(filePath))
		if err != nil {
			return nil, err
		}
		id = created.ID
		defer func() {
			if err := c.DeleteSession(id); err != nil {
				logger.Warn("deleting dry-run session", zap.String("session", id), zap.Error(err))
			}
		}()
	} else {
		var err error
		if id, err = ensureRemoteSession(c, filePath); err != nil {
			return nil, err
		}
	}

	info, err := c.GetSession(id)
	if client.IsNotFound(err) && !execDryRun {
		if id, err = c.RecreateSession(filePath); err == nil {
			info, err = c.GetSession(id)
		}
	}
	if err != nil {
		return nil, err
	}

	result := &execResult{File: filePath}
	for _, body := range commands {
		resp, err := c.ExecJSON(id, body)
		if err != nil {
			return nil, err
		}
		result.Reports = append(result.Reports, resp.Report)
		result.Revision = resp.Revision - info.Revision
		if !resp.OK() && !execKeepGoing {
			break
		}
	}

	if result.Revision == 0 && !execDiff {
		return result, nil
	}
	data, err := c.DownloadWorkbook(id)
	if err != nil {
		return nil, err
	}
	if execDiff {
		after, err := workbook.Read(bytes.NewReader(data), opts)
		if err != nil {
			return nil, err
		}
		result.Changes, result.diffTotal = diffStores(before, after)
	}
	if result.Revision > 0 && !execDryRun {
		c.ForgetSession(filePath)
		if err := writeFileAtomic(filePath, data); err != nil {
			return nil, err
		}
		if err := c.UpdateCachedSession(filePath, id, info.Revision+result.Revision); err != nil {
			logger.Warn("updating session cache", zap.Error(err))
		}
		result.Saved = true
	}
	return result, nil
}

// ensureRemoteSession starts from an empty session when the file does not
// exist yet.
func ensureRemoteSession(c *client.Client, filePath string) (string, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		info, err := c.CreateSession("")
		if err != nil {
			return "", err
		}
		return info.ID, nil
	}
	return c.EnsureSession(filePath)
}

func existingOrEmpty(filePath string) string {
	if _, err := os.Stat(filePath); err != nil {
		return ""
	}
	return filePath
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gridcmd-*.xlsx")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing workbook: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// resolveCommandSource returns the raw JSON commands from exactly one of
// --command, --script or --stdin.
func resolveCommandSource(cmd *cobra.Command, stdin io.Reader) ([][]byte, error) {
	commandSet := cmd.Flags().Changed("command")
	scriptSet := cmd.Flags().Changed("script")
	stdinSet := execStdin

	selected := 0
	for _, set := range []bool{commandSet, scriptSet, stdinSet} {
		if set {
			selected++
		}
	}
	if selected == 0 {
		return nil, fmt.Errorf("exactly one of --command, --script, or --stdin is required")
	}
	if selected > 1 {
		return nil, fmt.Errorf("--command, --script, and --stdin are mutually exclusive")
	}

	switch {
	case commandSet:
		if strings.TrimSpace(execCommand) == "" {
			return nil, fmt.Errorf("--command must not be empty")
		}
		return [][]byte{[]byte(execCommand)}, nil
	case scriptSet:
		if strings.TrimSpace(execScript) == "" {
			return nil, fmt.Errorf("--script requires a path")
		}
		f, err := os.Open(execScript)
		if err != nil {
			return nil, fmt.Errorf("reading script file: %w", err)
		}
		defer f.Close()
		return readCommandLines(f, "script")
	default:
		return readCommandLines(stdin, "--stdin")
	}
}

func readCommandLines(r io.Reader, source string) ([][]byte, error) {
	var out [][]byte
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, []byte(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s contains no commands", source)
	}
	return out, nil
}
