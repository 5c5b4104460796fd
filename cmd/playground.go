package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/witanlabs/gridcmd/client"
	"github.com/witanlabs/gridcmd/command"
	"github.com/witanlabs/gridcmd/internal"
	"github.com/witanlabs/gridcmd/reward"
	"github.com/witanlabs/gridcmd/session"
	"github.com/witanlabs/gridcmd/sheet"
	"github.com/witanlabs/gridcmd/workbook"
)

var playgroundRemote bool

var playgroundCmd = &cobra.Command{
	Use:   "playground <file>",
	Short: "Try JSON commands interactively",
	Long: `Start an interactive session over one worksheet.

Type a JSON command to run it and see its reward and feedback, or one of:
  help        list the operations and their parameters
  inspect     show the top-left corner of the sheet
  setup_demo  replace the sheet with a small employee table
  save        write the sheet to <file>
  clear       clear the screen
  exit, quit  leave without saving

A missing <file> starts an empty sheet. Nothing is written until 'save'.
With --remote the session runs on the gridcmd server.

Examples:
  gridcmd playground scratch.xlsx
  gridcmd playground projects.xlsx --remote --api-url http://localhost:8080`,
	Args: cobra.ExactArgs(1),
	RunE: runPlaygroundCmd,
}

func init() {
	playgroundCmd.Flags().BoolVar(&playgroundRemote, "remote", false, "Run the session on the gridcmd server (see --api-url)")
	rootCmd.AddCommand(playgroundCmd)
}

// playgroundBackend runs playground input against a local or remote session.
type playgroundBackend interface {
	Run(ctx context.Context, cmd []byte) (reward.Report, error)
	Snapshot(ctx context.Context) (*sheet.Store, error)
	Save(ctx context.Context) error
	Close() error
}

type localPlayground struct {
	path string
	opts workbook.Options
	sess *session.Session
}

func newLocalPlayground(path string, opts workbook.Options) (*localPlayground, error) {
	store, err := workbook.Load(path, opts)
	if err != nil {
		return nil, err
	}
	return &localPlayground{path: path, opts: opts, sess: session.New(store, logger)}, nil
}

func (p *localPlayground) Run(_ context.Context, cmd []byte) (reward.Report, error) {
	return p.sess.RunJSON(cmd), nil
}

func (p *localPlayground) Snapshot(context.Context) (*sheet.Store, error) {
	return p.sess.Snapshot(), nil
}

func (p *localPlayground) Save(context.Context) error {
	return workbook.Save(p.path, p.sess.Snapshot(), p.opts)
}

func (p *localPlayground) Close() error { return nil }

// remotePlayground sends commands over the websocket and uses plain HTTP for
// snapshots and downloads of the same session.
type remotePlayground struct {
	path string
	c    *client.Client
	id   string
	conn *client.Playground
}

func newRemotePlayground(ctx context.Context, c *client.Client, path string) (*remotePlayground, error) {
	info, err := c.CreateSession(existingOrEmpty(path))
	if err != nil {
		return nil, err
	}
	conn, err := c.DialPlayground(ctx, info.ID)
	if err != nil {
		_ = c.DeleteSession(info.ID)
		return nil, err
	}
	return &remotePlayground{path: path, c: c, id: info.ID, conn: conn}, nil
}

func (p *remotePlayground) Run(ctx context.Context, cmd []byte) (reward.Report, error) {
	resp, err := p.conn.Send(ctx, cmd)
	if err != nil {
		return reward.Report{}, err
	}
	return resp.Report, nil
}

func (p *remotePlayground) Snapshot(context.Context) (*sheet.Store, error) {
	info, err := p.c.GetSession(p.id)
	if err != nil {
		return nil, err
	}
	return sheet.FromRows(info.Cells), nil
}

func (p *remotePlayground) Save(context.Context) error {
	data, err := p.c.DownloadWorkbook(p.id)
	if err != nil {
		return err
	}
	return writeFileAtomic(p.path, data)
}

func (p *remotePlayground) Close() error {
	err := p.conn.Close()
	if derr := p.c.DeleteSession(p.id); derr != nil && err == nil {
		err = derr
	}
	return err
}

func runPlaygroundCmd(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var (
		b   playgroundBackend
		err error
	)
	if playgroundRemote {
		b, err = newRemotePlayground(ctx, newClient(args[0]), args[0])
	} else {
		b, err = newLocalPlayground(args[0], workbookOptions())
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("closing playground", zap.Error(err))
		}
	}()

	fmt.Printf("gridcmd playground on %s. Type 'help' for operations, 'exit' to leave.\n", args[0])
	return runPlayground(ctx, os.Stdin, os.Stdout, b)
}

// runPlayground reads one line at a time until exit, EOF or ctx is done.
func runPlayground(ctx context.Context, in io.Reader, out io.Writer, b playgroundBackend) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			printFunctions(out)
			printPlaygroundCommands(out)
		case "clear":
			fmt.Fprint(out, "\033[H\033[2J")
		case "inspect":
			store, err := b.Snapshot(ctx)
			if err != nil {
				return err
			}
			inspectStore(out, store)
		case "save":
			if err := b.Save(ctx); err != nil {
				fmt.Fprintf(out, "Save failed: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "Saved.")
		case "setup_demo":
			if err := setupDemo(ctx, out, b); err != nil {
				return err
			}
		default:
			rep, err := b.Run(ctx, []byte(line))
			if err != nil {
				return err
			}
			printReport(out, rep)
		}
	}
}

var demoRows = [][]any{
	{"ID", "Name", "Age", "Department", "Salary"},
	{1, "John Smith", 35, "Engineering", 75000},
	{2, "Mary Johnson", 42, "Finance", 82000},
	{3, "Robert Brown", 28, "Marketing", 65000},
	{4, "Michael Davis", 33, "HR", 68000},
	{5, "Jennifer Wilson", 38, "Operations", 72000},
}

// setupDemo replaces the sheet through ordinary commands, so it behaves the
// same on both backends.
func setupDemo(ctx context.Context, out io.Writer, b playgroundBackend) error {
	cmds := []command.Command{command.MustNew(string(command.ClearSheet), nil)}
	for i, row := range demoRows {
		cmds = append(cmds, command.MustNew(string(command.WriteRow), map[string]any{
			"row_index": i + 1,
			"row_data":  row,
		}))
	}
	for _, c := range cmds {
		rep, err := b.Run(ctx, []byte(c.JSON()))
		if err != nil {
			return err
		}
		if !rep.OK() {
			printReport(out, rep)
			return nil
		}
	}
	fmt.Fprintf(out, "Demo data ready: a header row and %d employees.\n", len(demoRows)-1)
	fmt.Fprintln(out, `Try: {"function_name": "excel_read_header_row"}`)
	return nil
}

const (
	inspectRows  = 6
	inspectCols  = 6
	inspectWidth = 12
)

func inspectStore(out io.Writer, store *sheet.Store) {
	if store.RowCount() == 0 {
		fmt.Fprintln(out, "Sheet is empty.")
		return
	}
	rows := min(inspectRows, store.RowCount())
	cols := min(inspectCols, max(store.ColumnCount(), 1))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for c := 1; c <= cols; c++ {
		fmt.Fprintf(tw, "\t%s", internal.ColToLetter(c))
	}
	fmt.Fprintln(tw)
	for r := 1; r <= rows; r++ {
		fmt.Fprintf(tw, "%d", r)
		for c := 1; c <= cols; c++ {
			v, _ := store.Cell(r, c)
			fmt.Fprintf(tw, "\t%s", truncate(displayValue(v), inspectWidth))
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "%d row(s) x %d column(s) in use.\n", store.RowCount(), store.ColumnCount())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func printPlaygroundCommands(out io.Writer) {
	fmt.Fprintln(out, `
Playground commands:
  help        show this list
  inspect     show the top-left corner of the sheet
  setup_demo  replace the sheet with a small employee table
  save        write the sheet to the workbook file
  clear       clear the screen
  exit, quit  leave without saving`)
}
