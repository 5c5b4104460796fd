package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/witanlabs/gridcmd/command"
	"github.com/witanlabs/gridcmd/sheet"
)

// DefaultTableName keys the table inside an example's context.
const DefaultTableName = "PROJECTS"

// Table is a header row plus data rows.
type Table struct {
	Headers []string        `json:"headers"`
	Rows    [][]sheet.Value `json:"rows"`
}

// FunctionCall is the command an example expects, with the cell it resolves
// to and the value that cell holds after execution.
type FunctionCall struct {
	FunctionName      string                     `json:"function_name"`
	Parameters        map[string]json.RawMessage `json:"parameters"`
	TargetCell        string                     `json:"target_cell"`
	ExpectedCellValue sheet.Value                `json:"expected_cell_value"`
}

// Example is one training example.
type Example struct {
	ID            string           `json:"id"`
	Instruction   string           `json:"instruction"`
	Context       map[string]Table `json:"context"`
	FunctionCall  FunctionCall     `json:"function_call"`
	ExcelFilePath string           `json:"excel_file_path"`
}

// Builder produces lookup-update examples from a store.
type Builder struct {
	KeyHeader string
	TableName string
	FilePath  string

	rng      *rand.Rand
	values   *ValueGenerator
	renderer *Renderer
	log      *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

func WithKeyHeader(h string) BuilderOption { return func(b *Builder) { b.KeyHeader = h } }
func WithTableName(n string) BuilderOption { return func(b *Builder) { b.TableName = n } }
func WithFilePath(p string) BuilderOption  { return func(b *Builder) { b.FilePath = p } }
func WithRenderer(r *Renderer) BuilderOption {
	return func(b *Builder) { b.renderer = r }
}
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.log = l }
}

// NewBuilder returns a builder drawing randomness from rng.
func NewBuilder(rng *rand.Rand, opts ...BuilderOption) (*Builder, error) {
	b := &Builder{
		KeyHeader: DefaultKeyHeader,
		TableName: DefaultTableName,
		rng:       rng,
		values:    NewValueGenerator(rng),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.renderer == nil {
		r, err := NewRenderer()
		if err != nil {
			return nil, err
		}
		b.renderer = r
	}
	return b, nil
}

// Build returns up to n examples, each for a different data row chosen at
// random. Every example's command is executed on a clone of store, so
// target_cell and expected_cell_value are what the dispatcher reports.
func (b *Builder) Build(store *sheet.Store, n int) ([]Example, error) {
	keyCol, err := store.ColumnIndexByHeader(b.KeyHeader)
	if err != nil {
		return nil, err
	}
	headers := sheet.Strings(store.HeaderRow())

	var targets []int
	for i, h := range headers {
		if i+1 != keyCol && h != "" {
			targets = append(targets, i+1)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no columns to update besides %q", b.KeyHeader)
	}

	keys, err := store.Column(keyCol)
	if err != nil {
		return nil, err
	}
	var rows []int
	for r := 2; r <= len(keys); r++ {
		if !keys[r-1].IsEmpty() {
			rows = append(rows, r)
		}
	}
	b.rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	if n < len(rows) {
		rows = rows[:n]
	}

	out := make([]Example, 0, len(rows))
	for _, row := range rows {
		ex, err := b.example(store, headers, keyCol, targets[b.rng.IntN(len(targets))], row)
		if err != nil {
			b.log.Warn("skipping row", zap.Int("row", row), zap.Error(err))
			continue
		}
		out = append(out, ex)
	}
	b.log.Info("built examples", zap.Int("requested", n), zap.Int("built", len(out)))
	return out, nil
}

func (b *Builder) example(store *sheet.Store, headers []string, keyCol, col, row int) (Example, error) {
	key, _ := store.Cell(row, keyCol)
	current, _ := store.Cell(row, col)
	column, err := store.Column(col)
	if err != nil {
		return Example{}, err
	}
	newValue := b.values.Propose(column[1:], current)

	cmd, err := command.New(string(command.UpdateCellByLookup), map[string]any{
		"row_header": b.KeyHeader,
		"row_value":  key,
		"col_header": headers[col-1],
		"new_value":  newValue,
	})
	if err != nil {
		return Example{}, err
	}
	out := command.NewDispatcher(store.Clone()).Execute(cmd)
	if err := out.Err(); err != nil {
		return Example{}, err
	}

	instruction, err := b.renderer.Render(b.rng, InstructionData{
		KeyHeader: b.KeyHeader,
		Key:       key.String(),
		Column:    headers[col-1],
		Value:     newValue.String(),
		Previous:  current.String(),
	})
	if err != nil {
		return Example{}, err
	}

	rowValues, _ := store.Row(row)
	return Example{
		ID:          uuid.NewString(),
		Instruction: instruction,
		Context: map[string]Table{
			b.TableName: {Headers: headers, Rows: [][]sheet.Value{rowValues}},
		},
		FunctionCall: FunctionCall{
			FunctionName:      cmd.FunctionName,
			Parameters:        cmd.Parameters,
			TargetCell:        out.Result.TargetCell,
			ExpectedCellValue: *out.Result.ExpectedCellValue,
		},
		ExcelFilePath: b.FilePath,
	}, nil
}

// WriteJSONL writes one example per line.
func WriteJSONL(w io.Writer, examples []Example) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range examples {
		if err := enc.Encode(&examples[i]); err != nil {
			return fmt.Errorf("encoding example %d: %w", i, err)
		}
	}
	return nil
}
