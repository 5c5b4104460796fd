package command

import (
	"errors"

	"go.uber.org/zap"

	"github.com/witanlabs/gridcmd/lookup"
	"github.com/witanlabs/gridcmd/sheet"
)

type handler func(d *Dispatcher, c Call) (*Result, error)

type operation struct {
	params  []param
	mutates bool
	run     handler
}

// operations is the closed schema table. Validate rejects every name not
// listed here.
var operations = map[Name]operation{
	ClearSheet: {mutates: true, run: (*Dispatcher).clearSheet},
	AddRow: {
		params:  []param{{"row_index", rowOrNextParam}, {"text", cellParam}},
		mutates: true, run: (*Dispatcher).addRow,
	},
	WriteCell: {
		params:  []param{{"row_index", rowParam}, {"col_index", colParam}, {"text", cellParam}},
		mutates: true, run: (*Dispatcher).writeCell,
	},
	WriteRow: {
		params:  []param{{"row_index", rowParam}, {"row_data", listParam}},
		mutates: true, run: (*Dispatcher).writeRow,
	},
	ClearCell: {
		params:  []param{{"row_index", rowParam}, {"col_index", colParam}},
		mutates: true, run: (*Dispatcher).clearCell,
	},
	ClearRow:      {params: []param{{"row_index", rowParam}}, mutates: true, run: (*Dispatcher).clearRow},
	ClearColumn:   {params: []param{{"col_index", colParam}}, mutates: true, run: (*Dispatcher).clearColumn},
	ReadHeaderRow: {run: (*Dispatcher).readHeaderRow},
	ReadColumn:    {params: []param{{"col_index", colParam}}, run: (*Dispatcher).readColumn},
	ReadCell:      {params: []param{{"row_index", rowParam}, {"col_index", colParam}}, run: (*Dispatcher).readCell},
	ReadRow:       {params: []param{{"row_index", rowParam}}, run: (*Dispatcher).readRow},
	GetColumnIndexByHeader: {
		params: []param{{"header_name", headerParam}},
		run:    (*Dispatcher).getColumnIndexByHeader,
	},
	GetRowIndexByValue: {
		params: []param{{"col_index", colParam}, {"search_value", lookupParam}},
		run:    (*Dispatcher).getRowIndexByValue,
	},
	UpdateCellByLookup: {
		params: []param{
			{"row_header", headerParam}, {"row_value", lookupParam},
			{"col_header", headerParam}, {"new_value", cellParam},
		},
		mutates: true, run: (*Dispatcher).updateCellByLookup,
	},
}

// Result is the success payload of one dispatch. Which fields are set
// depends on the operation.
type Result struct {
	// Ref is the single cell read or written, e.g. "B2".
	Ref   string       `json:"ref,omitempty"`
	Row   int          `json:"row,omitempty"`
	Col   int          `json:"col,omitempty"`
	Value *sheet.Value `json:"value,omitempty"`
	// Values holds the row, column or header contents that were read, the
	// data written by write_row, or the contents removed by a clear.
	Values []sheet.Value `json:"values,omitempty"`
	Index  int           `json:"index,omitempty"`

	Previous          *sheet.Value `json:"previous,omitempty"`
	TargetCell        string       `json:"target_cell,omitempty"`
	ExpectedCellValue *sheet.Value `json:"expected_cell_value,omitempty"`

	// Dimensions of the sheet before excel_clear_sheet.
	ClearedRows    int `json:"cleared_rows,omitempty"`
	ClearedColumns int `json:"cleared_columns,omitempty"`
}

// Failure is a classified error surfaced as data.
type Failure struct {
	Kind    sheet.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Outcome is the result of one dispatch: exactly one of Result and Failure
// is set.
type Outcome struct {
	Function string   `json:"function_name"`
	Call     Call     `json:"-"`
	Result   *Result  `json:"result,omitempty"`
	Failure  *Failure `json:"failure,omitempty"`
}

// OK reports whether the command succeeded.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Err returns the failure as an error, or nil.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

// Mutated reports whether a successful dispatch changed the store.
func (o Outcome) Mutated() bool {
	return o.OK() && o.Call.Name.Mutates()
}

// FailureOf classifies err. Errors outside the taxonomy are reported as
// validation errors.
func FailureOf(err error) *Failure {
	var se *sheet.Error
	if errors.As(err, &se) {
		msg := se.Message
		if se.Cause != nil {
			msg += ": " + se.Cause.Error()
		}
		return &Failure{Kind: se.Kind, Message: msg}
	}
	return &Failure{Kind: sheet.KindValidation, Message: err.Error()}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for per-dispatch debug logs.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// Dispatcher runs commands against one store. It is not safe for concurrent
// use; callers serialize access the same way they own the store.
type Dispatcher struct {
	store    *sheet.Store
	resolver *lookup.Resolver
	log      *zap.Logger
}

// NewDispatcher returns a dispatcher bound to store.
func NewDispatcher(store *sheet.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		resolver: lookup.New(store),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Store returns the store the dispatcher mutates.
func (d *Dispatcher) Store() *sheet.Store {
	return d.store
}

// Execute validates cmd in full and then runs exactly one handler. Every
// failure is returned inside the Outcome.
func (d *Dispatcher) Execute(cmd Command) Outcome {
	out := Outcome{Function: cmd.FunctionName}
	call, err := Validate(cmd)
	if err != nil {
		out.Failure = FailureOf(err)
		d.logOutcome(out)
		return out
	}
	out.Call = call
	out.Function = string(call.Name)
	res, err := operations[call.Name].run(d, call)
	if err != nil {
		out.Failure = FailureOf(err)
	} else {
		out.Result = res
	}
	d.logOutcome(out)
	return out
}

// ExecuteJSON parses data as a command and executes it.
func (d *Dispatcher) ExecuteJSON(data []byte) Outcome {
	cmd, err := Parse(data)
	if err != nil {
		out := Outcome{Failure: FailureOf(err)}
		d.logOutcome(out)
		return out
	}
	return d.Execute(cmd)
}

func (d *Dispatcher) logOutcome(o Outcome) {
	if o.OK() {
		d.log.Debug("dispatch", zap.String("function", o.Function), zap.String("outcome", "ok"))
		return
	}
	d.log.Debug("dispatch",
		zap.String("function", o.Function),
		zap.String("outcome", string(o.Failure.Kind)),
		zap.String("message", o.Failure.Message))
}

func valuePtr(v sheet.Value) *sheet.Value {
	return &v
}

func (d *Dispatcher) clearSheet(Call) (*Result, error) {
	res := &Result{ClearedRows: d.store.RowCount(), ClearedColumns: d.store.ColumnCount()}
	d.store.ClearSheet()
	return res, nil
}

func (d *Dispatcher) addRow(c Call) (*Result, error) {
	row := c.Row
	if c.NextAvailable {
		row = d.store.AppendRow(c.Value)
	} else if err := d.store.InsertRow(row, c.Value); err != nil {
		return nil, err
	}
	return &Result{Ref: sheet.CellRef(row, 1), Row: row, Col: 1, Value: valuePtr(c.Value)}, nil
}

func (d *Dispatcher) writeCell(c Call) (*Result, error) {
	prev, err := d.store.Cell(c.Row, c.Col)
	if err != nil {
		return nil, err
	}
	if err := d.store.SetCell(c.Row, c.Col, c.Value); err != nil {
		return nil, err
	}
	got, err := d.store.Cell(c.Row, c.Col)
	if err != nil {
		return nil, err
	}
	return &Result{
		Ref: sheet.CellRef(c.Row, c.Col), Row: c.Row, Col: c.Col,
		Value: valuePtr(got), Previous: valuePtr(prev),
	}, nil
}

func (d *Dispatcher) writeRow(c Call) (*Result, error) {
	if err := d.store.WriteRow(c.Row, c.Values); err != nil {
		return nil, err
	}
	return &Result{Row: c.Row, Values: c.Values}, nil
}

func (d *Dispatcher) clearCell(c Call) (*Result, error) {
	prev, err := d.store.Cell(c.Row, c.Col)
	if err != nil {
		return nil, err
	}
	if err := d.store.ClearCell(c.Row, c.Col); err != nil {
		return nil, err
	}
	return &Result{Ref: sheet.CellRef(c.Row, c.Col), Row: c.Row, Col: c.Col, Previous: valuePtr(prev)}, nil
}

func (d *Dispatcher) clearRow(c Call) (*Result, error) {
	if c.Row > d.store.RowCount() {
		return nil, sheet.Errorf(sheet.KindRange, "row %d is out of range (sheet has %d rows)", c.Row, d.store.RowCount())
	}
	removed, err := d.store.Row(c.Row)
	if err != nil {
		return nil, err
	}
	if err := d.store.ClearRow(c.Row); err != nil {
		return nil, err
	}
	return &Result{Row: c.Row, Values: removed}, nil
}

func (d *Dispatcher) clearColumn(c Call) (*Result, error) {
	if w := d.store.ColumnCount(); c.Col > w {
		letter, _ := sheet.ColumnLetter(c.Col)
		return nil, sheet.Errorf(sheet.KindRange, "column %s (index %d) is out of range (sheet has %d columns)", letter, c.Col, w)
	}
	removed, err := d.store.Column(c.Col)
	if err != nil {
		return nil, err
	}
	if err := d.store.ClearColumn(c.Col); err != nil {
		return nil, err
	}
	return &Result{Col: c.Col, Values: removed}, nil
}

func (d *Dispatcher) readHeaderRow(Call) (*Result, error) {
	return &Result{Row: 1, Values: d.store.HeaderRow()}, nil
}

func (d *Dispatcher) readColumn(c Call) (*Result, error) {
	col, err := d.store.Column(c.Col)
	if err != nil {
		return nil, err
	}
	return &Result{Col: c.Col, Values: col}, nil
}

func (d *Dispatcher) readCell(c Call) (*Result, error) {
	v, err := d.store.Cell(c.Row, c.Col)
	if err != nil {
		return nil, err
	}
	return &Result{Ref: sheet.CellRef(c.Row, c.Col), Row: c.Row, Col: c.Col, Value: valuePtr(v)}, nil
}

func (d *Dispatcher) readRow(c Call) (*Result, error) {
	row, err := d.store.Row(c.Row)
	if err != nil {
		return nil, err
	}
	return &Result{Row: c.Row, Values: row}, nil
}

func (d *Dispatcher) getColumnIndexByHeader(c Call) (*Result, error) {
	idx, err := d.store.ColumnIndexByHeader(c.Header)
	if err != nil {
		return nil, err
	}
	return &Result{Col: idx, Index: idx}, nil
}

func (d *Dispatcher) getRowIndexByValue(c Call) (*Result, error) {
	idx, err := d.resolver.RowIndexByValue(c.Col, c.Lookup)
	if err != nil {
		return nil, err
	}
	return &Result{Ref: sheet.CellRef(idx, c.Col), Row: idx, Col: c.Col, Index: idx}, nil
}

func (d *Dispatcher) updateCellByLookup(c Call) (*Result, error) {
	u, err := d.resolver.UpdateCell(c.RowHeader, c.Lookup, c.ColHeader, c.Value)
	if err != nil {
		return nil, err
	}
	return &Result{
		Ref: u.Ref, Row: u.Row, Col: u.Col,
		Previous:          valuePtr(u.Previous),
		TargetCell:        u.Ref,
		ExpectedCellValue: valuePtr(u.Expected),
	}, nil
}
