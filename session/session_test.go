package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/witanlabs/gridcmd/command"
	"github.com/witanlabs/gridcmd/sheet"
)

func TestSession_RunCountsMutations(t *testing.T) {
	s := New(nil, nil)
	require.NotEmpty(t, s.ID)

	rep := s.Run(command.MustNew("excel_write_row", map[string]any{"row_index": 1, "row_data": []string{"Project Name", "Status"}}))
	require.True(t, rep.OK(), rep.Feedback)
	rep = s.Run(command.MustNew("excel_read_header_row", nil))
	require.True(t, rep.OK(), rep.Feedback)
	rep = s.Run(command.MustNew("excel_clear_row", map[string]any{"row_index": 5}))
	require.False(t, rep.OK())

	assert.Equal(t, 1, s.Revision(), "only successful mutations count")
}

func TestSession_RunJSON(t *testing.T) {
	s := New(sheet.FromStrings([][]string{{"Project Name", "Status"}, {"Project-123", "Planning"}}), nil)

	rep := s.RunJSON([]byte(`{"function_name":"excel_update_cell_by_lookup","parameters":{"row_header":"Project Name","row_value":"Project-123","col_header":"Status","new_value":"In Progress"}}`))
	require.True(t, rep.OK(), rep.Feedback)
	assert.Equal(t, "B2", rep.TargetCell)

	rep = s.RunJSON([]byte(`not json`))
	assert.False(t, rep.OK())
	assert.Contains(t, rep.Feedback, "ValidationError")
}

func TestSession_SnapshotIsIndependent(t *testing.T) {
	s := New(sheet.FromStrings([][]string{{"a"}}), nil)
	snap := s.Snapshot()
	require.NoError(t, snap.SetCell(1, 1, sheet.Text("changed")))

	s.View(func(st *sheet.Store) {
		v, _ := st.Cell(1, 1)
		assert.Equal(t, "a", v.String())
	})
}

func TestSession_ConcurrentRunsAreSerialized(t *testing.T) {
	s := New(nil, nil)
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Run(command.MustNew("excel_add_row", map[string]any{"row_index": "next_available", "text": fmt.Sprint(i)}))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, s.Revision())
	assert.Equal(t, n, s.Snapshot().RowCount())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Create(nil)
	b := r.Create(sheet.FromStrings([][]string{{"x"}}))
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get(b.ID)
	require.True(t, ok)
	assert.Same(t, b, got)

	a.Run(command.MustNew("excel_write_cell", map[string]any{"row_index": 1, "col_index": 1, "text": "only in a"}))
	assert.Equal(t, 1, b.Snapshot().RowCount())
	v, _ := b.Snapshot().Cell(1, 1)
	assert.Equal(t, "x", v.String(), "sessions never share a store")

	assert.True(t, r.Delete(a.ID))
	assert.False(t, r.Delete(a.ID))
	_, ok = r.Get(a.ID)
	assert.False(t, ok)

	assert.Equal(t, 1, r.Expire(time.Now().Add(time.Minute)))
	assert.Equal(t, 0, r.Len())
}
