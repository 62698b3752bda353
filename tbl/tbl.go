// Package tbl binds a schema's layout 0 to row storage and a string pool.
//
// Rows are always stored in layout 0. Cells may be written through any mapped
// layout; schema.Schema.SetVal projects them. String cells hold a strbuf.Ref
// into the table's own pool.
package tbl

import (
	"encoding/binary"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/arr"
	"github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/internal/diag"
	"github.com/wippyai/rowarena/schema"
	"github.com/wippyai/rowarena/strbuf"
)

// Tbl is a schema with rows.
type Tbl struct {
	*schema.Schema
	cfg  rowarena.Config
	log  *zap.Logger
	rows *arr.Raw
	strs *strbuf.VBuf
}

// New creates a table with an empty schema. Define layout 0 before InitRows.
func New(opts ...rowarena.Option) (*Tbl, error) {
	cfg := rowarena.Apply(opts...)
	s, err := schema.New(opts...)
	if err != nil {
		return nil, err
	}
	strs, err := strbuf.NewVBuf(64, opts...)
	if err != nil {
		s.Free()
		return nil, err
	}
	// Ref 0 is the empty string so zeroed cells render empty.
	if _, err := strs.Add(""); err != nil {
		strs.Free()
		s.Free()
		return nil, err
	}
	return &Tbl{Schema: s, cfg: cfg, log: cfg.Logger, strs: strs}, nil
}

// InitRows allocates row storage for capHint rows of layout 0's size.
// Fields added to layout 0 afterwards are not reflected in the row size.
func (t *Tbl) InitRows(capHint int) error {
	if t.rows != nil {
		return diag.Report(t.log, errors.InvalidInput(errors.PhaseTbl, "rows already initialized"))
	}
	l, err := t.Layout(0)
	if err != nil {
		return err
	}
	if l.RowSize == 0 {
		return diag.Report(t.log, errors.InvalidInput(errors.PhaseTbl, "layout 0 has no fields"))
	}
	rows, err := arr.NewRaw(capHint, l.RowSize, t.cfg.Options()...)
	if err != nil {
		return err
	}
	t.rows = rows
	return nil
}

func (t *Tbl) initialized() error {
	if t.rows == nil {
		return diag.Report(t.log, errors.InvalidInput(errors.PhaseTbl, "rows not initialized"))
	}
	return nil
}

// AddRow appends a zeroed row and returns its id.
func (t *Tbl) AddRow() (int, error) {
	if err := t.initialized(); err != nil {
		return arr.NotFound, err
	}
	id, _, err := t.rows.Add()
	return id, err
}

// Row returns a view of row id. The view is invalidated by the next AddRow.
func (t *Tbl) Row(id int) ([]byte, error) {
	if err := t.initialized(); err != nil {
		return nil, err
	}
	return t.rows.Get(id)
}

// Rows returns the number of rows.
func (t *Tbl) Rows() int {
	if t.rows == nil {
		return 0
	}
	return t.rows.Len()
}

// Pool returns the pool holding string cell values.
func (t *Tbl) Pool() *strbuf.VBuf { return t.strs }

// SetCell writes val for field of layout into row, then widens the target
// def's DisplayLen to fit the rendered value.
func (t *Tbl) SetCell(row, layout, field int, val []byte) error {
	r, err := t.Row(row)
	if err != nil {
		return err
	}
	if err := t.SetVal(layout, field, r, val); err != nil {
		return err
	}
	return t.widen(layout, field, r)
}

// SetCellUint writes v as a little-endian integer.
func (t *Tbl) SetCellUint(row, layout, field int, v uint64) error {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], v)
	return t.SetCell(row, layout, field, raw[:])
}

// SetCellStr interns s in the table's pool and stores its ref in the cell.
func (t *Tbl) SetCellStr(row, layout, field int, s string) error {
	fm, err := t.Schema.Map(layout, field)
	if err != nil {
		return err
	}
	if fm.Drop {
		return nil
	}
	f, err := t.Field(0, fm.Target)
	if err != nil {
		return err
	}
	d, err := t.Def(f.Def)
	if err != nil {
		return err
	}
	if d.Type != schema.Str {
		return diag.Report(t.log, errors.TypeMismatch(errors.PhaseTbl,
			[]string{t.DefName(f.Def)}, d.Type.String(), schema.Str.String()))
	}

	ref, err := t.strs.Intern(s)
	if err != nil {
		return err
	}
	return t.SetCellUint(row, layout, field, uint64(ref))
}

func (t *Tbl) widen(layout, field int, row []byte) error {
	fm, _ := t.Schema.Map(layout, field)
	if fm.Drop {
		return nil
	}
	f, _ := t.Field(0, fm.Target)
	raw, err := t.GetVal(fm.Target, row)
	if err != nil {
		return err
	}
	s, err := t.FormatVal(f.Def, raw, t.strs)
	if err != nil {
		return err
	}
	d, _ := t.Def(f.Def)
	d.DisplayLen = max(d.DisplayLen, len(s))
	return nil
}

// GetCell returns a view of field of layout 0 in row.
func (t *Tbl) GetCell(row, field int) ([]byte, error) {
	r, err := t.Row(row)
	if err != nil {
		return nil, err
	}
	return t.GetVal(field, r)
}

// GetCellUint decodes field of layout 0 in row as a little-endian integer.
func (t *Tbl) GetCellUint(row, field int) (uint64, error) {
	raw, err := t.GetCell(row, field)
	if err != nil {
		return 0, err
	}
	return schema.Uint(raw), nil
}

// GetCellStr renders field of layout 0 in row.
func (t *Tbl) GetCellStr(row, field int) (string, error) {
	raw, err := t.GetCell(row, field)
	if err != nil {
		return "", err
	}
	f, _ := t.Field(0, field)
	return t.FormatVal(f.Def, raw, t.strs)
}

// MapFunc transforms one row's src cell into its zeroed dst cell.
type MapFunc func(row int, src, dst []byte) error

// Map runs fn over every row, reading field from and writing field to of
// layout 0. It stops at the first error fn returns.
func (t *Tbl) Map(from, to int, fn MapFunc) error {
	if err := t.initialized(); err != nil {
		return err
	}
	if _, err := t.Field(0, from); err != nil {
		return err
	}
	if _, err := t.Field(0, to); err != nil {
		return err
	}
	for i, r := range t.rows.All() {
		src, _ := t.GetVal(from, r)
		dst, _ := t.GetVal(to, r)
		clear(dst)
		if err := fn(i, src, dst); err != nil {
			return err
		}
		if err := t.widen(0, to, r); err != nil {
			return err
		}
	}
	return nil
}

// Print writes a header of field names and every row, each column padded to
// the wider of its def's DisplayLen and its name and separated by one space.
// The last column is not padded.
func (t *Tbl) Print(w io.Writer) error {
	l, err := t.Layout(0)
	if err != nil {
		return err
	}
	fields := l.Fields.Slice()

	widths := make([]int, len(fields))
	header := make([]string, len(fields))
	for i, f := range fields {
		d, _ := t.Def(f.Def)
		header[i] = t.DefName(f.Def)
		widths[i] = max(d.DisplayLen, len(header[i]))
	}
	if err := writeLine(w, header, widths); err != nil {
		return err
	}

	cells := make([]string, len(fields))
	for i := 0; i < t.Rows(); i++ {
		for j := range fields {
			if cells[j], err = t.GetCellStr(i, j); err != nil {
				return err
			}
		}
		if err := writeLine(w, cells, widths); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(w io.Writer, cells []string, widths []int) error {
	var sb strings.Builder
	for i, c := range cells {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(c)
		if i < len(cells)-1 && len(c) < widths[i] {
			sb.WriteString(strings.Repeat(" ", widths[i]-len(c)))
		}
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

// Free releases rows, the string pool and the schema.
func (t *Tbl) Free() {
	if t.rows != nil {
		t.rows.Free()
		t.rows = nil
	}
	t.strs.Free()
	t.Schema.Free()
}
