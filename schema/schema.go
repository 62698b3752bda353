// Package schema describes fixed-size binary rows.
//
// A Schema holds field definitions shared by every layout, the layouts
// themselves, and per-layout maps that project a layout's fields onto the
// canonical layout 0. Fields are packed without padding in the order they
// are added. Values are stored little-endian.
package schema

import (
	"encoding/binary"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/arr"
	"github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/internal/diag"
	"github.com/wippyai/rowarena/strbuf"
)

// FieldType is the kind of value a field holds.
type FieldType uint8

const (
	Int  FieldType = iota // unsigned little-endian integer
	Str                   // strbuf.Ref into a string pool
	Enum                  // one of the def's values
	Flag                  // bitset whose bit indices carry labels
)

func (t FieldType) String() string {
	switch t {
	case Int:
		return "int"
	case Str:
		return "str"
	case Enum:
		return "enum"
	case Flag:
		return "flag"
	}
	return fmt.Sprintf("FieldType(%d)", uint8(t))
}

// ParseFieldType maps a type name to its FieldType.
func ParseFieldType(s string) (FieldType, bool) {
	for t := Int; t <= Flag; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// StrRefSize is the stored size of a Str field.
const StrRefSize = 4

// MaxFlagSize is the widest Flag def. Every bit index fits the one-byte
// value of its label.
const MaxFlagSize = 32

// labelSize is the size of the label ref that follows each raw value.
const labelSize = 4

// FieldDef is a named, typed field shared across layouts.
type FieldDef struct {
	Type       FieldType
	Name       strbuf.Ref
	Size       int
	DisplayLen int
	// Vals holds [raw: Size bytes][label: strbuf.Ref] entries for Enum and Flag defs.
	Vals *arr.Raw
}

// Field places a def at a byte offset within a layout's rows.
type Field struct {
	Def    int
	Offset int
	Size   int
}

// Layout is an ordered set of packed fields.
type Layout struct {
	Fields  *arr.Arr[Field]
	RowSize int
}

// FieldMap projects one source field onto layout 0.
type FieldMap struct {
	Drop   bool
	Target int
}

// LayoutMap holds one FieldMap per field of a layout. Maps is nil until MapLayout runs.
type LayoutMap struct {
	Maps *arr.Arr[FieldMap]
}

// Schema owns defs, layouts, maps and the pool holding their names.
type Schema struct {
	cfg     rowarena.Config
	log     *zap.Logger
	defs    *arr.Arr[FieldDef]
	layouts *arr.Arr[Layout]
	maps    *arr.Arr[LayoutMap]
	strs    *strbuf.VBuf
}

// New creates an empty schema.
func New(opts ...rowarena.Option) (*Schema, error) {
	cfg := rowarena.Apply(opts...)
	s := &Schema{cfg: cfg, log: cfg.Logger}

	var err error
	if s.defs, err = arr.New[FieldDef](4, opts...); err != nil {
		return nil, err
	}
	if s.layouts, err = arr.New[Layout](1, opts...); err != nil {
		s.Free()
		return nil, err
	}
	if s.maps, err = arr.New[LayoutMap](1, opts...); err != nil {
		s.Free()
		return nil, err
	}
	if s.strs, err = strbuf.NewVBuf(64, opts...); err != nil {
		s.Free()
		return nil, err
	}
	return s, nil
}

// AddDef adds a field definition and returns its id. Str defs always occupy
// StrRefSize bytes. Enum and Flag defs get a value table sized for valsHint entries.
func (s *Schema) AddDef(typ FieldType, name string, size, valsHint int) (int, error) {
	if typ > Flag {
		return arr.NotFound, diag.Report(s.log, errors.New(errors.PhaseSchema, errors.KindInvalidInput).
			Path(name).
			Detail("unknown field type %d", typ).
			Build())
	}
	if typ == Str {
		size = StrRefSize
	}
	if size <= 0 {
		return arr.NotFound, diag.Report(s.log, errors.New(errors.PhaseSchema, errors.KindInvalidInput).
			Path(name).
			Detail("field size must be positive, got %d", size).
			Build())
	}

	if typ == Flag && size > MaxFlagSize {
		return arr.NotFound, diag.Report(s.log, errors.New(errors.PhaseSchema, errors.KindSizeMismatch).
			Path(name).
			Value(size).
			Detail("flag size %d exceeds %d bytes", size, MaxFlagSize).
			Build())
	}

	ref, err := s.strs.Intern(name)
	if err != nil {
		return arr.NotFound, err
	}
	def := FieldDef{Type: typ, Name: ref, Size: size}
	if typ == Enum || typ == Flag {
		if def.Vals, err = arr.NewRaw(valsHint, size+labelSize, s.cfg.Options()...); err != nil {
			return arr.NotFound, err
		}
	}
	id, err := s.defs.AddValue(def)
	if err != nil {
		if def.Vals != nil {
			def.Vals.Free()
		}
		return arr.NotFound, err
	}
	return id, nil
}

// Def returns def id. The pointer is invalidated by the next AddDef.
func (s *Schema) Def(id int) (*FieldDef, error) {
	d, err := s.defs.Get(id)
	if err != nil {
		return nil, diag.Report(s.log, errors.New(errors.PhaseSchema, errors.KindNotFound).
			Value(id).
			Detail("def %d not found", id).
			Cause(err).
			Build())
	}
	return d, nil
}

// FindDef returns the id of the first def named name, or arr.NotFound.
func (s *Schema) FindDef(name string) int {
	for i, d := range s.defs.All() {
		if s.strs.Equal(d.Name, []byte(name)) {
			return i
		}
	}
	return arr.NotFound
}

// Name returns the string behind a name or label ref.
func (s *Schema) Name(ref strbuf.Ref) string { return s.strs.String(ref) }

// DefName returns the name of def id, or "" when it does not exist.
func (s *Schema) DefName(id int) string {
	d, err := s.defs.Get(id)
	if err != nil {
		return ""
	}
	return s.strs.String(d.Name)
}

// AddLayout adds an empty layout with room for fieldsHint fields and returns its id.
func (s *Schema) AddLayout(fieldsHint int) (int, error) {
	fields, err := arr.New[Field](fieldsHint, s.cfg.Options()...)
	if err != nil {
		return arr.NotFound, err
	}
	id, err := s.layouts.AddValue(Layout{Fields: fields})
	if err != nil {
		fields.Free()
		return arr.NotFound, err
	}
	if _, err := s.maps.AddValue(LayoutMap{}); err != nil {
		s.layouts.Truncate(id)
		fields.Free()
		return arr.NotFound, err
	}
	return id, nil
}

// Layout returns layout id. The pointer is invalidated by the next AddLayout.
func (s *Schema) Layout(id int) (*Layout, error) {
	l, err := s.layouts.Get(id)
	if err != nil {
		return nil, diag.Report(s.log, errors.New(errors.PhaseSchema, errors.KindNotFound).
			Value(id).
			Detail("layout %d not found", id).
			Cause(err).
			Build())
	}
	return l, nil
}

// AddField appends def to layout at the layout's current row size and returns
// the field id. A size of 0 takes the def's size; Str fields always take StrRefSize.
// Enum and Flag fields may be narrower than their def but not wider.
func (s *Schema) AddField(layout, def, size int) (int, error) {
	l, err := s.Layout(layout)
	if err != nil {
		return arr.NotFound, err
	}
	d, err := s.Def(def)
	if err != nil {
		return arr.NotFound, err
	}
	if size <= 0 || d.Type == Str {
		size = d.Size
	}
	if (d.Type == Enum || d.Type == Flag) && size > d.Size {
		return arr.NotFound, diag.Report(s.log, errors.New(errors.PhaseSchema, errors.KindSizeMismatch).
			Path(s.strs.String(d.Name)).
			Value(size).
			Detail("%s field of %d bytes is wider than its %d-byte def", d.Type, size, d.Size).
			Build())
	}
	id, err := l.Fields.AddValue(Field{Def: def, Offset: l.RowSize, Size: size})
	if err != nil {
		return arr.NotFound, err
	}
	l.RowSize += size
	return id, nil
}

// Field returns field id of layout.
func (s *Schema) Field(layout, id int) (Field, error) {
	l, err := s.Layout(layout)
	if err != nil {
		return Field{}, err
	}
	f, err := l.Fields.Value(id)
	if err != nil {
		return Field{}, diag.Report(s.log, errors.New(errors.PhaseSchema, errors.KindNotFound).
			Value(id).
			Detail("field %d not found in layout %d", id, layout).
			Cause(err).
			Build())
	}
	return f, nil
}

// FindField returns the id of the field of layout whose def is named name, or arr.NotFound.
func (s *Schema) FindField(layout int, name string) int {
	l, err := s.layouts.Get(layout)
	if err != nil {
		return arr.NotFound
	}
	for i, f := range l.Fields.All() {
		if s.DefName(f.Def) == name {
			return i
		}
	}
	return arr.NotFound
}

// NumDefs returns the number of defs.
func (s *Schema) NumDefs() int { return s.defs.Len() }

// NumLayouts returns the number of layouts.
func (s *Schema) NumLayouts() int { return s.layouts.Len() }

// AddVal adds a labelled value to an Enum or Flag def. raw is zero-extended to
// the def's size; for Flag defs its first byte is the bit index. The def's
// DisplayLen grows to fit label.
func (s *Schema) AddVal(def int, label string, raw []byte) (int, error) {
	d, err := s.Def(def)
	if err != nil {
		return arr.NotFound, err
	}
	if d.Vals == nil {
		return arr.NotFound, diag.Report(s.log, errors.TypeMismatch(errors.PhaseSchema,
			[]string{s.strs.String(d.Name)}, d.Type.String(), "enum or flag"))
	}
	if len(raw) > d.Size {
		return arr.NotFound, diag.Report(s.log, errors.SizeMismatch(errors.PhaseSchema, len(raw), d.Size))
	}
	if d.Type == Flag && len(raw) > 1 && slices.ContainsFunc(raw[1:], func(b byte) bool { return b != 0 }) {
		return arr.NotFound, diag.Report(s.log, errors.New(errors.PhaseSchema, errors.KindInvalidInput).
			Path(s.strs.String(d.Name), label).
			Detail("flag bit index must fit one byte").
			Build())
	}

	ref, err := s.strs.Intern(label)
	if err != nil {
		return arr.NotFound, err
	}
	// Interning may not move d: it lives in s.defs, not the pool.
	id, slot, err := d.Vals.Add()
	if err != nil {
		return arr.NotFound, err
	}
	copy(slot, raw)
	binary.LittleEndian.PutUint32(slot[d.Size:], uint32(ref))
	d.DisplayLen = max(d.DisplayLen, len(label))
	return id, nil
}

// AddValUint adds a labelled value given as an integer.
func (s *Schema) AddValUint(def int, label string, v uint64) (int, error) {
	d, err := s.Def(def)
	if err != nil {
		return arr.NotFound, err
	}
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], v)
	return s.AddVal(def, label, raw[:min(d.Size, 8)])
}

// Strings returns the pool holding def names and value labels.
func (s *Schema) Strings() *strbuf.VBuf { return s.strs }

// Free releases every def, layout and map together with the name pool.
func (s *Schema) Free() {
	if s.defs != nil {
		for _, d := range s.defs.All() {
			if d.Vals != nil {
				d.Vals.Free()
				d.Vals = nil
			}
		}
		s.defs.Free()
	}
	if s.layouts != nil {
		for _, l := range s.layouts.All() {
			l.Fields.Free()
		}
		s.layouts.Free()
	}
	if s.maps != nil {
		for _, m := range s.maps.All() {
			if m.Maps != nil {
				m.Maps.Free()
				m.Maps = nil
			}
		}
		s.maps.Free()
	}
	if s.strs != nil {
		s.strs.Free()
	}
}
