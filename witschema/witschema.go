// Package witschema derives schema defs and layouts from WIT type definitions.
//
// A WIT record becomes a layout with one packed field per record field.
// Scalars become Int fields of their canonical ABI size, strings become Str
// fields, enums become Enum defs valued by case index and flags become Flag
// defs labelled by bit index. Defs are shared by name, so two records with a
// field of the same name and kind map onto each other.
package witschema

import (
	"fmt"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/arr"
	"github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/internal/diag"
	"github.com/wippyai/rowarena/schema"
)

// Builder adds WIT-derived defs and layouts to a schema.
type Builder struct {
	s   *schema.Schema
	log *zap.Logger
}

// New returns a builder writing into s.
func New(s *schema.Schema, opts ...rowarena.Option) *Builder {
	return &Builder{s: s, log: rowarena.Apply(opts...).Logger}
}

type shape struct {
	typ  schema.FieldType
	size int
	vals []string // case or flag names, indexed by raw value
}

func (b *Builder) shapeOf(t wit.Type, path []string) (shape, error) {
	switch typ := t.(type) {
	case wit.Bool, wit.U8, wit.S8:
		return shape{typ: schema.Int, size: 1}, nil
	case wit.U16, wit.S16:
		return shape{typ: schema.Int, size: 2}, nil
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return shape{typ: schema.Int, size: 4}, nil
	case wit.U64, wit.S64, wit.F64:
		return shape{typ: schema.Int, size: 8}, nil
	case wit.String:
		return shape{typ: schema.Str, size: schema.StrRefSize}, nil
	case *wit.TypeDef:
		return b.shapeOfTypeDef(typ, path)
	}
	return shape{}, b.unsupported(t, path)
}

func (b *Builder) shapeOfTypeDef(td *wit.TypeDef, path []string) (shape, error) {
	switch kind := td.Kind.(type) {
	case *wit.Enum:
		names := make([]string, len(kind.Cases))
		for i, c := range kind.Cases {
			names[i] = c.Name
		}
		return shape{typ: schema.Enum, size: discriminantSize(len(names)), vals: names}, nil
	case *wit.Flags:
		size := flagsSize(len(kind.Flags))
		if size == 0 {
			return shape{}, diag.Report(b.log, errors.New(errors.PhaseWIT, errors.KindUnsupported).
				Path(path...).
				Value(len(kind.Flags)).
				Detail("flags with %d members", len(kind.Flags)).
				Build())
		}
		names := make([]string, len(kind.Flags))
		for i, f := range kind.Flags {
			names[i] = f.Name
		}
		return shape{typ: schema.Flag, size: size, vals: names}, nil
	case wit.Type:
		return b.shapeOf(kind, path)
	}
	return shape{}, b.unsupported(td.Kind, path)
}

func (b *Builder) unsupported(t any, path []string) error {
	return diag.Report(b.log, errors.New(errors.PhaseWIT, errors.KindUnsupported).
		Path(path...).
		Detail("%s cannot be stored in a row", typeName(t)).
		Build())
}

// discriminantSize is the canonical ABI size of an enum with n cases.
func discriminantSize(n int) int {
	switch {
	case n <= 1<<8:
		return 1
	case n <= 1<<16:
		return 2
	}
	return 4
}

// flagsSize returns the bitset size for n flags, or 0 beyond 64.
func flagsSize(n int) int {
	switch {
	case n <= 8:
		return 1
	case n <= 16:
		return 2
	case n <= 32:
		return 4
	case n <= 64:
		return 8
	}
	return 0
}

// DefFor returns the def for a field named name of type t, adding it when no
// def of that name exists. An existing def of a different kind is a type mismatch.
func (b *Builder) DefFor(name string, t wit.Type) (int, error) {
	sh, err := b.shapeOf(t, []string{name})
	if err != nil {
		return arr.NotFound, err
	}
	if id := b.s.FindDef(name); id != arr.NotFound {
		d, _ := b.s.Def(id)
		if d.Type != sh.typ {
			return arr.NotFound, diag.Report(b.log, errors.TypeMismatch(errors.PhaseWIT,
				[]string{name}, sh.typ.String(), d.Type.String()))
		}
		return id, nil
	}

	id, err := b.s.AddDef(sh.typ, name, sh.size, len(sh.vals))
	if err != nil {
		return arr.NotFound, err
	}
	for i, v := range sh.vals {
		if _, err := b.s.AddValUint(id, v, uint64(i)); err != nil {
			return arr.NotFound, err
		}
	}
	return id, nil
}

// AddRecord appends a layout built from a record type and returns its id.
func (b *Builder) AddRecord(td *wit.TypeDef) (int, error) {
	rec, ok := td.Kind.(*wit.Record)
	if !ok {
		return arr.NotFound, diag.Report(b.log, errors.TypeMismatch(errors.PhaseWIT,
			[]string{typeName(td)}, typeName(td.Kind), "record"))
	}

	type col struct {
		def  int
		size int
	}
	cols := make([]col, 0, len(rec.Fields))
	for _, f := range rec.Fields {
		def, err := b.DefFor(f.Name, f.Type)
		if err != nil {
			return arr.NotFound, err
		}
		sh, _ := b.shapeOf(f.Type, nil)
		cols = append(cols, col{def: def, size: sh.size})
	}

	layout, err := b.s.AddLayout(len(cols))
	if err != nil {
		return arr.NotFound, err
	}
	for _, c := range cols {
		if _, err := b.s.AddField(layout, c.def, c.size); err != nil {
			return arr.NotFound, err
		}
	}
	b.log.Debug("record layout added",
		zap.String("component", string(errors.PhaseWIT)),
		zap.String("record", typeName(td)),
		zap.Int("layout", layout),
		zap.Int("fields", len(cols)))
	return layout, nil
}

// FindRecord returns the record type definition named name.
func FindRecord(res *wit.Resolve, name string) (*wit.TypeDef, error) {
	for _, td := range res.TypeDefs {
		if td.Name == nil || *td.Name != name {
			continue
		}
		if _, ok := td.Kind.(*wit.Record); ok {
			return td, nil
		}
	}
	return nil, errors.NotFound(errors.PhaseWIT, "record", name)
}

func typeName(t any) string {
	if td, ok := t.(*wit.TypeDef); ok && td.Name != nil {
		return *td.Name
	}
	return fmt.Sprintf("%T", t)
}
