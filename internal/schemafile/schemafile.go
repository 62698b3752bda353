// Package schemafile loads a table description from YAML.
//
//	defs:
//	  - {name: id, type: int, size: 4}
//	  - {name: name, type: str}
//	  - name: kind
//	    type: enum
//	    size: 1
//	    values: [{label: cat, value: 1}, {label: dog, value: 2}]
//	layouts:
//	  - [{def: id}, {def: name}, {def: kind}]
//	  - [{def: name}, {def: id, size: 2}]
//	rows:
//	  - layout: 1
//	    cells: {name: rex, id: 7}
//
// Layout 0 is the row layout; every other layout is mapped onto it. Flag
// cells take a label or a list of labels. Enum and Flag cells also accept a
// raw integer.
package schemafile

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/arr"
	"github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/schema"
	"github.com/wippyai/rowarena/tbl"
)

// File is a decoded table description.
type File struct {
	Defs    []Def     `yaml:"defs"`
	Layouts [][]Field `yaml:"layouts"`
	Rows    []Row     `yaml:"rows"`
}

// Def describes one field definition.
type Def struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Size   int    `yaml:"size"`
	Values []Val  `yaml:"values"`
}

// Val labels a raw Enum value or a Flag bit index.
type Val struct {
	Label string `yaml:"label"`
	Value uint64 `yaml:"value"`
}

// Field places a def in a layout. Size 0 takes the def's size.
type Field struct {
	Def  string `yaml:"def"`
	Size int    `yaml:"size"`
}

// Row is one row given in any layout. Cells is a mapping from field name to value.
type Row struct {
	Layout int       `yaml:"layout"`
	Cells  yaml.Node `yaml:"cells"`
}

// Parse decodes a description, rejecting unknown keys.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode table description")
	}
	return &f, nil
}

// Load reads and decodes the description at path.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "open "+path)
	}
	defer fh.Close()
	return Parse(fh)
}

// Build creates the table the description declares and fills its rows.
func (f *File) Build(opts ...rowarena.Option) (*tbl.Tbl, error) {
	t, err := tbl.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := f.build(t); err != nil {
		t.Free()
		return nil, err
	}
	return t, nil
}

func (f *File) build(t *tbl.Tbl) error {
	if len(f.Layouts) == 0 {
		return errors.InvalidInput(errors.PhaseConfig, "no layouts")
	}

	for i, d := range f.Defs {
		typ, ok := schema.ParseFieldType(d.Type)
		if !ok {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("defs", strconv.Itoa(i), "type").
				Value(d.Type).
				Detail("unknown field type %q", d.Type).
				Build()
		}
		id, err := t.AddDef(typ, d.Name, d.Size, len(d.Values))
		if err != nil {
			return err
		}
		for _, v := range d.Values {
			if _, err := t.AddValUint(id, v.Label, v.Value); err != nil {
				return err
			}
		}
	}

	for i, fields := range f.Layouts {
		l, err := t.AddLayout(len(fields))
		if err != nil {
			return err
		}
		for j, fs := range fields {
			def := t.FindDef(fs.Def)
			if def == arr.NotFound {
				return errors.New(errors.PhaseConfig, errors.KindNotFound).
					Path("layouts", strconv.Itoa(i), strconv.Itoa(j)).
					Value(fs.Def).
					Detail("def %q not declared", fs.Def).
					Build()
			}
			if _, err := t.AddField(l, def, fs.Size); err != nil {
				return err
			}
		}
		if l > 0 {
			if err := t.MapLayout(l); err != nil {
				return err
			}
		}
	}

	if err := t.InitRows(len(f.Rows)); err != nil {
		return err
	}
	for i, r := range f.Rows {
		if err := f.addRow(t, i, r); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) addRow(t *tbl.Tbl, i int, r Row) error {
	row, err := t.AddRow()
	if err != nil {
		return err
	}
	if r.Cells.Kind == 0 {
		return nil
	}
	if r.Cells.Kind != yaml.MappingNode {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("rows", strconv.Itoa(i), "cells").
			Detail("cells must be a mapping (line %d)", r.Cells.Line).
			Build()
	}

	for k := 0; k+1 < len(r.Cells.Content); k += 2 {
		name, val := r.Cells.Content[k].Value, r.Cells.Content[k+1]
		path := []string{"rows", strconv.Itoa(i), "cells", name}

		field := t.FindField(r.Layout, name)
		if field == arr.NotFound {
			return errors.New(errors.PhaseConfig, errors.KindNotFound).
				Path(path...).
				Detail("layout %d has no field %q", r.Layout, name).
				Build()
		}
		if err := setCell(t, row, r.Layout, field, val, path); err != nil {
			return err
		}
	}
	return nil
}

func setCell(t *tbl.Tbl, row, layout, field int, val *yaml.Node, path []string) error {
	fd, err := t.Field(layout, field)
	if err != nil {
		return err
	}
	d, _ := t.Def(fd.Def)

	if d.Type == schema.Str {
		return t.SetCellStr(row, layout, field, val.Value)
	}

	if val.Kind == yaml.ScalarNode && val.Tag == "!!int" {
		var n uint64
		if err := val.Decode(&n); err != nil {
			return badCell(path, val, err)
		}
		return t.SetCellUint(row, layout, field, n)
	}

	switch d.Type {
	case schema.Enum:
		raw, ok := t.FindVal(fd.Def, val.Value)
		if !ok {
			return unknownLabel(path, val.Value)
		}
		return t.SetCell(row, layout, field, raw)
	case schema.Flag:
		labels := []string{val.Value}
		if val.Kind == yaml.SequenceNode {
			if err := val.Decode(&labels); err != nil {
				return badCell(path, val, err)
			}
		}
		bits := make([]byte, fd.Size)
		for _, l := range labels {
			raw, ok := t.FindVal(fd.Def, l)
			if !ok {
				return unknownLabel(path, l)
			}
			bit := int(raw[0])
			if bit >= 8*len(bits) {
				return badCell(path, val, fmt.Errorf("bit %d outside %d-byte flags", bit, fd.Size))
			}
			bits[bit/8] |= 1 << (bit % 8)
		}
		return t.SetCell(row, layout, field, bits)
	}
	return badCell(path, val, fmt.Errorf("%s cell needs an integer", d.Type))
}

func badCell(path []string, val *yaml.Node, cause error) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path(path...).
		Value(val.Value).
		Cause(cause).
		Detail("bad cell value at line %d", val.Line).
		Build()
}

func unknownLabel(path []string, label string) error {
	return errors.New(errors.PhaseConfig, errors.KindNotFound).
		Path(path...).
		Value(label).
		Detail("no value labelled %q", label).
		Build()
}
