package schema

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"math/bits"
	"slices"
	"strconv"
	"strings"

	"github.com/wippyai/rowarena/arr"
	"github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/internal/diag"
	"github.com/wippyai/rowarena/strbuf"
)

// MapLayout builds the projection of layout onto layout 0: every field of
// layout maps to the layout 0 field sharing its def, or is dropped when there
// is none. Rebuilding replaces the previous map.
func (s *Schema) MapLayout(layout int) error {
	src, err := s.Layout(layout)
	if err != nil {
		return err
	}
	dst, err := s.Layout(0)
	if err != nil {
		return err
	}

	maps, err := arr.New[FieldMap](src.Fields.Len(), s.cfg.Options()...)
	if err != nil {
		return err
	}
	for _, f := range src.Fields.All() {
		fm := FieldMap{Drop: true, Target: arr.NotFound}
		if t := dst.Fields.FindWith(Field{Def: f.Def}, sameDef); t != arr.NotFound {
			fm = FieldMap{Target: t}
		}
		if _, err := maps.AddValue(fm); err != nil {
			maps.Free()
			return err
		}
	}

	m, _ := s.maps.Get(layout)
	if m.Maps != nil {
		m.Maps.Free()
	}
	m.Maps = maps
	return nil
}

func sameDef(candidate, target *Field) bool { return candidate.Def == target.Def }

// Map returns field's projection onto layout 0. Fields of layout 0 map to themselves.
func (s *Schema) Map(layout, field int) (FieldMap, error) {
	if layout == 0 {
		if _, err := s.Field(0, field); err != nil {
			return FieldMap{}, err
		}
		return FieldMap{Target: field}, nil
	}
	if _, err := s.Layout(layout); err != nil {
		return FieldMap{}, err
	}
	m, _ := s.maps.Get(layout)
	if m.Maps == nil {
		return FieldMap{}, diag.Report(s.log, errors.New(errors.PhaseSchema, errors.KindNotFound).
			Value(layout).
			Detail("layout %d has no map", layout).
			Build())
	}
	fm, err := m.Maps.Value(field)
	if err != nil {
		return FieldMap{}, diag.Report(s.log, errors.New(errors.PhaseSchema, errors.KindNotFound).
			Value(field).
			Detail("field %d not found in layout %d", field, layout).
			Cause(err).
			Build())
	}
	return fm, nil
}

// SetVal writes val, given for field of layout, into the layout 0 row. val is
// cut to the source field's size, the target bytes are zeroed, and val is
// copied in, so narrower values zero-extend. Dropped fields are a no-op.
func (s *Schema) SetVal(layout, field int, row, val []byte) error {
	fm, err := s.Map(layout, field)
	if err != nil {
		return err
	}
	if fm.Drop {
		return nil
	}
	src, _ := s.Field(layout, field)
	val = val[:min(len(val), src.Size)]
	dst, err := s.Field(0, fm.Target)
	if err != nil {
		return err
	}
	if dst.Offset+dst.Size > len(row) {
		return diag.Report(s.log, errors.OutOfBounds(errors.PhaseSchema, nil, dst.Offset+dst.Size, len(row)))
	}
	cell := row[dst.Offset : dst.Offset+dst.Size]
	clear(cell)
	copy(cell, val)
	return nil
}

// SetValUint writes v as a little-endian integer.
func (s *Schema) SetValUint(layout, field int, row []byte, v uint64) error {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], v)
	return s.SetVal(layout, field, row, raw[:])
}

// GetVal returns a view of field of layout 0 within row.
func (s *Schema) GetVal(field int, row []byte) ([]byte, error) {
	f, err := s.Field(0, field)
	if err != nil {
		return nil, err
	}
	if f.Offset+f.Size > len(row) {
		return nil, diag.Report(s.log, errors.OutOfBounds(errors.PhaseSchema, nil, f.Offset+f.Size, len(row)))
	}
	return row[f.Offset : f.Offset+f.Size : f.Offset+f.Size], nil
}

// Uint decodes up to eight little-endian bytes.
func Uint(raw []byte) uint64 {
	var b [8]byte
	copy(b[:], raw)
	return binary.LittleEndian.Uint64(b[:])
}

// beHex renders raw as big-endian hex without a prefix.
func beHex(raw []byte) string {
	r := slices.Clone(raw)
	slices.Reverse(r)
	return hex.EncodeToString(r)
}

// FormatVal renders raw as a value of def. Str values are looked up in strs.
//
// Enum values render their label, or big-endian hex when no value matches.
// Flag values render the labels of every set bit, concatenated; unlabelled
// bits render nothing.
func (s *Schema) FormatVal(def int, raw []byte, strs *strbuf.VBuf) (string, error) {
	d, err := s.Def(def)
	if err != nil {
		return "", err
	}
	switch d.Type {
	case Int:
		if len(raw) > 8 {
			return beHex(raw), nil
		}
		return strconv.FormatUint(Uint(raw), 10), nil
	case Str:
		if strs == nil {
			return "", nil
		}
		return strs.String(strbuf.Ref(Uint(raw))), nil
	case Enum:
		if len(raw) > d.Size && slices.ContainsFunc(raw[d.Size:], func(b byte) bool { return b != 0 }) {
			return beHex(raw), nil
		}
		for _, v := range d.Vals.All() {
			if slices.Equal(v[:d.Size], padded(raw, d.Size)) {
				return s.label(v, d.Size), nil
			}
		}
		return beHex(raw), nil
	case Flag:
		var sb strings.Builder
		for i, b := range raw {
			for b != 0 {
				bit := bits.TrailingZeros8(b)
				b &^= 1 << bit
				idx := i*8 + bit
				for _, v := range d.Vals.All() {
					if int(v[0]) == idx {
						sb.WriteString(s.label(v, d.Size))
						break
					}
				}
			}
		}
		return sb.String(), nil
	}
	return "", nil
}

// PrintVal writes the rendering of raw to w.
func (s *Schema) PrintVal(w io.Writer, def int, raw []byte, strs *strbuf.VBuf) error {
	str, err := s.FormatVal(def, raw, strs)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, str)
	return err
}

func (s *Schema) label(val []byte, size int) string {
	return s.strs.String(strbuf.Ref(binary.LittleEndian.Uint32(val[size:])))
}

func padded(raw []byte, size int) []byte {
	if len(raw) >= size {
		return raw[:size]
	}
	p := make([]byte, size)
	copy(p, raw)
	return p
}

// FindVal returns the raw value labelled label in an Enum or Flag def.
func (s *Schema) FindVal(def int, label string) ([]byte, bool) {
	d, err := s.defs.Get(def)
	if err != nil || d.Vals == nil {
		return nil, false
	}
	for _, v := range d.Vals.All() {
		if s.label(v, d.Size) == label {
			return v[:d.Size:d.Size], true
		}
	}
	return nil, false
}

// Labels returns the value labels of an Enum or Flag def in insertion order.
func (s *Schema) Labels(def int) []string {
	d, err := s.defs.Get(def)
	if err != nil || d.Vals == nil {
		return nil
	}
	out := make([]string, 0, d.Vals.Len())
	for _, v := range d.Vals.All() {
		out = append(out, s.label(v, d.Size))
	}
	return out
}
