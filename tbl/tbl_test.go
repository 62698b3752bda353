package tbl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/rowarena"
	rerrors "github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/schema"
)

// people: id(int 2) name(str) kind(enum 1) opts(flag 1); legacy: name kind id(int 1) note(str)
func people(t *testing.T, opts ...rowarena.Option) (*Tbl, int) {
	t.Helper()
	tb, err := New(opts...)
	require.NoError(t, err)

	id, _ := tb.AddDef(schema.Int, "id", 2, 0)
	name, _ := tb.AddDef(schema.Str, "name", 0, 0)
	kind, _ := tb.AddDef(schema.Enum, "kind", 1, 2)
	tb.AddValUint(kind, "cat", 1)
	tb.AddValUint(kind, "dog", 2)
	flags, _ := tb.AddDef(schema.Flag, "opts", 1, 2)
	tb.AddValUint(flags, "Z", 0)
	tb.AddValUint(flags, "O", 1)
	note, _ := tb.AddDef(schema.Str, "note", 0, 0)

	l0, _ := tb.AddLayout(4)
	for _, d := range []int{id, name, kind, flags} {
		_, err := tb.AddField(l0, d, 0)
		require.NoError(t, err)
	}
	l1, _ := tb.AddLayout(4)
	tb.AddField(l1, name, 0)
	tb.AddField(l1, kind, 0)
	tb.AddField(l1, id, 1)
	tb.AddField(l1, note, 0)
	require.NoError(t, tb.MapLayout(l1))

	require.NoError(t, tb.InitRows(2))
	return tb, l1
}

func TestTbl_CellsThroughLayouts(t *testing.T) {
	tb, legacy := people(t)
	defer tb.Free()

	r, err := tb.AddRow()
	require.NoError(t, err)
	require.NoError(t, tb.SetCellUint(r, 0, 0, 7))
	require.NoError(t, tb.SetCellStr(r, 0, 1, "felix"))
	require.NoError(t, tb.SetCellUint(r, 0, 2, 1))
	require.NoError(t, tb.SetCell(r, 0, 3, []byte{0b10}))

	r2, _ := tb.AddRow()
	require.NoError(t, tb.SetCellStr(r2, legacy, 0, "rex"))
	require.NoError(t, tb.SetCellUint(r2, legacy, 1, 2))
	require.NoError(t, tb.SetCellUint(r2, legacy, 2, 300), "narrow legacy id keeps its low byte")
	require.NoError(t, tb.SetCellStr(r2, legacy, 3, "dropped"))

	got, _ := tb.GetCellUint(r, 0)
	assert.Equal(t, uint64(7), got)
	s, _ := tb.GetCellStr(r, 1)
	assert.Equal(t, "felix", s)
	s, _ = tb.GetCellStr(r, 2)
	assert.Equal(t, "cat", s)
	s, _ = tb.GetCellStr(r, 3)
	assert.Equal(t, "O", s)

	s, _ = tb.GetCellStr(r2, 1)
	assert.Equal(t, "rex", s)
	s, _ = tb.GetCellStr(r2, 2)
	assert.Equal(t, "dog", s)
	got, _ = tb.GetCellUint(r2, 0)
	assert.Equal(t, uint64(300&0xff), got)

	_, found := tb.Pool().Find("dropped")
	assert.False(t, found, "dropped string cell is not interned")
	assert.Equal(t, 3, tb.Rows())
}

func TestTbl_SetCellStrInternsAndWidens(t *testing.T) {
	tb, _ := people(t)
	a, _ := tb.AddRow()
	b, _ := tb.AddRow()
	c, _ := tb.AddRow()
	require.NoError(t, tb.SetCellStr(a, 0, 1, "bo"))
	require.NoError(t, tb.SetCellStr(b, 0, 1, "bartholomew"))
	require.NoError(t, tb.SetCellStr(c, 0, 1, "bo"))

	ra, _ := tb.GetCell(a, 1)
	rc, _ := tb.GetCell(c, 1)
	assert.Equal(t, ra, rc, "equal strings share one ref")
	assert.Equal(t, 3, tb.Pool().Len(), "empty string, bo, bartholomew")

	d, _ := tb.Def(tb.FindDef("name"))
	assert.Equal(t, len("bartholomew"), d.DisplayLen)

	err := tb.SetCellStr(a, 0, 0, "x")
	require.ErrorIs(t, err, &rerrors.Error{Phase: rerrors.PhaseTbl, Kind: rerrors.KindTypeMismatch})
}

func TestTbl_Print(t *testing.T) {
	tb, _ := people(t)
	r, _ := tb.AddRow()
	tb.SetCellUint(r, 0, 0, 12345)
	tb.SetCellStr(r, 0, 1, "felix")
	tb.SetCellUint(r, 0, 2, 2)
	tb.SetCell(r, 0, 3, []byte{0b11})
	r, _ = tb.AddRow()
	tb.SetCellUint(r, 0, 0, 1)
	tb.SetCellUint(r, 0, 2, 9)

	var buf bytes.Buffer
	require.NoError(t, tb.Print(&buf))

	want := strings.Join([]string{
		"id    name  kind opts",
		"12345 felix dog  ZO",
		"1           09   ",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestTbl_Map(t *testing.T) {
	tb, err := New()
	require.NoError(t, err)
	src, _ := tb.AddDef(schema.Int, "celsius", 1, 0)
	dst, _ := tb.AddDef(schema.Int, "fahrenheit", 2, 0)
	l0, _ := tb.AddLayout(2)
	tb.AddField(l0, src, 0)
	tb.AddField(l0, dst, 0)
	require.NoError(t, tb.InitRows(0))

	for _, c := range []uint64{0, 100, 37} {
		r, _ := tb.AddRow()
		require.NoError(t, tb.SetCellUint(r, 0, 0, c))
	}

	err = tb.Map(0, 1, func(_ int, src, dst []byte) error {
		f := uint16(src[0])*9/5 + 32
		dst[0], dst[1] = byte(f), byte(f>>8)
		return nil
	})
	require.NoError(t, err)

	for i, want := range []uint64{32, 212, 98} {
		got, _ := tb.GetCellUint(i, 1)
		assert.Equal(t, want, got, "row %d", i)
	}
	d, _ := tb.Def(dst)
	assert.Equal(t, 3, d.DisplayLen)
}

func TestTbl_Lifecycle(t *testing.T) {
	tb, err := New()
	require.NoError(t, err)

	_, err = tb.AddRow()
	require.ErrorIs(t, err, &rerrors.Error{Kind: rerrors.KindInvalidInput})
	require.Error(t, tb.InitRows(1), "layout 0 missing")

	l0, _ := tb.AddLayout(0)
	require.Error(t, tb.InitRows(1), "layout 0 empty")
	def, _ := tb.AddDef(schema.Int, "n", 1, 0)
	tb.AddField(l0, def, 0)
	require.NoError(t, tb.InitRows(1))
	require.Error(t, tb.InitRows(1), "second init")

	_, err = tb.Row(4)
	require.ErrorIs(t, err, &rerrors.Error{Kind: rerrors.KindOutOfBounds})
}

func TestTbl_FreeReleasesEverything(t *testing.T) {
	lim := rowarena.NewLimitAllocator(nil, 1<<16)
	tb, _ := people(t, rowarena.WithAllocator(lim))
	r, _ := tb.AddRow()
	tb.SetCellStr(r, 0, 1, "x")

	tb.Free()
	assert.Zero(t, lim.InUse())
}
