package arr

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/rowarena"
	rerrors "github.com/wippyai/rowarena/errors"
)

func TestArr_SortScenario(t *testing.T) {
	a, err := New[int](1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, v := range []int{3, 1, 2, 0} {
		if _, err := a.AddValue(v); err != nil {
			t.Fatalf("AddValue(%d): %v", v, err)
		}
	}
	a.Sort(cmp.Compare[int])

	for i := 0; i < 4; i++ {
		v, err := a.Value(i)
		if err != nil {
			t.Fatalf("Value(%d): %v", i, err)
		}
		if v != i {
			t.Errorf("element %d: got %d, want %d", i, v, i)
		}
	}
	if a.Cap() != 4 {
		t.Errorf("cap: got %d, want 4", a.Cap())
	}
}

func TestArr_GrowthDoubles(t *testing.T) {
	a, _ := New[uint32](0)

	prev := a.Cap()
	if prev != 0 {
		t.Fatalf("initial cap: got %d, want 0", prev)
	}
	for i := 0; i < 100; i++ {
		if _, _, err := a.Add(); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if a.Len() > a.Cap() {
			t.Fatalf("len %d > cap %d", a.Len(), a.Cap())
		}
		if a.Cap() != prev {
			want := prev * 2
			if prev == 0 {
				want = 1
			}
			if a.Cap() != want {
				t.Fatalf("cap grew %d -> %d, want %d", prev, a.Cap(), want)
			}
			prev = a.Cap()
		}
	}
	if a.Cap() != 128 {
		t.Errorf("final cap: got %d, want 128", a.Cap())
	}
}

func TestArr_PointerStableWithoutGrowth(t *testing.T) {
	a, _ := New[uint64](4)

	_, first, _ := a.Add()
	*first = 7
	a.AddValue(8)
	a.AddValue(9)
	a.AddValue(10)

	got, _ := a.Get(0)
	if got != first {
		t.Error("slot address changed without growth")
	}
	if *first != 7 {
		t.Errorf("slot value: got %d, want 7", *first)
	}
}

func TestArr_AddZeroesSlot(t *testing.T) {
	a, _ := New[uint32](2)
	a.AddValue(5)
	a.Truncate(0)

	_, p, _ := a.Add()
	if *p != 0 {
		t.Errorf("reused slot not zeroed: %d", *p)
	}
}

func TestArr_GetOutOfRangeLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a, _ := New[int](1, rowarena.WithLogger(zap.New(core)))
	a.AddValue(1)

	_, err := a.Get(3)
	if !errors.Is(err, &rerrors.Error{Phase: rerrors.PhaseArr, Kind: rerrors.KindOutOfBounds}) {
		t.Fatalf("expected out of bounds, got %v", err)
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Errorf("expected one warning, got %d entries", logs.Len())
	}

	if err := a.Set(-1, 0); err == nil {
		t.Error("Set(-1) should fail")
	}
}

func TestArr_FindAndUnique(t *testing.T) {
	a, _ := New[int](0)
	for _, v := range []int{4, 5, 6} {
		a.AddValue(v)
	}

	if i := a.Find(5); i != 1 {
		t.Errorf("Find(5): got %d, want 1", i)
	}
	if i := a.Find(9); i != NotFound {
		t.Errorf("Find(9): got %d, want NotFound", i)
	}

	mod := func(c, target *int) bool { return *c%3 == *target%3 }
	if i := a.FindWith(12, mod); i != 2 {
		t.Errorf("FindWith(12): got %d, want 2", i)
	}

	i, added, err := a.AddUnique(5, nil)
	if err != nil || added || i != 1 {
		t.Errorf("AddUnique(5): got (%d, %v, %v)", i, added, err)
	}
	i, added, err = a.AddUnique(7, nil)
	if err != nil || !added || i != 3 {
		t.Errorf("AddUnique(7): got (%d, %v, %v)", i, added, err)
	}
}

func TestArr_AddAllDoesNotGrow(t *testing.T) {
	src, _ := New[int](3)
	for _, v := range []int{1, 2, 3} {
		src.AddValue(v)
	}

	dst, _ := New[int](2)
	err := dst.AddAll(src)
	if !errors.Is(err, &rerrors.Error{Kind: rerrors.KindCapacity}) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if dst.Len() != 0 || dst.Cap() != 2 {
		t.Errorf("dst mutated: len %d cap %d", dst.Len(), dst.Cap())
	}

	dst, _ = New[int](4)
	dst.AddValue(9)
	if err := dst.AddAll(src); err != nil {
		t.Fatalf("AddAll: %v", err)
	}
	want := []int{9, 1, 2, 3}
	for i, w := range want {
		if v, _ := dst.Value(i); v != w {
			t.Errorf("element %d: got %d, want %d", i, v, w)
		}
	}
}

func TestArr_AddUniqueAll(t *testing.T) {
	src, _ := New[int](4)
	for _, v := range []int{1, 2, 2, 3} {
		src.AddValue(v)
	}

	dst, _ := New[int](3)
	dst.AddValue(1)
	if err := dst.AddUniqueAll(src, nil); err != nil {
		t.Fatalf("AddUniqueAll: %v", err)
	}
	if got := dst.Slice(); len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("got %v, want [1 2 3]", got)
	}

	small, _ := New[int](1)
	if err := small.AddUniqueAll(src, nil); err == nil {
		t.Error("expected capacity error")
	}
	if small.Len() != 0 {
		t.Error("partial write on failure")
	}
}

func TestArr_Merge(t *testing.T) {
	a, _ := New[int](0)
	b, _ := New[int](0)
	for _, v := range []int{1, 2} {
		a.AddValue(v)
	}
	for _, v := range []int{2, 3} {
		b.AddValue(v)
	}

	m, err := Merge(a, b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got := fmt.Sprint(m.Slice()); got != "[1 2 2 3]" {
		t.Errorf("Merge: got %s", got)
	}

	u, err := MergeUniq(a, b, nil)
	if err != nil {
		t.Fatalf("MergeUniq: %v", err)
	}
	if got := fmt.Sprint(u.Slice()); got != "[1 2 3]" {
		t.Errorf("MergeUniq: got %s", got)
	}
}

func TestArr_SortStable(t *testing.T) {
	type pair struct {
		key, seq int32
	}
	a, _ := New[pair](0)
	for i, k := range []int32{2, 1, 2, 1, 0} {
		a.AddValue(pair{key: k, seq: int32(i)})
	}
	a.Sort(func(x, y pair) int { return cmp.Compare(x.key, y.key) })

	want := []pair{{0, 4}, {1, 1}, {1, 3}, {2, 0}, {2, 2}}
	for i, w := range want {
		if v, _ := a.Value(i); v != w {
			t.Errorf("element %d: got %v, want %v", i, v, w)
		}
	}
}

func TestArr_PointerfulElements(t *testing.T) {
	a, err := New[string](1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.raw {
		t.Fatal("string elements must not live in raw memory")
	}
	for _, s := range []string{"b", "a", "c"} {
		a.AddValue(s)
	}
	a.Sort(strings.Compare)
	if got := fmt.Sprint(a.Slice()); got != "[a b c]" {
		t.Errorf("got %s", got)
	}
	if a.Find("c") != 2 {
		t.Error("Find on strings failed")
	}
}

func TestArr_StringContentsEqual(t *testing.T) {
	a, _ := New[string](2)
	a.AddValue(strings.Repeat("ab", 2))

	if got := a.Find("abab"); got != 0 {
		t.Errorf("Find: got %d, want 0", got)
	}
	i, added, err := a.AddUnique(strings.Clone("abab"), nil)
	if err != nil || added || i != 0 {
		t.Errorf("AddUnique: got (%d, %v, %v), want (0, false, nil)", i, added, err)
	}
	if a.Len() != 1 {
		t.Errorf("len: got %d, want 1", a.Len())
	}

	b, _ := New[string](2)
	b.AddValue(strings.Clone("abab"))
	b.AddValue("cd")
	m, err := MergeUniq(a, b, nil)
	if err != nil {
		t.Fatalf("MergeUniq: %v", err)
	}
	if got := fmt.Sprint(m.Slice()); got != "[abab cd]" {
		t.Errorf("MergeUniq: got %s", got)
	}
}

func TestArr_NotComparableNeedsEq(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a, _ := New[[]int](2, rowarena.WithLogger(zap.New(core)))
	a.AddValue([]int{1})

	if got := a.Find([]int{1}); got != NotFound {
		t.Errorf("Find: got %d, want NotFound", got)
	}
	if _, _, err := a.AddUnique([]int{1}, nil); !errors.Is(err, &rerrors.Error{Phase: rerrors.PhaseArr, Kind: rerrors.KindInvalidInput}) {
		t.Errorf("AddUnique: got %v, want invalid input", err)
	}
	if logs.Len() != 2 {
		t.Errorf("logs: got %d, want 2", logs.Len())
	}

	eq := func(x, y *[]int) bool { return len(*x) == len(*y) && (*x)[0] == (*y)[0] }
	if _, added, err := a.AddUnique([]int{1}, eq); err != nil || added {
		t.Errorf("AddUnique with eq: added %v, err %v", added, err)
	}
}

func TestArr_AllocationFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lim := rowarena.NewLimitAllocator(nil, 16)
	a, _ := New[uint64](1, rowarena.WithAllocator(lim), rowarena.WithLogger(zap.New(core)))

	a.AddValue(1)
	a.AddValue(2)
	_, err := a.AddValue(3)
	if !errors.Is(err, &rerrors.Error{Phase: rerrors.PhaseArr, Kind: rerrors.KindAllocation}) {
		t.Fatalf("expected allocation error, got %v", err)
	}
	if a.Len() != 2 {
		t.Errorf("len after failure: got %d, want 2", a.Len())
	}
	if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Error("allocation failure not logged at error level")
	}

	a.Free()
	if lim.InUse() != 0 {
		t.Errorf("InUse after Free: got %d", lim.InUse())
	}
}

func TestArr_PrintAndAll(t *testing.T) {
	a, _ := New[int](0)
	for _, v := range []int{10, 20} {
		a.AddValue(v)
	}

	var buf bytes.Buffer
	err := a.Print(&buf, func(w io.Writer, i int, v *int) error {
		_, err := fmt.Fprintf(w, "%d=%d", i, *v)
		return err
	})
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if buf.String() != "0=10\n1=20\n" {
		t.Errorf("Print: got %q", buf.String())
	}

	sum := 0
	for _, v := range a.All() {
		sum += *v
	}
	if sum != 30 {
		t.Errorf("All sum: got %d, want 30", sum)
	}
}
