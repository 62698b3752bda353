package buf

import (
	"errors"
	"testing"

	"github.com/wippyai/rowarena"
	rerrors "github.com/wippyai/rowarena/errors"
)

func TestBuf_OffsetsStableUnderAppend(t *testing.T) {
	b, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	off1, err := b.Add([]byte("hello"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	off2, err := b.Add([]byte("world!"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, _ := b.Get(off1, 5)
	if string(got) != "hello" {
		t.Errorf("Get(off1): got %q", got)
	}
	got, _ = b.Get(off2, 6)
	if string(got) != "world!" {
		t.Errorf("Get(off2): got %q", got)
	}
	if off2 != 5 {
		t.Errorf("off2: got %d, want 5", off2)
	}
}

func TestBuf_Growth(t *testing.T) {
	b, _ := New(0)
	b.Add([]byte("abc"))
	if b.Size() != 6 {
		t.Errorf("size after first add: got %d, want 6", b.Size())
	}
	b.Add([]byte("de"))
	if b.Size() != 6 || b.Used() != 5 {
		t.Errorf("size/used: %d/%d, want 6/5", b.Size(), b.Used())
	}
	b.Add([]byte("fg"))
	if b.Size() != 14 {
		t.Errorf("size after regrow: got %d, want 14", b.Size())
	}
	if string(b.Bytes()) != "abcdefg" {
		t.Errorf("Bytes: got %q", b.Bytes())
	}
}

func TestBuf_Replace(t *testing.T) {
	tests := []struct {
		name    string
		off     int
		p       string
		oldLen  int
		want    string
		wantLen int
	}{
		{"same length", 2, "XY", 2, "abXYef", 6},
		{"grow", 2, "WXYZ", 2, "abWXYZef", 8},
		{"shrink", 1, "Q", 3, "aQef", 4},
		{"insert", 0, ">", 0, ">abcdef", 7},
		{"delete tail", 4, "", 2, "abcd", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := New(6)
			b.Add([]byte("abcdef"))

			if err := b.Replace(tt.off, []byte(tt.p), tt.oldLen); err != nil {
				t.Fatalf("Replace: %v", err)
			}
			if string(b.Bytes()) != tt.want {
				t.Errorf("got %q, want %q", b.Bytes(), tt.want)
			}
			if b.Used() != tt.wantLen {
				t.Errorf("used: got %d, want %d", b.Used(), tt.wantLen)
			}
		})
	}
}

func TestBuf_ReplaceClearsVacatedTail(t *testing.T) {
	b, _ := New(8)
	b.Add([]byte("abcdef"))
	b.Replace(0, nil, 3)

	off, region, _ := b.Reserve(3)
	if off != 3 {
		t.Errorf("off: got %d, want 3", off)
	}
	for _, c := range region {
		if c != 0 {
			t.Fatalf("reserved region not zeroed: %q", region)
		}
	}
}

func TestBuf_Bounds(t *testing.T) {
	b, _ := New(4)
	b.Add([]byte("ab"))

	if _, err := b.Get(1, 2); !errors.Is(err, &rerrors.Error{Kind: rerrors.KindOutOfBounds}) {
		t.Errorf("Get past used: got %v", err)
	}
	if err := b.Replace(1, []byte("x"), 5); err == nil {
		t.Error("Replace past used should fail")
	}
	if _, _, err := b.Reserve(-1); err == nil {
		t.Error("negative Reserve should fail")
	}
}

func TestBuf_AllocationFailure(t *testing.T) {
	lim := rowarena.NewLimitAllocator(nil, 8)
	b, _ := New(4, rowarena.WithAllocator(lim))

	if _, err := b.Add([]byte("abcdef")); !errors.Is(err, &rerrors.Error{Phase: rerrors.PhaseBuf, Kind: rerrors.KindAllocation}) {
		t.Fatalf("expected allocation error, got %v", err)
	}
	if b.Used() != 0 {
		t.Errorf("used after failure: %d", b.Used())
	}

	b.Free()
	if lim.InUse() != 0 {
		t.Errorf("InUse after Free: %d", lim.InUse())
	}
}

func TestBuf_Reset(t *testing.T) {
	b, _ := New(4)
	b.Add([]byte("abcd"))
	b.Reset()
	if b.Used() != 0 || b.Size() != 4 {
		t.Errorf("after Reset: used %d size %d", b.Used(), b.Size())
	}
}
