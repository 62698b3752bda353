package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseSchema,
				Kind:   KindNotFound,
				Path:   []string{"layout", "1", "field"},
				Detail: "no such field",
			},
			contains: []string{"[schema]", "not_found", "layout.1.field", "no such field"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseArr,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[arr]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseBuf,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[buf]", "allocation", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseAlloc,
		Kind:  KindAllocation,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause through chain")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseTree,
		Kind:  KindOverflow,
		Path:  []string{"walk"},
	}

	if !err.Is(&Error{Phase: PhaseTree, Kind: KindOverflow}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseList, Kind: KindOverflow}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseTree, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, &Error{Kind: KindOverflow}) {
		t.Error("empty phase should match any phase")
	}
	if err.Is(errors.New("plain")) {
		t.Error("Is should not match foreign error types")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseSchema, KindTypeMismatch).
		Path("def", "status").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "enum", "int").
		Build()

	if err.Phase != PhaseSchema {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseSchema)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "def" || err.Path[1] != "status" {
		t.Errorf("Path = %v, want [def status]", err.Path)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected enum, got int" {
		t.Errorf("Detail = %v, want 'expected enum, got int'", err.Detail)
	}
}

func TestBuilder_DetailWithoutArgs(t *testing.T) {
	err := New(PhaseTbl, KindInvalidInput).Detail("100% literal").Build()
	if err.Detail != "100% literal" {
		t.Errorf("Detail = %q, want literal text", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("AllocationFailed", func(t *testing.T) {
		cause := errors.New("limit")
		err := AllocationFailed(PhaseAlloc, 1024, cause)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
		if !errors.Is(err, cause) {
			t.Error("cause should be reachable")
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseArr, []string{"rows"}, 10, 5)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != 10 {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseSchema, "def", "status")
		if err.Kind != KindNotFound {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
		}
		if !strings.Contains(err.Detail, `"status"`) {
			t.Errorf("Detail = %v, should quote name", err.Detail)
		}
	})

	t.Run("CapacityExceeded", func(t *testing.T) {
		err := CapacityExceeded(PhaseArr, 8, 4)
		if err.Kind != KindCapacity {
			t.Errorf("Kind = %v, want %v", err.Kind, KindCapacity)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseTree, "depth", 128)
		if err.Kind != KindOverflow {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOverflow)
		}
		if err.Value != 128 {
			t.Errorf("Value = %v, want 128", err.Value)
		}
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		err := SizeMismatch(PhaseArr, 4, 8)
		if err.Kind != KindSizeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindSizeMismatch)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseSchema, []string{"vals"}, "int", "enum")
		if err.Kind != KindTypeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseWIT, "variant types")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		cause := errors.New("yaml")
		err := Wrap(PhaseConfig, KindInvalidInput, cause, "decode table")
		if !errors.Is(err, cause) {
			t.Error("Wrap should keep cause")
		}
	})
}
