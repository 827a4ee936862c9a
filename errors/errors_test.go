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
				Phase:   PhaseDecode,
				Kind:    KindMalformedVarint,
				Section: "code",
				Path:    []string{"func[2]", "instr[5]"},
				Detail:  "continuation bit set past byte 5",
				Offset:  91,
			},
			contains: []string{"[decode]", "malformed_varint", "code section", "func[2].instr[5]", "continuation bit", "offset 91"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase:  PhaseValidate,
				Kind:   KindBadIndex,
				Offset: -1,
			},
			contains: []string{"[validate]", "bad_index"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseEncode,
				Kind:   KindDanglingID,
				Detail: "function id 3",
				Cause:  errors.New("underlying error"),
				Offset: -1,
			},
			contains: []string{"[encode]", "dangling_id", "function id 3", "caused by", "underlying error"},
		},
		{
			name: "offset zero is printed",
			err: &Error{
				Phase:  PhaseDecode,
				Kind:   KindBadMagic,
				Offset: 0,
			},
			contains: []string{"offset 0"},
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
		Phase:  PhaseDecode,
		Kind:   KindInvalidData,
		Cause:  cause,
		Offset: -1,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseBuild,
		Kind:  KindTypeMismatch,
		Path:  []string{"func[0]"},
	}

	if !err.Is(&Error{Phase: PhaseBuild, Kind: KindTypeMismatch}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseValidate, Kind: KindTypeMismatch}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhaseBuild, Kind: KindBadTarget}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseBuild, Kind: KindTypeMismatch}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestPhaseOf(t *testing.T) {
	inner := MalformedVarint(17, "overlong encoding")
	wrapped := Wrap(PhaseDecode, KindInvalidData, inner, "type section")

	phase, ok := PhaseOf(wrapped)
	if !ok || phase != PhaseDecode {
		t.Errorf("PhaseOf = %v, %v; want decode, true", phase, ok)
	}

	if _, ok := PhaseOf(errors.New("plain")); ok {
		t.Error("PhaseOf should not match a plain error")
	}

	kind, ok := KindOf(wrapped)
	if !ok || kind != KindInvalidData {
		t.Errorf("KindOf = %v, %v; want invalid_data, true", kind, ok)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDecode, KindUnknownOpcode).
		Section("code").
		Path("func[1]", "instr[9]").
		Offset(204).
		Value(uint32(0xFE)).
		Cause(cause).
		Detail("opcode 0x%02x", 0xFE).
		Build()

	if err.Phase != PhaseDecode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDecode)
	}
	if err.Kind != KindUnknownOpcode {
		t.Errorf("Kind = %v, want %v", err.Kind, KindUnknownOpcode)
	}
	if err.Section != "code" {
		t.Errorf("Section = %v, want 'code'", err.Section)
	}
	if len(err.Path) != 2 || err.Path[0] != "func[1]" || err.Path[1] != "instr[9]" {
		t.Errorf("Path = %v, want [func[1] instr[9]]", err.Path)
	}
	if err.Offset != 204 {
		t.Errorf("Offset = %v, want 204", err.Offset)
	}
	if err.Value != uint32(0xFE) {
		t.Errorf("Value = %v, want 0xFE", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "opcode 0xfe" {
		t.Errorf("Detail = %v, want 'opcode 0xfe'", err.Detail)
	}
}

func TestBuilderDefaultOffset(t *testing.T) {
	err := New(PhaseValidate, KindBadLimits).Build()
	if err.Offset != -1 {
		t.Errorf("Offset = %d, want -1", err.Offset)
	}
	if strings.Contains(err.Error(), "offset") {
		t.Errorf("message %q should not mention an offset", err.Error())
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("BadMagic", func(t *testing.T) {
		err := BadMagic(0xDEADBEEF)
		if err.Kind != KindBadMagic || err.Phase != PhaseDecode {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if err.Offset != 0 {
			t.Errorf("Offset = %d, want 0", err.Offset)
		}
	})

	t.Run("BadVersion", func(t *testing.T) {
		err := BadVersion(2)
		if err.Kind != KindBadVersion {
			t.Errorf("Kind = %v, want %v", err.Kind, KindBadVersion)
		}
		if !strings.Contains(err.Detail, "2") {
			t.Errorf("Detail = %v, should contain the version", err.Detail)
		}
	})

	t.Run("MalformedVarint", func(t *testing.T) {
		err := MalformedVarint(33, "unused bits set")
		if err.Kind != KindMalformedVarint || err.Offset != 33 {
			t.Errorf("got %v at %d", err.Kind, err.Offset)
		}
	})

	t.Run("UnexpectedEOF", func(t *testing.T) {
		err := UnexpectedEOF(12, "import section")
		if err.Kind != KindUnexpectedEOF {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnexpectedEOF)
		}
		if !strings.Contains(err.Detail, "import section") {
			t.Errorf("Detail = %v, should name the region", err.Detail)
		}
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		err := InvalidUTF8(7, []byte{0xff, 0xfe})
		if err.Kind != KindInvalidUTF8 {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidUTF8)
		}
		if !strings.Contains(err.Detail, "fffe") {
			t.Errorf("Detail = %v, should contain a hex preview", err.Detail)
		}
	})

	t.Run("SectionSizeMismatch", func(t *testing.T) {
		err := SectionSizeMismatch("type", 10, 12)
		if err.Kind != KindSectionSizeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindSectionSizeMismatch)
		}
		if err.Section != "type" {
			t.Errorf("Section = %v, want 'type'", err.Section)
		}
	})

	t.Run("UnknownOpcode", func(t *testing.T) {
		err := UnknownOpcode(55, 0xD3)
		if err.Kind != KindUnknownOpcode {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnknownOpcode)
		}
		if !strings.Contains(err.Detail, "0xd3") {
			t.Errorf("Detail = %v, should contain the opcode", err.Detail)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseBuild, []string{"instr[3]"}, "i32", "f64")
		if err.Kind != KindTypeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
		}
		if !strings.Contains(err.Detail, "i32") || !strings.Contains(err.Detail, "f64") {
			t.Errorf("Detail = %v, should name both types", err.Detail)
		}
	})

	t.Run("BadIndex", func(t *testing.T) {
		err := BadIndex(PhaseValidate, []string{"func[0]"}, "local", 7, 3)
		if err.Kind != KindBadIndex {
			t.Errorf("Kind = %v, want %v", err.Kind, KindBadIndex)
		}
		if err.Value != uint32(7) {
			t.Errorf("Value = %v, want 7", err.Value)
		}
	})

	t.Run("InvalidID", func(t *testing.T) {
		err := InvalidID("type", 9, 4)
		if err.Kind != KindInvalidID {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidID)
		}
	})

	t.Run("DanglingID", func(t *testing.T) {
		err := DanglingID("function", 3)
		if err.Kind != KindDanglingID || err.Phase != PhaseEncode {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("BadTarget", func(t *testing.T) {
		err := BadTarget([]string{"func[0]", "seq[2]"}, "target seq 5 is not an ancestor")
		if err.Kind != KindBadTarget || err.Phase != PhaseBuild {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseDecode, "bulk memory is disabled")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
	})
}
