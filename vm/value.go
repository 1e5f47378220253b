package vm

import "fmt"

// Kind discriminates the variant a Value currently holds.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObj
)

// Value is a tagged sum: Nil, Bool(bool), Number(f64), or Object(heap
// ref). Equality is structural for the primitive variants and
// identity-via-interning for strings (see Equals).
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Obj    *Obj
}

// ============================================================================
// Constructors
// ============================================================================

func NilValue() Value                { return Value{Kind: KindNil} }
func BoolValue(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func NumberValue(n float64) Value    { return Value{Kind: KindNumber, Number: n} }
func ObjValue(o *Obj) Value          { return Value{Kind: KindObj, Obj: o} }

// ============================================================================
// Type checking
// ============================================================================

func (v Value) IsNil() bool    { return v.Kind == KindNil }
func (v Value) IsBool() bool   { return v.Kind == KindBool }
func (v Value) IsNumber() bool { return v.Kind == KindNumber }
func (v Value) IsObj() bool    { return v.Kind == KindObj }

func (v Value) IsString() bool {
	return v.Kind == KindObj && v.Obj.Kind == ObjKindString
}

// AsString extracts the string payload. The caller must have already
// checked IsString.
func (v Value) AsString() *ObjString {
	return v.Obj.AsString()
}

// ============================================================================
// Truthiness
// ============================================================================

// IsFalsey reports whether v is one of the two falsy values: Nil or
// false. Every other value -- including 0, "", and NaN -- is truthy.
func (v Value) IsFalsey() bool {
	switch v.Kind {
	case KindNil:
		return true
	case KindBool:
		return !v.Bool
	default:
		return false
	}
}

func (v Value) IsTruthy() bool { return !v.IsFalsey() }

// ============================================================================
// Equality
// ============================================================================

// Equals implements spec.md's EQUAL semantics: different kinds are
// never equal; Nil equals Nil; Bool compares by value; Number compares
// with IEEE == (so NaN != NaN and -0.0 == 0.0); String compares by
// identity first (interning makes that valid) and falls back to byte
// equality so two independently-constructed, not-yet-interned
// ObjStrings still compare correctly.
func (v Value) Equals(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindNumber:
		return v.Number == other.Number
	case KindObj:
		if v.Obj == other.Obj {
			return true
		}
		if v.IsString() && other.IsString() {
			return v.AsString().Chars == other.AsString().Chars
		}
		return false
	default:
		return false
	}
}

// ============================================================================
// String representation (printing, disassembly, error messages)
// ============================================================================

func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Number)
	case KindObj:
		switch v.Obj.Kind {
		case ObjKindString:
			return v.Obj.AsString().Chars
		default:
			return "<obj>"
		}
	default:
		return "<unknown>"
	}
}

// TypeName returns the human-readable name of v's type ("nil",
// "boolean", "number", "string").
func (v Value) TypeName() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindObj:
		switch v.Obj.Kind {
		case ObjKindString:
			return "string"
		default:
			return "object"
		}
	default:
		return "unknown"
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) && n < 1e15 && n > -1e15 {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}
