package vm

// OpCode is a single one-byte bytecode instruction; operands, when
// present, are inline immediates following it in Chunk.Code.
type OpCode byte

const (
	// ========================================================================
	// Literals and constants
	// ========================================================================

	OP_CONSTANT      OpCode = iota // u8 idx -> push constants[idx]
	OP_CONSTANT_LONG               // u16 idx -> push constants[idx]
	OP_NIL                         // push nil
	OP_TRUE                        // push true
	OP_FALSE                       // push false

	// ========================================================================
	// Stack manipulation
	// ========================================================================

	OP_POP // discard top

	// ========================================================================
	// Variables
	// ========================================================================

	OP_GET_LOCAL          // u8 slot -> push stack[slot]
	OP_GET_LOCAL_LONG     // u16 slot -> push stack[slot]
	OP_SET_LOCAL          // u8 slot -> stack[slot] = peek(0)
	OP_SET_LOCAL_LONG     // u16 slot -> stack[slot] = peek(0)
	OP_GET_GLOBAL         // u8 constant idx of name -> push global, or runtime error
	OP_GET_GLOBAL_LONG    // u16 constant idx
	OP_DEFINE_GLOBAL      // u8 constant idx -> globals[name] = pop()
	OP_DEFINE_GLOBAL_LONG // u16 constant idx
	OP_SET_GLOBAL         // u8 constant idx -> globals[name] = peek(0); runtime error if undefined
	OP_SET_GLOBAL_LONG    // u16 constant idx

	// ========================================================================
	// Comparison and arithmetic
	// ========================================================================

	OP_EQUAL
	OP_GREATER
	OP_LESS
	OP_NOT
	OP_ADD
	OP_SUBTRACT
	OP_MULTIPLY
	OP_DIVIDE
	OP_NEGATE

	// ========================================================================
	// Built-ins and control flow
	// ========================================================================

	OP_PRINT
	OP_JUMP          // u16 offset -> ip += offset
	OP_JUMP_IF_FALSE // u16 offset -> if peek(0) falsey, ip += offset (does not pop)
	OP_LOOP          // u16 offset -> ip -= offset

	OP_RETURN
)

var opcodeNames = map[OpCode]string{
	OP_CONSTANT:           "OP_CONSTANT",
	OP_CONSTANT_LONG:      "OP_CONSTANT_LONG",
	OP_NIL:                "OP_NIL",
	OP_TRUE:               "OP_TRUE",
	OP_FALSE:              "OP_FALSE",
	OP_POP:                "OP_POP",
	OP_GET_LOCAL:          "OP_GET_LOCAL",
	OP_GET_LOCAL_LONG:     "OP_GET_LOCAL_LONG",
	OP_SET_LOCAL:          "OP_SET_LOCAL",
	OP_SET_LOCAL_LONG:     "OP_SET_LOCAL_LONG",
	OP_GET_GLOBAL:         "OP_GET_GLOBAL",
	OP_GET_GLOBAL_LONG:    "OP_GET_GLOBAL_LONG",
	OP_DEFINE_GLOBAL:      "OP_DEFINE_GLOBAL",
	OP_DEFINE_GLOBAL_LONG: "OP_DEFINE_GLOBAL_LONG",
	OP_SET_GLOBAL:         "OP_SET_GLOBAL",
	OP_SET_GLOBAL_LONG:    "OP_SET_GLOBAL_LONG",
	OP_EQUAL:              "OP_EQUAL",
	OP_GREATER:            "OP_GREATER",
	OP_LESS:               "OP_LESS",
	OP_NOT:                "OP_NOT",
	OP_ADD:                "OP_ADD",
	OP_SUBTRACT:           "OP_SUBTRACT",
	OP_MULTIPLY:           "OP_MULTIPLY",
	OP_DIVIDE:             "OP_DIVIDE",
	OP_NEGATE:             "OP_NEGATE",
	OP_PRINT:              "OP_PRINT",
	OP_JUMP:               "OP_JUMP",
	OP_JUMP_IF_FALSE:      "OP_JUMP_IF_FALSE",
	OP_LOOP:               "OP_LOOP",
	OP_RETURN:             "OP_RETURN",
}

// String returns the opcode's name, used by disassembly and trace
// output.
func (op OpCode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
