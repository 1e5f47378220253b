package vm

import "fmt"

// Chunk is a compiled code artifact: bytecode, a parallel line-number
// sidecar, and a constant pool. Code and Lines grow in lockstep so
// len(Code) == len(Lines) always holds (spec.md invariant 1).
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

// NewChunk returns an empty chunk ready for the compiler to write into.
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 8),
		Lines:     make([]int, 0, 8),
		Constants: make([]Value, 0, 8),
	}
}

// ============================================================================
// Code generation
// ============================================================================

// WriteByte appends a raw byte produced by source line to the chunk.
func (c *Chunk) WriteByte(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOpcode appends an opcode byte.
func (c *Chunk) WriteOpcode(op OpCode, line int) {
	c.WriteByte(byte(op), line)
}

// Count returns the number of bytes currently in Code.
func (c *Chunk) Count() int {
	return len(c.Code)
}

// ============================================================================
// Constant pool
// ============================================================================

// AddConstant appends value to the constant pool and returns its index.
// It does not deduplicate -- that is the compiler's job (it keeps its
// own cache so repeated identical literals share a slot); a bare Chunk
// always grows.
func (c *Chunk) AddConstant(value Value) int {
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// WriteConstant emits either OP_CONSTANT (u8 index) or
// OP_CONSTANT_LONG (big-endian u16 index), chosen by how large the
// constant pool is after adding value, so the pool can exceed 256
// entries without widening every instruction that references an
// earlier, small index.
func (c *Chunk) WriteConstant(value Value, line int) {
	idx := c.AddConstant(value)
	if idx <= 0xFF {
		c.WriteOpcode(OP_CONSTANT, line)
		c.WriteByte(byte(idx), line)
		return
	}
	c.WriteOpcode(OP_CONSTANT_LONG, line)
	c.WriteByte(byte(idx>>8), line)
	c.WriteByte(byte(idx), line)
}

// ============================================================================
// Line lookup
// ============================================================================

// GetLine returns the source line that produced the byte at offset.
func (c *Chunk) GetLine(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// ============================================================================
// Disassembly (debug/trace support)
// ============================================================================

// Disassemble prints every instruction in the chunk under a banner.
func (c *Chunk) Disassemble(name string) {
	fmt.Printf("== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = c.DisassembleInstruction(offset)
	}
}

// DisassembleInstruction prints the instruction at offset and returns
// the offset of the instruction following it.
func (c *Chunk) DisassembleInstruction(offset int) int {
	fmt.Printf("%04d ", offset)

	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Print("   | ")
	} else {
		fmt.Printf("%4d ", c.Lines[offset])
	}

	instruction := OpCode(c.Code[offset])

	switch instruction {
	case OP_NIL, OP_TRUE, OP_FALSE, OP_POP,
		OP_EQUAL, OP_GREATER, OP_LESS, OP_NOT,
		OP_ADD, OP_SUBTRACT, OP_MULTIPLY, OP_DIVIDE, OP_NEGATE,
		OP_PRINT, OP_RETURN:
		return c.simpleInstruction(instruction, offset)

	case OP_CONSTANT:
		return c.constantInstruction(instruction, offset, 1)
	case OP_CONSTANT_LONG:
		return c.constantInstruction(instruction, offset, 2)

	case OP_GET_LOCAL, OP_SET_LOCAL:
		return c.byteInstruction(instruction, offset)
	case OP_GET_LOCAL_LONG, OP_SET_LOCAL_LONG:
		return c.shortInstruction(instruction, offset)

	case OP_GET_GLOBAL, OP_DEFINE_GLOBAL, OP_SET_GLOBAL:
		return c.constantInstruction(instruction, offset, 1)
	case OP_GET_GLOBAL_LONG, OP_DEFINE_GLOBAL_LONG, OP_SET_GLOBAL_LONG:
		return c.constantInstruction(instruction, offset, 2)

	case OP_JUMP, OP_JUMP_IF_FALSE:
		return c.jumpInstruction(instruction, 1, offset)
	case OP_LOOP:
		return c.jumpInstruction(instruction, -1, offset)

	default:
		fmt.Printf("Unknown opcode %d\n", instruction)
		return offset + 1
	}
}

func (c *Chunk) simpleInstruction(op OpCode, offset int) int {
	fmt.Printf("%s\n", op.String())
	return offset + 1
}

func (c *Chunk) byteInstruction(op OpCode, offset int) int {
	slot := c.Code[offset+1]
	fmt.Printf("%-20s %4d\n", op.String(), slot)
	return offset + 2
}

func (c *Chunk) shortInstruction(op OpCode, offset int) int {
	slot := uint16(c.Code[offset+1])<<8 | uint16(c.Code[offset+2])
	fmt.Printf("%-20s %4d\n", op.String(), slot)
	return offset + 3
}

// constantInstruction disassembles a constant/global-name reference
// that is either a 1-byte (width=1) or 2-byte big-endian (width=2)
// index into the constant pool.
func (c *Chunk) constantInstruction(op OpCode, offset int, width int) int {
	var idx int
	if width == 1 {
		idx = int(c.Code[offset+1])
	} else {
		idx = int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	}

	fmt.Printf("%-20s %4d '", op.String(), idx)
	if idx < len(c.Constants) {
		fmt.Print(c.Constants[idx].String())
	}
	fmt.Print("'\n")
	return offset + 1 + width
}

func (c *Chunk) jumpInstruction(op OpCode, sign int, offset int) int {
	jump := int(uint16(c.Code[offset+1])<<8 | uint16(c.Code[offset+2]))
	target := offset + 3 + sign*jump
	fmt.Printf("%-20s %4d -> %d\n", op.String(), offset, target)
	return offset + 3
}
