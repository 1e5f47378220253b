package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConstant appends OP_CONSTANT (the chunk is always small enough
// in these tests to fit the one-byte form) plus its operand.
func writeConstant(chunk *Chunk, value Value, line int) {
	idx := chunk.AddConstant(value)
	chunk.WriteOpcode(OP_CONSTANT, line)
	chunk.WriteByte(byte(idx), line)
}

// runChunk executes chunk against a fresh VM and returns the VM so the
// test can inspect whatever OP_RETURN left on top of the stack.
func runChunk(t *testing.T, chunk *Chunk) *VM {
	t.Helper()
	machine := NewVM()
	result, err := machine.Run(chunk)
	require.NoError(t, err)
	require.Equal(t, InterpretOK, result)
	return machine
}

func TestVM_Arithmetic(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float64
		op       OpCode
		expected float64
	}{
		{"5 + 3", 5, 3, OP_ADD, 8},
		{"10 - 4", 10, 4, OP_SUBTRACT, 6},
		{"6 * 7", 6, 7, OP_MULTIPLY, 42},
		{"20 / 4", 20, 4, OP_DIVIDE, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := NewChunk()
			writeConstant(chunk, NumberValue(tt.a), 1)
			writeConstant(chunk, NumberValue(tt.b), 1)
			chunk.WriteOpcode(tt.op, 1)
			chunk.WriteOpcode(OP_RETURN, 1)

			machine := runChunk(t, chunk)
			got := machine.peek(0)
			require.True(t, got.IsNumber())
			assert.Equal(t, tt.expected, got.Number)
		})
	}
}

func TestVM_Negate(t *testing.T) {
	chunk := NewChunk()
	writeConstant(chunk, NumberValue(42), 1)
	chunk.WriteOpcode(OP_NEGATE, 1)
	chunk.WriteOpcode(OP_RETURN, 1)

	machine := runChunk(t, chunk)
	assert.Equal(t, -42.0, machine.peek(0).Number)
}

func TestVM_Comparison(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float64
		op       OpCode
		expected bool
	}{
		{"5 > 3", 5, 3, OP_GREATER, true},
		{"3 > 5", 3, 5, OP_GREATER, false},
		{"3 < 5", 3, 5, OP_LESS, true},
		{"5 < 3", 5, 3, OP_LESS, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := NewChunk()
			writeConstant(chunk, NumberValue(tt.a), 1)
			writeConstant(chunk, NumberValue(tt.b), 1)
			chunk.WriteOpcode(tt.op, 1)
			chunk.WriteOpcode(OP_RETURN, 1)

			machine := runChunk(t, chunk)
			got := machine.peek(0)
			require.True(t, got.IsBool())
			assert.Equal(t, tt.expected, got.Bool)
		})
	}
}

func TestVM_EqualAcrossTypes(t *testing.T) {
	chunk := NewChunk()
	writeConstant(chunk, NumberValue(5), 1)
	writeConstant(chunk, NumberValue(5), 1)
	chunk.WriteOpcode(OP_EQUAL, 1)
	chunk.WriteOpcode(OP_RETURN, 1)

	machine := runChunk(t, chunk)
	assert.True(t, machine.peek(0).Bool)
}

func TestVM_Literals(t *testing.T) {
	tests := []struct {
		name     string
		op       OpCode
		expected Value
	}{
		{"nil", OP_NIL, NilValue()},
		{"true", OP_TRUE, BoolValue(true)},
		{"false", OP_FALSE, BoolValue(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := NewChunk()
			chunk.WriteOpcode(tt.op, 1)
			chunk.WriteOpcode(OP_RETURN, 1)

			machine := runChunk(t, chunk)
			assert.True(t, machine.peek(0).Equals(tt.expected))
		})
	}
}

func TestVM_Not(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected bool
	}{
		{"!true", BoolValue(true), false},
		{"!false", BoolValue(false), true},
		{"!nil", NilValue(), true},
		{"!42", NumberValue(42), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := NewChunk()
			writeConstant(chunk, tt.value, 1)
			chunk.WriteOpcode(OP_NOT, 1)
			chunk.WriteOpcode(OP_RETURN, 1)

			machine := runChunk(t, chunk)
			assert.Equal(t, tt.expected, machine.peek(0).Bool)
		})
	}
}

func TestVM_StringConcatenationInterns(t *testing.T) {
	// "Hello" + " " + "World"
	chunk := NewChunk()
	machine := NewVM()

	writeConstant(chunk, ObjValue(machine.InternString("Hello")), 1)
	writeConstant(chunk, ObjValue(machine.InternString(" ")), 1)
	chunk.WriteOpcode(OP_ADD, 1)
	writeConstant(chunk, ObjValue(machine.InternString("World")), 1)
	chunk.WriteOpcode(OP_ADD, 1)
	chunk.WriteOpcode(OP_RETURN, 1)

	result, err := machine.Run(chunk)
	require.NoError(t, err)
	require.Equal(t, InterpretOK, result)

	got := machine.peek(0)
	require.True(t, got.IsString())
	assert.Equal(t, "Hello World", got.AsString().Chars)

	// The concatenation result must be the same Obj a fresh intern of
	// the identical text would return -- interning, not a one-off
	// allocation, produced it.
	assert.Same(t, got.Obj, machine.InternString("Hello World"))
}

func TestVM_GlobalDefineAndGet(t *testing.T) {
	chunk := NewChunk()
	machine := NewVM()
	name := ObjValue(machine.InternString("x"))

	writeConstant(chunk, NumberValue(42), 1)
	chunk.AddConstant(name)
	nameIdx := len(chunk.Constants) - 1
	chunk.WriteOpcode(OP_DEFINE_GLOBAL, 1)
	chunk.WriteByte(byte(nameIdx), 1)

	chunk.WriteOpcode(OP_GET_GLOBAL, 1)
	chunk.WriteByte(byte(nameIdx), 1)
	writeConstant(chunk, NumberValue(8), 1)
	chunk.WriteOpcode(OP_ADD, 1)
	chunk.WriteOpcode(OP_RETURN, 1)

	result, err := machine.Run(chunk)
	require.NoError(t, err)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, 50.0, machine.peek(0).Number)
}

func TestVM_LocalGetSet(t *testing.T) {
	// push 1 (becomes slot 0), SET_LOCAL 0 <- 2, leaves [2] on the stack
	chunk := NewChunk()
	writeConstant(chunk, NumberValue(1), 1)
	writeConstant(chunk, NumberValue(2), 1)
	chunk.WriteOpcode(OP_SET_LOCAL, 1)
	chunk.WriteByte(0, 1)
	chunk.WriteOpcode(OP_POP, 1) // drop the assignment expression's own value
	chunk.WriteOpcode(OP_GET_LOCAL, 1)
	chunk.WriteByte(0, 1)
	chunk.WriteOpcode(OP_RETURN, 1)

	machine := runChunk(t, chunk)
	assert.Equal(t, 2.0, machine.peek(0).Number)
}

func TestVM_JumpIfFalseSkipsWithoutPopping(t *testing.T) {
	chunk := NewChunk()
	writeConstant(chunk, BoolValue(false), 1)
	jumpPos := chunk.Count()
	chunk.WriteOpcode(OP_JUMP_IF_FALSE, 1)
	chunk.WriteByte(0, 1)
	chunk.WriteByte(0, 1)
	writeConstant(chunk, NumberValue(999), 1) // skipped
	target := chunk.Count()
	offset := target - (jumpPos + 3)
	chunk.Code[jumpPos+1] = byte(offset >> 8)
	chunk.Code[jumpPos+2] = byte(offset)
	chunk.WriteOpcode(OP_RETURN, 1)

	machine := runChunk(t, chunk)
	assert.Equal(t, false, machine.peek(0).Bool, "JUMP_IF_FALSE never pops its condition")
}

func TestVM_Loop(t *testing.T) {
	// counter = 0; while (counter < 3) counter = counter + 1;
	chunk := NewChunk()
	machine := NewVM()
	counter := ObjValue(machine.InternString("counter"))

	writeConstant(chunk, NumberValue(0), 1)
	chunk.AddConstant(counter)
	nameIdx := len(chunk.Constants) - 1
	chunk.WriteOpcode(OP_DEFINE_GLOBAL, 1)
	chunk.WriteByte(byte(nameIdx), 1)

	loopStart := chunk.Count()
	chunk.WriteOpcode(OP_GET_GLOBAL, 1)
	chunk.WriteByte(byte(nameIdx), 1)
	writeConstant(chunk, NumberValue(3), 1)
	chunk.WriteOpcode(OP_LESS, 1)

	exitJump := chunk.Count()
	chunk.WriteOpcode(OP_JUMP_IF_FALSE, 1)
	chunk.WriteByte(0, 1)
	chunk.WriteByte(0, 1)
	chunk.WriteOpcode(OP_POP, 1) // discard the truthy condition

	chunk.WriteOpcode(OP_GET_GLOBAL, 1)
	chunk.WriteByte(byte(nameIdx), 1)
	writeConstant(chunk, NumberValue(1), 1)
	chunk.WriteOpcode(OP_ADD, 1)
	chunk.WriteOpcode(OP_SET_GLOBAL, 1)
	chunk.WriteByte(byte(nameIdx), 1)
	chunk.WriteOpcode(OP_POP, 1)

	loopOffset := chunk.Count() - loopStart + 3
	chunk.WriteOpcode(OP_LOOP, 1)
	chunk.WriteByte(byte(loopOffset>>8), 1)
	chunk.WriteByte(byte(loopOffset), 1)

	exitOffset := chunk.Count() - (exitJump + 3)
	chunk.Code[exitJump+1] = byte(exitOffset >> 8)
	chunk.Code[exitJump+2] = byte(exitOffset)
	chunk.WriteOpcode(OP_POP, 1) // discard the falsey condition that ended the loop

	chunk.WriteOpcode(OP_GET_GLOBAL, 1)
	chunk.WriteByte(byte(nameIdx), 1)
	chunk.WriteOpcode(OP_RETURN, 1)

	result, err := machine.Run(chunk)
	require.NoError(t, err)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, 3.0, machine.peek(0).Number)
}

func TestVM_DivisionByZeroIsInfNotAnError(t *testing.T) {
	chunk := NewChunk()
	writeConstant(chunk, NumberValue(10), 1)
	writeConstant(chunk, NumberValue(0), 1)
	chunk.WriteOpcode(OP_DIVIDE, 1)
	chunk.WriteOpcode(OP_RETURN, 1)

	machine := runChunk(t, chunk)
	assert.True(t, machine.peek(0).Number > 1e300, "IEEE 754 float division never traps")
}

func TestVM_TypeErrorArithmetic(t *testing.T) {
	chunk := NewChunk()
	writeConstant(chunk, NumberValue(5), 1)
	chunk.WriteOpcode(OP_TRUE, 1)
	chunk.WriteOpcode(OP_SUBTRACT, 1)
	chunk.WriteOpcode(OP_RETURN, 1)

	machine := NewVM()
	result, err := machine.Run(chunk)
	require.Error(t, err)
	assert.Equal(t, InterpretRuntimeError, result)
	assert.Contains(t, err.Error(), "Operands must be numbers.")
}

func TestVM_UndefinedGlobalGetIsARuntimeError(t *testing.T) {
	chunk := NewChunk()
	machine := NewVM()
	name := ObjValue(machine.InternString("undefined_var"))
	writeConstant(chunk, name, 1)
	nameIdx := len(chunk.Constants) - 1
	chunk.WriteOpcode(OP_GET_GLOBAL, 1)
	chunk.WriteByte(byte(nameIdx), 1)
	chunk.WriteOpcode(OP_RETURN, 1)

	result, err := machine.Run(chunk)
	require.Error(t, err)
	assert.Equal(t, InterpretRuntimeError, result)
	assert.Contains(t, err.Error(), "Undefined variable 'undefined_var'.")
}

func TestVM_UndefinedGlobalSetIsARuntimeError(t *testing.T) {
	chunk := NewChunk()
	machine := NewVM()
	name := ObjValue(machine.InternString("x"))
	writeConstant(chunk, NumberValue(1), 1)
	writeConstant(chunk, name, 1)
	nameIdx := len(chunk.Constants) - 1
	chunk.WriteOpcode(OP_SET_GLOBAL, 1)
	chunk.WriteByte(byte(nameIdx), 1)
	chunk.WriteOpcode(OP_RETURN, 1)

	result, err := machine.Run(chunk)
	require.Error(t, err)
	assert.Equal(t, InterpretRuntimeError, result)
	assert.Contains(t, err.Error(), "Undefined variable 'x'.")
}

func TestVM_RuntimeErrorResetsTheStack(t *testing.T) {
	chunk := NewChunk()
	writeConstant(chunk, NumberValue(5), 1)
	chunk.WriteOpcode(OP_TRUE, 1)
	chunk.WriteOpcode(OP_SUBTRACT, 1)
	chunk.WriteOpcode(OP_RETURN, 1)

	machine := NewVM()
	_, err := machine.Run(chunk)
	require.Error(t, err)
	assert.Equal(t, 0, machine.stackTop)
}

func TestVM_PeekSeesTopWithoutPopping(t *testing.T) {
	machine := NewVM()
	machine.push(NumberValue(1))
	machine.push(NumberValue(2))
	assert.Equal(t, 2.0, machine.peek(0).Number)
	assert.Equal(t, 1.0, machine.peek(1).Number)
	assert.Equal(t, 2, machine.stackTop)
}

func TestChunk_Disassemble(t *testing.T) {
	chunk := NewChunk()
	writeConstant(chunk, NumberValue(5), 1)
	writeConstant(chunk, NumberValue(3), 1)
	chunk.WriteOpcode(OP_ADD, 1)
	chunk.WriteOpcode(OP_RETURN, 1)

	assert.NotPanics(t, func() { chunk.Disassemble("test") })
}
