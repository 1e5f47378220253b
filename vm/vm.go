package vm

import (
	"fmt"
	"os"
)

// STACK_MAX bounds the value stack. The compiler's fixed 256-local cap
// keeps any single chunk well inside this, so overflow here only
// happens to a pathologically deep expression.
const STACK_MAX = 1024

// InterpretResult is the outcome of running a chunk to completion or
// to its first error.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// VM is a single-threaded bytecode interpreter. It owns every string
// ever allocated during its lifetime (via the intrusive Next list
// rooted at objects), the intern set used to dedupe them, and the
// global-variable bindings. A VM must not be shared across goroutines.
type VM struct {
	stack    [STACK_MAX]Value
	stackTop int

	chunk *Chunk
	ip    int

	objects *Obj // head of the intrusive list of every live Obj
	strings *Table
	globals *Table

	Trace bool // when true, dump the stack and disassemble before each instruction
}

// NewVM returns a VM with empty globals and an empty intern set, ready
// to run a chunk via Run.
func NewVM() *VM {
	return &VM{
		strings: NewTable(),
		globals: NewTable(),
	}
}

// InternString returns the canonical *Obj (wrapping an ObjString) for
// chars, allocating and registering a new one only if chars has never
// been seen before. This is the only path allowed to produce a string
// Obj: every other piece of code (compiler, concatenation) must call
// through here so that byte-equality and identity-equality coincide.
func (vm *VM) InternString(chars string) *Obj {
	hash := fnv1a32(chars)
	if interned := vm.strings.FindString(chars, hash); interned != nil {
		return interned
	}

	obj := newStringObj(chars)
	obj.Next = vm.objects
	vm.objects = obj

	vm.strings.Set(obj, NilValue())
	return obj
}

// Close drops the VM's reference to every object it ever allocated.
// Go's collector reclaims anything no longer reachable; clearing the
// head of the list is the idiomatic analogue of clox's
// free_objects sweep over the same intrusive list.
func (vm *VM) Close() {
	vm.objects = nil
}

// ============================================================================
// Stack operations
// ============================================================================

func (vm *VM) push(value Value) {
	vm.stack[vm.stackTop] = value
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
}

// ============================================================================
// Execution
// ============================================================================

// Run points the VM at chunk and executes it from offset 0.
func (vm *VM) Run(chunk *Chunk) (InterpretResult, error) {
	vm.chunk = chunk
	vm.ip = 0
	vm.resetStack()
	return vm.run()
}

// run is the fetch-decode loop. Hot state (ip, stackTop) is cached in
// locals and written back to the VM only before returning or reporting
// an error, so the common path never touches vm.ip/vm.stackTop.
func (vm *VM) run() (InterpretResult, error) {
	var (
		ip       = vm.ip
		stackTop = vm.stackTop
		code     = vm.chunk.Code
	)

	readByte := func() byte {
		b := code[ip]
		ip++
		return b
	}

	// READ_CONSTANT_LONG must read hi then lo as two separate
	// statements -- the source's two READ_BYTE() calls inside one
	// expression have undefined evaluation order, and this is the one
	// place a transliteration would silently inherit that bug.
	readShort := func() uint16 {
		hi := uint16(readByte())
		lo := uint16(readByte())
		return hi<<8 | lo
	}

	readConstant := func() Value {
		return vm.chunk.Constants[readByte()]
	}

	readConstantLong := func() Value {
		idx := readShort()
		return vm.chunk.Constants[idx]
	}

	fail := func(format string, args ...interface{}) (InterpretResult, error) {
		vm.ip = ip
		vm.stackTop = stackTop
		return InterpretRuntimeError, vm.runtimeError(format, args...)
	}

dispatch:
	for {
		if vm.Trace {
			vm.printTrace(stackTop, ip)
		}

		instruction := OpCode(readByte())

		switch instruction {

		// ====================================================================
		// Literals and constants
		// ====================================================================

		case OP_CONSTANT:
			vm.stack[stackTop] = readConstant()
			stackTop++
			goto dispatch

		case OP_CONSTANT_LONG:
			vm.stack[stackTop] = readConstantLong()
			stackTop++
			goto dispatch

		case OP_NIL:
			vm.stack[stackTop] = NilValue()
			stackTop++
			goto dispatch

		case OP_TRUE:
			vm.stack[stackTop] = BoolValue(true)
			stackTop++
			goto dispatch

		case OP_FALSE:
			vm.stack[stackTop] = BoolValue(false)
			stackTop++
			goto dispatch

		// ====================================================================
		// Stack manipulation
		// ====================================================================

		case OP_POP:
			stackTop--
			goto dispatch

		// ====================================================================
		// Locals
		// ====================================================================

		case OP_GET_LOCAL:
			slot := readByte()
			vm.stack[stackTop] = vm.stack[slot]
			stackTop++
			goto dispatch

		case OP_GET_LOCAL_LONG:
			slot := readShort()
			vm.stack[stackTop] = vm.stack[slot]
			stackTop++
			goto dispatch

		case OP_SET_LOCAL:
			slot := readByte()
			vm.stack[slot] = vm.stack[stackTop-1]
			goto dispatch

		case OP_SET_LOCAL_LONG:
			slot := readShort()
			vm.stack[slot] = vm.stack[stackTop-1]
			goto dispatch

		// ====================================================================
		// Globals
		// ====================================================================

		case OP_DEFINE_GLOBAL:
			name := readConstant().Obj
			vm.globals.Set(name, vm.stack[stackTop-1])
			stackTop--
			goto dispatch

		case OP_DEFINE_GLOBAL_LONG:
			name := readConstantLong().Obj
			vm.globals.Set(name, vm.stack[stackTop-1])
			stackTop--
			goto dispatch

		case OP_GET_GLOBAL:
			name := readConstant().Obj
			value, ok := vm.globals.Get(name)
			if !ok {
				vm.stackTop = stackTop
				return fail("Undefined variable '%s'.", name.AsString().Chars)
			}
			vm.stack[stackTop] = value
			stackTop++
			goto dispatch

		case OP_GET_GLOBAL_LONG:
			name := readConstantLong().Obj
			value, ok := vm.globals.Get(name)
			if !ok {
				vm.stackTop = stackTop
				return fail("Undefined variable '%s'.", name.AsString().Chars)
			}
			vm.stack[stackTop] = value
			stackTop++
			goto dispatch

		case OP_SET_GLOBAL:
			name := readConstant().Obj
			if _, ok := vm.globals.Get(name); !ok {
				vm.stackTop = stackTop
				return fail("Undefined variable '%s'.", name.AsString().Chars)
			}
			vm.globals.Set(name, vm.stack[stackTop-1])
			goto dispatch

		case OP_SET_GLOBAL_LONG:
			name := readConstantLong().Obj
			if _, ok := vm.globals.Get(name); !ok {
				vm.stackTop = stackTop
				return fail("Undefined variable '%s'.", name.AsString().Chars)
			}
			vm.globals.Set(name, vm.stack[stackTop-1])
			goto dispatch

		// ====================================================================
		// Comparison
		// ====================================================================

		case OP_EQUAL:
			b := vm.stack[stackTop-1]
			a := vm.stack[stackTop-2]
			stackTop -= 2
			vm.stack[stackTop] = BoolValue(a.Equals(b))
			stackTop++
			goto dispatch

		case OP_GREATER:
			b := vm.stack[stackTop-1]
			a := vm.stack[stackTop-2]
			if !a.IsNumber() || !b.IsNumber() {
				vm.stackTop = stackTop
				return fail("Operands must be numbers.")
			}
			stackTop -= 2
			vm.stack[stackTop] = BoolValue(a.Number > b.Number)
			stackTop++
			goto dispatch

		case OP_LESS:
			b := vm.stack[stackTop-1]
			a := vm.stack[stackTop-2]
			if !a.IsNumber() || !b.IsNumber() {
				vm.stackTop = stackTop
				return fail("Operands must be numbers.")
			}
			stackTop -= 2
			vm.stack[stackTop] = BoolValue(a.Number < b.Number)
			stackTop++
			goto dispatch

		case OP_NOT:
			vm.stack[stackTop-1] = BoolValue(vm.stack[stackTop-1].IsFalsey())
			goto dispatch

		// ====================================================================
		// Arithmetic
		// ====================================================================

		case OP_ADD:
			b := vm.stack[stackTop-1]
			a := vm.stack[stackTop-2]

			switch {
			case a.IsString() && b.IsString():
				stackTop -= 2
				concatenated := a.AsString().Chars + b.AsString().Chars
				vm.stack[stackTop] = ObjValue(vm.InternString(concatenated))
				stackTop++
				goto dispatch
			case a.IsNumber() && b.IsNumber():
				stackTop -= 2
				vm.stack[stackTop] = NumberValue(a.Number + b.Number)
				stackTop++
				goto dispatch
			default:
				vm.stackTop = stackTop
				return fail("Operands must be two numbers or strings.")
			}

		case OP_SUBTRACT:
			b := vm.stack[stackTop-1]
			a := vm.stack[stackTop-2]
			if !a.IsNumber() || !b.IsNumber() {
				vm.stackTop = stackTop
				return fail("Operands must be numbers.")
			}
			stackTop -= 2
			vm.stack[stackTop] = NumberValue(a.Number - b.Number)
			stackTop++
			goto dispatch

		case OP_MULTIPLY:
			b := vm.stack[stackTop-1]
			a := vm.stack[stackTop-2]
			if !a.IsNumber() || !b.IsNumber() {
				vm.stackTop = stackTop
				return fail("Operands must be numbers.")
			}
			stackTop -= 2
			vm.stack[stackTop] = NumberValue(a.Number * b.Number)
			stackTop++
			goto dispatch

		case OP_DIVIDE:
			b := vm.stack[stackTop-1]
			a := vm.stack[stackTop-2]
			if !a.IsNumber() || !b.IsNumber() {
				vm.stackTop = stackTop
				return fail("Operands must be numbers.")
			}
			stackTop -= 2
			vm.stack[stackTop] = NumberValue(a.Number / b.Number)
			stackTop++
			goto dispatch

		case OP_NEGATE:
			if !vm.stack[stackTop-1].IsNumber() {
				vm.stackTop = stackTop
				return fail("Operand must be a number.")
			}
			vm.stack[stackTop-1] = NumberValue(-vm.stack[stackTop-1].Number)
			goto dispatch

		// ====================================================================
		// Built-ins and control flow
		// ====================================================================

		case OP_PRINT:
			stackTop--
			fmt.Println(vm.stack[stackTop].String())
			goto dispatch

		case OP_JUMP:
			offset := readShort()
			ip += int(offset)
			goto dispatch

		case OP_JUMP_IF_FALSE:
			offset := readShort()
			if vm.stack[stackTop-1].IsFalsey() {
				ip += int(offset)
			}
			goto dispatch

		case OP_LOOP:
			offset := readShort()
			ip -= int(offset)
			goto dispatch

		case OP_RETURN:
			vm.ip = ip
			vm.stackTop = stackTop
			return InterpretOK, nil

		default:
			vm.ip = ip
			vm.stackTop = stackTop
			return InterpretRuntimeError, vm.runtimeError("Unknown opcode %d.", instruction)
		}
	}
}

// printTrace dumps the stack bottom-to-top and disassembles the
// instruction about to execute, matching clox's DEBUG_TRACE_EXECUTION.
func (vm *VM) printTrace(stackTop, ip int) {
	fmt.Print("          ")
	for i := 0; i < stackTop; i++ {
		fmt.Printf("[ %s ]", vm.stack[i].String())
	}
	fmt.Println()
	vm.chunk.DisassembleInstruction(ip)
}

// runtimeError reports msg at the line of the instruction that just
// faulted (ip-1, since ip has already advanced past the opcode byte),
// resets the stack, and returns an error describing the same failure
// for callers that want it programmatically.
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	line := vm.chunk.GetLine(vm.ip - 1)
	fmt.Fprintf(os.Stderr, "%s\n[line %d] in script\n", msg, line)
	vm.resetStack()
	return fmt.Errorf("%s", msg)
}
