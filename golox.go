// Package main's sibling driver file wires the compiler and VM
// together. It lives at the module root rather than inside either
// package so that vm never needs to import compiler (compiler already
// imports vm to intern strings).
package main

import (
	"golox/compiler"
	"golox/vm"
)

// Interpret compiles source and, if that succeeds, runs it against
// machine. A fresh Chunk is built for every call; machine's globals
// and intern table persist across calls, which is what lets a REPL
// build on variables a previous line defined.
func Interpret(source string, machine *vm.VM) (vm.InterpretResult, error) {
	c := compiler.New(source, machine)
	chunk, ok := c.Compile()
	if !ok {
		return vm.InterpretCompileError, nil
	}

	return machine.Run(chunk)
}
