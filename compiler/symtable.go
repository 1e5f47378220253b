package compiler

import "fmt"

// maxLocals bounds how many locals a single scope chain may hold at
// once; it is also the boundary the VM's 1024-cell value stack
// budget assumes callers respect.
const maxLocals = 256

// local is a single lexically-scoped binding. It does not carry a
// slot index: a local's slot is always its position in locals, since
// locals live directly on the VM's value stack in declaration order.
// depth == -1 marks "declared but not yet initialized" -- the window
// during which evaluating the local's own initializer must fail.
type local struct {
	name  string
	depth int
}

// localTable is the compiler's fixed-capacity mirror of the VM's
// stack slots for the locals currently in scope.
type localTable struct {
	locals     [maxLocals]local
	count      int
	scopeDepth int
}

func (lt *localTable) beginScope() { lt.scopeDepth++ }

// endScope closes the innermost scope and reports how many locals it
// held, so the caller can emit that many POPs -- the locals themselves
// occupy real stack slots that must be discarded explicitly.
func (lt *localTable) endScope() int {
	lt.scopeDepth--
	popped := 0
	for lt.count > 0 && lt.locals[lt.count-1].depth > lt.scopeDepth {
		lt.count--
		popped++
	}
	return popped
}

// declare adds name as a new local in the current scope, or does
// nothing at global scope (depth 0), where variables are named
// globals instead. It rejects redeclaring a name already bound at the
// same depth and enforces the maxLocals cap.
func (lt *localTable) declare(name string) error {
	if lt.scopeDepth == 0 {
		return nil
	}

	for i := lt.count - 1; i >= 0; i-- {
		l := &lt.locals[i]
		if l.depth != -1 && l.depth < lt.scopeDepth {
			break
		}
		if l.name == name {
			return fmt.Errorf("Already a variable with this name in this scope.")
		}
	}

	if lt.count == maxLocals {
		return fmt.Errorf("Too many local variables in function.")
	}

	lt.locals[lt.count] = local{name: name, depth: -1}
	lt.count++
	return nil
}

// markInitialized promotes the most recently declared local from
// "pending" (depth -1) to the current scope depth, making it visible
// to resolve. It is a no-op at global scope, where there is no local
// to mark.
func (lt *localTable) markInitialized() {
	if lt.scopeDepth == 0 {
		return
	}
	lt.locals[lt.count-1].depth = lt.scopeDepth
}

// resolve searches locals from the top down for name. found is false
// with a nil error when no local matches (the caller should fall back
// to treating name as a global). A non-nil error means name matched a
// local that is still being initialized -- the self-reference case.
func (lt *localTable) resolve(name string) (slot int, found bool, err error) {
	for i := lt.count - 1; i >= 0; i-- {
		l := &lt.locals[i]
		if l.name != name {
			continue
		}
		if l.depth == -1 {
			return 0, false, fmt.Errorf("Can't read local variable in its own initializer.")
		}
		return i, true, nil
	}
	return 0, false, nil
}
