// Package compiler parses source text directly into bytecode in a
// single pass: a Pratt (precedence-climbing) parser whose prefix and
// infix rules emit instructions as they go, with no intermediate AST.
package compiler

import (
	"fmt"
	"os"
	"strconv"

	"golox/scanner"
	"golox/token"
	"golox/vm"
)

// Precedence orders binding power from loosest to tightest; a rule's
// infix handler is only invoked while the current token's precedence
// is at least as tight as the precedence parsePrecedence was called
// with.
type Precedence int

const (
	PREC_NONE       Precedence = iota
	PREC_ASSIGNMENT            // =
	PREC_OR                    // or
	PREC_AND                   // and
	PREC_EQUALITY              // == !=
	PREC_COMPARISON            // < > <= >=
	PREC_TERM                  // + -
	PREC_FACTOR                // * /
	PREC_UNARY                 // ! -
	PREC_CALL                  // . ()
	PREC_PRIMARY
)

type parseFn func(c *Compiler, canAssign bool)

type rule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is assigned from ruleTable in init rather than by its own
// initializer: the parse functions in the table reach back into it
// through getRule, which Go rejects as an initialization cycle.
var rules map[token.Type]rule

func init() { rules = ruleTable }

var ruleTable = map[token.Type]rule{
	token.LEFT_PAREN:    {grouping, nil, PREC_NONE},
	token.RIGHT_PAREN:   {nil, nil, PREC_NONE},
	token.LEFT_BRACE:    {nil, nil, PREC_NONE},
	token.RIGHT_BRACE:   {nil, nil, PREC_NONE},
	token.COMMA:         {nil, nil, PREC_NONE},
	token.DOT:           {nil, nil, PREC_NONE},
	token.MINUS:         {unary, binary, PREC_TERM},
	token.PLUS:          {nil, binary, PREC_TERM},
	token.SEMICOLON:     {nil, nil, PREC_NONE},
	token.SLASH:         {nil, binary, PREC_FACTOR},
	token.STAR:          {nil, binary, PREC_FACTOR},
	token.BANG:          {unary, nil, PREC_NONE},
	token.BANG_EQUAL:    {nil, binary, PREC_EQUALITY},
	token.EQUAL:         {nil, nil, PREC_NONE},
	token.EQUAL_EQUAL:   {nil, binary, PREC_EQUALITY},
	token.GREATER:       {nil, binary, PREC_COMPARISON},
	token.GREATER_EQUAL: {nil, binary, PREC_COMPARISON},
	token.LESS:          {nil, binary, PREC_COMPARISON},
	token.LESS_EQUAL:    {nil, binary, PREC_COMPARISON},
	token.IDENT:         {variable, nil, PREC_NONE},
	token.STRING:        {str, nil, PREC_NONE},
	token.NUMBER:        {number, nil, PREC_NONE},
	token.AND:           {nil, and_, PREC_AND},
	token.CLASS:         {nil, nil, PREC_NONE},
	token.ELSE:          {nil, nil, PREC_NONE},
	token.FALSE:         {literal, nil, PREC_NONE},
	token.FOR:           {nil, nil, PREC_NONE},
	token.FN:            {nil, nil, PREC_NONE},
	token.IF:            {nil, nil, PREC_NONE},
	token.NIL:           {literal, nil, PREC_NONE},
	token.OR:            {nil, or_, PREC_OR},
	token.PRINT:         {nil, nil, PREC_NONE},
	token.RETURN:        {nil, nil, PREC_NONE},
	token.SUPER:         {nil, nil, PREC_NONE},
	token.THIS:          {nil, nil, PREC_NONE},
	token.TRUE:          {literal, nil, PREC_NONE},
	token.LET:           {nil, nil, PREC_NONE},
	token.WHILE:         {nil, nil, PREC_NONE},
}

func getRule(t token.Type) rule {
	if r, ok := rules[t]; ok {
		return r
	}
	return rule{}
}

// Compiler drives a Scanner and emits straight into one Chunk. It
// interns string constants through the VM it is given, so that a
// string literal compiled here and a string built at runtime by
// concatenation end up as the same *Obj whenever their bytes match.
type Compiler struct {
	sc    *scanner.Scanner
	vm    *vm.VM
	chunk *vm.Chunk

	current  token.Token
	previous token.Token

	hadError  bool
	panicMode bool

	locals localTable

	constants map[string]int
}

// New returns a Compiler ready to compile source against machine's
// intern table. machine is not run by the compiler; it is only used
// to intern string constants.
func New(source string, machine *vm.VM) *Compiler {
	return &Compiler{
		sc:        scanner.New(source),
		vm:        machine,
		chunk:     vm.NewChunk(),
		constants: make(map[string]int),
	}
}

// Compile parses and emits every declaration in the source until EOF.
// The returned bool is false if any compile error was reported; the
// chunk is still returned (possibly partial) for callers that want to
// disassemble it anyway, but the VM must never run it when false.
func (c *Compiler) Compile() (*vm.Chunk, bool) {
	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	c.emitOpcode(vm.OP_RETURN)
	return c.chunk, !c.hadError
}

// ============================================================================
// Token stream
// ============================================================================

// advance consumes the current token into previous and pulls the next
// real token into current, reporting (and skipping) any ILLEGAL token
// along the way -- the scanner's out-of-band error tokens.
func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.sc.NextToken()
		if c.current.Type != token.ILLEGAL {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) consume(t token.Type, message string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

func (c *Compiler) check(t token.Type) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t token.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

// ============================================================================
// Error reporting
// ============================================================================

func (c *Compiler) errorAtCurrent(message string) {
	c.errorAt(c.current, message)
}

func (c *Compiler) error(message string) {
	c.errorAt(c.previous, message)
}

// errorAt prints a compile error in context and enters panic mode,
// which suppresses every further error until synchronize finds a
// statement boundary. This is why a source file with many mistakes
// still reports a bounded, useful set rather than a cascade.
func (c *Compiler) errorAt(tok token.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true

	fmt.Fprintf(os.Stderr, "[line %d] Error", tok.Line)
	switch tok.Type {
	case token.EOF:
		fmt.Fprint(os.Stderr, " at end")
	case token.ILLEGAL:
		// No location: the scanner already embedded the message.
	default:
		fmt.Fprintf(os.Stderr, " at '%s'", tok.Lexeme)
	}
	fmt.Fprintf(os.Stderr, ": %s\n", message)

	c.hadError = true
}

// synchronize discards tokens until it reaches a likely statement
// boundary, so one mistake doesn't cascade into a wall of spurious
// follow-on errors.
func (c *Compiler) synchronize() {
	c.panicMode = false

	for c.current.Type != token.EOF {
		if c.previous.Type == token.SEMICOLON {
			return
		}
		switch c.current.Type {
		case token.CLASS, token.FN, token.LET, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

// ============================================================================
// Declarations and statements
// ============================================================================

func (c *Compiler) declaration() {
	if c.match(token.LET) {
		c.letDeclaration()
	} else {
		c.statement()
	}

	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) letDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(token.EQUAL) {
		c.expression()
	} else {
		c.emitOpcode(vm.OP_NIL)
	}
	c.consume(token.SEMICOLON, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

// parseVariable consumes the variable's name, declares it as a local
// if we're inside a scope, and returns the constant-pool index for its
// name (used by global declarations only; a local ignores the return
// value).
func (c *Compiler) parseVariable(errMessage string) int {
	c.consume(token.IDENT, errMessage)

	if err := c.locals.declare(c.previous.Lexeme); err != nil {
		c.error(err.Error())
	}
	if c.locals.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous.Lexeme)
}

func (c *Compiler) identifierConstant(name string) int {
	return c.addConstant(vm.ObjValue(c.vm.InternString(name)))
}

// defineVariable makes a declared variable visible: for a local, that
// just means marking its stack slot initialized (the value is already
// sitting there); for a global, it emits the binding instruction.
func (c *Compiler) defineVariable(global int) {
	if c.locals.scopeDepth > 0 {
		c.locals.markInitialized()
		return
	}
	c.emitConstantOp(vm.OP_DEFINE_GLOBAL, vm.OP_DEFINE_GLOBAL_LONG, global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.LEFT_BRACE):
		c.locals.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after value.")
	c.emitOpcode(vm.OP_PRINT)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after expression.")
	c.emitOpcode(vm.OP_POP)
}

func (c *Compiler) block() {
	for !c.check(token.RIGHT_BRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RIGHT_BRACE, "Expect '}' after block.")
}

// endScope closes the innermost scope and emits the POPs its locals'
// departure requires; locals are stack slots, so leaving scope means
// discarding them for real.
func (c *Compiler) endScope() {
	popped := c.locals.endScope()
	for i := 0; i < popped; i++ {
		c.emitOpcode(vm.OP_POP)
	}
}

func (c *Compiler) ifStatement() {
	c.consume(token.LEFT_PAREN, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expect ')' after condition.")

	thenJump := c.emitJump(vm.OP_JUMP_IF_FALSE)
	c.emitOpcode(vm.OP_POP)
	c.statement()

	elseJump := c.emitJump(vm.OP_JUMP)
	c.patchJump(thenJump)
	c.emitOpcode(vm.OP_POP)

	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := c.chunk.Count()

	c.consume(token.LEFT_PAREN, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expect ')' after condition.")

	exitJump := c.emitJump(vm.OP_JUMP_IF_FALSE)
	c.emitOpcode(vm.OP_POP)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOpcode(vm.OP_POP)
}

// ============================================================================
// Expressions (Pratt parser)
// ============================================================================

func (c *Compiler) expression() {
	c.parsePrecedence(PREC_ASSIGNMENT)
}

// parsePrecedence is the core of the Pratt parser: consume one prefix
// expression, then keep folding in infix operators as long as they
// bind at least as tightly as prec. canAssign threads through both
// so that only an expression parsed at assignment precedence or
// looser can ever consume a trailing '='.
func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := getRule(c.previous.Type).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}

	canAssign := prec <= PREC_ASSIGNMENT
	prefix(c, canAssign)

	for prec <= getRule(c.current.Type).precedence {
		c.advance()
		infix := getRule(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.EQUAL) {
		c.error("Invalid assignment target.")
	}
}

func grouping(c *Compiler, _ bool) {
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expect ')' after expression.")
}

func unary(c *Compiler, _ bool) {
	opType := c.previous.Type
	c.parsePrecedence(PREC_UNARY)

	switch opType {
	case token.BANG:
		c.emitOpcode(vm.OP_NOT)
	case token.MINUS:
		c.emitOpcode(vm.OP_NEGATE)
	}
}

func binary(c *Compiler, _ bool) {
	opType := c.previous.Type
	r := getRule(opType)
	c.parsePrecedence(r.precedence + 1)

	switch opType {
	case token.PLUS:
		c.emitOpcode(vm.OP_ADD)
	case token.MINUS:
		c.emitOpcode(vm.OP_SUBTRACT)
	case token.STAR:
		c.emitOpcode(vm.OP_MULTIPLY)
	case token.SLASH:
		c.emitOpcode(vm.OP_DIVIDE)
	case token.EQUAL_EQUAL:
		c.emitOpcode(vm.OP_EQUAL)
	case token.BANG_EQUAL:
		c.emitOpcode(vm.OP_EQUAL)
		c.emitOpcode(vm.OP_NOT)
	case token.GREATER:
		c.emitOpcode(vm.OP_GREATER)
	case token.GREATER_EQUAL:
		c.emitOpcode(vm.OP_LESS)
		c.emitOpcode(vm.OP_NOT)
	case token.LESS:
		c.emitOpcode(vm.OP_LESS)
	case token.LESS_EQUAL:
		c.emitOpcode(vm.OP_GREATER)
		c.emitOpcode(vm.OP_NOT)
	}
}

func and_(c *Compiler, _ bool) {
	endJump := c.emitJump(vm.OP_JUMP_IF_FALSE)
	c.emitOpcode(vm.OP_POP)
	c.parsePrecedence(PREC_AND)
	c.patchJump(endJump)
}

func or_(c *Compiler, _ bool) {
	elseJump := c.emitJump(vm.OP_JUMP_IF_FALSE)
	endJump := c.emitJump(vm.OP_JUMP)

	c.patchJump(elseJump)
	c.emitOpcode(vm.OP_POP)

	c.parsePrecedence(PREC_OR)
	c.patchJump(endJump)
}

func number(c *Compiler, _ bool) {
	value, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(vm.NumberValue(value))
}

// str compiles a string literal. The scanner has already stripped the
// delimiting quotes, so previous.Lexeme is exactly the interior bytes.
func str(c *Compiler, _ bool) {
	obj := c.vm.InternString(c.previous.Lexeme)
	c.emitConstant(vm.ObjValue(obj))
}

func literal(c *Compiler, _ bool) {
	switch c.previous.Type {
	case token.FALSE:
		c.emitOpcode(vm.OP_FALSE)
	case token.NIL:
		c.emitOpcode(vm.OP_NIL)
	case token.TRUE:
		c.emitOpcode(vm.OP_TRUE)
	}
}

func variable(c *Compiler, canAssign bool) {
	c.namedVariable(c.previous.Lexeme, canAssign)
}

// namedVariable resolves name to a local slot if one is in scope,
// otherwise to a global constant index, then emits a GET or, if an
// assignment follows and one is permitted here, compiles the RHS and
// emits a SET.
func (c *Compiler) namedVariable(name string, canAssign bool) {
	slot, found, err := c.locals.resolve(name)
	if err != nil {
		c.error(err.Error())
		return
	}

	if found {
		if canAssign && c.match(token.EQUAL) {
			c.expression()
			c.emitConstantOp(vm.OP_SET_LOCAL, vm.OP_SET_LOCAL_LONG, slot)
		} else {
			c.emitConstantOp(vm.OP_GET_LOCAL, vm.OP_GET_LOCAL_LONG, slot)
		}
		return
	}

	idx := c.identifierConstant(name)
	if canAssign && c.match(token.EQUAL) {
		c.expression()
		c.emitConstantOp(vm.OP_SET_GLOBAL, vm.OP_SET_GLOBAL_LONG, idx)
	} else {
		c.emitConstantOp(vm.OP_GET_GLOBAL, vm.OP_GET_GLOBAL_LONG, idx)
	}
}

// ============================================================================
// Code generation helpers
// ============================================================================

func (c *Compiler) emitOpcode(op vm.OpCode) int {
	pos := c.chunk.Count()
	c.chunk.WriteOpcode(op, c.previous.Line)
	return pos
}

func (c *Compiler) emitByte(b byte) {
	c.chunk.WriteByte(b, c.previous.Line)
}

// emitConstantOp picks the short (1-byte operand) or long (2-byte,
// big-endian operand) form of a paired opcode based on idx, the same
// choice Chunk.WriteConstant makes for literal constants -- reused
// here because GET/SET_LOCAL and GET/SET/DEFINE_GLOBAL all share the
// identical short-vs-long shape keyed off an index.
func (c *Compiler) emitConstantOp(short, long vm.OpCode, idx int) {
	if idx <= 0xFF {
		c.emitOpcode(short)
		c.emitByte(byte(idx))
		return
	}
	c.emitOpcode(long)
	c.emitByte(byte(idx >> 8))
	c.emitByte(byte(idx))
}

func (c *Compiler) emitConstant(value vm.Value) {
	c.emitConstantOp(vm.OP_CONSTANT, vm.OP_CONSTANT_LONG, c.addConstant(value))
}

// emitJump writes op followed by a two-byte placeholder and returns
// the offset of that placeholder for patchJump to fill in once the
// jump target is known.
func (c *Compiler) emitJump(op vm.OpCode) int {
	c.emitOpcode(op)
	c.emitByte(0xFF)
	c.emitByte(0xFF)
	return c.chunk.Count() - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := c.chunk.Count() - offset - 2
	if jump > 0xFFFF {
		c.error("Too much code to jump over.")
		return
	}
	c.chunk.Code[offset] = byte(jump >> 8)
	c.chunk.Code[offset+1] = byte(jump)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOpcode(vm.OP_LOOP)

	offset := c.chunk.Count() - loopStart + 2
	if offset > 0xFFFF {
		c.error("Loop body too large.")
		return
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

// addConstant appends value to the chunk's constant pool, reusing an
// existing slot for an identical number or string so a variable
// referenced a hundred times doesn't bloat the pool a hundred times
// over; the VM's intern table makes the string case correct (same
// bytes, same *Obj) and this cache just makes it compact too.
func (c *Compiler) addConstant(value vm.Value) int {
	key := constantKey(value)
	if idx, ok := c.constants[key]; ok {
		return idx
	}
	idx := c.chunk.AddConstant(value)
	c.constants[key] = idx
	return idx
}

func constantKey(v vm.Value) string {
	if v.IsString() {
		return "s:" + v.AsString().Chars
	}
	if v.IsNumber() {
		return "n:" + strconv.FormatFloat(v.Number, 'g', -1, 64)
	}
	return v.String()
}
