package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rvasm/riscv-emulator/vm"
)

// Parser materializes the normalized line stream into typed
// instructions, one per emitted line, preserving order.
type Parser struct {
	lines    []string
	srcMap   *SourceMap
	filename string
	errors   *ErrorList
}

// NewParser creates a parser over the preprocessor output.
func NewParser(pre *Preprocessor) *Parser {
	return &Parser{
		lines:    pre.Lines(),
		srcMap:   pre.Map(),
		filename: pre.filename,
		errors:   &ErrorList{},
	}
}

// Parse produces the instruction vector. Operand validation errors are
// collected across all lines and returned together.
func (p *Parser) Parse() ([]vm.Instruction, error) {
	instructions := make([]vm.Instruction, 0, len(p.lines))

	for j, line := range p.lines {
		lexed := Lex(line)
		pos := p.position(j)

		in, ok := p.parseLine(lexed, pos)
		if ok {
			instructions = append(instructions, in)
		}
	}

	if p.errors.HasErrors() {
		return nil, p.errors
	}
	return instructions, nil
}

// position maps an emitted line back to its original source position.
func (p *Parser) position(emitted int) Position {
	line := p.srcMap.OrigLine(emitted)
	if line == NoEmit {
		return Position{Filename: p.filename}
	}
	return Position{Filename: p.filename, Line: line + 1}
}

// parseLine builds one instruction from a lexed line.
func (p *Parser) parseLine(lexed Line, pos Position) (vm.Instruction, bool) {
	m := lexed.Mnemonic
	args := lexed.Operands

	// A raw integer literal is a data word laid out at session start.
	if isNumber(m) {
		if len(args) != 0 {
			p.errors.AddError(NewError(pos, ErrorBadOperand,
				fmt.Sprintf("data literal %q takes no operands", m)))
			return vm.Instruction{}, false
		}
		imm, ok := p.immediate(m, pos)
		if !ok {
			return vm.Instruction{}, false
		}
		return vm.Instruction{Op: vm.OpData, Imm: imm}, true
	}

	switch m {
	case "li":
		if !p.arity(m, args, 2, pos) {
			return vm.Instruction{}, false
		}
		rd, ok1 := p.register(args[0], pos)
		imm, ok2 := p.immediate(args[1], pos)
		return vm.Instruction{Op: vm.OpLi, Rd: rd, Imm: imm}, ok1 && ok2

	case "mv":
		if !p.arity(m, args, 2, pos) {
			return vm.Instruction{}, false
		}
		rd, ok1 := p.register(args[0], pos)
		rs, ok2 := p.register(args[1], pos)
		return vm.Instruction{Op: vm.OpMv, Rd: rd, Rs1: rs}, ok1 && ok2

	case "add", "sub", "and", "or", "xor", "sll", "srl":
		return p.parseRegRegReg(regRegRegOp(m), m, args, pos)

	case "addi", "slli", "srli":
		if !p.arity(m, args, 3, pos) {
			return vm.Instruction{}, false
		}
		rd, ok1 := p.register(args[0], pos)
		rs, ok2 := p.register(args[1], pos)
		imm, ok3 := p.immediate(args[2], pos)
		op := map[string]vm.Opcode{"addi": vm.OpAddi, "slli": vm.OpSlli, "srli": vm.OpSrli}[m]
		return vm.Instruction{Op: op, Rd: rd, Rs1: rs, Imm: imm}, ok1 && ok2 && ok3

	// sb, sh and sw store 1, 4 and 8 bytes respectively, and lh/lw read
	// 4 and 8. The halfword and word spellings deviate from standard
	// RISC-V widths; programs written for this tool rely on it.
	case "sb", "sh", "sw":
		args = expandOffset(args)
		if !p.arity(m, args, 3, pos) {
			return vm.Instruction{}, false
		}
		src, ok1 := p.register(args[0], pos)
		imm, ok2 := p.immediate(args[1], pos)
		base, ok3 := p.register(args[2], pos)
		op := map[string]vm.Opcode{"sb": vm.OpSb, "sh": vm.OpSh, "sw": vm.OpSw}[m]
		return vm.Instruction{Op: op, Rs2: src, Imm: imm, Rs1: base}, ok1 && ok2 && ok3

	case "lb", "lh", "lw":
		args = expandOffset(args)
		if !p.arity(m, args, 3, pos) {
			return vm.Instruction{}, false
		}
		rd, ok1 := p.register(args[0], pos)
		imm, ok2 := p.immediate(args[1], pos)
		base, ok3 := p.register(args[2], pos)
		op := map[string]vm.Opcode{"lb": vm.OpLb, "lh": vm.OpLh, "lw": vm.OpLw}[m]
		return vm.Instruction{Op: op, Rd: rd, Imm: imm, Rs1: base}, ok1 && ok2 && ok3

	case "la":
		if !p.arity(m, args, 2, pos) {
			return vm.Instruction{}, false
		}
		rd, ok := p.register(args[0], pos)
		return vm.Instruction{Op: vm.OpLa, Rd: rd, Label: args[1]}, ok

	case "j":
		if !p.arity(m, args, 1, pos) {
			return vm.Instruction{}, false
		}
		return vm.Instruction{Op: vm.OpJ, Label: args[0]}, true

	case "jal":
		if !p.arity(m, args, 2, pos) {
			return vm.Instruction{}, false
		}
		rd, ok := p.register(args[0], pos)
		return vm.Instruction{Op: vm.OpJal, Rd: rd, Label: args[1]}, ok

	case "call":
		if !p.arity(m, args, 1, pos) {
			return vm.Instruction{}, false
		}
		return vm.Instruction{Op: vm.OpCall, Label: args[0]}, true

	case "ret":
		if !p.arity(m, args, 0, pos) {
			return vm.Instruction{}, false
		}
		return vm.Instruction{Op: vm.OpRet}, true

	case "beq", "bne", "blt", "bge", "bgt":
		if !p.arity(m, args, 3, pos) {
			return vm.Instruction{}, false
		}
		rs1, ok1 := p.register(args[0], pos)
		rs2, ok2 := p.register(args[1], pos)
		op := map[string]vm.Opcode{
			"beq": vm.OpBeq, "bne": vm.OpBne, "blt": vm.OpBlt,
			"bge": vm.OpBge, "bgt": vm.OpBgt,
		}[m]
		return vm.Instruction{Op: op, Rs1: rs1, Rs2: rs2, Label: args[2]}, ok1 && ok2

	case "beqz":
		if !p.arity(m, args, 2, pos) {
			return vm.Instruction{}, false
		}
		rs, ok := p.register(args[0], pos)
		return vm.Instruction{Op: vm.OpBeqz, Rs1: rs, Label: args[1]}, ok

	case "ecall":
		if !p.arity(m, args, 0, pos) {
			return vm.Instruction{}, false
		}
		return vm.Instruction{Op: vm.OpEcall}, true

	case "ebreak":
		if !p.arity(m, args, 0, pos) {
			return vm.Instruction{}, false
		}
		return vm.Instruction{Op: vm.OpEbreak}, true

	default:
		p.errors.AddError(NewError(pos, ErrorBadOperand,
			fmt.Sprintf("unknown instruction %q", m)))
		return vm.Instruction{}, false
	}
}

// parseRegRegReg handles the three-register arithmetic forms.
func (p *Parser) parseRegRegReg(op vm.Opcode, m string, args []string, pos Position) (vm.Instruction, bool) {
	if !p.arity(m, args, 3, pos) {
		return vm.Instruction{}, false
	}
	rd, ok1 := p.register(args[0], pos)
	rs1, ok2 := p.register(args[1], pos)
	rs2, ok3 := p.register(args[2], pos)
	return vm.Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2}, ok1 && ok2 && ok3
}

func regRegRegOp(m string) vm.Opcode {
	return map[string]vm.Opcode{
		"add": vm.OpAdd, "sub": vm.OpSub, "and": vm.OpAnd,
		"or": vm.OpOr, "xor": vm.OpXor, "sll": vm.OpSll, "srl": vm.OpSrl,
	}[m]
}

// arity verifies the operand count for a mnemonic.
func (p *Parser) arity(m string, args []string, want int, pos Position) bool {
	if len(args) != want {
		p.errors.AddError(NewError(pos, ErrorBadArity,
			fmt.Sprintf("%s expects %d operands, got %d", m, want, len(args))))
		return false
	}
	return true
}

// register resolves one register operand.
func (p *Parser) register(tok string, pos Position) (vm.Register, bool) {
	r, err := vm.ParseRegister(tok)
	if err != nil {
		p.errors.AddError(NewError(pos, ErrorBadRegister,
			fmt.Sprintf("invalid register %q", tok)))
		return 0, false
	}
	return r, true
}

// immediate parses one immediate operand.
func (p *Parser) immediate(tok string, pos Position) (int64, bool) {
	v, err := ParseImmediate(tok)
	if err != nil {
		p.errors.AddError(NewError(pos, ErrorBadImmediate, err.Error()))
		return 0, false
	}
	return v, true
}

// expandOffset rewrites the IMM(REG) addressing form into the triple
// [value-reg, IMM, base-reg] before the arity check. Operands already
// in triple form pass through unchanged.
func expandOffset(args []string) []string {
	if len(args) != 2 {
		return args
	}
	open := strings.IndexByte(args[1], '(')
	if open < 0 || !strings.HasSuffix(args[1], ")") {
		return args
	}
	imm := args[1][:open]
	base := args[1][open+1 : len(args[1])-1]
	return []string{args[0], imm, base}
}

// ParseImmediate parses a signed 64-bit integer in decimal,
// 0x-prefixed hexadecimal or 0b-prefixed binary. Hex and binary
// spellings may use the full 64-bit pattern.
func ParseImmediate(tok string) (int64, error) {
	s := tok
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base = 16
		s = s[2:]
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		base = 2
		s = s[2:]
	}
	if s == "" {
		return 0, fmt.Errorf("invalid immediate %q", tok)
	}

	magnitude, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("immediate %q out of 64-bit range", tok)
		}
		return 0, fmt.Errorf("invalid immediate %q", tok)
	}

	if negative {
		if magnitude > 1<<63 {
			return 0, fmt.Errorf("immediate %q out of 64-bit range", tok)
		}
		return -int64(magnitude), nil
	}
	if base == 10 && magnitude > 1<<63-1 {
		return 0, fmt.Errorf("immediate %q out of 64-bit range", tok)
	}
	return int64(magnitude), nil
}

// isNumber reports whether a token spells an integer literal.
func isNumber(tok string) bool {
	s := strings.TrimPrefix(tok, "-")
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// Errors returns the error list.
func (p *Parser) Errors() *ErrorList {
	return p.errors
}
