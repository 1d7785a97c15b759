package vm

import "fmt"

// EcallTable maps environment-call numbers (dispatched on a7) to their
// handlers. The machine reserves no numbers itself; handlers are
// registered by the embedding frontend.
type EcallTable map[int64]func(*State) error

// shiftMask keeps the low 7 bits of a shift amount.
const shiftMask = 1<<7 - 1

// branchTarget computes the pc value that makes the post-instruction
// increment land on the emitted line of the label.
func branchTarget(s *State, label string) (int64, error) {
	line, ok := s.Labels[label]
	if !ok {
		return 0, fmt.Errorf("%w: undefined label %q", ErrRuntime, label)
	}
	return int64(line-1) * InstructionSize, nil
}

// Exec executes one instruction against the machine state. The program
// counter advance happens in the interpreter loop; branch and jump
// opcodes bias their target accordingly.
func (in Instruction) Exec(s *State, ecalls EcallTable) error {
	switch in.Op {
	case OpLi:
		s.Set(in.Rd, in.Imm)

	case OpMv:
		s.Set(in.Rd, s.Get(in.Rs1))

	case OpAdd:
		s.Set(in.Rd, s.Get(in.Rs1)+s.Get(in.Rs2))

	case OpSub:
		s.Set(in.Rd, s.Get(in.Rs1)-s.Get(in.Rs2))

	case OpAnd:
		s.Set(in.Rd, s.Get(in.Rs1)&s.Get(in.Rs2))

	case OpOr:
		s.Set(in.Rd, s.Get(in.Rs1)|s.Get(in.Rs2))

	case OpXor:
		s.Set(in.Rd, s.Get(in.Rs1)^s.Get(in.Rs2))

	case OpAddi:
		s.Set(in.Rd, s.Get(in.Rs1)+in.Imm)

	case OpSll:
		s.Set(in.Rd, s.Get(in.Rs1)<<(uint64(s.Get(in.Rs2))&shiftMask))

	case OpSrl:
		s.Set(in.Rd, int64(uint64(s.Get(in.Rs1))>>(uint64(s.Get(in.Rs2))&shiftMask)))

	case OpSlli:
		s.Set(in.Rd, s.Get(in.Rs1)<<(uint64(in.Imm)&shiftMask))

	case OpSrli:
		s.Set(in.Rd, int64(uint64(s.Get(in.Rs1))>>(uint64(in.Imm)&shiftMask)))

	case OpSb:
		return s.Store(s.Get(in.Rs1)+in.Imm, s.Get(in.Rs2), 1)

	case OpSh:
		return s.Store(s.Get(in.Rs1)+in.Imm, s.Get(in.Rs2), 4)

	case OpSw:
		return s.Store(s.Get(in.Rs1)+in.Imm, s.Get(in.Rs2), 8)

	case OpLb:
		return in.load(s, 1)

	case OpLh:
		return in.load(s, 4)

	case OpLw:
		return in.load(s, 8)

	case OpLa:
		line, ok := s.Labels[in.Label]
		if !ok {
			return fmt.Errorf("%w: undefined label %q", ErrRuntime, in.Label)
		}
		s.Set(in.Rd, int64(line)*InstructionSize)

	case OpJ:
		target, err := branchTarget(s, in.Label)
		if err != nil {
			return err
		}
		s.Set(PC, target)

	case OpJal:
		target, err := branchTarget(s, in.Label)
		if err != nil {
			return err
		}
		s.Set(in.Rd, s.Get(PC))
		s.Set(PC, target)

	case OpCall:
		target, err := branchTarget(s, in.Label)
		if err != nil {
			return err
		}
		s.Set(RA, s.Get(PC))
		s.Set(PC, target)

	case OpRet:
		s.Set(PC, s.Get(RA))

	case OpBeq:
		return in.branch(s, s.Get(in.Rs1) == s.Get(in.Rs2))

	case OpBne:
		return in.branch(s, s.Get(in.Rs1) != s.Get(in.Rs2))

	case OpBlt:
		return in.branch(s, s.Get(in.Rs1) < s.Get(in.Rs2))

	case OpBge:
		return in.branch(s, s.Get(in.Rs1) >= s.Get(in.Rs2))

	case OpBgt:
		return in.branch(s, s.Get(in.Rs1) > s.Get(in.Rs2))

	case OpBeqz:
		return in.branch(s, s.Get(in.Rs1) == 0)

	case OpEcall:
		num := s.Get(A7)
		handler, ok := ecalls[num]
		if !ok {
			return fmt.Errorf("%w: no handler for ecall %d", ErrBadEcall, num)
		}
		return handler(s)

	case OpEbreak:
		// No effect during execution; the interpreter loop treats it as
		// a debugger stop.

	case OpData:
		return fmt.Errorf("%w: data section cannot be executed", ErrRuntime)

	default:
		return fmt.Errorf("%w: unknown opcode %v", ErrRuntime, in.Op)
	}
	return nil
}

// load reads n bytes at rs1+imm into rd, zero-extended.
func (in Instruction) load(s *State, n int64) error {
	v, err := s.Load(s.Get(in.Rs1)+in.Imm, n)
	if err != nil {
		return err
	}
	s.Set(in.Rd, v)
	return nil
}

// branch writes the biased target into pc when taken.
func (in Instruction) branch(s *State, taken bool) error {
	if !taken {
		return nil
	}
	target, err := branchTarget(s, in.Label)
	if err != nil {
		return err
	}
	s.Set(PC, target)
	return nil
}
