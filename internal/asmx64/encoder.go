package asmx64

import "encoding/binary"

// rex prefix bits, following wazero's rexPrefix* constants.
const (
	rexNone rexPrefix = 0x00
	rexBase rexPrefix = 0b0100_0000
	rexW    rexPrefix = 0b0000_1000 | rexBase // 64-bit operand size
	rexR    rexPrefix = 0b0000_0100 | rexBase // ModRM.reg extension
	rexB    rexPrefix = 0b0000_0001 | rexBase // ModRM.rm / opcode-reg extension
)

type rexPrefix = byte

// Assembler accumulates encoded instruction bytes for one basic block's
// worth of machine code. There is no relocation/label mechanism beyond
// what internal/compiler needs: call/jump targets are always resolved,
// absolute 64-bit addresses (the target runs in the same process), so
// every emitted transfer is "load address into a register, then
// CALL/JMP that register" rather than a relative displacement.
type Assembler struct {
	buf []byte
}

// New returns an empty Assembler.
func New() *Assembler { return &Assembler{} }

// Bytes returns the accumulated machine code.
func (a *Assembler) Bytes() []byte { return a.buf }

// Len is the current size of the encoded buffer, useful for computing
// jump/call site offsets for disassembly annotation.
func (a *Assembler) Len() int { return len(a.buf) }

func (a *Assembler) emit(b ...byte) { a.buf = append(a.buf, b...) }

func modRMRegReg(reg, rm Register) (rex rexPrefix, modRM byte) {
	if reg.isExtended() {
		rex |= rexR
	}
	if rm.isExtended() {
		rex |= rexB
	}
	modRM = 0b11_000_000 | (reg.bits3() << 3) | rm.bits3()
	return
}

// modRMRegBaseDisp32 builds the ModRM (+ optional SIB) bytes for
// `reg, [base+disp32]` addressing. RSP and R12 require a SIB byte
// because ModRM.rm=100 means "a SIB byte follows".
func modRMRegBaseDisp32(reg, base Register) (rex rexPrefix, modRM byte, sib *byte) {
	if reg.isExtended() {
		rex |= rexR
	}
	if base.isExtended() {
		rex |= rexB
	}
	modRM = 0b10_000_000 | (reg.bits3() << 3) | base.bits3()
	if base.bits3() == RSP.bits3() {
		s := byte(0b00_100_100) // scale=1, index=none(100), base=100 (RSP, or R12 with REX.B)
		sib = &s
	}
	return
}

// MovRegImm64 encodes `mov reg, imm64` (opcode 0xB8+rd with a REX.W
// prefix and an 8-byte immediate), used for PushLiteralNumber's 64-bit
// pattern and for materializing absolute call/jump targets.
func (a *Assembler) MovRegImm64(reg Register, imm uint64) {
	rex := rexW
	if reg.isExtended() {
		rex |= rexB
	}
	a.emit(rex, 0xB8+reg.bits3())
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], imm)
	a.emit(buf[:]...)
}

// MovRegReg encodes `mov dst, src` (opcode 0x89 /r, REX.W, dst in
// ModRM.rm, src in ModRM.reg).
func (a *Assembler) MovRegReg(dst, src Register) {
	rex, modRM := modRMRegReg(src, dst)
	a.emit(rex|rexW, 0x89, modRM)
}

// MovRegMem encodes `mov dst, [base+disp32]` (opcode 0x8B /r).
func (a *Assembler) MovRegMem(dst, base Register, disp32 int32) {
	rex, modRM, sib := modRMRegBaseDisp32(dst, base)
	a.emit(rex|rexW, 0x8B, modRM)
	if sib != nil {
		a.emit(*sib)
	}
	a.emitDisp32(disp32)
}

// MovMemReg encodes `mov [base+disp32], src` (opcode 0x89 /r).
func (a *Assembler) MovMemReg(base Register, disp32 int32, src Register) {
	rex, modRM, sib := modRMRegBaseDisp32(src, base)
	a.emit(rex|rexW, 0x89, modRM)
	if sib != nil {
		a.emit(*sib)
	}
	a.emitDisp32(disp32)
}

func (a *Assembler) emitDisp32(disp32 int32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(disp32))
	a.emit(buf[:]...)
}

// AddRegReg encodes `add dst, src` (opcode 0x01 /r).
func (a *Assembler) AddRegReg(dst, src Register) {
	rex, modRM := modRMRegReg(src, dst)
	a.emit(rex|rexW, 0x01, modRM)
}

// AddRegImm32 encodes `add dst, imm32` (opcode 0x81 /0).
func (a *Assembler) AddRegImm32(dst Register, imm32 int32) {
	a.arithRegImm32(0, dst, imm32)
}

// SubRegImm32 encodes `sub dst, imm32` (opcode 0x81 /5).
func (a *Assembler) SubRegImm32(dst Register, imm32 int32) {
	a.arithRegImm32(5, dst, imm32)
}

func (a *Assembler) arithRegImm32(extOpcode byte, dst Register, imm32 int32) {
	rex := rexW
	if dst.isExtended() {
		rex |= rexB
	}
	modRM := 0b11_000_000 | (extOpcode << 3) | dst.bits3()
	a.emit(rex, 0x81, modRM)
	a.emitDisp32(imm32)
}

// CallReg encodes `call reg` (opcode 0xFF /2), an indirect call to the
// absolute address held in reg.
func (a *Assembler) CallReg(reg Register) {
	a.emitFF(2, reg)
}

// JmpReg encodes `jmp reg` (opcode 0xFF /4), an indirect jump to the
// absolute address held in reg.
func (a *Assembler) JmpReg(reg Register) {
	a.emitFF(4, reg)
}

func (a *Assembler) emitFF(extOpcode byte, reg Register) {
	var rex rexPrefix
	if reg.isExtended() {
		rex = rexB
	}
	modRM := 0b11_000_000 | (extOpcode << 3) | reg.bits3()
	if rex != rexNone {
		a.emit(rex)
	}
	a.emit(0xFF, modRM)
}

// Ret encodes `ret` (opcode 0xC3).
func (a *Assembler) Ret() { a.emit(0xC3) }

// Push encodes `push reg` (opcode 0x50+rd).
func (a *Assembler) Push(reg Register) {
	if reg.isExtended() {
		a.emit(rexB)
	}
	a.emit(0x50 + reg.bits3())
}

// Pop encodes `pop reg` (opcode 0x58+rd).
func (a *Assembler) Pop(reg Register) {
	if reg.isExtended() {
		a.emit(rexB)
	}
	a.emit(0x58 + reg.bits3())
}
