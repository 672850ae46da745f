package lib

import (
    "encoding/json"
    "fmt"
    "io"
    "log"
)

/* behavior references
 * https://www.masswerk.at/6502/6502_instruction_set.html
 * http://www.6502.org/tutorials/vflag.html
 * https://stackoverflow.com/questions/16913423/why-is-the-initial-state-of-the-interrupt-flag-of-the-6502-a-1
 */

/* brk jumps through the irq vector. the reset vector is not read by
 * the cpu itself, the host passes the entry point to Reset directly.
 */
const IRQVector uint16 = 0xfffe

/* the stack always lives in page 1 */
const StackPage uint16 = 0x0100

/* NV-BDIZC */
const (
    FlagCarry byte = 1 << 0
    FlagZero =       1 << 1
    FlagInterrupt =  1 << 2
    FlagDecimal =    1 << 3
    FlagBreak =      1 << 4
    /* hardwired to logic '1' by the internal circuitry of the cpu */
    FlagUnused =     1 << 5
    FlagOverflow =   1 << 6
    FlagNegative =   1 << 7
)

/* Bus is the host side of the cpu: an 8-bit data bus over a 16-bit
 * address space. Reads are allowed to have side effects (memory mapped
 * devices), so the cpu never caches or elides a bus access.
 */
type Bus interface {
    Read(address uint16) byte
    Write(address uint16, value byte)
}

/* the one fatal error the cpu can produce. registers are left exactly
 * as they were when the opcode was fetched so the host can inspect them.
 */
type IllegalOpcode struct {
    Opcode byte
    PC uint16
}

func (illegal *IllegalOpcode) Error() string {
    return fmt.Sprintf("illegal opcode 0x%02x at pc 0x%04x", illegal.Opcode, illegal.PC)
}

type CPU struct {
    A byte `json:"a"`
    X byte `json:"x"`
    Y byte `json:"y"`
    SP byte `json:"sp"`
    PC uint16 `json:"pc"`
    Status byte `json:"status"`

    Debug uint `json:"debug,omitempty"`

    Bus Bus `json:"-"`

    table InstructionTable
}

func MakeCPU(bus Bus) CPU {
    return CPU{
        Bus: bus,
        table: MakeInstructionTable(),
    }
}

/* Reset puts the cpu into its power-on state with execution starting
 * at pc. The interrupt disable flag is deliberately left clear to match
 * the reference implementation this emulator is validated against,
 * conforming silicon would set it. Use ResetStrict for that behavior.
 */
func (cpu *CPU) Reset(pc uint16) {
    cpu.PC = pc
    cpu.A = 0
    cpu.X = 0
    cpu.Y = 0
    cpu.SP = 0xfd
    cpu.Status = FlagUnused
}

func (cpu *CPU) ResetStrict(pc uint16) {
    cpu.Reset(pc)
    cpu.SetInterruptDisableFlag(true)
}

/* SR returns the status register as seen from outside, with the
 * unused bit reading as 1.
 */
func (cpu *CPU) SR() byte {
    return cpu.Status | FlagUnused
}

func (cpu *CPU) Serialize(writer io.Writer) error {
    encoder := json.NewEncoder(writer)
    return encoder.Encode(cpu)
}

func (cpu *CPU) Equals(other CPU) bool {
    return cpu.A == other.A &&
           cpu.X == other.X &&
           cpu.Y == other.Y &&
           cpu.SP == other.SP &&
           cpu.PC == other.PC &&
           cpu.Status == other.Status
}

func (cpu *CPU) String() string {
    return fmt.Sprintf("A:0x%X X:0x%X Y:0x%X SP:0x%X P:0x%X PC:0x%X", cpu.A, cpu.X, cpu.Y, cpu.SP, cpu.Status, cpu.PC)
}

func (cpu *CPU) setBit(bit byte, set bool) {
    if set {
        cpu.Status = cpu.Status | bit
    } else {
        cpu.Status = cpu.Status & (^bit)
    }
}

func (cpu *CPU) getBit(bit byte) bool {
    return (cpu.Status & bit) == bit
}

func (cpu *CPU) GetCarryFlag() bool {
    return cpu.getBit(FlagCarry)
}

func (cpu *CPU) SetCarryFlag(set bool) {
    cpu.setBit(FlagCarry, set)
}

func (cpu *CPU) GetZeroFlag() bool {
    return cpu.getBit(FlagZero)
}

func (cpu *CPU) SetZeroFlag(zero bool) {
    cpu.setBit(FlagZero, zero)
}

func (cpu *CPU) GetInterruptDisableFlag() bool {
    return cpu.getBit(FlagInterrupt)
}

func (cpu *CPU) SetInterruptDisableFlag(set bool) {
    cpu.setBit(FlagInterrupt, set)
}

func (cpu *CPU) GetDecimalFlag() bool {
    return cpu.getBit(FlagDecimal)
}

func (cpu *CPU) SetDecimalFlag(set bool) {
    cpu.setBit(FlagDecimal, set)
}

func (cpu *CPU) GetOverflowFlag() bool {
    return cpu.getBit(FlagOverflow)
}

func (cpu *CPU) SetOverflowFlag(set bool) {
    cpu.setBit(FlagOverflow, set)
}

func (cpu *CPU) GetNegativeFlag() bool {
    return cpu.getBit(FlagNegative)
}

func (cpu *CPU) SetNegativeFlag(set bool) {
    cpu.setBit(FlagNegative, set)
}

func (cpu *CPU) LoadMemory(address uint16) byte {
    return cpu.Bus.Read(address)
}

func (cpu *CPU) StoreMemory(address uint16, value byte) {
    cpu.Bus.Write(address, value)
}

/* a push writes first, then decrements. a pop increments first, then
 * reads. SP wraps around within page 1.
 */
func (cpu *CPU) PushStack(value byte) {
    cpu.StoreMemory(StackPage + uint16(cpu.SP), value)
    cpu.SP -= 1
}

func (cpu *CPU) PopStack() byte {
    cpu.SP += 1
    return cpu.LoadMemory(StackPage + uint16(cpu.SP))
}

/* Load two values from the zero page at (relative+X, relative+X+1)
 * and construct an address where low=(relative+X) and high=(relative+X+1).
 * keeping the intermediate as a byte ensures the zero page wrap around
 * works correctly.
 */
func (cpu *CPU) ComputeIndirectX(relative byte) uint16 {
    zero := relative + cpu.X
    low := cpu.LoadMemory(uint16(zero))
    high := cpu.LoadMemory(uint16(zero + 1))

    return (uint16(high) << 8) | uint16(low)
}

/* Load two values from the zero page at (relative, relative+1),
 * construct an address where low=(relative) and high=(relative+1),
 * then add Y to the whole 16-bit address.
 */
func (cpu *CPU) ComputeIndirectY(relative byte) uint16 {
    low := uint16(cpu.LoadMemory(uint16(relative)))
    high := uint16(cpu.LoadMemory(uint16(relative + 1)))
    address := (high << 8) | low

    return address + uint16(cpu.Y)
}

func (cpu *CPU) loadA(value byte) {
    cpu.A = value
    cpu.SetNegativeFlag(int8(value) < 0)
    cpu.SetZeroFlag(cpu.A == 0)
}

func (cpu *CPU) loadX(value byte) {
    cpu.X = value
    cpu.SetNegativeFlag(int8(cpu.X) < 0)
    cpu.SetZeroFlag(value == 0)
}

func (cpu *CPU) loadY(value byte) {
    cpu.Y = value
    cpu.SetNegativeFlag(int8(cpu.Y) < 0)
    cpu.SetZeroFlag(cpu.Y == 0)
}

func (cpu *CPU) doAnd(value byte) {
    cpu.A = cpu.A & value
    cpu.SetNegativeFlag(int8(cpu.A) < 0)
    cpu.SetZeroFlag(cpu.A == 0)
}

func (cpu *CPU) doOrA(value byte) {
    cpu.A = cpu.A | value
    cpu.SetNegativeFlag(int8(cpu.A) < 0)
    cpu.SetZeroFlag(cpu.A == 0)
}

func (cpu *CPU) doEorA(value byte) {
    cpu.A = cpu.A ^ value
    cpu.SetNegativeFlag(int8(cpu.A) < 0)
    cpu.SetZeroFlag(cpu.A == 0)
}

func (cpu *CPU) doBit(value byte) {
    cpu.SetZeroFlag((cpu.A & value) == 0)
    cpu.SetNegativeFlag((value & FlagNegative) == FlagNegative)
    cpu.SetOverflowFlag((value & FlagOverflow) == FlagOverflow)
}

func (cpu *CPU) doAdc(value byte) {
    var carryBit byte
    if cpu.GetCarryFlag() {
        carryBit = 1
    }

    /* do the math in 16 bits so nothing is lost before masking */
    full := uint16(cpu.A) + uint16(value) + uint16(carryBit)
    result := byte(full)

    /* overflow is set when A and the operand agree on the sign but the
     * result does not, http://www.6502.org/tutorials/vflag.html
     */
    cpu.SetOverflowFlag((cpu.A ^ result) & (value ^ result) & 0x80 != 0)
    cpu.SetCarryFlag(full > 0xff)

    cpu.A = result
    cpu.SetNegativeFlag(int8(result) < 0)
    cpu.SetZeroFlag(result == 0)
}

/* subtraction is addition of the complement. carry set means no borrow. */
func (cpu *CPU) doSbc(value byte) {
    cpu.doAdc(^value)
}

func (cpu *CPU) doCmp(value byte) {
    result := cpu.A - value
    cpu.SetCarryFlag(cpu.A >= value)
    cpu.SetNegativeFlag(int8(result) < 0)
    cpu.SetZeroFlag(result == 0)
}

func (cpu *CPU) doCpx(value byte) {
    result := cpu.X - value
    cpu.SetCarryFlag(cpu.X >= value)
    cpu.SetNegativeFlag(int8(result) < 0)
    cpu.SetZeroFlag(result == 0)
}

func (cpu *CPU) doCpy(value byte) {
    result := cpu.Y - value
    cpu.SetCarryFlag(cpu.Y >= value)
    cpu.SetNegativeFlag(int8(result) < 0)
    cpu.SetZeroFlag(result == 0)
}

func (cpu *CPU) doInc(value byte) byte {
    value = value + 1
    cpu.SetNegativeFlag(int8(value) < 0)
    cpu.SetZeroFlag(value == 0)
    return value
}

func (cpu *CPU) doDec(value byte) byte {
    value = value - 1
    cpu.SetNegativeFlag(int8(value) < 0)
    cpu.SetZeroFlag(value == 0)
    return value
}

func (cpu *CPU) doAsl(value byte) byte {
    carry := value & (1<<7)
    out := value << 1
    cpu.SetNegativeFlag(int8(out) < 0)
    cpu.SetZeroFlag(out == 0)
    cpu.SetCarryFlag(carry == (1<<7))
    return out
}

func (cpu *CPU) doLsr(value byte) byte {
    carry := value & 1
    out := value >> 1
    cpu.SetNegativeFlag(false)
    cpu.SetZeroFlag(out == 0)
    cpu.SetCarryFlag(carry == 1)
    return out
}

func (cpu *CPU) doRol(value byte) byte {
    var carryBit byte
    if cpu.GetCarryFlag() {
        carryBit = 1
    }

    newCarry := (value & (1<<7)) == (1<<7)
    out := (value << 1) | carryBit

    cpu.SetCarryFlag(newCarry)
    cpu.SetNegativeFlag(int8(out) < 0)
    cpu.SetZeroFlag(out == 0)
    return out
}

func (cpu *CPU) doRor(value byte) byte {
    var carryBit byte
    if cpu.GetCarryFlag() {
        carryBit = 1
    }

    newCarry := (value & 1) == 1
    out := (value >> 1) | (carryBit << 7)

    cpu.SetCarryFlag(newCarry)
    cpu.SetNegativeFlag(int8(out) < 0)
    cpu.SetZeroFlag(out == 0)
    return out
}

/* all branches share relative addressing: the offset is signed and is
 * applied to the pc after it has moved past the branch instruction
 */
func (cpu *CPU) doBranch(instruction Instruction, taken bool) error {
    value, err := instruction.OperandByte()
    if err != nil {
        return err
    }
    cpu.PC += instruction.Length()
    if taken {
        cpu.PC = uint16(int(cpu.PC) + int(int8(value)))
    }
    return nil
}

/* Fetch reads the opcode at PC and its operand bytes through the bus.
 * The pc is not moved here, Execute advances it by the instruction
 * length so that jumps and branches can replace it wholesale.
 */
func (cpu *CPU) Fetch() (Instruction, error) {
    if cpu.table == nil {
        cpu.table = MakeInstructionTable()
    }

    first := cpu.LoadMemory(cpu.PC)
    firstI := InstructionType(first)

    description, ok := cpu.table[firstI]
    if !ok {
        return Instruction{}, &IllegalOpcode{Opcode: first, PC: cpu.PC}
    }

    operands := make([]byte, description.Operands)
    for i := 0; i < int(description.Operands); i++ {
        operands[i] = cpu.LoadMemory(cpu.PC + uint16(i + 1))
    }

    instruction := Instruction{
        Name: description.Name,
        Kind: firstI,
        Operands: operands,
    }

    return instruction, nil
}

/* Step runs exactly one instruction: fetch, decode, execute. The only
 * error it can produce is IllegalOpcode, bus callbacks are total.
 */
func (cpu *CPU) Step() error {
    instruction, err := cpu.Fetch()
    if err != nil {
        return err
    }

    if cpu.Debug > 0 {
        log.Printf("PC: 0x%x Execute instruction %v A:%X X:%X Y:%X P:%X SP:%X\n", cpu.PC, instruction.String(), cpu.A, cpu.X, cpu.Y, cpu.Status, cpu.SP)
    }

    return cpu.Execute(instruction)
}

func (cpu *CPU) Execute(instruction Instruction) error {
    switch instruction.Kind {
        case Instruction_LDA_immediate:
            value, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.loadA(value)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDA_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.loadA(cpu.LoadMemory(uint16(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDA_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.loadA(cpu.LoadMemory(uint16(zero + cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDA_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.loadA(cpu.LoadMemory(address))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDA_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.loadA(cpu.LoadMemory(address + uint16(cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDA_absolute_y:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.loadA(cpu.LoadMemory(address + uint16(cpu.Y)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDA_indirect_x:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.loadA(cpu.LoadMemory(cpu.ComputeIndirectX(relative)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDA_indirect_y:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.loadA(cpu.LoadMemory(cpu.ComputeIndirectY(relative)))
            cpu.PC += instruction.Length()
            return nil

        case Instruction_LDX_immediate:
            value, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.loadX(value)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDX_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.loadX(cpu.LoadMemory(uint16(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDX_zero_y:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.loadX(cpu.LoadMemory(uint16(zero + cpu.Y)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDX_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.loadX(cpu.LoadMemory(address))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDX_absolute_y:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.loadX(cpu.LoadMemory(address + uint16(cpu.Y)))
            cpu.PC += instruction.Length()
            return nil

        case Instruction_LDY_immediate:
            value, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.loadY(value)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDY_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.loadY(cpu.LoadMemory(uint16(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDY_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.loadY(cpu.LoadMemory(uint16(zero + cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDY_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.loadY(cpu.LoadMemory(address))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LDY_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.loadY(cpu.LoadMemory(address + uint16(cpu.X)))
            cpu.PC += instruction.Length()
            return nil

        /* stores update no flags */
        case Instruction_STA_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(uint16(address), cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_STA_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(uint16(zero + cpu.X), cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_STA_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.StoreMemory(address, cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_STA_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.StoreMemory(address + uint16(cpu.X), cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_STA_absolute_y:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.StoreMemory(address + uint16(cpu.Y), cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_STA_indirect_x:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(cpu.ComputeIndirectX(relative), cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_STA_indirect_y:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(cpu.ComputeIndirectY(relative), cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_STX_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(uint16(address), cpu.X)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_STX_zero_y:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(uint16(zero + cpu.Y), cpu.X)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_STX_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.StoreMemory(address, cpu.X)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_STY_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(uint16(address), cpu.Y)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_STY_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(uint16(zero + cpu.X), cpu.Y)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_STY_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.StoreMemory(address, cpu.Y)
            cpu.PC += instruction.Length()
            return nil

        case Instruction_TAX:
            cpu.loadX(cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_TAY:
            cpu.loadY(cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_TXA:
            cpu.loadA(cpu.X)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_TYA:
            cpu.loadA(cpu.Y)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_TSX:
            cpu.loadX(cpu.SP)
            cpu.PC += instruction.Length()
            return nil
        /* the only transfer that does not touch the flags */
        case Instruction_TXS:
            cpu.SP = cpu.X
            cpu.PC += instruction.Length()
            return nil

        case Instruction_ADC_immediate:
            value, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doAdc(value)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ADC_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doAdc(cpu.LoadMemory(uint16(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ADC_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doAdc(cpu.LoadMemory(uint16(zero + cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ADC_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doAdc(cpu.LoadMemory(address))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ADC_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doAdc(cpu.LoadMemory(address + uint16(cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ADC_absolute_y:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doAdc(cpu.LoadMemory(address + uint16(cpu.Y)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ADC_indirect_x:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doAdc(cpu.LoadMemory(cpu.ComputeIndirectX(relative)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ADC_indirect_y:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doAdc(cpu.LoadMemory(cpu.ComputeIndirectY(relative)))
            cpu.PC += instruction.Length()
            return nil

        case Instruction_SBC_immediate:
            value, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doSbc(value)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_SBC_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doSbc(cpu.LoadMemory(uint16(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_SBC_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doSbc(cpu.LoadMemory(uint16(zero + cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_SBC_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doSbc(cpu.LoadMemory(address))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_SBC_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doSbc(cpu.LoadMemory(address + uint16(cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_SBC_absolute_y:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doSbc(cpu.LoadMemory(address + uint16(cpu.Y)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_SBC_indirect_x:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doSbc(cpu.LoadMemory(cpu.ComputeIndirectX(relative)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_SBC_indirect_y:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doSbc(cpu.LoadMemory(cpu.ComputeIndirectY(relative)))
            cpu.PC += instruction.Length()
            return nil

        case Instruction_CMP_immediate:
            value, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doCmp(value)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CMP_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doCmp(cpu.LoadMemory(uint16(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CMP_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doCmp(cpu.LoadMemory(uint16(zero + cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CMP_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doCmp(cpu.LoadMemory(address))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CMP_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doCmp(cpu.LoadMemory(address + uint16(cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CMP_absolute_y:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doCmp(cpu.LoadMemory(address + uint16(cpu.Y)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CMP_indirect_x:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doCmp(cpu.LoadMemory(cpu.ComputeIndirectX(relative)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CMP_indirect_y:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doCmp(cpu.LoadMemory(cpu.ComputeIndirectY(relative)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CPX_immediate:
            value, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doCpx(value)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CPX_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doCpx(cpu.LoadMemory(uint16(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CPX_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doCpx(cpu.LoadMemory(address))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CPY_immediate:
            value, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doCpy(value)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CPY_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doCpy(cpu.LoadMemory(uint16(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CPY_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doCpy(cpu.LoadMemory(address))
            cpu.PC += instruction.Length()
            return nil

        case Instruction_INC_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(uint16(address), cpu.doInc(cpu.LoadMemory(uint16(address))))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_INC_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            address := uint16(zero + cpu.X)
            cpu.StoreMemory(address, cpu.doInc(cpu.LoadMemory(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_INC_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.StoreMemory(address, cpu.doInc(cpu.LoadMemory(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_INC_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            full := address + uint16(cpu.X)
            cpu.StoreMemory(full, cpu.doInc(cpu.LoadMemory(full)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_DEC_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(uint16(address), cpu.doDec(cpu.LoadMemory(uint16(address))))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_DEC_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            address := uint16(zero + cpu.X)
            cpu.StoreMemory(address, cpu.doDec(cpu.LoadMemory(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_DEC_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.StoreMemory(address, cpu.doDec(cpu.LoadMemory(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_DEC_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            full := address + uint16(cpu.X)
            cpu.StoreMemory(full, cpu.doDec(cpu.LoadMemory(full)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_INX:
            cpu.loadX(cpu.X + 1)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_INY:
            cpu.loadY(cpu.Y + 1)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_DEX:
            cpu.loadX(cpu.X - 1)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_DEY:
            cpu.loadY(cpu.Y - 1)
            cpu.PC += instruction.Length()
            return nil

        case Instruction_AND_immediate:
            value, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doAnd(value)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_AND_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doAnd(cpu.LoadMemory(uint16(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_AND_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doAnd(cpu.LoadMemory(uint16(zero + cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_AND_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doAnd(cpu.LoadMemory(address))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_AND_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doAnd(cpu.LoadMemory(address + uint16(cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_AND_absolute_y:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doAnd(cpu.LoadMemory(address + uint16(cpu.Y)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_AND_indirect_x:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doAnd(cpu.LoadMemory(cpu.ComputeIndirectX(relative)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_AND_indirect_y:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doAnd(cpu.LoadMemory(cpu.ComputeIndirectY(relative)))
            cpu.PC += instruction.Length()
            return nil

        case Instruction_ORA_immediate:
            value, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doOrA(value)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ORA_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doOrA(cpu.LoadMemory(uint16(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ORA_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doOrA(cpu.LoadMemory(uint16(zero + cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ORA_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doOrA(cpu.LoadMemory(address))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ORA_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doOrA(cpu.LoadMemory(address + uint16(cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ORA_absolute_y:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doOrA(cpu.LoadMemory(address + uint16(cpu.Y)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ORA_indirect_x:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doOrA(cpu.LoadMemory(cpu.ComputeIndirectX(relative)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ORA_indirect_y:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doOrA(cpu.LoadMemory(cpu.ComputeIndirectY(relative)))
            cpu.PC += instruction.Length()
            return nil

        case Instruction_EOR_immediate:
            value, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doEorA(value)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_EOR_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doEorA(cpu.LoadMemory(uint16(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_EOR_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doEorA(cpu.LoadMemory(uint16(zero + cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_EOR_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doEorA(cpu.LoadMemory(address))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_EOR_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doEorA(cpu.LoadMemory(address + uint16(cpu.X)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_EOR_absolute_y:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doEorA(cpu.LoadMemory(address + uint16(cpu.Y)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_EOR_indirect_x:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doEorA(cpu.LoadMemory(cpu.ComputeIndirectX(relative)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_EOR_indirect_y:
            relative, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doEorA(cpu.LoadMemory(cpu.ComputeIndirectY(relative)))
            cpu.PC += instruction.Length()
            return nil

        case Instruction_BIT_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.doBit(cpu.LoadMemory(uint16(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_BIT_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.doBit(cpu.LoadMemory(address))
            cpu.PC += instruction.Length()
            return nil

        case Instruction_ASL_accumulator:
            cpu.A = cpu.doAsl(cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ASL_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(uint16(address), cpu.doAsl(cpu.LoadMemory(uint16(address))))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ASL_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            address := uint16(zero + cpu.X)
            cpu.StoreMemory(address, cpu.doAsl(cpu.LoadMemory(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ASL_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.StoreMemory(address, cpu.doAsl(cpu.LoadMemory(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ASL_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            full := address + uint16(cpu.X)
            cpu.StoreMemory(full, cpu.doAsl(cpu.LoadMemory(full)))
            cpu.PC += instruction.Length()
            return nil

        case Instruction_LSR_accumulator:
            cpu.A = cpu.doLsr(cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LSR_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(uint16(address), cpu.doLsr(cpu.LoadMemory(uint16(address))))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LSR_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            address := uint16(zero + cpu.X)
            cpu.StoreMemory(address, cpu.doLsr(cpu.LoadMemory(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LSR_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.StoreMemory(address, cpu.doLsr(cpu.LoadMemory(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_LSR_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            full := address + uint16(cpu.X)
            cpu.StoreMemory(full, cpu.doLsr(cpu.LoadMemory(full)))
            cpu.PC += instruction.Length()
            return nil

        case Instruction_ROL_accumulator:
            cpu.A = cpu.doRol(cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ROL_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(uint16(address), cpu.doRol(cpu.LoadMemory(uint16(address))))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ROL_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            address := uint16(zero + cpu.X)
            cpu.StoreMemory(address, cpu.doRol(cpu.LoadMemory(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ROL_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.StoreMemory(address, cpu.doRol(cpu.LoadMemory(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ROL_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            full := address + uint16(cpu.X)
            cpu.StoreMemory(full, cpu.doRol(cpu.LoadMemory(full)))
            cpu.PC += instruction.Length()
            return nil

        case Instruction_ROR_accumulator:
            cpu.A = cpu.doRor(cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ROR_zero:
            address, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            cpu.StoreMemory(uint16(address), cpu.doRor(cpu.LoadMemory(uint16(address))))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ROR_zero_x:
            zero, err := instruction.OperandByte()
            if err != nil {
                return err
            }
            address := uint16(zero + cpu.X)
            cpu.StoreMemory(address, cpu.doRor(cpu.LoadMemory(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ROR_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.StoreMemory(address, cpu.doRor(cpu.LoadMemory(address)))
            cpu.PC += instruction.Length()
            return nil
        case Instruction_ROR_absolute_x:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            full := address + uint16(cpu.X)
            cpu.StoreMemory(full, cpu.doRor(cpu.LoadMemory(full)))
            cpu.PC += instruction.Length()
            return nil

        /* branch on negative clear */
        case Instruction_BPL:
            return cpu.doBranch(instruction, !cpu.GetNegativeFlag())
        case Instruction_BMI:
            return cpu.doBranch(instruction, cpu.GetNegativeFlag())
        case Instruction_BVC_relative:
            return cpu.doBranch(instruction, !cpu.GetOverflowFlag())
        case Instruction_BVS_relative:
            return cpu.doBranch(instruction, cpu.GetOverflowFlag())
        case Instruction_BCC_relative:
            return cpu.doBranch(instruction, !cpu.GetCarryFlag())
        case Instruction_BCS_relative:
            return cpu.doBranch(instruction, cpu.GetCarryFlag())
        case Instruction_BNE:
            return cpu.doBranch(instruction, !cpu.GetZeroFlag())
        case Instruction_BEQ_relative:
            return cpu.doBranch(instruction, cpu.GetZeroFlag())

        case Instruction_JMP_absolute:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            cpu.PC = address
            return nil
        case Instruction_JMP_indirect:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }
            /* the nmos page wrap quirk is not reproduced here, the high
             * byte comes from pointer+1 with a plain 16-bit wrap
             */
            low := uint16(cpu.LoadMemory(address))
            high := uint16(cpu.LoadMemory(address + 1))
            cpu.PC = (high << 8) | low
            return nil
        /* push the address of the last byte of the jsr instruction,
         * rts adds one on the way back
         */
        case Instruction_JSR:
            address, err := instruction.OperandWord()
            if err != nil {
                return err
            }

            last := cpu.PC + 2

            cpu.PushStack(byte(last >> 8))
            cpu.PushStack(byte(last & 0xff))

            cpu.PC = address
            return nil
        case Instruction_RTS:
            low := cpu.PopStack()
            high := cpu.PopStack()

            cpu.PC = (uint16(high) << 8) + uint16(low) + 1
            return nil
        case Instruction_BRK:
            cpu.doBrk()
            return nil
        case Instruction_RTI:
            value := cpu.PopStack()
            low := cpu.PopStack()
            high := cpu.PopStack()

            /* the reference this core is validated against restores the
             * status with the break flag and the unused bit both forced on
             */
            cpu.Status = value | FlagBreak | FlagUnused

            cpu.PC = (uint16(high) << 8) | uint16(low)
            return nil

        case Instruction_PHA:
            cpu.PushStack(cpu.A)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_PLA:
            cpu.loadA(cpu.PopStack())
            cpu.PC += instruction.Length()
            return nil
        case Instruction_PHP:
            /* php always sets the b flag in the pushed copy
             * http://wiki.nesdev.com/w/index.php/CPU_ALL#The_B_flag
             */
            cpu.PushStack(cpu.Status | FlagBreak | FlagUnused)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_PLP:
            cpu.Status = cpu.PopStack() | FlagUnused
            cpu.PC += instruction.Length()
            return nil

        case Instruction_CLC:
            cpu.SetCarryFlag(false)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_SEC:
            cpu.SetCarryFlag(true)
            cpu.PC += instruction.Length()
            return nil
        /* the decimal flag is storable but has no effect on adc/sbc here */
        case Instruction_CLD:
            cpu.SetDecimalFlag(false)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_SED:
            cpu.SetDecimalFlag(true)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CLI:
            cpu.SetInterruptDisableFlag(false)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_SEI:
            cpu.SetInterruptDisableFlag(true)
            cpu.PC += instruction.Length()
            return nil
        case Instruction_CLV:
            cpu.SetOverflowFlag(false)
            cpu.PC += instruction.Length()
            return nil

        case Instruction_NOP:
            cpu.PC += instruction.Length()
            return nil
    }

    return fmt.Errorf("unable to execute instruction 0x%x: %v at PC 0x%x", instruction.Kind, instruction.String(), cpu.PC)
}

/* brk is a two byte instruction even though the second byte is unused,
 * the pushed return address skips over it. the pushed status always has
 * the break flag set, that is the only place the flag really exists.
 */
func (cpu *CPU) doBrk() {
    next := cpu.PC + 2

    cpu.PushStack(byte(next >> 8))
    cpu.PushStack(byte(next & 0xff))
    cpu.PushStack(cpu.Status | FlagBreak | FlagUnused)

    cpu.SetInterruptDisableFlag(true)

    low := uint16(cpu.LoadMemory(IRQVector))
    high := uint16(cpu.LoadMemory(IRQVector + 1))
    cpu.PC = (high << 8) | low
}
