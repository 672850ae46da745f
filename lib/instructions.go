package lib

import (
    "bytes"
    "fmt"
    "io"
)

/* opcode references
 * https://www.masswerk.at/6502/6502_instruction_set.html
 * http://www.6502.org/tutorials/6502opcodes.html
 * http://bbc.nvg.org/doc/6502OpList.txt
 */

type InstructionType int

/* the 151 encodings defined for the NMOS 6502. anything else is illegal
 * and makes Step fail with IllegalOpcode
 */
const (
    Instruction_BRK InstructionType = 0x00
    Instruction_ORA_indirect_x =      0x01
    Instruction_ORA_zero =            0x05
    Instruction_ASL_zero =            0x06
    Instruction_PHP =                 0x08
    Instruction_ORA_immediate =       0x09
    Instruction_ASL_accumulator =     0x0a
    Instruction_ORA_absolute =        0x0d
    Instruction_ASL_absolute =        0x0e
    Instruction_BPL =                 0x10
    Instruction_ORA_indirect_y =      0x11
    Instruction_ORA_zero_x =          0x15
    Instruction_ASL_zero_x =          0x16
    Instruction_CLC =                 0x18
    Instruction_ORA_absolute_y =      0x19
    Instruction_ORA_absolute_x =      0x1d
    Instruction_ASL_absolute_x =      0x1e
    Instruction_JSR =                 0x20
    Instruction_AND_indirect_x =      0x21
    Instruction_BIT_zero =            0x24
    Instruction_AND_zero =            0x25
    Instruction_ROL_zero =            0x26
    Instruction_PLP =                 0x28
    Instruction_AND_immediate =       0x29
    Instruction_ROL_accumulator =     0x2a
    Instruction_BIT_absolute =        0x2c
    Instruction_AND_absolute =        0x2d
    Instruction_ROL_absolute =        0x2e
    Instruction_BMI =                 0x30
    Instruction_AND_indirect_y =      0x31
    Instruction_AND_zero_x =          0x35
    Instruction_ROL_zero_x =          0x36
    Instruction_SEC =                 0x38
    Instruction_AND_absolute_y =      0x39
    Instruction_AND_absolute_x =      0x3d
    Instruction_ROL_absolute_x =      0x3e
    Instruction_RTI =                 0x40
    Instruction_EOR_indirect_x =      0x41
    Instruction_EOR_zero =            0x45
    Instruction_LSR_zero =            0x46
    Instruction_PHA =                 0x48
    Instruction_EOR_immediate =       0x49
    Instruction_LSR_accumulator =     0x4a
    Instruction_JMP_absolute =        0x4c
    Instruction_EOR_absolute =        0x4d
    Instruction_LSR_absolute =        0x4e
    Instruction_BVC_relative =        0x50
    Instruction_EOR_indirect_y =      0x51
    Instruction_EOR_zero_x =          0x55
    Instruction_LSR_zero_x =          0x56
    Instruction_CLI =                 0x58
    Instruction_EOR_absolute_y =      0x59
    Instruction_EOR_absolute_x =      0x5d
    Instruction_LSR_absolute_x =      0x5e
    Instruction_RTS =                 0x60
    Instruction_ADC_indirect_x =      0x61
    Instruction_ADC_zero =            0x65
    Instruction_ROR_zero =            0x66
    Instruction_PLA =                 0x68
    Instruction_ADC_immediate =       0x69
    Instruction_ROR_accumulator =     0x6a
    Instruction_JMP_indirect =        0x6c
    Instruction_ADC_absolute =        0x6d
    Instruction_ROR_absolute =        0x6e
    Instruction_BVS_relative =        0x70
    Instruction_ADC_indirect_y =      0x71
    Instruction_ADC_zero_x =          0x75
    Instruction_ROR_zero_x =          0x76
    Instruction_SEI =                 0x78
    Instruction_ADC_absolute_y =      0x79
    Instruction_ADC_absolute_x =      0x7d
    Instruction_ROR_absolute_x =      0x7e
    Instruction_STA_indirect_x =      0x81
    Instruction_STY_zero =            0x84
    Instruction_STA_zero =            0x85
    Instruction_STX_zero =            0x86
    Instruction_DEY =                 0x88
    Instruction_TXA =                 0x8a
    Instruction_STY_absolute =        0x8c
    Instruction_STA_absolute =        0x8d
    Instruction_STX_absolute =        0x8e
    Instruction_BCC_relative =        0x90
    Instruction_STA_indirect_y =      0x91
    Instruction_STY_zero_x =          0x94
    Instruction_STA_zero_x =          0x95
    Instruction_STX_zero_y =          0x96
    Instruction_TYA =                 0x98
    Instruction_STA_absolute_y =      0x99
    Instruction_TXS =                 0x9a
    Instruction_STA_absolute_x =      0x9d
    Instruction_LDY_immediate =       0xa0
    Instruction_LDA_indirect_x =      0xa1
    Instruction_LDX_immediate =       0xa2
    Instruction_LDY_zero =            0xa4
    Instruction_LDA_zero =            0xa5
    Instruction_LDX_zero =            0xa6
    Instruction_TAY =                 0xa8
    Instruction_LDA_immediate =       0xa9
    Instruction_TAX =                 0xaa
    Instruction_LDY_absolute =        0xac
    Instruction_LDA_absolute =        0xad
    Instruction_LDX_absolute =        0xae
    Instruction_BCS_relative =        0xb0
    Instruction_LDA_indirect_y =      0xb1
    Instruction_LDY_zero_x =          0xb4
    Instruction_LDA_zero_x =          0xb5
    Instruction_LDX_zero_y =          0xb6
    Instruction_CLV =                 0xb8
    Instruction_LDA_absolute_y =      0xb9
    Instruction_TSX =                 0xba
    Instruction_LDY_absolute_x =      0xbc
    Instruction_LDA_absolute_x =      0xbd
    Instruction_LDX_absolute_y =      0xbe
    Instruction_CPY_immediate =       0xc0
    Instruction_CMP_indirect_x =      0xc1
    Instruction_CPY_zero =            0xc4
    Instruction_CMP_zero =            0xc5
    Instruction_DEC_zero =            0xc6
    Instruction_INY =                 0xc8
    Instruction_CMP_immediate =       0xc9
    Instruction_DEX =                 0xca
    Instruction_CPY_absolute =        0xcc
    Instruction_CMP_absolute =        0xcd
    Instruction_DEC_absolute =        0xce
    Instruction_BNE =                 0xd0
    Instruction_CMP_indirect_y =      0xd1
    Instruction_CMP_zero_x =          0xd5
    Instruction_DEC_zero_x =          0xd6
    Instruction_CLD =                 0xd8
    Instruction_CMP_absolute_y =      0xd9
    Instruction_CMP_absolute_x =      0xdd
    Instruction_DEC_absolute_x =      0xde
    Instruction_CPX_immediate =       0xe0
    Instruction_SBC_indirect_x =      0xe1
    Instruction_CPX_zero =            0xe4
    Instruction_SBC_zero =            0xe5
    Instruction_INC_zero =            0xe6
    Instruction_INX =                 0xe8
    Instruction_SBC_immediate =       0xe9
    Instruction_NOP =                 0xea
    Instruction_CPX_absolute =        0xec
    Instruction_SBC_absolute =        0xed
    Instruction_INC_absolute =        0xee
    Instruction_BEQ_relative =        0xf0
    Instruction_SBC_indirect_y =      0xf1
    Instruction_SBC_zero_x =          0xf5
    Instruction_INC_zero_x =          0xf6
    Instruction_SED =                 0xf8
    Instruction_SBC_absolute_y =      0xf9
    Instruction_SBC_absolute_x =      0xfd
    Instruction_INC_absolute_x =      0xfe
)

type InstructionDescription struct {
    Name string
    Operands byte
}

type Instruction struct {
    Name string
    Kind InstructionType
    Operands []byte
}

func equalBytes(a []byte, b []byte) bool {
    for i := 0; i < len(a); i++ {
        if a[i] != b[i] {
            return false
        }
    }

    return true
}

func (instruction *Instruction) Equals(other Instruction) bool {
    return instruction.Name == other.Name &&
           instruction.Kind == other.Kind &&
           len(instruction.Operands) == len(other.Operands) &&
           equalBytes(instruction.Operands, other.Operands)
}

/* total size in bytes, opcode included */
func (instruction *Instruction) Length() uint16 {
    return 1 + uint16(len(instruction.Operands))
}

func (instruction *Instruction) OperandByte() (byte, error) {
    if len(instruction.Operands) != 1 {
        return 0, fmt.Errorf("dont have one operand for %v, only have %v", instruction.Name, len(instruction.Operands))
    }
    return instruction.Operands[0], nil
}

func (instruction *Instruction) OperandWord() (uint16, error) {
    if len(instruction.Operands) != 2 {
        return 0, fmt.Errorf("dont have two operands for %v, only have %v", instruction.Name, len(instruction.Operands))
    }
    high := instruction.Operands[1]
    low := instruction.Operands[0]
    return (uint16(high) << 8) | uint16(low), nil
}

func (instruction *Instruction) String() string {
    var out bytes.Buffer
    out.WriteString(fmt.Sprintf("%02X ", instruction.Kind))
    out.WriteString(instruction.Name)
    for _, operand := range instruction.Operands {
        out.WriteRune(' ')
        out.WriteString(fmt.Sprintf("0x%x", operand))
    }
    return out.String()
}

type InstructionTable map[InstructionType]InstructionDescription

func MakeInstructionTable() InstructionTable {
    table := make(map[InstructionType]InstructionDescription)

    table[Instruction_BRK] = InstructionDescription{Name: "brk", Operands: 0}
    table[Instruction_RTS] = InstructionDescription{Name: "rts", Operands: 0}
    table[Instruction_RTI] = InstructionDescription{Name: "rti", Operands: 0}
    table[Instruction_JSR] = InstructionDescription{Name: "jsr", Operands: 2}
    table[Instruction_JMP_absolute] = InstructionDescription{Name: "jmp", Operands: 2}
    table[Instruction_JMP_indirect] = InstructionDescription{Name: "jmp", Operands: 2}

    table[Instruction_BPL] = InstructionDescription{Name: "bpl", Operands: 1}
    table[Instruction_BMI] = InstructionDescription{Name: "bmi", Operands: 1}
    table[Instruction_BVC_relative] = InstructionDescription{Name: "bvc", Operands: 1}
    table[Instruction_BVS_relative] = InstructionDescription{Name: "bvs", Operands: 1}
    table[Instruction_BCC_relative] = InstructionDescription{Name: "bcc", Operands: 1}
    table[Instruction_BCS_relative] = InstructionDescription{Name: "bcs", Operands: 1}
    table[Instruction_BNE] = InstructionDescription{Name: "bne", Operands: 1}
    table[Instruction_BEQ_relative] = InstructionDescription{Name: "beq", Operands: 1}

    table[Instruction_LDA_immediate] = InstructionDescription{Name: "lda", Operands: 1}
    table[Instruction_LDA_zero] = InstructionDescription{Name: "lda", Operands: 1}
    table[Instruction_LDA_zero_x] = InstructionDescription{Name: "lda", Operands: 1}
    table[Instruction_LDA_absolute] = InstructionDescription{Name: "lda", Operands: 2}
    table[Instruction_LDA_absolute_x] = InstructionDescription{Name: "lda", Operands: 2}
    table[Instruction_LDA_absolute_y] = InstructionDescription{Name: "lda", Operands: 2}
    table[Instruction_LDA_indirect_x] = InstructionDescription{Name: "lda", Operands: 1}
    table[Instruction_LDA_indirect_y] = InstructionDescription{Name: "lda", Operands: 1}
    table[Instruction_LDX_immediate] = InstructionDescription{Name: "ldx", Operands: 1}
    table[Instruction_LDX_zero] = InstructionDescription{Name: "ldx", Operands: 1}
    table[Instruction_LDX_zero_y] = InstructionDescription{Name: "ldx", Operands: 1}
    table[Instruction_LDX_absolute] = InstructionDescription{Name: "ldx", Operands: 2}
    table[Instruction_LDX_absolute_y] = InstructionDescription{Name: "ldx", Operands: 2}
    table[Instruction_LDY_immediate] = InstructionDescription{Name: "ldy", Operands: 1}
    table[Instruction_LDY_zero] = InstructionDescription{Name: "ldy", Operands: 1}
    table[Instruction_LDY_zero_x] = InstructionDescription{Name: "ldy", Operands: 1}
    table[Instruction_LDY_absolute] = InstructionDescription{Name: "ldy", Operands: 2}
    table[Instruction_LDY_absolute_x] = InstructionDescription{Name: "ldy", Operands: 2}

    table[Instruction_STA_zero] = InstructionDescription{Name: "sta", Operands: 1}
    table[Instruction_STA_zero_x] = InstructionDescription{Name: "sta", Operands: 1}
    table[Instruction_STA_absolute] = InstructionDescription{Name: "sta", Operands: 2}
    table[Instruction_STA_absolute_x] = InstructionDescription{Name: "sta", Operands: 2}
    table[Instruction_STA_absolute_y] = InstructionDescription{Name: "sta", Operands: 2}
    table[Instruction_STA_indirect_x] = InstructionDescription{Name: "sta", Operands: 1}
    table[Instruction_STA_indirect_y] = InstructionDescription{Name: "sta", Operands: 1}
    table[Instruction_STX_zero] = InstructionDescription{Name: "stx", Operands: 1}
    table[Instruction_STX_zero_y] = InstructionDescription{Name: "stx", Operands: 1}
    table[Instruction_STX_absolute] = InstructionDescription{Name: "stx", Operands: 2}
    table[Instruction_STY_zero] = InstructionDescription{Name: "sty", Operands: 1}
    table[Instruction_STY_zero_x] = InstructionDescription{Name: "sty", Operands: 1}
    table[Instruction_STY_absolute] = InstructionDescription{Name: "sty", Operands: 2}

    table[Instruction_TAX] = InstructionDescription{Name: "tax", Operands: 0}
    table[Instruction_TAY] = InstructionDescription{Name: "tay", Operands: 0}
    table[Instruction_TXA] = InstructionDescription{Name: "txa", Operands: 0}
    table[Instruction_TYA] = InstructionDescription{Name: "tya", Operands: 0}
    table[Instruction_TSX] = InstructionDescription{Name: "tsx", Operands: 0}
    table[Instruction_TXS] = InstructionDescription{Name: "txs", Operands: 0}

    table[Instruction_ADC_immediate] = InstructionDescription{Name: "adc", Operands: 1}
    table[Instruction_ADC_zero] = InstructionDescription{Name: "adc", Operands: 1}
    table[Instruction_ADC_zero_x] = InstructionDescription{Name: "adc", Operands: 1}
    table[Instruction_ADC_absolute] = InstructionDescription{Name: "adc", Operands: 2}
    table[Instruction_ADC_absolute_x] = InstructionDescription{Name: "adc", Operands: 2}
    table[Instruction_ADC_absolute_y] = InstructionDescription{Name: "adc", Operands: 2}
    table[Instruction_ADC_indirect_x] = InstructionDescription{Name: "adc", Operands: 1}
    table[Instruction_ADC_indirect_y] = InstructionDescription{Name: "adc", Operands: 1}
    table[Instruction_SBC_immediate] = InstructionDescription{Name: "sbc", Operands: 1}
    table[Instruction_SBC_zero] = InstructionDescription{Name: "sbc", Operands: 1}
    table[Instruction_SBC_zero_x] = InstructionDescription{Name: "sbc", Operands: 1}
    table[Instruction_SBC_absolute] = InstructionDescription{Name: "sbc", Operands: 2}
    table[Instruction_SBC_absolute_x] = InstructionDescription{Name: "sbc", Operands: 2}
    table[Instruction_SBC_absolute_y] = InstructionDescription{Name: "sbc", Operands: 2}
    table[Instruction_SBC_indirect_x] = InstructionDescription{Name: "sbc", Operands: 1}
    table[Instruction_SBC_indirect_y] = InstructionDescription{Name: "sbc", Operands: 1}

    table[Instruction_CMP_immediate] = InstructionDescription{Name: "cmp", Operands: 1}
    table[Instruction_CMP_zero] = InstructionDescription{Name: "cmp", Operands: 1}
    table[Instruction_CMP_zero_x] = InstructionDescription{Name: "cmp", Operands: 1}
    table[Instruction_CMP_absolute] = InstructionDescription{Name: "cmp", Operands: 2}
    table[Instruction_CMP_absolute_x] = InstructionDescription{Name: "cmp", Operands: 2}
    table[Instruction_CMP_absolute_y] = InstructionDescription{Name: "cmp", Operands: 2}
    table[Instruction_CMP_indirect_x] = InstructionDescription{Name: "cmp", Operands: 1}
    table[Instruction_CMP_indirect_y] = InstructionDescription{Name: "cmp", Operands: 1}
    table[Instruction_CPX_immediate] = InstructionDescription{Name: "cpx", Operands: 1}
    table[Instruction_CPX_zero] = InstructionDescription{Name: "cpx", Operands: 1}
    table[Instruction_CPX_absolute] = InstructionDescription{Name: "cpx", Operands: 2}
    table[Instruction_CPY_immediate] = InstructionDescription{Name: "cpy", Operands: 1}
    table[Instruction_CPY_zero] = InstructionDescription{Name: "cpy", Operands: 1}
    table[Instruction_CPY_absolute] = InstructionDescription{Name: "cpy", Operands: 2}

    table[Instruction_INC_zero] = InstructionDescription{Name: "inc", Operands: 1}
    table[Instruction_INC_zero_x] = InstructionDescription{Name: "inc", Operands: 1}
    table[Instruction_INC_absolute] = InstructionDescription{Name: "inc", Operands: 2}
    table[Instruction_INC_absolute_x] = InstructionDescription{Name: "inc", Operands: 2}
    table[Instruction_DEC_zero] = InstructionDescription{Name: "dec", Operands: 1}
    table[Instruction_DEC_zero_x] = InstructionDescription{Name: "dec", Operands: 1}
    table[Instruction_DEC_absolute] = InstructionDescription{Name: "dec", Operands: 2}
    table[Instruction_DEC_absolute_x] = InstructionDescription{Name: "dec", Operands: 2}
    table[Instruction_INX] = InstructionDescription{Name: "inx", Operands: 0}
    table[Instruction_INY] = InstructionDescription{Name: "iny", Operands: 0}
    table[Instruction_DEX] = InstructionDescription{Name: "dex", Operands: 0}
    table[Instruction_DEY] = InstructionDescription{Name: "dey", Operands: 0}

    table[Instruction_AND_immediate] = InstructionDescription{Name: "and", Operands: 1}
    table[Instruction_AND_zero] = InstructionDescription{Name: "and", Operands: 1}
    table[Instruction_AND_zero_x] = InstructionDescription{Name: "and", Operands: 1}
    table[Instruction_AND_absolute] = InstructionDescription{Name: "and", Operands: 2}
    table[Instruction_AND_absolute_x] = InstructionDescription{Name: "and", Operands: 2}
    table[Instruction_AND_absolute_y] = InstructionDescription{Name: "and", Operands: 2}
    table[Instruction_AND_indirect_x] = InstructionDescription{Name: "and", Operands: 1}
    table[Instruction_AND_indirect_y] = InstructionDescription{Name: "and", Operands: 1}
    table[Instruction_ORA_immediate] = InstructionDescription{Name: "ora", Operands: 1}
    table[Instruction_ORA_zero] = InstructionDescription{Name: "ora", Operands: 1}
    table[Instruction_ORA_zero_x] = InstructionDescription{Name: "ora", Operands: 1}
    table[Instruction_ORA_absolute] = InstructionDescription{Name: "ora", Operands: 2}
    table[Instruction_ORA_absolute_x] = InstructionDescription{Name: "ora", Operands: 2}
    table[Instruction_ORA_absolute_y] = InstructionDescription{Name: "ora", Operands: 2}
    table[Instruction_ORA_indirect_x] = InstructionDescription{Name: "ora", Operands: 1}
    table[Instruction_ORA_indirect_y] = InstructionDescription{Name: "ora", Operands: 1}
    table[Instruction_EOR_immediate] = InstructionDescription{Name: "eor", Operands: 1}
    table[Instruction_EOR_zero] = InstructionDescription{Name: "eor", Operands: 1}
    table[Instruction_EOR_zero_x] = InstructionDescription{Name: "eor", Operands: 1}
    table[Instruction_EOR_absolute] = InstructionDescription{Name: "eor", Operands: 2}
    table[Instruction_EOR_absolute_x] = InstructionDescription{Name: "eor", Operands: 2}
    table[Instruction_EOR_absolute_y] = InstructionDescription{Name: "eor", Operands: 2}
    table[Instruction_EOR_indirect_x] = InstructionDescription{Name: "eor", Operands: 1}
    table[Instruction_EOR_indirect_y] = InstructionDescription{Name: "eor", Operands: 1}
    table[Instruction_BIT_zero] = InstructionDescription{Name: "bit", Operands: 1}
    table[Instruction_BIT_absolute] = InstructionDescription{Name: "bit", Operands: 2}

    table[Instruction_ASL_accumulator] = InstructionDescription{Name: "asl", Operands: 0}
    table[Instruction_ASL_zero] = InstructionDescription{Name: "asl", Operands: 1}
    table[Instruction_ASL_zero_x] = InstructionDescription{Name: "asl", Operands: 1}
    table[Instruction_ASL_absolute] = InstructionDescription{Name: "asl", Operands: 2}
    table[Instruction_ASL_absolute_x] = InstructionDescription{Name: "asl", Operands: 2}
    table[Instruction_LSR_accumulator] = InstructionDescription{Name: "lsr", Operands: 0}
    table[Instruction_LSR_zero] = InstructionDescription{Name: "lsr", Operands: 1}
    table[Instruction_LSR_zero_x] = InstructionDescription{Name: "lsr", Operands: 1}
    table[Instruction_LSR_absolute] = InstructionDescription{Name: "lsr", Operands: 2}
    table[Instruction_LSR_absolute_x] = InstructionDescription{Name: "lsr", Operands: 2}
    table[Instruction_ROL_accumulator] = InstructionDescription{Name: "rol", Operands: 0}
    table[Instruction_ROL_zero] = InstructionDescription{Name: "rol", Operands: 1}
    table[Instruction_ROL_zero_x] = InstructionDescription{Name: "rol", Operands: 1}
    table[Instruction_ROL_absolute] = InstructionDescription{Name: "rol", Operands: 2}
    table[Instruction_ROL_absolute_x] = InstructionDescription{Name: "rol", Operands: 2}
    table[Instruction_ROR_accumulator] = InstructionDescription{Name: "ror", Operands: 0}
    table[Instruction_ROR_zero] = InstructionDescription{Name: "ror", Operands: 1}
    table[Instruction_ROR_zero_x] = InstructionDescription{Name: "ror", Operands: 1}
    table[Instruction_ROR_absolute] = InstructionDescription{Name: "ror", Operands: 2}
    table[Instruction_ROR_absolute_x] = InstructionDescription{Name: "ror", Operands: 2}

    table[Instruction_PHA] = InstructionDescription{Name: "pha", Operands: 0}
    table[Instruction_PLA] = InstructionDescription{Name: "pla", Operands: 0}
    table[Instruction_PHP] = InstructionDescription{Name: "php", Operands: 0}
    table[Instruction_PLP] = InstructionDescription{Name: "plp", Operands: 0}

    table[Instruction_CLC] = InstructionDescription{Name: "clc", Operands: 0}
    table[Instruction_SEC] = InstructionDescription{Name: "sec", Operands: 0}
    table[Instruction_CLD] = InstructionDescription{Name: "cld", Operands: 0}
    table[Instruction_SED] = InstructionDescription{Name: "sed", Operands: 0}
    table[Instruction_CLI] = InstructionDescription{Name: "cli", Operands: 0}
    table[Instruction_SEI] = InstructionDescription{Name: "sei", Operands: 0}
    table[Instruction_CLV] = InstructionDescription{Name: "clv", Operands: 0}

    table[Instruction_NOP] = InstructionDescription{Name: "nop", Operands: 0}

    /* make sure I don't do something dumb */
    for key, value := range table {
        if value.Operands > 2 {
            panic(fmt.Sprintf("internal error: operands cannot be more than 2 for instruction %v: %v", key, value.Name))
        }
    }

    return table
}

type InstructionReader struct {
    data io.Reader
    table InstructionTable
}

func NewInstructionReader(data []byte) *InstructionReader {
    return &InstructionReader{
        data: bytes.NewReader(data),
        table: MakeInstructionTable(),
    }
}

/* instructions can vary in their size */
func (reader *InstructionReader) ReadInstruction() (Instruction, error) {
    first := make([]byte, 1)
    _, err := io.ReadFull(reader.data, first)
    if err != nil {
        return Instruction{}, err
    }

    firstI := InstructionType(first[0])

    description, ok := reader.table[firstI]
    if !ok {
        return Instruction{}, fmt.Errorf("unknown instruction: 0x%x", first)
    }

    out := Instruction{
        Name: description.Name,
        Kind: firstI,
        Operands: nil,
    }

    operands := make([]byte, description.Operands)
    _, err = io.ReadFull(reader.data, operands)
    if err != nil {
        return Instruction{}, fmt.Errorf("unable to read %v operands for instruction %v", description.Operands, description.Name)
    }

    out.Operands = operands

    return out, nil
}
