package lib

import (
    "errors"
    "io"
    "testing"
)

func makeTestMachine(origin uint16, program []byte) (*Machine, CPU) {
    machine := MakeMachine()
    err := machine.LoadBytes(origin, program)
    if err != nil {
        panic(err)
    }

    cpu := MakeCPU(machine)
    cpu.Reset(origin)
    return machine, cpu
}

/* the program fixtures end with a 0x00 byte, and brk is the only thing
 * here that sets the interrupt disable flag
 */
func runUntilBreak(test *testing.T, cpu *CPU, limit int) {
    for i := 0; i < limit; i++ {
        err := cpu.Step()
        if err != nil {
            test.Fatalf("could not run cpu: %v", err)
        }

        if cpu.GetInterruptDisableFlag() {
            return
        }
    }

    test.Fatalf("program did not reach brk within %v steps", limit)
}

func readAllInstructions(reader *InstructionReader) ([]Instruction, error) {
    var out []Instruction

    for {
        instruction, err := reader.ReadInstruction()
        if err != nil {
            return out, err
        }

        out = append(out, instruction)
    }
}

func checkInstructions(test *testing.T, instructions []Instruction, kinds []InstructionType) {
    if len(kinds) != len(instructions) {
        test.Fatalf("unequal number of instructions %v vs expected %v", len(instructions), len(kinds))
    }

    for i := 0; i < len(instructions); i++ {
        if instructions[i].Kind != kinds[i] {
            test.Fatalf("invalid instruction %v: %v vs %v\n", i, instructions[i].String(), kinds[i])
        }
    }
}

func TestDecode(test *testing.T) {
    bytes := []byte{0xa9, 0x01, 0x8d, 0x00, 0x02, 0xa9, 0x05, 0x8d, 0x01, 0x02, 0xa9, 0x08, 0x8d, 0x02, 0x02}

    reader := NewInstructionReader(bytes)
    instructions, err := readAllInstructions(reader)

    if err != nil {
        if err != io.EOF {
            test.Fatalf("could not read instructions: %v", err)
        }
    }

    checkInstructions(test, instructions, []InstructionType{
        Instruction_LDA_immediate,
        Instruction_STA_absolute,
        Instruction_LDA_immediate,
        Instruction_STA_absolute,
        Instruction_LDA_immediate,
        Instruction_STA_absolute,
    })
}

func TestReset(test *testing.T) {
    _, cpu := makeTestMachine(0x400, []byte{0xea})

    if cpu.PC != 0x400 {
        test.Fatalf("PC expected to be 0x400 but was 0x%x\n", cpu.PC)
    }

    if cpu.A != 0 || cpu.X != 0 || cpu.Y != 0 {
        test.Fatalf("registers expected to be 0 but were A:0x%x X:0x%x Y:0x%x\n", cpu.A, cpu.X, cpu.Y)
    }

    if cpu.SP != 0xfd {
        test.Fatalf("SP expected to be 0xfd but was 0x%x\n", cpu.SP)
    }

    /* the unused bit and nothing else, in particular not the interrupt
     * disable flag
     */
    if cpu.Status != 0x20 {
        test.Fatalf("status expected to be 0x20 but was 0x%x\n", cpu.Status)
    }

    cpu.ResetStrict(0x400)
    if !cpu.GetInterruptDisableFlag() {
        test.Fatalf("strict reset should set the interrupt disable flag\n")
    }

    if cpu.SR() & FlagUnused == 0 {
        test.Fatalf("the unused bit should always read as set\n")
    }
}

func TestSimple(test *testing.T) {
    machine, cpu := makeTestMachine(0x400, []byte{
        0xa9, 0x01,       // lda #$01
        0x8d, 0x00, 0x02, // sta $200
        0xa9, 0x05,       // lda #$05
        0x8d, 0x01, 0x02, // sta $201
        0xa9, 0x08,       // lda #$08
        0x8d, 0x02, 0x02, // sta $202
        0x00,             // brk
    })

    runUntilBreak(test, &cpu, 50)

    if cpu.A != 0x8 {
        test.Fatalf("A register expected to be 0x8 but was 0x%x\n", cpu.A)
    }

    if machine.Memory[0x200] != 0x1 {
        test.Fatalf("expected memory location 0x200 to contain 0x1 but was 0x%x\n", machine.Memory[0x200])
    }

    if machine.Memory[0x201] != 0x5 {
        test.Fatalf("expected memory location 0x201 to contain 0x5 but was 0x%x\n", machine.Memory[0x201])
    }

    if machine.Memory[0x202] != 0x8 {
        test.Fatalf("expected memory location 0x202 to contain 0x8 but was 0x%x\n", machine.Memory[0x202])
    }
}

func TestSimpleBranch(test *testing.T) {
    machine, cpu := makeTestMachine(0x5000, []byte{
        0xa2, 0x08,       // ldx #$08
        0xca,             // dex
        0x8e, 0x00, 0x02, // stx $200
        0xe0, 0x03,       // cpx #$03
        0xd0, 0xf8,       // bne -8
        0x8e, 0x01, 0x02, // stx $201
        0x00,             // brk
    })

    runUntilBreak(test, &cpu, 50)

    if cpu.X != 0x03 {
        test.Fatalf("X register expected to be 0x03 but was 0x%x\n", cpu.X)
    }

    if machine.Memory[0x200] != 0x3 {
        test.Fatalf("expected memory location 0x200 to be 0x3 but was 0x%x\n", machine.Memory[0x200])
    }

    if machine.Memory[0x201] != 0x3 {
        test.Fatalf("expected memory location 0x201 to be 0x3 but was 0x%x\n", machine.Memory[0x201])
    }
}

func TestIndirectLoad(test *testing.T) {
    _, cpu := makeTestMachine(0x5000, []byte{
        0xa2, 0x01,       // ldx #$01
        0xa9, 0x05,       // lda #$05
        0x85, 0x01,       // sta $01
        0xa9, 0x07,       // lda #$07
        0x85, 0x02,       // sta $02
        0xa0, 0x0a,       // ldy #$0a
        0x8c, 0x05, 0x07, // sty $705
        0xa1, 0x00,       // lda ($00,x)
        0x00,             // brk
    })

    runUntilBreak(test, &cpu, 50)

    if cpu.A != 0x0a {
        test.Fatalf("expected A register to be 0x0a but was 0x%x\n", cpu.A)
    }
}

func TestIndirectYWrap(test *testing.T) {
    /* the pointer is read from 0xff and 0x00, the second zero page
     * access wraps within page zero
     */
    machine, cpu := makeTestMachine(0x400, []byte{
        0xb1, 0xff, // lda ($ff),y
        0x00,       // brk
    })

    machine.Memory[0xff] = 0x46
    machine.Memory[0x00] = 0x03
    machine.Memory[0x0348] = 0x77
    cpu.Y = 2

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if cpu.A != 0x77 {
        test.Fatalf("expected A register to be 0x77 but was 0x%x\n", cpu.A)
    }
}

func TestStackRoundtrip(test *testing.T) {
    machine, cpu := makeTestMachine(0x400, []byte{
        0xa9, 0x42, // lda #$42
        0x48,       // pha
        0xa9, 0x00, // lda #$00
        0x68,       // pla
        0x00,       // brk
    })

    steps := func(count int) {
        for i := 0; i < count; i++ {
            err := cpu.Step()
            if err != nil {
                test.Fatalf("could not run cpu: %v", err)
            }
        }
    }

    steps(2)
    if cpu.A != 0x42 || machine.Memory[0x1fd] != 0x42 || cpu.SP != 0xfc {
        test.Fatalf("after pha expected A=0x42 stack=0x42 SP=0xfc but was A=0x%x stack=0x%x SP=0x%x\n", cpu.A, machine.Memory[0x1fd], cpu.SP)
    }

    steps(1)
    if cpu.A != 0 {
        test.Fatalf("expected A register to be 0 but was 0x%x\n", cpu.A)
    }

    steps(1)
    if cpu.A != 0x42 || cpu.SP != 0xfd {
        test.Fatalf("after pla expected A=0x42 SP=0xfd but was A=0x%x SP=0x%x\n", cpu.A, cpu.SP)
    }
}

func TestJsrRts(test *testing.T) {
    machine, cpu := makeTestMachine(0x400, []byte{
        0x20, 0x05, 0x04, // jsr $0405
        0x00,             // brk
        0x00,             // brk
        0x60,             // rts
    })

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if cpu.PC != 0x405 {
        test.Fatalf("expected PC to be 0x405 but was 0x%x\n", cpu.PC)
    }

    /* the high byte of the return address goes on the stack first */
    if machine.Memory[0x1fd] != 0x04 || machine.Memory[0x1fc] != 0x02 {
        test.Fatalf("expected stack to hold 0x04 0x02 but was 0x%x 0x%x\n", machine.Memory[0x1fd], machine.Memory[0x1fc])
    }

    if cpu.SP != 0xfb {
        test.Fatalf("expected SP to be 0xfb but was 0x%x\n", cpu.SP)
    }

    err = cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    /* rts lands on the byte after the jsr instruction */
    if cpu.PC != 0x403 {
        test.Fatalf("expected PC to be 0x403 but was 0x%x\n", cpu.PC)
    }

    if cpu.SP != 0xfd {
        test.Fatalf("expected SP to be 0xfd but was 0x%x\n", cpu.SP)
    }
}

func TestLoadThenBranchIfZero(test *testing.T) {
    _, cpu := makeTestMachine(0x400, []byte{
        0xa9, 0x00, // lda #$00
        0xf0, 0x02, // beq +2
        0xa9, 0xff, // lda #$ff, skipped by the branch
    })

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if cpu.A != 0 || !cpu.GetZeroFlag() {
        test.Fatalf("expected A=0 and the zero flag set but was A=0x%x Z=%v\n", cpu.A, cpu.GetZeroFlag())
    }

    err = cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if cpu.PC != 0x406 {
        test.Fatalf("expected PC to be 0x406 but was 0x%x\n", cpu.PC)
    }

    if cpu.A != 0 {
        test.Fatalf("the branch should have skipped the second load, A was 0x%x\n", cpu.A)
    }
}

func TestAdcOverflow(test *testing.T) {
    _, cpu := makeTestMachine(0x400, []byte{
        0x69, 0x50, // adc #$50
    })

    cpu.A = 0x50

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if cpu.A != 0xa0 {
        test.Fatalf("expected A register to be 0xa0 but was 0x%x\n", cpu.A)
    }

    /* 0x50 + 0x50 leaves the positive range, so negative and overflow
     * are both set while carry stays clear
     */
    if !cpu.GetNegativeFlag() || !cpu.GetOverflowFlag() {
        test.Fatalf("expected negative and overflow to be set, status was 0x%x\n", cpu.Status)
    }

    if cpu.GetCarryFlag() || cpu.GetZeroFlag() {
        test.Fatalf("expected carry and zero to be clear, status was 0x%x\n", cpu.Status)
    }
}

func TestCompareAndBranch(test *testing.T) {
    _, cpu := makeTestMachine(0x400, []byte{
        0xc9, 0x10, // cmp #$10
        0xf0, 0x02, // beq +2
        0xea,       // nop
        0xea,       // nop
        0xa9, 0x01, // lda #$01
    })

    cpu.A = 0x10

    for i := 0; i < 2; i++ {
        err := cpu.Step()
        if err != nil {
            test.Fatalf("could not run cpu: %v", err)
        }
    }

    if cpu.PC != 0x406 {
        test.Fatalf("expected PC to be 0x406 but was 0x%x\n", cpu.PC)
    }

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if cpu.A != 0x01 {
        test.Fatalf("expected A register to be 0x01 but was 0x%x\n", cpu.A)
    }
}

func TestZeroPageXWrapScenario(test *testing.T) {
    machine, cpu := makeTestMachine(0x400, []byte{
        0xb5, 0x81, // lda $81,x
    })

    machine.Memory[0x80] = 0x99
    cpu.X = 0xff

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    /* (0x81 + 0xff) & 0xff == 0x80 */
    if cpu.A != 0x99 {
        test.Fatalf("expected A register to be 0x99 but was 0x%x\n", cpu.A)
    }
}

/* sweep every addend pair and carry-in and check all five outputs of adc */
func TestAdcExhaustive(test *testing.T) {
    machine, cpu := makeTestMachine(0x400, []byte{0x69, 0x00})

    for a := 0; a < 256; a++ {
        for b := 0; b < 256; b++ {
            for carry := 0; carry < 2; carry++ {
                cpu.Reset(0x400)
                cpu.A = byte(a)
                cpu.SetCarryFlag(carry == 1)
                machine.Memory[0x401] = byte(b)

                err := cpu.Step()
                if err != nil {
                    test.Fatalf("could not run cpu: %v", err)
                }

                full := a + b + carry
                expected := byte(full)

                if cpu.A != expected {
                    test.Fatalf("adc %v+%v+%v: expected A to be 0x%x but was 0x%x\n", a, b, carry, expected, cpu.A)
                }

                if cpu.GetCarryFlag() != (full >= 256) {
                    test.Fatalf("adc %v+%v+%v: carry expected %v\n", a, b, carry, full >= 256)
                }

                if cpu.GetZeroFlag() != (expected == 0) {
                    test.Fatalf("adc %v+%v+%v: zero expected %v\n", a, b, carry, expected == 0)
                }

                if cpu.GetNegativeFlag() != (expected & 0x80 != 0) {
                    test.Fatalf("adc %v+%v+%v: negative expected %v\n", a, b, carry, expected & 0x80 != 0)
                }

                overflow := (byte(a) ^ expected) & (byte(b) ^ expected) & 0x80 != 0
                if cpu.GetOverflowFlag() != overflow {
                    test.Fatalf("adc %v+%v+%v: overflow expected %v\n", a, b, carry, overflow)
                }
            }
        }
    }
}

/* sbc of b must behave bit for bit like adc of ^b */
func TestSbcMatchesAdcComplement(test *testing.T) {
    sbcMachine, sbcCpu := makeTestMachine(0x400, []byte{0xe9, 0x00})
    adcMachine, adcCpu := makeTestMachine(0x400, []byte{0x69, 0x00})

    for a := 0; a < 256; a++ {
        for b := 0; b < 256; b++ {
            for carry := 0; carry < 2; carry++ {
                sbcCpu.Reset(0x400)
                sbcCpu.A = byte(a)
                sbcCpu.SetCarryFlag(carry == 1)
                sbcMachine.Memory[0x401] = byte(b)

                adcCpu.Reset(0x400)
                adcCpu.A = byte(a)
                adcCpu.SetCarryFlag(carry == 1)
                adcMachine.Memory[0x401] = ^byte(b)

                err := sbcCpu.Step()
                if err != nil {
                    test.Fatalf("could not run cpu: %v", err)
                }
                err = adcCpu.Step()
                if err != nil {
                    test.Fatalf("could not run cpu: %v", err)
                }

                if !sbcCpu.Equals(adcCpu) {
                    test.Fatalf("sbc %v-%v-%v diverged from adc of the complement: %v vs %v\n", a, b, 1-carry, sbcCpu.String(), adcCpu.String())
                }
            }
        }
    }
}

/* indexed zero page addressing never leaves page zero */
func TestZeroPageXWrapExhaustive(test *testing.T) {
    machine, cpu := makeTestMachine(0x400, []byte{0xb5, 0x00})

    for i := 0; i < 256; i++ {
        machine.Memory[i] = byte(i) ^ 0x5a
    }

    for base := 0; base < 256; base++ {
        for index := 0; index < 256; index += 17 {
            cpu.Reset(0x400)
            cpu.X = byte(index)
            machine.Memory[0x401] = byte(base)

            err := cpu.Step()
            if err != nil {
                test.Fatalf("could not run cpu: %v", err)
            }

            expected := byte(base + index) ^ 0x5a
            if cpu.A != expected {
                test.Fatalf("lda $%02x,x with x=0x%x: expected 0x%x but was 0x%x\n", base, index, expected, cpu.A)
            }
        }
    }
}

func TestPhpPlpRoundtrip(test *testing.T) {
    machine, cpu := makeTestMachine(0x400, []byte{
        0x08, // php
        0x28, // plp
    })

    for status := 0; status < 256; status++ {
        cpu.Reset(0x400)
        cpu.Status = byte(status)

        err := cpu.Step()
        if err != nil {
            test.Fatalf("could not run cpu: %v", err)
        }

        /* the pushed copy always carries the break flag and unused bit */
        pushed := machine.Memory[0x1fd]
        if pushed != byte(status) | FlagBreak | FlagUnused {
            test.Fatalf("php of 0x%x: expected 0x%x on the stack but was 0x%x\n", status, byte(status) | FlagBreak | FlagUnused, pushed)
        }

        err = cpu.Step()
        if err != nil {
            test.Fatalf("could not run cpu: %v", err)
        }

        mask := ^byte(FlagBreak | FlagUnused)
        if cpu.Status & mask != byte(status) & mask {
            test.Fatalf("plp after php of 0x%x: expected 0x%x outside the b bits but was 0x%x\n", status, byte(status) & mask, cpu.Status & mask)
        }

        if cpu.SR() & FlagUnused == 0 {
            test.Fatalf("the unused bit must read as set, status was 0x%x\n", cpu.Status)
        }
    }
}

func TestNopChangesNothingButPC(test *testing.T) {
    _, cpu := makeTestMachine(0x400, []byte{0xea})

    cpu.A = 0x12
    cpu.X = 0x34
    cpu.Y = 0x56
    before := cpu

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if cpu.PC != before.PC + 1 {
        test.Fatalf("expected PC to advance by 1 but went from 0x%x to 0x%x\n", before.PC, cpu.PC)
    }

    if cpu.A != before.A || cpu.X != before.X || cpu.Y != before.Y || cpu.SP != before.SP || cpu.Status != before.Status {
        test.Fatalf("nop changed register state: %v vs %v\n", cpu.String(), before.String())
    }
}

func TestBrkRti(test *testing.T) {
    machine, cpu := makeTestMachine(0x400, []byte{
        0x00, // brk
    })

    /* brk vectors through 0xfffe to the handler at 0x600 */
    machine.Memory[0xfffe] = 0x00
    machine.Memory[0xffff] = 0x06
    machine.Memory[0x600] = 0x40 // rti

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if cpu.PC != 0x600 {
        test.Fatalf("expected PC to be 0x600 but was 0x%x\n", cpu.PC)
    }

    if !cpu.GetInterruptDisableFlag() {
        test.Fatalf("brk should set the interrupt disable flag\n")
    }

    /* pushed return address skips the padding byte after brk */
    if machine.Memory[0x1fd] != 0x04 || machine.Memory[0x1fc] != 0x02 {
        test.Fatalf("expected return address 0x0402 on the stack but was 0x%x 0x%x\n", machine.Memory[0x1fd], machine.Memory[0x1fc])
    }

    if machine.Memory[0x1fb] & FlagBreak == 0 {
        test.Fatalf("the pushed status should carry the break flag, was 0x%x\n", machine.Memory[0x1fb])
    }

    err = cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if cpu.PC != 0x402 {
        test.Fatalf("expected PC to be 0x402 after rti but was 0x%x\n", cpu.PC)
    }

    if cpu.SP != 0xfd {
        test.Fatalf("expected SP to be 0xfd after rti but was 0x%x\n", cpu.SP)
    }

    /* this core restores the status with b and the unused bit forced on */
    if cpu.Status & (FlagBreak | FlagUnused) != FlagBreak | FlagUnused {
        test.Fatalf("rti should force b and the unused bit, status was 0x%x\n", cpu.Status)
    }
}

func TestJmpIndirect(test *testing.T) {
    machine, cpu := makeTestMachine(0x400, []byte{
        0x6c, 0x00, 0x03, // jmp ($0300)
    })

    machine.Memory[0x300] = 0x34
    machine.Memory[0x301] = 0x12

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if cpu.PC != 0x1234 {
        test.Fatalf("expected PC to be 0x1234 but was 0x%x\n", cpu.PC)
    }
}

func TestIllegalOpcode(test *testing.T) {
    _, cpu := makeTestMachine(0x400, []byte{0x02})

    cpu.A = 0x7f
    err := cpu.Step()
    if err == nil {
        test.Fatalf("expected an error for opcode 0x02\n")
    }

    var illegal *IllegalOpcode
    if !errors.As(err, &illegal) {
        test.Fatalf("expected an IllegalOpcode error but got %v\n", err)
    }

    if illegal.Opcode != 0x02 || illegal.PC != 0x400 {
        test.Fatalf("expected opcode 0x02 at pc 0x400 but got opcode 0x%x at pc 0x%x\n", illegal.Opcode, illegal.PC)
    }

    /* state is preserved for inspection */
    if cpu.PC != 0x400 || cpu.A != 0x7f {
        test.Fatalf("state should be untouched after an illegal opcode: %v\n", cpu.String())
    }
}

type busAccess struct {
    write bool
    address uint16
    value byte
}

/* the order of bus accesses is part of the contract: for a read modify
 * write instruction the operand is read from the effective address
 * before the result is written back to the same address
 */
func TestBusAccessOrder(test *testing.T) {
    machine, cpu := makeTestMachine(0x400, []byte{
        0xee, 0x00, 0x02, // inc $200
    })

    machine.Memory[0x200] = 0x41

    var accesses []busAccess
    machine.OnRead = func(address uint16, value byte) {
        accesses = append(accesses, busAccess{write: false, address: address, value: value})
    }
    machine.OnWrite = func(address uint16, value byte) {
        accesses = append(accesses, busAccess{write: true, address: address, value: value})
    }

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    expected := []busAccess{
        {write: false, address: 0x400, value: 0xee},
        {write: false, address: 0x401, value: 0x00},
        {write: false, address: 0x402, value: 0x02},
        {write: false, address: 0x200, value: 0x41},
        {write: true, address: 0x200, value: 0x42},
    }

    if len(accesses) != len(expected) {
        test.Fatalf("expected %v bus accesses but saw %v: %v\n", len(expected), len(accesses), accesses)
    }

    for i := range expected {
        if accesses[i] != expected[i] {
            test.Fatalf("bus access %v: expected %v but was %v\n", i, expected[i], accesses[i])
        }
    }

    if machine.Memory[0x200] != 0x42 {
        test.Fatalf("expected memory location 0x200 to be 0x42 but was 0x%x\n", machine.Memory[0x200])
    }
}

/* sp wraps within page one in both directions */
func TestStackPointerWrap(test *testing.T) {
    machine, cpu := makeTestMachine(0x400, []byte{
        0x48, // pha
        0x68, // pla
    })

    cpu.SP = 0x00
    cpu.A = 0x99

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if machine.Memory[0x100] != 0x99 {
        test.Fatalf("expected the push to land at 0x100 but it holds 0x%x\n", machine.Memory[0x100])
    }

    if cpu.SP != 0xff {
        test.Fatalf("expected SP to wrap to 0xff but was 0x%x\n", cpu.SP)
    }

    err = cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if cpu.SP != 0x00 || cpu.A != 0x99 {
        test.Fatalf("expected SP to wrap back to 0x00 with A=0x99 but was SP=0x%x A=0x%x\n", cpu.SP, cpu.A)
    }
}

func TestPCWrap(test *testing.T) {
    machine, cpu := makeTestMachine(0x0, []byte{})

    machine.Memory[0xffff] = 0xea // nop
    cpu.PC = 0xffff

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if cpu.PC != 0x0000 {
        test.Fatalf("expected PC to wrap to 0x0000 but was 0x%x\n", cpu.PC)
    }
}

func TestShiftAndRotate(test *testing.T) {
    _, cpu := makeTestMachine(0x400, []byte{
        0x38, // sec
        0x2a, // rol a
        0x6a, // ror a
        0x4a, // lsr a
        0x0a, // asl a
    })

    cpu.A = 0x81

    step := func() {
        err := cpu.Step()
        if err != nil {
            test.Fatalf("could not run cpu: %v", err)
        }
    }

    step()
    step()
    /* 0x81 rol with carry in: 0x03, carry out set */
    if cpu.A != 0x03 || !cpu.GetCarryFlag() {
        test.Fatalf("rol: expected A=0x03 with carry set but was A=0x%x C=%v\n", cpu.A, cpu.GetCarryFlag())
    }

    step()
    /* 0x03 ror with carry in: 0x81, carry out set */
    if cpu.A != 0x81 || !cpu.GetCarryFlag() || !cpu.GetNegativeFlag() {
        test.Fatalf("ror: expected A=0x81 negative with carry set but was A=0x%x\n", cpu.A)
    }

    step()
    /* lsr always clears negative */
    if cpu.A != 0x40 || !cpu.GetCarryFlag() || cpu.GetNegativeFlag() {
        test.Fatalf("lsr: expected A=0x40 with carry set but was A=0x%x C=%v\n", cpu.A, cpu.GetCarryFlag())
    }

    step()
    if cpu.A != 0x80 || cpu.GetCarryFlag() || !cpu.GetNegativeFlag() {
        test.Fatalf("asl: expected A=0x80 negative with carry clear but was A=0x%x\n", cpu.A)
    }
}

func TestBit(test *testing.T) {
    machine, cpu := makeTestMachine(0x400, []byte{
        0x24, 0x10, // bit $10
    })

    machine.Memory[0x10] = 0xc0
    cpu.A = 0x04

    err := cpu.Step()
    if err != nil {
        test.Fatalf("could not run cpu: %v", err)
    }

    if !cpu.GetZeroFlag() {
        test.Fatalf("expected zero flag to be set, 0x04 & 0xc0 == 0\n")
    }

    /* n and v mirror bits 7 and 6 of the operand, not of the result */
    if !cpu.GetNegativeFlag() || !cpu.GetOverflowFlag() {
        test.Fatalf("expected negative and overflow from the operand bits, status was 0x%x\n", cpu.Status)
    }

    if cpu.A != 0x04 {
        test.Fatalf("bit must not change the accumulator, A was 0x%x\n", cpu.A)
    }
}

func TestTransfers(test *testing.T) {
    _, cpu := makeTestMachine(0x400, []byte{
        0xa2, 0x80, // ldx #$80
        0x9a,       // txs
        0xba,       // tsx
    })

    runSteps := func(count int) {
        for i := 0; i < count; i++ {
            err := cpu.Step()
            if err != nil {
                test.Fatalf("could not run cpu: %v", err)
            }
        }
    }

    runSteps(2)

    if cpu.SP != 0x80 {
        test.Fatalf("expected SP to be 0x80 but was 0x%x\n", cpu.SP)
    }

    /* txs must not touch the flags even for a negative value */
    if cpu.Status & FlagNegative == 0 {
        /* the negative flag is still set from the ldx */
        test.Fatalf("expected the negative flag from ldx to survive txs, status was 0x%x\n", cpu.Status)
    }

    runSteps(1)

    if cpu.X != 0x80 || !cpu.GetNegativeFlag() {
        test.Fatalf("tsx should copy and update flags, X was 0x%x status 0x%x\n", cpu.X, cpu.Status)
    }
}

func BenchmarkStep(benchmark *testing.B) {
    _, cpu := makeTestMachine(0x600, []byte{
        0xa2, 0x02,       // ldx #$02
        0x8a,             // txa
        0x85, 0x10,       // sta $10
        0xe8,             // inx
        0x4c, 0x00, 0x06, // jmp $600
    })

    benchmark.ResetTimer()
    for i := 0; i < benchmark.N; i++ {
        err := cpu.Step()
        if err != nil {
            benchmark.Fatalf("could not run cpu: %v", err)
        }
    }
}
