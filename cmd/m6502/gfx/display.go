package gfx

import (
    "image/color"

    m6502 "github.com/gomos/m6502/lib"

    "github.com/hajimehoshi/ebiten/v2"
)

/* the classic 16 color palette the easy6502 console uses, one nibble
 * per framebuffer byte
 */
var palette = []color.RGBA{
    {0x00, 0x00, 0x00, 0xff}, // black
    {0xff, 0xff, 0xff, 0xff}, // white
    {0x88, 0x00, 0x00, 0xff}, // red
    {0xaa, 0xff, 0xee, 0xff}, // cyan
    {0xcc, 0x44, 0xcc, 0xff}, // purple
    {0x00, 0xcc, 0x55, 0xff}, // green
    {0x00, 0x00, 0xaa, 0xff}, // blue
    {0xee, 0xee, 0x77, 0xff}, // yellow
    {0xdd, 0x88, 0x55, 0xff}, // orange
    {0x66, 0x44, 0x00, 0xff}, // brown
    {0xff, 0x77, 0x77, 0xff}, // light red
    {0x33, 0x33, 0x33, 0xff}, // dark grey
    {0x77, 0x77, 0x77, 0xff}, // grey
    {0xaa, 0xff, 0x66, 0xff}, // light green
    {0x00, 0x88, 0xff, 0xff}, // light blue
    {0xbb, 0xbb, 0xbb, 0xff}, // light grey
}

/* Display drives the cpu from the ebiten frame loop and paints the
 * memory mapped framebuffer. Keyboard input lands in the console's key
 * register for programs to poll.
 */
type Display struct {
    CPU *m6502.CPU
    Console *m6502.Console
    StepsPerFrame int

    Halted bool

    inputBuffer []rune
}

func MakeDisplay(cpu *m6502.CPU, console *m6502.Console, stepsPerFrame int) *Display {
    return &Display{
        CPU: cpu,
        Console: console,
        StepsPerFrame: stepsPerFrame,
    }
}

func (display *Display) Update() error {
    display.inputBuffer = ebiten.AppendInputChars(display.inputBuffer[:0])
    if len(display.inputBuffer) > 0 {
        display.Console.LastKey = byte(display.inputBuffer[0])
    }

    if display.Halted {
        return nil
    }

    for i := 0; i < display.StepsPerFrame; i++ {
        opcode := display.Console.Machine.Memory[display.CPU.PC]
        err := display.CPU.Step()
        if err != nil {
            display.Halted = true
            return err
        }

        /* console programs end with brk */
        if m6502.InstructionType(opcode) == m6502.Instruction_BRK {
            display.Halted = true
            break
        }
    }

    return nil
}

func (display *Display) Draw(screen *ebiten.Image) {
    for y := 0; y < m6502.DisplaySize; y++ {
        for x := 0; x < m6502.DisplaySize; x++ {
            screen.Set(x, y, palette[display.Console.Pixel(x, y) & 0xf])
        }
    }
}

func (display *Display) Layout(outsideWidth int, outsideHeight int) (int, int) {
    return m6502.DisplaySize, m6502.DisplaySize
}

func Run(cpu *m6502.CPU, console *m6502.Console, scale int, stepsPerFrame int) error {
    ebiten.SetWindowSize(m6502.DisplaySize * scale, m6502.DisplaySize * scale)
    ebiten.SetWindowTitle("m6502 console")

    return ebiten.RunGame(MakeDisplay(cpu, console, stepsPerFrame))
}
