package debug

import (
    "fmt"
    "log"

    m6502 "github.com/gomos/m6502/lib"

    "github.com/jroimartin/gocui"
)

/* Monitor is an interactive front end over the debugger: a register
 * view, a live disassembly around the pc, and single-key step/continue.
 */
type Monitor struct {
    CPU *m6502.CPU
    Machine *m6502.Machine
    Debugger *Debugger

    LastError error
}

func MakeMonitor(cpu *m6502.CPU, machine *m6502.Machine) *Monitor {
    return &Monitor{
        CPU: cpu,
        Machine: machine,
        Debugger: MakeDebugger(),
    }
}

func flagString(cpu *m6502.CPU) string {
    out := []byte("nv-bdizc")
    if cpu.GetNegativeFlag() {
        out[0] = 'N'
    }
    if cpu.GetOverflowFlag() {
        out[1] = 'V'
    }
    if cpu.Status & m6502.FlagBreak != 0 {
        out[3] = 'B'
    }
    if cpu.GetDecimalFlag() {
        out[4] = 'D'
    }
    if cpu.GetInterruptDisableFlag() {
        out[5] = 'I'
    }
    if cpu.GetZeroFlag() {
        out[6] = 'Z'
    }
    if cpu.GetCarryFlag() {
        out[7] = 'C'
    }
    return string(out)
}

func (monitor *Monitor) layout(gui *gocui.Gui) error {
    width, height := gui.Size()

    registers, err := gui.SetView("registers", 0, 0, width-1, 3)
    if err != nil && err != gocui.ErrUnknownView {
        return err
    }
    registers.Title = "registers"

    disassembly, err := gui.SetView("disassembly", 0, 4, width-1, height-4)
    if err != nil && err != gocui.ErrUnknownView {
        return err
    }
    disassembly.Title = "disassembly"

    help, err := gui.SetView("help", 0, height-3, width-1, height-1)
    if err != nil && err != gocui.ErrUnknownView {
        return err
    }
    help.Frame = false

    monitor.redraw(gui)
    return nil
}

func (monitor *Monitor) redraw(gui *gocui.Gui) {
    registers, err := gui.View("registers")
    if err != nil {
        return
    }
    registers.Clear()
    fmt.Fprintf(registers, " PC:%04X A:%02X X:%02X Y:%02X SP:%02X P:%02X [%v]\n", monitor.CPU.PC, monitor.CPU.A, monitor.CPU.X, monitor.CPU.Y, monitor.CPU.SP, monitor.CPU.SR(), flagString(monitor.CPU))
    if monitor.LastError != nil {
        fmt.Fprintf(registers, " stopped: %v\n", monitor.LastError)
    }

    disassembly, err := gui.View("disassembly")
    if err != nil {
        return
    }
    disassembly.Clear()

    _, height := disassembly.Size()
    monitor.disassemble(disassembly, height)

    help, err := gui.View("help")
    if err != nil {
        return
    }
    help.Clear()
    fmt.Fprintf(help, " s: step  c: continue  q: quit")
}

/* decode forward from the pc. a decode error (an illegal opcode in the
 * byte stream) ends the listing.
 */
func (monitor *Monitor) disassemble(view *gocui.View, lines int) {
    pc := monitor.CPU.PC

    window := make([]byte, lines * 3)
    for i := range window {
        window[i] = monitor.Machine.Memory[pc + uint16(i)]
    }

    reader := m6502.NewInstructionReader(window)
    for i := 0; i < lines; i++ {
        instruction, err := reader.ReadInstruction()
        if err != nil {
            fmt.Fprintf(view, "  %04X ??\n", pc)
            return
        }

        marker := ' '
        if pc == monitor.CPU.PC {
            marker = '>'
        }

        fmt.Fprintf(view, " %c%04X %v\n", marker, pc, instruction.String())
        pc += instruction.Length()
    }
}

func (monitor *Monitor) step(gui *gocui.Gui, view *gocui.View) error {
    select {
        case monitor.Debugger.Commands <- DebugCommandStep:
        default:
    }
    return nil
}

func (monitor *Monitor) continueRun(gui *gocui.Gui, view *gocui.View) error {
    select {
        case monitor.Debugger.Commands <- DebugCommandContinue:
        default:
    }
    return nil
}

func (monitor *Monitor) quit(gui *gocui.Gui, view *gocui.View) error {
    select {
        case monitor.Debugger.Commands <- DebugCommandQuit:
        default:
    }
    return gocui.ErrQuit
}

/* the cpu runs on its own goroutine so that 'continue' keeps the ui
 * responsive, the debugger channel is the only synchronization
 */
func (monitor *Monitor) runCPU(gui *gocui.Gui) {
    for {
        if !monitor.Debugger.Handle(monitor.CPU) {
            return
        }

        err := monitor.CPU.Step()
        if err != nil {
            monitor.LastError = err
            monitor.Debugger.Stop()
        }

        gui.Update(func(gui *gocui.Gui) error {
            monitor.redraw(gui)
            return nil
        })
    }
}

func (monitor *Monitor) Run() error {
    gui, err := gocui.NewGui(gocui.OutputNormal)
    if err != nil {
        return err
    }
    defer gui.Close()

    gui.SetManagerFunc(monitor.layout)

    err = gui.SetKeybinding("", 's', gocui.ModNone, monitor.step)
    if err != nil {
        return err
    }
    err = gui.SetKeybinding("", 'c', gocui.ModNone, monitor.continueRun)
    if err != nil {
        return err
    }
    err = gui.SetKeybinding("", 'q', gocui.ModNone, monitor.quit)
    if err != nil {
        return err
    }
    err = gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, monitor.quit)
    if err != nil {
        return err
    }

    go monitor.runCPU(gui)

    err = gui.MainLoop()
    if err != nil && err != gocui.ErrQuit {
        return err
    }

    log.Printf("monitor session ended at %v", monitor.CPU.String())
    return nil
}
