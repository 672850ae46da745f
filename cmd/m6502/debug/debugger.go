package debug

import (
    m6502 "github.com/gomos/m6502/lib"
)

type DebugCommand interface {
    Name() string
}

type DebugCommandSimple struct {
    name string
}

func (command *DebugCommandSimple) Name() string {
    return command.name
}

func makeCommand(name string) DebugCommand {
    return &DebugCommandSimple{name: name}
}

var DebugCommandStep DebugCommand = makeCommand("step")
var DebugCommandContinue DebugCommand = makeCommand("continue")
var DebugCommandQuit DebugCommand = makeCommand("quit")

/* break when the cpu's PC is at a specific value.
 * TODO: break upon reading/writing specific memory addresses, the bus
 * hooks on Machine are enough to build that
 */
type Breakpoint struct {
    PC uint16
    Id uint64
}

func (breakpoint *Breakpoint) Hit(cpu *m6502.CPU) bool {
    return breakpoint.PC == cpu.PC
}

type Debugger struct {
    Commands chan DebugCommand
    Stopped bool
    Quit bool
    Breakpoints []Breakpoint
    BreakpointId uint64
}

func (debugger *Debugger) IsStopped() bool {
    return debugger.Stopped
}

func (debugger *Debugger) ContinueUntilBreak() {
    debugger.Stopped = false
}

func (debugger *Debugger) Stop() {
    debugger.Stopped = true
}

func (debugger *Debugger) AddPCBreakpoint(pc uint16) {
    debugger.Breakpoints = append(debugger.Breakpoints, Breakpoint{
        PC: pc,
        Id: debugger.BreakpointId,
    })
    debugger.BreakpointId += 1
}

func (debugger *Debugger) RemoveBreakpoint(id uint64) {
    var out []Breakpoint
    for _, breakpoint := range debugger.Breakpoints {
        if breakpoint.Id != id {
            out = append(out, breakpoint)
        }
    }
    debugger.Breakpoints = out
}

/* Handle blocks while the debugger is stopped, waiting for the next
 * command from the ui. returns false when the session should end.
 */
func (debugger *Debugger) Handle(cpu *m6502.CPU) bool {
    if debugger.IsStopped() {
        command := <-debugger.Commands
        if command == DebugCommandQuit {
            debugger.Quit = true
            return false
        }
        if command == DebugCommandStep {
            return true
        }
        if command == DebugCommandContinue {
            debugger.ContinueUntilBreak()
            return true
        }
    }

    for _, breakpoint := range debugger.Breakpoints {
        if breakpoint.Hit(cpu) {
            debugger.Stop()
        }
    }

    return true
}

func MakeDebugger() *Debugger {
    return &Debugger{
        Commands: make(chan DebugCommand, 5),
        Stopped: true,
        BreakpointId: 1,
    }
}
