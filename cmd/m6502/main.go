package main

import (
    "errors"
    "fmt"
    "log"
    "os"
    "strconv"

    "github.com/gomos/m6502/cmd/m6502/common"
    "github.com/gomos/m6502/cmd/m6502/debug"
    "github.com/gomos/m6502/cmd/m6502/gfx"
    m6502 "github.com/gomos/m6502/lib"

    "github.com/fatih/color"
)

type Options struct {
    ImagePath string
    Origin uint16
    Entry uint16
    MaxSteps uint64

    Trace bool
    Strict bool
    Monitor bool
    Display bool
}

func traceLine(machine *m6502.Machine, cpu *m6502.CPU) string {
    addressColor := color.New(color.FgCyan).SprintFunc()
    nameColor := color.New(color.FgYellow).SprintFunc()

    window := make([]byte, 3)
    for i := range window {
        window[i] = machine.Memory[cpu.PC + uint16(i)]
    }

    reader := m6502.NewInstructionReader(window)
    instruction, err := reader.ReadInstruction()
    if err != nil {
        return fmt.Sprintf("%v ??", addressColor(fmt.Sprintf("%04X", cpu.PC)))
    }

    return fmt.Sprintf("%v %v  %v", addressColor(fmt.Sprintf("%04X", cpu.PC)), nameColor(instruction.String()), cpu.String())
}

func runLoop(machine *m6502.Machine, cpu *m6502.CPU, options Options) error {
    red := color.New(color.FgRed).SprintFunc()
    green := color.New(color.FgGreen).SprintFunc()

    var steps uint64
    for options.MaxSteps == 0 || steps < options.MaxSteps {
        if options.Trace {
            fmt.Println(traceLine(machine, cpu))
        }

        previous := cpu.PC
        opcode := machine.Memory[cpu.PC]
        err := cpu.Step()
        if err != nil {
            var illegal *m6502.IllegalOpcode
            if errors.As(err, &illegal) {
                fmt.Printf("%v %v\n", red("illegal opcode"), err)
                fmt.Printf("%v\n", cpu.String())
            }
            return err
        }

        steps += 1

        /* a brk with no handler or a jump-to-self loop is how these
         * images signal they are done
         */
        if m6502.InstructionType(opcode) == m6502.Instruction_BRK {
            fmt.Printf("%v after %v steps (brk)\n", green("stopped"), steps)
            break
        }

        if cpu.PC == previous {
            fmt.Printf("%v after %v steps (trap at 0x%04x)\n", green("stopped"), steps, cpu.PC)
            break
        }
    }

    fmt.Printf("%v\n", cpu.String())
    return nil
}

func Run(options Options, config common.ConfigData) error {
    machine := m6502.MakeMachine()

    _, err := machine.LoadImage(options.ImagePath, options.Origin)
    if err != nil {
        return err
    }

    var bus m6502.Bus = machine
    var console *m6502.Console
    if options.Display {
        console = m6502.MakeConsole(machine)
        bus = console
    }

    cpu := m6502.MakeCPU(bus)
    if options.Strict {
        cpu.ResetStrict(options.Entry)
    } else {
        cpu.Reset(options.Entry)
    }

    if options.Monitor {
        monitor := debug.MakeMonitor(&cpu, machine)
        return monitor.Run()
    }

    if options.Display {
        return gfx.Run(&cpu, console, config.Scale, config.StepsPerFrame)
    }

    return runLoop(machine, &cpu, options)
}

func parseAddress(argument string) (uint16, error) {
    value, err := strconv.ParseUint(argument, 0, 16)
    if err != nil {
        return 0, err
    }
    return uint16(value), nil
}

func main() {
    log.SetFlags(log.Lshortfile | log.Lmicroseconds | log.Ldate)

    config := common.LoadConfigData()

    options := Options{
        Origin: 0x400,
        Entry: 0x400,
        Trace: config.Trace,
    }

    nextAddress := func(argIndex *int, name string) uint16 {
        *argIndex += 1
        if *argIndex >= len(os.Args) {
            log.Fatalf("Expected an address argument for %v", name)
        }
        value, err := parseAddress(os.Args[*argIndex])
        if err != nil {
            log.Fatalf("Error reading %v argument: %v", name, err)
        }
        return value
    }

    argIndex := 1
    for argIndex < len(os.Args) {
        arg := os.Args[argIndex]
        switch arg {
            case "-trace", "--trace":
                options.Trace = true
            case "-strict", "--strict":
                options.Strict = true
            case "-monitor", "--monitor":
                options.Monitor = true
            case "-display", "--display":
                options.Display = true
            case "-origin", "--origin":
                options.Origin = nextAddress(&argIndex, "-origin")
            case "-entry", "--entry":
                options.Entry = nextAddress(&argIndex, "-entry")
            case "-steps", "--steps":
                var err error
                argIndex += 1
                if argIndex >= len(os.Args) {
                    log.Fatalf("Expected a number of steps")
                }
                options.MaxSteps, err = strconv.ParseUint(os.Args[argIndex], 10, 64)
                if err != nil {
                    log.Fatalf("Error parsing steps: %v", err)
                }
            default:
                options.ImagePath = arg
        }

        argIndex += 1
    }

    if options.ImagePath == "" {
        fmt.Printf("Usage: m6502 [-trace] [-strict] [-monitor] [-display] [-origin addr] [-entry addr] [-steps n] image.bin\n")
        os.Exit(1)
    }

    err := Run(options, config)
    if err != nil {
        log.Fatalf("Error: %v", err)
    }
}
