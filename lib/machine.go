package lib

import (
    "fmt"
    "log"
    "math/rand/v2"
    "os"
)

/* Machine is the reference host for the cpu: a flat 64k ram with no
 * mapped devices. The validation harness loads a raw binary image into
 * it and steps the cpu until it is told to stop. The cpu itself owns no
 * memory, everything goes through the Bus interface.
 */
type Machine struct {
    Memory [0x10000]byte

    /* observation hooks, called on every bus access in the order the
     * cpu performs them. used by tests that assert on bus traffic.
     */
    OnRead func(address uint16, value byte)
    OnWrite func(address uint16, value byte)
}

func MakeMachine() *Machine {
    return &Machine{}
}

func (machine *Machine) Read(address uint16) byte {
    value := machine.Memory[address]
    if machine.OnRead != nil {
        machine.OnRead(address, value)
    }
    return value
}

func (machine *Machine) Write(address uint16, value byte) {
    if machine.OnWrite != nil {
        machine.OnWrite(address, value)
    }
    machine.Memory[address] = value
}

func (machine *Machine) LoadBytes(origin uint16, data []byte) error {
    if int(origin) + len(data) > len(machine.Memory) {
        return fmt.Errorf("image of %v bytes does not fit at 0x%x", len(data), origin)
    }

    copy(machine.Memory[origin:], data)
    return nil
}

/* LoadImage copies a raw binary file into memory starting at origin
 * and returns the number of bytes loaded.
 */
func (machine *Machine) LoadImage(path string, origin uint16) (int, error) {
    data, err := os.ReadFile(path)
    if err != nil {
        return 0, err
    }

    err = machine.LoadBytes(origin, data)
    if err != nil {
        return 0, err
    }

    log.Printf("loaded %v bytes at 0x%x\n", len(data), origin)
    return len(data), nil
}

/* easy6502 style device registers, used by the display front end.
 * http://skilldrick.github.io/easy6502/
 */
const (
    RandomRegister uint16 = 0xfe
    KeyRegister uint16 = 0xff
    /* the 32x32 framebuffer occupies pages 2 through 5 */
    DisplayBase uint16 = 0x0200
    DisplaySize = 32
)

/* Console decorates a machine with the easy6502 device registers: a
 * random byte at 0xfe, the last pressed key at 0xff, and a 32x32
 * one-byte-per-pixel framebuffer starting at 0x200. The framebuffer
 * needs no special handling on the bus, front ends read it straight out
 * of memory.
 */
type Console struct {
    Machine *Machine

    /* last key pressed on the host, stored by the front end */
    LastKey byte
}

func MakeConsole(machine *Machine) *Console {
    return &Console{Machine: machine}
}

func (console *Console) Read(address uint16) byte {
    switch address {
        case RandomRegister:
            return byte(rand.Uint32())
        case KeyRegister:
            return console.LastKey
    }

    return console.Machine.Read(address)
}

func (console *Console) Write(address uint16, value byte) {
    console.Machine.Write(address, value)
}

/* Pixel returns the framebuffer byte for coordinates on the 32x32 grid */
func (console *Console) Pixel(x int, y int) byte {
    return console.Machine.Memory[int(DisplayBase) + y * DisplaySize + x]
}
