package lib

import (
    "os"
    "path/filepath"
    "testing"
)

func TestLoadBytesBounds(test *testing.T) {
    machine := MakeMachine()

    err := machine.LoadBytes(0xfff0, make([]byte, 0x20))
    if err == nil {
        test.Fatalf("expected an error for an image that runs past the end of memory")
    }

    err = machine.LoadBytes(0xfff0, make([]byte, 0x10))
    if err != nil {
        test.Fatalf("an image that exactly fills memory should load: %v", err)
    }
}

func TestLoadImage(test *testing.T) {
    path := filepath.Join(test.TempDir(), "program.bin")
    err := os.WriteFile(path, []byte{0xa9, 0x42, 0x00}, 0644)
    if err != nil {
        test.Fatalf("could not write image: %v", err)
    }

    machine := MakeMachine()
    count, err := machine.LoadImage(path, 0x400)
    if err != nil {
        test.Fatalf("could not load image: %v", err)
    }

    if count != 3 {
        test.Fatalf("expected to load 3 bytes but loaded %v", count)
    }

    if machine.Memory[0x400] != 0xa9 || machine.Memory[0x401] != 0x42 {
        test.Fatalf("image bytes did not land at the origin")
    }
}

func TestConsoleRegisters(test *testing.T) {
    machine := MakeMachine()
    console := MakeConsole(machine)

    console.LastKey = 'w'
    if console.Read(KeyRegister) != 'w' {
        test.Fatalf("expected the key register to hold the last key")
    }

    /* everything else passes through to ram */
    console.Write(0x200, 0x05)
    if console.Read(0x200) != 0x05 {
        test.Fatalf("expected a plain memory write to read back")
    }

    if console.Pixel(0, 0) != 0x05 {
        test.Fatalf("pixel 0,0 should map to 0x200")
    }

    console.Write(0x221, 0x07)
    if console.Pixel(1, 1) != 0x07 {
        test.Fatalf("pixel 1,1 should map to 0x221")
    }
}

/* a program that paints through the framebuffer using the random
 * register for the color
 */
func TestConsoleProgram(test *testing.T) {
    machine := MakeMachine()
    console := MakeConsole(machine)

    err := machine.LoadBytes(0x600, []byte{
        0xa5, 0xfe,       // lda $fe
        0x8d, 0x00, 0x02, // sta $200
        0x00,             // brk
    })
    if err != nil {
        test.Fatalf("could not load program: %v", err)
    }

    cpu := MakeCPU(console)
    cpu.Reset(0x600)

    for i := 0; i < 10; i++ {
        err := cpu.Step()
        if err != nil {
            test.Fatalf("could not run cpu: %v", err)
        }
        if cpu.GetInterruptDisableFlag() {
            break
        }
    }

    if machine.Memory[0x200] != cpu.A {
        test.Fatalf("the random byte should have been stored to the framebuffer")
    }
}
