// Package engine holds the small amount of target-machine knowledge the
// allocator needs: which architecture it is running for, and the dense
// bijection between register index and architectural register name (C1
// in the component table).
package engine

import (
	"fmt"
	"strings"
)

// Arch identifies a target instruction set.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchX86_64
	ArchARM64
	ArchRiscv64
)

func (a Arch) String() string {
	switch a {
	case ArchX86_64:
		return "x86_64"
	case ArchARM64:
		return "aarch64"
	case ArchRiscv64:
		return "riscv64"
	default:
		return "unknown"
	}
}

// ParseArch parses an architecture string (GOARCH-style spellings accepted).
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "x86_64", "amd64", "x86-64":
		return ArchX86_64, nil
	case "aarch64", "arm64":
		return ArchARM64, nil
	case "riscv64", "riscv", "rv64":
		return ArchRiscv64, nil
	default:
		return ArchUnknown, fmt.Errorf("unsupported architecture: %s (supported: amd64, arm64, riscv64)", s)
	}
}

// RegisterCatalog is the bijection between architectural register names and
// the dense index space [0, N) the allocator works in. The index order is
// the allocation preference order: TryAllocateRegister always picks the
// lowest free index, so index 0 is the register handed out first.
type RegisterCatalog struct {
	arch  Arch
	names []string
}

// allocatableGeneralRegisters lists, per architecture, the general-purpose
// registers this allocator is allowed to hand out. Registers reserved for
// the stack/frame pointer, the link register, and platform-fixed scratch
// registers are excluded.
var allocatableGeneralRegisters = map[Arch][]string{
	ArchX86_64: {
		"rax", "rcx", "rdx", "rbx", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14",
	},
	ArchARM64: {
		"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7",
		"x9", "x10", "x11", "x12", "x13", "x14", "x15",
		"x19", "x20", "x21", "x22", "x23", "x24", "x25", "x26", "x27", "x28",
	},
	ArchRiscv64: {
		"t0", "t1", "t2", "t3", "t4", "t5", "t6",
		"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7",
		"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11",
	},
}

// NewRegisterCatalog returns the allocatable general-register catalog for arch.
func NewRegisterCatalog(arch Arch) (*RegisterCatalog, error) {
	names, ok := allocatableGeneralRegisters[arch]
	if !ok {
		return nil, fmt.Errorf("no register catalog for architecture: %v", arch)
	}
	return &RegisterCatalog{arch: arch, names: names}, nil
}

// Count returns N, the number of allocatable general registers (C1).
func (c *RegisterCatalog) Count() int { return len(c.names) }

// Arch returns the architecture this catalog describes.
func (c *RegisterCatalog) Arch() Arch { return c.arch }

// NameOf maps a dense register index to its architectural name.
func (c *RegisterCatalog) NameOf(index int) string {
	if index < 0 || index >= len(c.names) {
		panic(fmt.Sprintf("engine: register index %d out of range [0,%d)", index, len(c.names)))
	}
	return c.names[index]
}

// IndexOf maps an architectural register name back to its dense index,
// reporting ok=false if the name is not in this catalog.
func (c *RegisterCatalog) IndexOf(name string) (index int, ok bool) {
	for i, n := range c.names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}
