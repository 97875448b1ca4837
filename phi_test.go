package regalloc

import "testing"

// TestTryAllocatePhiToInputClaimsFirstFreeMatch exercises phi resolution's first
// pass directly: among several candidate predecessor locations, the first
// one that names a currently-empty register wins.
func TestTryAllocatePhiToInputClaimsFirstFreeMatch(t *testing.T) {
	g := NewGraph()
	a := NewAllocator(g, testCatalog(t), Config{})

	const vP ValueID = 0
	g.DefineValue(vP, 0)

	phi := &Phi{
		Value: vP,
		InputLocations: []AllocatedOperand{
			StackSlotOperand(3), // not a register: never matches
			RegisterOperand(5),  // empty: should be claimed
			RegisterOperand(2),  // also empty, but later in the list
		},
	}

	loc, ok := a.tryAllocatePhiToInput(phi)
	if !ok {
		t.Fatalf("expected a match")
	}
	if !loc.Equal(RegisterOperand(5)) {
		t.Fatalf("got %v, want register 5 (first register-valued candidate)", loc)
	}
	if a.regFile.At(5) == nil {
		t.Fatalf("register 5 should now be bound to the phi's record")
	}
}

// TestTryAllocatePhiToInputSkipsOccupiedRegisters exercises the "empty
// at this point in the new block" condition: a candidate register that is
// already occupied is not claimed even if it's the first candidate.
func TestTryAllocatePhiToInputSkipsOccupiedRegisters(t *testing.T) {
	g := NewGraph()
	a := NewAllocator(g, testCatalog(t), Config{})

	const vP, vOther ValueID = 0, 1
	g.DefineValue(vP, 0)
	g.DefineValue(vOther, 0)
	other := a.recordFor(vOther)
	a.bindRegister(1, other)

	phi := &Phi{
		Value: vP,
		InputLocations: []AllocatedOperand{
			RegisterOperand(1), // occupied by vOther
			RegisterOperand(4), // empty
		},
	}

	loc, ok := a.tryAllocatePhiToInput(phi)
	if !ok {
		t.Fatalf("expected a match on the second candidate")
	}
	if !loc.Equal(RegisterOperand(4)) {
		t.Fatalf("got %v, want register 4", loc)
	}
}
