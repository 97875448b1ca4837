package regalloc

import (
	"testing"

	"github.com/xyproto/linearscan/internal/engine"
)

func testCatalog(t *testing.T) *engine.RegisterCatalog {
	t.Helper()
	cat, err := engine.NewRegisterCatalog(engine.ArchX86_64)
	if err != nil {
		t.Fatalf("NewRegisterCatalog: %v", err)
	}
	return cat
}

func mustAllocate(t *testing.T, g *Graph) *Allocator {
	t.Helper()
	a := NewAllocator(g, testCatalog(t), Config{})
	if err := a.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return a
}

// TestStraightLineReusesRegister covers the straight-line,
// no-spill case: a value's register is freed at its last use and
// immediately reused by the next definition.
func TestStraightLineReusesRegister(t *testing.T) {
	g := NewGraph()
	b := AddBlock(g)

	const v0, v1 ValueID = 0, 1
	const n0, n1, c0 NodeID = 0, 1, 2

	g.DefineValue(v0, n0, n1)
	g.DefineValue(v1, n1, c0)

	b.Nodes = []*Node{
		{ID: n0, Result: &Result{Value: v0, Policy: ResultMustHaveRegister}},
		{
			ID:     n1,
			Inputs: []Input{{Value: v0, Policy: PolicyRegisterOrSlot}},
			Result: &Result{Value: v1, Policy: ResultMustHaveRegister},
		},
	}
	b.SetControl(&ControlNode{ID: c0, Kind: CtrlReturn, Inputs: []Input{{Value: v1, Policy: PolicyRegisterOrSlot}}})
	FinalizeGraph(g)

	mustAllocate(t, g)

	if got := b.Nodes[0].Result.Allocated; !got.Equal(RegisterOperand(0)) {
		t.Fatalf("v0 result = %v, want register 0", got)
	}
	if got := b.Nodes[1].Inputs[0].Allocated; !got.Equal(RegisterOperand(0)) {
		t.Fatalf("v0 as input to n1 = %v, want register 0", got)
	}
	if got := b.Nodes[1].Result.Allocated; !got.Equal(RegisterOperand(0)) {
		t.Fatalf("v1 result = %v, want register 0 (reused from v0)", got)
	}
	for _, n := range b.Nodes {
		if n.IsGapMove() {
			t.Fatalf("no gap move should be necessary in a straight-line no-spill function")
		}
	}
}

// TestCallSpillsAndReloads covers the "spill on call" scenario: a call
// clobbers every register, so every value still needed afterward must be
// spilled before the call and reloaded after it.
func TestCallSpillsAndReloads(t *testing.T) {
	g := NewGraph()
	b := AddBlock(g)

	const v0, v1, v2 ValueID = 0, 1, 2
	const n0, n1, call, n3, c0 NodeID = 0, 1, 2, 3, 4

	g.DefineValue(v0, n0, n3)
	g.DefineValue(v1, n1, n3)
	g.DefineValue(v2, n3, c0)

	b.Nodes = []*Node{
		{ID: n0, Result: &Result{Value: v0, Policy: ResultMustHaveRegister}},
		{ID: n1, Result: &Result{Value: v1, Policy: ResultMustHaveRegister}},
		{ID: call, Properties: Properties{IsCall: true}},
		{
			ID: n3,
			Inputs: []Input{
				{Value: v0, Policy: PolicyMustHaveRegister},
				{Value: v1, Policy: PolicyMustHaveRegister},
			},
			Result: &Result{Value: v2, Policy: ResultMustHaveRegister},
		},
	}
	b.SetControl(&ControlNode{ID: c0, Kind: CtrlReturn, Inputs: []Input{{Value: v2, Policy: PolicyRegisterOrSlot}}})
	FinalizeGraph(g)
	// Reload gap moves are spliced into b.Nodes ahead of n3, so keep a
	// direct handle on it rather than relying on its slice index.
	n3Node := b.Nodes[3]

	a := mustAllocate(t, g)

	if !n3Node.Inputs[0].Allocated.IsRegister() {
		t.Fatalf("v0 must be reloaded into a register before n3, got %v", n3Node.Inputs[0].Allocated)
	}
	if !n3Node.Inputs[1].Allocated.IsRegister() {
		t.Fatalf("v1 must be reloaded into a register before n3, got %v", n3Node.Inputs[1].Allocated)
	}

	sawReload := false
	for _, n := range b.Nodes {
		if n.IsGapMove() && n.gapMove.Src.IsStackSlot() && n.gapMove.Dst.IsRegister() {
			sawReload = true
		}
	}
	if !sawReload {
		t.Fatalf("expected at least one stack-slot-to-register gap move reloading a spilled value")
	}
	if g.TopOfStack < 2 {
		t.Fatalf("top of stack = %d, want at least 2 (v0 and v1 both spilled across the call)", g.TopOfStack)
	}

	// The spill must be visible on each value's defining node, not just on
	// a transient liveness record the call site later discards.
	if !b.Nodes[0].Result.Spilled {
		t.Fatalf("v0's defining node should record that it was later spilled")
	}
	if !b.Nodes[1].Result.Spilled {
		t.Fatalf("v1's defining node should record that it was later spilled")
	}
	if b.Nodes[0].Result.SpillSlot == b.Nodes[1].Result.SpillSlot {
		t.Fatalf("v0 and v1 must not share a spill slot: got %d and %d", b.Nodes[0].Result.SpillSlot, b.Nodes[1].Result.SpillSlot)
	}
	_ = a
}

// TestDeoptKeepsRegistersButSpillsCopies covers deopt behavior: a deopt
// point spills a safety copy of every live value without disturbing the
// register file.
func TestDeoptKeepsRegistersButSpillsCopies(t *testing.T) {
	g := NewGraph()
	b := AddBlock(g)

	const v0, v1 ValueID = 0, 1
	const n0, deopt, c0 NodeID = 0, 1, 2

	g.DefineValue(v0, n0, c0)
	g.DefineValue(v1, deopt, c0)

	b.Nodes = []*Node{
		{ID: n0, Result: &Result{Value: v0, Policy: ResultMustHaveRegister}},
		{
			ID:         deopt,
			Properties: Properties{CanDeopt: true},
			Result:     &Result{Value: v1, Policy: ResultMustHaveRegister},
		},
	}
	b.SetControl(&ControlNode{ID: c0, Kind: CtrlReturn, Inputs: []Input{
		{Value: v0, Policy: PolicyRegisterOrSlot},
		{Value: v1, Policy: PolicyRegisterOrSlot},
	}})
	FinalizeGraph(g)

	mustAllocate(t, g)

	if got := b.Nodes[1].Result.Allocated; !got.IsRegister() {
		t.Fatalf("v1 result = %v, want a register (deopt must not force a spill-only result)", got)
	}
	if got := g.Blocks[0].Control.Inputs[0].Allocated; !got.IsRegister() {
		t.Fatalf("v0 at Return = %v, want a register: a deopt point must not evict live registers", got)
	}
	if !b.Nodes[0].Result.Spilled {
		t.Fatalf("v0 should have a safety copy recorded on its defining node after the deopt point")
	}
	if b.Nodes[1].Result.Spilled {
		t.Fatalf("v1 is produced after the deopt point runs and should never have been spilled")
	}
}

// TestFixedRegisterResultEvictsByMoving covers the "fixed-register-result"
// scenario: forcing a result into an occupied register moves the occupant
// rather than spilling it when a free register is available.
func TestFixedRegisterResultEvictsByMoving(t *testing.T) {
	g := NewGraph()
	b := AddBlock(g)

	const v0, v1 ValueID = 0, 1
	const n0, n1, n2, c0 NodeID = 0, 1, 2, 3

	g.DefineValue(v0, n0, n2)
	g.DefineValue(v1, n1, c0)

	b.Nodes = []*Node{
		{ID: n0, Result: &Result{Value: v0, Policy: ResultMustHaveRegister}},
		{ID: n1, Result: &Result{Value: v1, Policy: ResultFixedRegister, FixedRegister: 0}},
		{ID: n2, Inputs: []Input{{Value: v0, Policy: PolicyRegisterOrSlot}}},
	}
	b.SetControl(&ControlNode{ID: c0, Kind: CtrlReturn, Inputs: []Input{{Value: v1, Policy: PolicyRegisterOrSlot}}})
	FinalizeGraph(g)
	// The eviction move is spliced into b.Nodes ahead of n1, so keep direct
	// handles on n1 and n2 rather than relying on their slice indices.
	n1Node, n2Node := b.Nodes[1], b.Nodes[2]

	mustAllocate(t, g)

	if got := n1Node.Result.Allocated; !got.Equal(RegisterOperand(0)) {
		t.Fatalf("v1 result = %v, want register 0 (its fixed register)", got)
	}
	if got := n2Node.Inputs[0].Allocated; got.Equal(RegisterOperand(0)) {
		t.Fatalf("v0 should have been moved off register 0 to make room for v1, still at %v", got)
	}
	if !n2Node.Inputs[0].Allocated.IsRegister() {
		t.Fatalf("v0 should have been moved to a different register, not spilled: got %v", n2Node.Inputs[0].Allocated)
	}

	sawMove := false
	for _, n := range b.Nodes {
		if n.IsGapMove() && n.gapMove.Value == v0 && n.gapMove.Src.Equal(RegisterOperand(0)) {
			sawMove = true
		}
	}
	if !sawMove {
		t.Fatalf("expected a gap move evicting v0 from register 0")
	}
}

func TestTemporariesDoNotLeakRegisters(t *testing.T) {
	g := NewGraph()
	b := AddBlock(g)

	const v0 ValueID = 0
	const n0, c0 NodeID = 0, 1

	g.DefineValue(v0, n0, c0)

	b.Nodes = []*Node{
		{ID: n0, NumTemporaries: 2, Result: &Result{Value: v0, Policy: ResultMustHaveRegister}},
	}
	b.SetControl(&ControlNode{ID: c0, Kind: CtrlReturn, Inputs: []Input{{Value: v0, Policy: PolicyRegisterOrSlot}}})
	FinalizeGraph(g)

	a := mustAllocate(t, g)

	if len(b.Nodes[0].Temporaries) != 2 {
		t.Fatalf("expected 2 temporaries reserved, got %d", len(b.Nodes[0].Temporaries))
	}
	if b.Nodes[0].Temporaries[0].Equal(b.Nodes[0].Temporaries[1]) {
		t.Fatalf("the two temporaries must not alias the same register")
	}
	for i := 0; i < a.regFile.N(); i++ {
		if info := a.regFile.At(i); info != nil && info.Value == tempTemporaryValue {
			t.Fatalf("a temporary's register is still held after its node finished processing")
		}
	}
}
