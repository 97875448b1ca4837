package regalloc

import (
	"io"

	"github.com/xyproto/linearscan/internal/engine"
)

// tempTemporaryValue is the sentinel Value used for a node's scratch
// register reservations: temporaries never back a real SSA value, so
// they never appear in a.records and are released directly rather than
// through killValue.
const tempTemporaryValue ValueID = -1

// Allocator is the driver (C7): it walks a Graph's blocks in order,
// threading one RegisterFile and one StackSlotPool through the whole walk,
// deciding where every value lives at every point it's touched.
type Allocator struct {
	graph   *Graph
	catalog *engine.RegisterCatalog
	regFile *RegisterFile
	slots   StackSlotPool
	records map[ValueID]*LiveNodeInfo
	cfg     Config

	traceOut io.Writer

	curBlock  *Block
	cursor    int // index in curBlock.Nodes before which insertGapMove splices
	curNodeID NodeID

	pendingTemps []*LiveNodeInfo
}

// NewAllocator builds an Allocator over g, with catalog.Count() registers
// available and cfg controlling trace output.
func NewAllocator(g *Graph, catalog *engine.RegisterCatalog, cfg Config) *Allocator {
	return &Allocator{
		graph:   g,
		catalog: catalog,
		regFile: newRegisterFile(catalog.Count()),
		records: make(map[ValueID]*LiveNodeInfo),
		cfg:     cfg,
	}
}

func (a *Allocator) currentNodeID() NodeID { return a.curNodeID }

// Run executes the whole pass: precompute post-dominating holes, then
// walk every block. Any *AllocError raised by fail/invariant is converted
// into a returned error right here — there is exactly one panic/recover
// boundary for the whole allocation run, at the top of the entry point,
// so a caller can fall back to a lower compilation tier instead of
// crashing. Any other panic propagates unchanged — it is not a structural
// IR violation this package knows how to name.
func (a *Allocator) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ae, ok := r.(*AllocError); ok {
				err = ae
				return
			}
			panic(r)
		}
	}()

	computePostDominatingHoles(a.graph)
	for _, b := range a.graph.Blocks {
		a.processBlock(b)
	}
	a.graph.TopOfStack = a.slots.TopOfStack()
	return nil
}

// processBlock walks one block top to bottom: restore the merge state a
// predecessor left for it, resolve phis, process every ordinary node, then
// the block's control node.
func (a *Allocator) processBlock(b *Block) {
	a.curBlock = b
	a.cursor = 0

	a.restoreMergeState(b)
	a.resolvePhis(b)

	i := 0
	for i < len(b.Nodes) {
		n := b.Nodes[i]
		if n.IsGapMove() {
			i++
			continue
		}
		a.cursor = i
		a.curNodeID = n.ID
		a.processNode(n)
		a.checkLiveRecordsSane(n.ID)
		i = a.cursor + 1
	}

	a.processControlNode(b)
}

// processNode places one ordinary node's inputs, reserves its scratch
// registers, advances liveness, applies any call/deopt side effects, and
// finally places its result.
func (a *Allocator) processNode(n *Node) {
	a.curNodeID = n.ID

	// a. Assign inputs.
	for i := range n.Inputs {
		a.assignInput(n.ID, &n.Inputs[i])
	}

	// b. Assign temporaries.
	a.assignTemporaries(n)

	// c. Update uses.
	a.updateUses(n.ID, n.Inputs)

	// d. Call/deopt side effects.
	if n.Properties.IsCall {
		a.spillAllAndClear()
	} else if n.Properties.CanDeopt {
		a.spillAllKeepRegisters()
	}

	// e. Allocate result.
	a.allocateResult(n)

	a.releaseTemporaries()
}

// assignInput resolves one input's location according to its policy, then
// emits a gap move if that differs from where the value currently sits.
func (a *Allocator) assignInput(at NodeID, in *Input) {
	info := a.recordFor(in.Value)
	oldLoc := a.currentLocation(info)

	var newLoc AllocatedOperand
	switch in.Policy {
	case PolicyRegisterOrSlot, PolicyRegisterOrSlotOrConstant:
		newLoc = oldLoc
	case PolicyFixedRegister:
		newLoc = a.forceAllocate(at, in.FixedRegister, info, true)
	case PolicyMustHaveRegister:
		if info.HasReg {
			newLoc = RegisterOperand(info.Reg)
		} else {
			newLoc = a.allocateRegister(at, info)
		}
	default:
		fail(at, CategoryUnsupportedPolicy, "input policy %v is not supported", in.Policy)
	}

	if !oldLoc.Equal(newLoc) {
		a.insertGapMove(at, oldLoc, newLoc, info.Value)
	}
	in.Allocated = newLoc
}

// assignTemporaries reserves n.NumTemporaries scratch registers, protected
// from eviction within this node by a next-use equal to the node's own id
// (the lowest possible value, so the farthest-next-use eviction heuristic
// never picks them back up before releaseTemporaries).
func (a *Allocator) assignTemporaries(n *Node) {
	if n.NumTemporaries == 0 {
		return
	}
	n.Temporaries = make([]AllocatedOperand, n.NumTemporaries)
	a.pendingTemps = make([]*LiveNodeInfo, n.NumTemporaries)
	for i := 0; i < n.NumTemporaries; i++ {
		tmp := &LiveNodeInfo{Value: tempTemporaryValue, NextUse: n.ID}
		n.Temporaries[i] = a.allocateRegister(n.ID, tmp)
		a.pendingTemps[i] = tmp
	}
}

// releaseTemporaries frees the registers assignTemporaries reserved. A
// temporary never has a stack slot and nothing references it past this
// node, so the register file entry is cleared directly rather than routed
// through free/spill.
func (a *Allocator) releaseTemporaries() {
	for _, tmp := range a.pendingTemps {
		if tmp.HasReg {
			a.regFile.clear(tmp.Reg)
		}
	}
	a.pendingTemps = nil
}

// updateUses advances liveness over a set of inputs (also used by
// injectPhiAllocations for a single synthetic input).
func (a *Allocator) updateUses(at NodeID, inputs []Input) {
	for _, in := range inputs {
		a.updateUse(at, in.Value)
	}
}

// updateUse advances or kills one value's liveness record after it is
// consumed at at.
func (a *Allocator) updateUse(at NodeID, id ValueID) {
	v := a.graph.Value(id)
	if v.IsLastUse(at) {
		a.killValue(id)
		return
	}
	nu, ok := v.NextUseAfter(at)
	invariant(at, ok, "value v%d has no use recorded after node %d but is not marked dead there", id, at)
	a.recordFor(id).NextUse = nu
}

// spillAllAndClear handles a call: every live value is spilled and the
// register file is emptied, since a call clobbers every caller-saved
// register.
func (a *Allocator) spillAllAndClear() {
	for i := 0; i < a.regFile.N(); i++ {
		info := a.regFile.At(i)
		if info == nil {
			continue
		}
		a.spill(info)
		info.HasReg = false
		a.regFile.clear(i)
	}
}

// spillAllKeepRegisters handles a deopt point: every live value gets a
// stack slot as a deopt-safe copy, but registers are left exactly as they
// were, since a deopt point doesn't itself run code that clobbers them.
func (a *Allocator) spillAllKeepRegisters() {
	for i := 0; i < a.regFile.N(); i++ {
		info := a.regFile.At(i)
		if info == nil {
			continue
		}
		a.spill(info)
	}
}

// allocateResult places a node's produced value according to its result
// policy.
func (a *Allocator) allocateResult(n *Node) {
	r := n.Result
	if r == nil {
		return
	}
	info := a.recordFor(r.Value)

	var loc AllocatedOperand
	switch r.Policy {
	case ResultFixedSlot:
		invariant(n.ID, r.FixedSlot < 0, "fixed result slot must be caller-provided (negative), got %d", r.FixedSlot)
		info.HasSlot = true
		info.Slot = r.FixedSlot
		loc = StackSlotOperand(r.FixedSlot)
	case ResultFixedRegister:
		loc = a.forceAllocate(n.ID, r.FixedRegister, info, true)
	case ResultMustHaveRegister:
		loc = a.allocateRegister(n.ID, info)
	case ResultSameAsInput:
		invariant(n.ID, r.SameAsInputIndex >= 0 && r.SameAsInputIndex < len(n.Inputs),
			"same-as-input result index %d out of range", r.SameAsInputIndex)
		in := n.Inputs[r.SameAsInputIndex]
		invariant(n.ID, in.Allocated.IsRegister(), "same-as-input result requires input %d to be in a register", r.SameAsInputIndex)
		loc = in.Allocated
		// The IR is trusted to have made the aliased input dead exactly
		// here; this allocator does not re-verify that liveness claim.
		a.bindRegister(loc.Index, info)
	default:
		fail(n.ID, CategoryUnsupportedPolicy, "result policy %v is not supported", r.Policy)
	}
	r.Allocated = loc
}

// checkLiveRecordsSane enforces the per-node invariant that every value
// still live after a node has been fully processed must be reachable
// through a register or a stack slot (or both). Run unconditionally
// rather than gated behind a debug build — the check is O(live values)
// per node, cheap next to the allocation work itself.
func (a *Allocator) checkLiveRecordsSane(at NodeID) {
	for _, info := range a.records {
		invariant(at, info.sane(), "value v%d is live after node %d but has neither a register nor a stack slot", info.Value, at)
	}
}

// recordFor returns id's liveness record, creating it on first reference.
func (a *Allocator) recordFor(id ValueID) *LiveNodeInfo {
	if info, ok := a.records[id]; ok {
		return info
	}
	info := newLiveNodeInfo(a.graph.Value(id))
	info.defResult, info.defPhi = a.graph.defSiteFor(id)
	a.records[id] = info
	return info
}

// killValue releases a value's register and stack slot and drops its
// record — it has no further uses.
func (a *Allocator) killValue(id ValueID) {
	info, ok := a.records[id]
	if !ok {
		return
	}
	if info.HasReg {
		a.regFile.clear(info.Reg)
	}
	if info.IsLocalSlot() {
		a.slots.Free(info.Slot)
	}
	delete(a.records, id)
}
