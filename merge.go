package regalloc

// MergeKind tags a merge-state entry's representation.
type MergeKind int

const (
	// MergeUninitialized marks a register not yet known to hold anything
	// consistent across the predecessors visited so far.
	MergeUninitialized MergeKind = iota
	// MergeSingle marks a register every predecessor visited so far agrees
	// holds the same value.
	MergeSingle
	// MergeMulti (a "RegisterMerge") marks a register whose predecessors
	// disagree: Node is the canonical value resolved into this register at
	// the merge point, and Operands[predID] is where each predecessor
	// actually had it.
	MergeMulti
)

// MergeEntry is one register-file slot's state as of a given point in
// reconciling a block's predecessors (C8).
type MergeEntry struct {
	Kind     MergeKind
	Node     *LiveNodeInfo
	Operands []AllocatedOperand // len == len(block.Preds); meaningful iff Kind == MergeMulti
}

// restoreMergeState loads a block's merge state into the live register
// file. A block with no stored state (never
// reached as a successor yet, or arrived at purely by fallthrough) leaves
// the register file exactly as whichever predecessor left it.
func (a *Allocator) restoreMergeState(b *Block) {
	if b.MergeState == nil {
		return
	}
	for i, e := range b.MergeState {
		switch e.Kind {
		case MergeUninitialized:
			a.regFile.clear(i)
		case MergeSingle, MergeMulti:
			a.bindRegister(i, e.Node)
		}
	}
}

// liveAtTarget reports whether info's value is live crossing the
// edge from source control node cn into target.
func (a *Allocator) liveAtTarget(info *LiveNodeInfo, cn *ControlNode, target *Block) bool {
	v := a.graph.Value(info.Value)
	_, end := v.LiveRange()
	if target.FirstID <= cn.ID {
		// Back edge: the value must be defined before the loop header's
		// first real instruction to be carried around the loop.
		return v.DefID < target.FirstNonGapMoveID
	}
	return end >= target.FirstID
}

// reconcileEdge is the top-level dispatch for reconciling a single edge:
// first visit initializes target's merge state from the current register
// file, later visits merge into it. predIDSource names the block whose
// position in target.Preds identifies this edge — normally the same block
// that owns sourceCN, except through the empty-block shortcut.
func (a *Allocator) reconcileEdge(sourceCN *ControlNode, predIDSource *Block, target *Block) {
	predID := target.PredIndex(predIDSource)
	if target.MergeState == nil {
		target.MergeState = make([]MergeEntry, a.regFile.N())
		a.initializeBranchTarget(target, predID, sourceCN)
		return
	}
	a.mergeRegisterValues(target, predID, sourceCN)
}

// initializeBranchTarget handles an edge's first visit: every register
// holding a record live at target becomes a MergeSingle entry; everything
// else is left uninitialized.
func (a *Allocator) initializeBranchTarget(target *Block, predID int, sourceCN *ControlNode) {
	for i := 0; i < a.regFile.N(); i++ {
		info := a.regFile.At(i)
		if info != nil && a.liveAtTarget(info, sourceCN, target) {
			target.MergeState[i] = MergeEntry{Kind: MergeSingle, Node: info}
		} else {
			target.MergeState[i] = MergeEntry{Kind: MergeUninitialized}
		}
	}
}

// mergeRegisterValues handles a later visit to an already-initialized
// target: for each register, reconcile the stored entry against what this predecessor
// actually has there.
func (a *Allocator) mergeRegisterValues(target *Block, predID int, sourceCN *ControlNode) {
	numPreds := len(target.Preds)
	for i := 0; i < a.regFile.N(); i++ {
		incoming := a.regFile.At(i)
		entry := &target.MergeState[i]

		switch entry.Kind {
		case MergeUninitialized:
			if incoming != nil && a.liveAtTarget(incoming, sourceCN, target) {
				*entry = MergeEntry{Kind: MergeSingle, Node: incoming}
			}
			// else: stays uninitialized.

		case MergeSingle:
			if incoming == entry.Node {
				continue // every predecessor so far agrees; nothing to record.
			}
			a.promoteToMulti(entry, i, numPreds, predID, incoming)

		case MergeMulti:
			if incoming == entry.Node {
				entry.Operands[predID] = RegisterOperand(i)
				continue
			}
			// This predecessor has the canonical value somewhere other
			// than register i (or doesn't have it at all); record wherever
			// the canonical record's own fields currently say it lives.
			entry.Operands[predID] = a.currentLocation(entry.Node)
		}
	}
}

// promoteToMulti turns a MergeSingle(X) entry into a MergeMulti once a
// later predecessor disagrees, backfilling every earlier predecessor's
// operand with X's best-known location and this predecessor's with
// whatever X's record says now.
func (a *Allocator) promoteToMulti(entry *MergeEntry, reg, numPreds, thisPred int, incoming *LiveNodeInfo) {
	canonical := entry.Node
	seed := RegisterOperand(reg)
	if !canonical.HasReg && canonical.HasSlot {
		seed = StackSlotOperand(canonical.Slot)
	}
	operands := make([]AllocatedOperand, numPreds)
	for p := range operands {
		operands[p] = seed
	}
	operands[thisPred] = a.currentLocation(canonical)
	*entry = MergeEntry{Kind: MergeMulti, Node: canonical, Operands: operands}
	_ = incoming // incoming's own value has no further bookkeeping role once X is canonical.
}

// reconcileSuccessors dispatches reconciliation by control-node kind,
// called as the last step of processControlNode.
func (a *Allocator) reconcileSuccessors(b *Block, cn *ControlNode) {
	switch cn.Kind {
	case CtrlJump:
		a.reconcileEdge(cn, b, cn.Target)
	case CtrlJumpLoop:
		a.reconcileEdge(cn, b, cn.LoopHeader)
	case CtrlConditional:
		a.reconcileBranch(b, cn, cn.TrueTarget)
		a.reconcileBranch(b, cn, cn.FalseTarget)
	case CtrlReturn:
		// Terminal: no successor to reconcile into.
	}
}

// reconcileBranch handles one arm of a conditional's reconciliation,
// including two special cases: the empty-block
// shortcut, and the conditional-fallthrough carry-forward.
func (a *Allocator) reconcileBranch(b *Block, cn *ControlNode, target *Block) {
	if target.ID == b.ID+1 && target.MergeState == nil {
		a.dropDeadAcrossFallthrough(cn, target)
		return
	}
	if target.Empty && target.Control.Kind == CtrlJump {
		a.reconcileEdge(target.Control, target, target.Control.Target)
		return
	}
	a.reconcileEdge(cn, b, target)
}

// dropDeadAcrossFallthrough handles the conditional-fallthrough
// case: the target's register state is simply the current register file
// with anything not live at target cleared out, since fallthrough needs
// no merge-state entry at all.
func (a *Allocator) dropDeadAcrossFallthrough(cn *ControlNode, target *Block) {
	for i := 0; i < a.regFile.N(); i++ {
		info := a.regFile.At(i)
		if info == nil {
			continue
		}
		if !a.liveAtTarget(info, cn, target) {
			a.regFile.clear(i)
			info.HasReg = false
		}
	}
}
