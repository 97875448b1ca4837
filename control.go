package regalloc

// processControlNode places a block's own terminator inputs, applies
// call/phi/deopt side effects, and reconciles state into every successor.
func (a *Allocator) processControlNode(b *Block) {
	cn := b.Control
	a.curNodeID = cn.ID
	a.cursor = len(b.Nodes) // control-node gap moves append to the block.

	for i := range cn.Inputs {
		a.assignInput(cn.ID, &cn.Inputs[i])
	}
	a.updateUses(cn.ID, cn.Inputs)

	if cn.Properties.IsCall {
		a.spillAllAndClear()
	}

	// "Unconditional" here means single-target, as opposed to Conditional's
	// two targets: both a Jump and a loop's JumpLoop inject phi allocations
	// into whichever block they land in.
	switch cn.Kind {
	case CtrlJump:
		a.injectPhiAllocations(cn, cn.Target)
	case CtrlJumpLoop:
		a.injectPhiAllocations(cn, cn.LoopHeader)
	}

	if cn.Properties.CanDeopt {
		a.spillAllKeepRegisters()
	}

	a.reconcileSuccessors(b, cn)
}

// injectPhiAllocations handles an unconditional jump into a block with
// phis: record where each phi's
// contribution from this predecessor currently lives, then consume it as
// if the jump itself had used it.
func (a *Allocator) injectPhiAllocations(cn *ControlNode, target *Block) {
	if len(target.Phis) == 0 {
		return
	}
	predID := target.PredIndex(cn.Owner)
	for _, phi := range target.Phis {
		valID := phi.Inputs[predID]
		info := a.recordFor(valID)
		loc := a.currentLocation(info)

		if phi.InputLocations == nil {
			phi.InputLocations = make([]AllocatedOperand, len(target.Preds))
		}
		phi.InputLocations[predID] = loc

		// A loop header's phis are already resolved by the time its
		// back edge is processed (the header runs before the loop body in
		// linear block order) — reconcile this late edge with a gap move
		// at the tail of the edge's own block rather than letting
		// resolvePhis see it.
		if phi.Allocated.IsAllocated() && !loc.Equal(phi.Allocated) {
			a.appendGapMove(cn.ID, loc, phi.Allocated, phi.Value)
		}

		a.updateUse(cn.ID, valID)
	}
}
