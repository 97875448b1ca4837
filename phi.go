package regalloc

// resolvePhis handles every phi defined at the top of b:
// pick its home in three passes — try to land it where one of its inputs
// already sits, else take any free register, else fall back to a stack
// slot — then backfill a gap move on every predecessor edge whose
// contribution didn't already land there.
//
// It runs after restoreMergeState and before any ordinary node in b, since
// a phi's value is live from the very top of the block.
func (a *Allocator) resolvePhis(b *Block) {
	for _, phi := range b.Phis {
		a.resolveOnePhi(b, phi)
	}
}

func (a *Allocator) resolveOnePhi(b *Block, phi *Phi) {
	info := a.recordFor(phi.Value)

	if phi.InputLocations == nil {
		phi.InputLocations = make([]AllocatedOperand, len(b.Preds))
	}

	loc, ok := a.tryAllocatePhiToInput(phi)
	if !ok {
		if idx, free := a.regFile.lowestFree(); free {
			a.bindRegister(idx, info)
			loc = RegisterOperand(idx)
		} else {
			info.HasSlot = true
			info.Slot = a.slots.Allocate()
			loc = StackSlotOperand(info.Slot)
		}
	}

	phi.Allocated = loc
	a.backfillPhiEdges(b, phi, loc)
}

// tryAllocatePhiToInput is the first pass of phi resolution: if some predecessor
// already put this phi's contribution from that edge in a register that
// is currently empty in b's restored register file, claim it — that
// predecessor's edge then needs no gap move at all.
func (a *Allocator) tryAllocatePhiToInput(phi *Phi) (AllocatedOperand, bool) {
	info := a.recordFor(phi.Value)
	for _, loc := range phi.InputLocations {
		if loc.IsRegister() && a.regFile.At(loc.Index) == nil {
			a.bindRegister(loc.Index, info)
			return loc, true
		}
	}
	return AllocatedOperand{}, false
}

// backfillPhiEdges appends a gap move to every predecessor whose recorded
// contribution doesn't already match the phi's resolved location. A
// predecessor not yet visited (e.g. a loop's back edge) has no recorded
// location yet; injectPhiAllocations reconciles that edge itself once it
// runs.
func (a *Allocator) backfillPhiEdges(b *Block, phi *Phi, final AllocatedOperand) {
	for predID, pred := range b.Preds {
		loc := phi.InputLocations[predID]
		if !loc.IsAllocated() || loc.Equal(final) {
			continue
		}
		anchor := pred.Control.ID
		pred.Nodes = append(pred.Nodes, &Node{
			ID:      anchor,
			gapMove: &GapMove{Src: loc, Dst: final, Value: phi.Value},
		})
	}
}
