package regalloc

// RegisterFile is the mutable array of N entries, each either empty or
// pointing to a liveness record — the sole source of truth for "which
// value is in which register right now" (C5).
type RegisterFile struct {
	entries []*LiveNodeInfo
}

func newRegisterFile(n int) *RegisterFile {
	return &RegisterFile{entries: make([]*LiveNodeInfo, n)}
}

func (rf *RegisterFile) N() int { return len(rf.entries) }

func (rf *RegisterFile) At(i int) *LiveNodeInfo { return rf.entries[i] }

func (rf *RegisterFile) clear(i int) { rf.entries[i] = nil }

// lowestFree returns the lowest empty register index. Always preferring
// the lowest index keeps allocation deterministic: the same graph always
// produces the same assignment, which matters for reproducing a
// miscompile from a trace.
func (rf *RegisterFile) lowestFree() (int, bool) {
	for i, e := range rf.entries {
		if e == nil {
			return i, true
		}
	}
	return -1, false
}

// currentLocation returns where a live record is right now. Every live
// record must be reachable through a register or a slot (or both); a
// record satisfying neither is a structural violation.
func (a *Allocator) currentLocation(info *LiveNodeInfo) AllocatedOperand {
	if info.HasReg {
		return RegisterOperand(info.Reg)
	}
	if info.HasSlot {
		return StackSlotOperand(info.Slot)
	}
	fail(a.currentNodeID(), CategoryInvariantViolation,
		"value v%d is live but has neither a register nor a stack slot", info.Value)
	panic("unreachable")
}

// bindRegister makes register idx point at info, and info point back at
// idx, keeping the register file and the record in agreement. If info was
// already bound to a different register, that stale entry is cleared so
// the inverse mapping stays a partial function.
func (a *Allocator) bindRegister(idx int, info *LiveNodeInfo) {
	if info.HasReg && info.Reg != idx {
		a.regFile.clear(info.Reg)
	}
	a.regFile.entries[idx] = info
	info.HasReg = true
	info.Reg = idx
}

// tryAllocateRegister binds the lowest free register to info, or reports
// failure if the register file is full.
func (a *Allocator) tryAllocateRegister(info *LiveNodeInfo) bool {
	idx, ok := a.regFile.lowestFree()
	if !ok {
		return false
	}
	a.bindRegister(idx, info)
	return true
}

// pickEvictionVictim returns the register index holding the occupant with
// the maximum next-use id — the one whose next use is farthest away is the
// cheapest to kick out, since it has the most time to be reloaded before
// anyone needs it again. Ties are broken by lowest register index.
// Ascending iteration with a strict > comparison gives the lowest-index
// winner among ties for free.
func (a *Allocator) pickEvictionVictim(at NodeID) int {
	best := -1
	var bestNextUse NodeID
	for i := 0; i < a.regFile.N(); i++ {
		occ := a.regFile.At(i)
		if occ == nil {
			continue
		}
		if best == -1 || occ.NextUse > bestNextUse {
			best = i
			bestNextUse = occ.NextUse
		}
	}
	invariant(at, best != -1, "no register available to evict but register file is not full")
	return best
}

// allocateRegister tries the fast path first, and falls back to evicting
// the occupant with the farthest next use.
func (a *Allocator) allocateRegister(at NodeID, info *LiveNodeInfo) AllocatedOperand {
	if a.tryAllocateRegister(info) {
		return RegisterOperand(info.Reg)
	}
	victim := a.pickEvictionVictim(at)
	return a.forceAllocate(at, victim, info, false)
}

// forceAllocate puts info into register r specifically, evicting whatever
// is there first if r is occupied by something else.
func (a *Allocator) forceAllocate(at NodeID, r int, info *LiveNodeInfo, tryMove bool) AllocatedOperand {
	if occ := a.regFile.At(r); occ == info {
		return RegisterOperand(r)
	}
	a.free(at, r, tryMove)
	a.bindRegister(r, info)
	return RegisterOperand(r)
}

// free evicts whatever currently occupies r. An occupant that already has
// a stack slot is simply dropped from r; otherwise it is moved to another
// free register if tryMove allows it and one exists, else spilled.
//
// A LiveNodeInfo only ever carries at most one register index at a time
// (bindRegister enforces this), so there is no case here where the
// evicted record is also bound to some other register that needs
// clearing — that branch doesn't exist under this data model and isn't
// coded as unreachable logic.
func (a *Allocator) free(at NodeID, r int, tryMove bool) {
	occ := a.regFile.At(r)
	if occ == nil {
		return
	}

	// Look for a destination to move occ to *before* vacating r — r itself
	// still reads as occupied at this point, so lowestFree can never hand
	// back the very register occ is being moved off of.
	freeIdx, haveFree := -1, false
	if tryMove {
		freeIdx, haveFree = a.regFile.lowestFree()
	}

	a.regFile.clear(r)
	occ.HasReg = false

	if occ.HasSlot {
		return
	}
	if haveFree {
		a.bindRegister(freeIdx, occ)
		a.insertGapMove(at, RegisterOperand(r), RegisterOperand(freeIdx), occ.Value)
		return
	}
	a.spill(occ)
}

// spill allocates a slot and records it on info if one isn't already
// bound. A record with both HasReg and HasSlot set is
// explicitly allowed to coexist, so this never disturbs info's register.
//
// info.HasSlot alone doesn't survive info itself: killValue drops the
// record entirely at the value's last use, well before the emitter gets
// a chance to look at it. So the slot is also stamped onto the value's
// defining site (its Result or Phi, whichever applies) — the emitter
// reads Spilled/SpillSlot off that node directly and writes the register
// there right after emitting the code that defines it, with no separate
// store instruction of its own.
func (a *Allocator) spill(info *LiveNodeInfo) {
	if info.HasSlot {
		return
	}
	info.HasSlot = true
	info.Slot = a.slots.Allocate()
	if info.defResult != nil {
		info.defResult.Spilled = true
		info.defResult.SpillSlot = info.Slot
	}
	if info.defPhi != nil {
		info.defPhi.Spilled = true
		info.defPhi.SpillSlot = info.Slot
	}
	a.tracef("spill v%d to slot %d", info.Value, info.Slot)
}
