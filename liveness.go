package regalloc

// LiveNodeInfo is the per-value liveness record: created when a value
// first becomes live, destroyed when its last use is consumed. It is the
// thing the register file's entries point to, and the thing a stack slot
// is bound to once spilled.
type LiveNodeInfo struct {
	Value ValueID

	HasReg bool
	Reg    int // meaningful iff HasReg

	HasSlot bool
	Slot    int // meaningful iff HasSlot; negative = caller-fixed, never freed

	// NextUse is the id of the nearest not-yet-consumed use from the
	// allocator's current position. Invariant: start ≤ NextUse ≤ end.
	NextUse NodeID

	// defResult and defPhi point at this value's defining site, if any
	// (a plain node's Result, a phi, or neither for a temporary). spill
	// stamps the chosen slot back onto whichever of these is non-nil, so
	// the emitter still sees the spill after this transient record is
	// gone.
	defResult *Result
	defPhi    *Phi
}

// newLiveNodeInfo creates the record for a value as it first becomes live,
// with next use seeded to its first recorded use (or to its own definition
// point if it has no uses).
func newLiveNodeInfo(v *Value) *LiveNodeInfo {
	next := v.DefID
	if len(v.Uses) > 0 {
		next = v.Uses[0]
	}
	return &LiveNodeInfo{Value: v.ID, NextUse: next}
}

// IsLocalSlot reports whether this record's stack slot (if any) is a
// locally allocated, reusable slot rather than a caller-provided fixed
// slot (a caller-fixed slot, e.g. an incoming parameter, is never freed).
func (r *LiveNodeInfo) IsLocalSlot() bool {
	return r.HasSlot && r.Slot >= 0
}

// sane checks the per-record invariant that must hold after every node: a
// live record must be reachable, either through a register or a stack
// slot.
func (r *LiveNodeInfo) sane() bool {
	return r.HasReg || r.HasSlot
}
