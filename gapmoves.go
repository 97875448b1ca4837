package regalloc

// GapMove is a synthetic move instruction reconciling an operand's
// location, inserted immediately before the IR position that required it
// (C6). Src is where the value currently lives; Dst is where it must live
// for the node being processed, or for the merge-state location computed
// for a successor block.
type GapMove struct {
	Src   AllocatedOperand
	Dst   AllocatedOperand
	Value ValueID
}

// insertGapMove splices a gap move into the current block immediately
// before the allocator's cursor, which tracks the node currently being
// processed. A doubly linked node list would make that insertion O(1);
// a slice with a tracked index needs to shift everything after the
// cursor, but the move still lands in exactly the same place, immediately
// before the node whose input or result demanded it.
func (a *Allocator) insertGapMove(anchor NodeID, src, dst AllocatedOperand, value ValueID) {
	if src.Equal(dst) {
		return
	}
	move := &Node{
		ID:      anchor,
		gapMove: &GapMove{Src: src, Dst: dst, Value: value},
	}
	b := a.curBlock
	b.Nodes = append(b.Nodes, nil)
	copy(b.Nodes[a.cursor+1:], b.Nodes[a.cursor:])
	b.Nodes[a.cursor] = move
	a.cursor++
	a.tracef("gap move v%d: %v -> %v (before node %d)", value, src, dst, anchor)
}

// appendGapMove adds a gap move at the end of the current block's node
// list — used when reconciling into a successor at the control node,
// where the move belongs after every real instruction in the block
// rather than spliced before some cursor position.
func (a *Allocator) appendGapMove(anchor NodeID, src, dst AllocatedOperand, value ValueID) {
	if src.Equal(dst) {
		return
	}
	move := &Node{
		ID:      anchor,
		gapMove: &GapMove{Src: src, Dst: dst, Value: value},
	}
	a.curBlock.Nodes = append(a.curBlock.Nodes, move)
	a.tracef("gap move v%d: %v -> %v (block end)", value, src, dst)
}
