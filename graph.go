// Package regalloc implements the linear-scan register allocator that
// decorates an already-built, already-typed control-flow graph with
// concrete physical locations: a machine register drawn from a fixed
// allocatable set, or a stack slot, plus the parallel moves needed at
// block boundaries to reconcile locations chosen along different paths.
//
// The package consumes a Graph built by an upstream IR layer (construction
// and typing happen there, not here) and produces the same Graph with
// every operand decorated, a GapMove list spliced into each block,
// populated merge states, and a final stack-slot count.
package regalloc

import "fmt"

// ValueID identifies an SSA value.
type ValueID int

// NodeID is a position in the function's linear node-id space. Both
// ordinary nodes and control nodes draw ids from this same space, and ids
// increase monotonically walking a block from its first instruction to
// its control node, and from one block to the next.
type NodeID int

// Policy enumerates the operand policies an input can declare.
type Policy int

const (
	// PolicyRegisterOrSlot accepts the value wherever it currently lives.
	PolicyRegisterOrSlot Policy = iota
	// PolicyRegisterOrSlotOrConstant behaves like PolicyRegisterOrSlot for
	// this allocator; constant materialization is handled upstream.
	PolicyRegisterOrSlotOrConstant
	// PolicyFixedRegister forces the value into a specific register.
	PolicyFixedRegister
	// PolicyMustHaveRegister accepts the value if already in a register,
	// else allocates one.
	PolicyMustHaveRegister

	// The following are declared only so fail() can name precisely which
	// unsupported policy a malformed graph used; this allocator never
	// produces or accepts them.
	PolicyFixedFPRegister
	PolicyMustHaveSlot
	PolicyNone
)

func (p Policy) String() string {
	switch p {
	case PolicyRegisterOrSlot:
		return "kRegisterOrSlot"
	case PolicyRegisterOrSlotOrConstant:
		return "kRegisterOrSlotOrConstant"
	case PolicyFixedRegister:
		return "kFixedRegister"
	case PolicyMustHaveRegister:
		return "kMustHaveRegister"
	case PolicyFixedFPRegister:
		return "kFixedFPRegister"
	case PolicyMustHaveSlot:
		return "kMustHaveSlot"
	case PolicyNone:
		return "kNone"
	default:
		return "unknown"
	}
}

// ResultPolicy enumerates how a node's produced value must be placed.
type ResultPolicy int

const (
	ResultNone ResultPolicy = iota
	ResultFixedRegister
	ResultFixedSlot
	ResultMustHaveRegister
	ResultSameAsInput

	// ResultRegisterOrSlotOrConstant is unsupported as a result policy and
	// is declared only for that error message.
	ResultRegisterOrSlotOrConstant
)

// Input is one operand reference on a node or control node.
type Input struct {
	Value         ValueID
	Policy        Policy
	FixedRegister int // meaningful iff Policy == PolicyFixedRegister

	Allocated AllocatedOperand // filled in by the allocator
}

// Result describes how a node's produced value must be placed.
type Result struct {
	Value            ValueID // the value this node defines
	Policy           ResultPolicy
	FixedRegister    int // meaningful iff Policy == ResultFixedRegister
	FixedSlot        int // meaningful iff Policy == ResultFixedSlot; always negative
	SameAsInputIndex int // meaningful iff Policy == ResultSameAsInput

	Allocated AllocatedOperand

	// Spilled and SpillSlot record that this value, after being defined
	// here, was later pushed to a stack slot while still live elsewhere
	// in a register. There is no separate store instruction for this: the
	// emitter reads Spilled off the defining node and, right after
	// emitting the code that produces Allocated, also writes it to
	// SpillSlot.
	Spilled   bool
	SpillSlot int
}

// Properties carries the per-node architectural facts the allocator must
// respect: whether the node clobbers every caller-saved register (a call)
// and whether it may bail out to the interpreter (a deopt point).
type Properties struct {
	IsCall   bool
	CanDeopt bool
}

// Node is an ordinary, non-control node: it consumes Inputs, optionally
// produces a Result, and may require NumTemporaries scratch registers
// live only for its own execution.
type Node struct {
	ID             NodeID
	Inputs         []Input
	Result         *Result // nil if this node does not produce a value
	NumTemporaries int
	Properties     Properties
	Temporaries    []AllocatedOperand // filled in during allocation

	gapMove *GapMove // non-nil iff this Node is a synthetic gap move
}

// IsGapMove reports whether this node is a synthetic move the gap-move
// scheduler (C6) inserted, as opposed to a node from the original graph.
func (n *Node) IsGapMove() bool { return n.gapMove != nil }

// ControlKind is the closed tagged variant of control-node shapes: every
// kind of terminator shares one struct and dispatches on this tag via a
// switch, rather than each kind getting its own Go type behind an
// interface.
type ControlKind int

const (
	CtrlJump ControlKind = iota
	CtrlConditional
	CtrlJumpLoop
	CtrlReturn
)

func (k ControlKind) String() string {
	switch k {
	case CtrlJump:
		return "Jump"
	case CtrlConditional:
		return "ConditionalControlNode"
	case CtrlJumpLoop:
		return "JumpLoop"
	case CtrlReturn:
		return "Return"
	default:
		return "unknown"
	}
}

// ControlNode terminates a block. All four kinds share one struct — the
// "common header" carrying NextHole — rather than four separate Go types,
// so the post-dominating-hole analysis (C4) can dispatch on Kind alone.
type ControlNode struct {
	ID         NodeID
	Kind       ControlKind
	Inputs     []Input // e.g. a ConditionalControlNode's condition, a Return's value
	Properties Properties

	// Owner is the block this control node terminates. Set once by the
	// graph builder; used by the hole analysis to test whether a Jump is
	// a fallthrough.
	Owner *Block

	Target      *Block // CtrlJump
	TrueTarget  *Block // CtrlConditional
	FalseTarget *Block // CtrlConditional
	LoopHeader  *Block // CtrlJumpLoop: the header this edge jumps back to

	// NextHole is next_post_dominating_hole: the next hole guaranteed to
	// be reached on every path from this node's successors. Computed by
	// computePostDominatingHoles (C4); nil for terminal nodes (Return,
	// JumpLoop) and for any node whose chain runs off the end of the graph.
	NextHole *ControlNode
}

// Phi is a merge-block-entry value with one input per predecessor, indexed
// by predecessor id.
type Phi struct {
	Value  ValueID
	Inputs []ValueID // Inputs[predID] is the value flowing in on that edge

	// InputLocations[predID] is filled in by injectPhiAllocations as each
	// predecessor's control node is processed: where Inputs[predID] lived
	// at that point. Phi resolution reads these once every predecessor
	// has been visited.
	InputLocations []AllocatedOperand

	Allocated AllocatedOperand

	// Spilled and SpillSlot mirror Result's fields: set if this phi, after
	// resolving to a register, is later pushed to a stack slot while
	// still live in that register.
	Spilled   bool
	SpillSlot int
}

// Value is a single SSA definition: its defining node and every node id
// that reads it, in increasing order. The live range is derived from this
// rather than stored redundantly, so it can never drift out of sync with
// the use list.
type Value struct {
	ID    ValueID
	DefID NodeID
	Uses  []NodeID
}

// LiveRange returns [start, end] = [DefID, last use].
func (v *Value) LiveRange() (start, end NodeID) {
	start = v.DefID
	end = v.DefID
	if len(v.Uses) > 0 {
		end = v.Uses[len(v.Uses)-1]
	}
	return start, end
}

// NextUseAfter returns the first recorded use strictly after id, and
// whether one exists. An upstream IR layer that already knows every use
// up front could thread this by hand through every node instead; this
// package derives it from the recorded use list so callers don't have to.
func (v *Value) NextUseAfter(id NodeID) (NodeID, bool) {
	for _, u := range v.Uses {
		if u > id {
			return u, true
		}
	}
	return 0, false
}

// IsLastUse reports whether id is this value's final recorded use.
func (v *Value) IsLastUse(id NodeID) bool {
	if len(v.Uses) == 0 {
		return false
	}
	return v.Uses[len(v.Uses)-1] == id
}

// Block is an ordered sequence of value-producing nodes terminated by a
// control node.
type Block struct {
	ID      int // this block's position in Graph.Blocks
	FirstID NodeID

	// FirstNonGapMoveID anchors the back-edge liveness test to the first
	// real instruction, so a gap move the allocator itself inserted at
	// the top of a loop header never masks a value defined before the
	// loop.
	FirstNonGapMoveID NodeID

	Nodes   []*Node
	Phis    []*Phi
	Control *ControlNode

	Preds []*Block
	// Empty marks a block with no nodes and no phis whose sole content is
	// a Jump — reconciliation treats it as part of its predecessor's
	// control transfer rather than a merge point of its own.
	Empty bool

	// MergeState is nil until this block is first reached as a successor;
	// once allocated it has exactly N entries, one per allocatable
	// register.
	MergeState []MergeEntry
}

// PredIndex returns from's stable predecessor id on the edge from->b: its
// position in b.Preds.
func (b *Block) PredIndex(from *Block) int {
	for i, p := range b.Preds {
		if p == from {
			return i
		}
	}
	panic(fmt.Sprintf("regalloc: block %d is not a predecessor of block %d", from.ID, b.ID))
}

// Graph is the whole function: blocks in linear IR order, plus the value
// table liveness is threaded through.
type Graph struct {
	Blocks []*Block
	Values map[ValueID]*Value

	// TopOfStack is written back once allocation completes.
	TopOfStack int

	// defResults and defPhis index every value's defining site (its
	// Node.Result or its Phi), so a later spill of an already-defined
	// value can mark that site directly instead of needing a store
	// instruction of its own. Populated by FinalizeGraph.
	defResults map[ValueID]*Result
	defPhis    map[ValueID]*Phi
}

func NewGraph() *Graph {
	return &Graph{Values: make(map[ValueID]*Value)}
}

// defSiteFor returns the Result and/or Phi that defines id, whichever
// applies (nil otherwise).
func (g *Graph) defSiteFor(id ValueID) (*Result, *Phi) {
	return g.defResults[id], g.defPhis[id]
}

// DefineValue registers a value's definition point and the (sorted, already
// known) set of node ids that use it. Construction-time knowledge of every
// use is exactly what an SSA IR layer already has before handing the graph
// to this allocator.
func (g *Graph) DefineValue(id ValueID, defID NodeID, uses ...NodeID) *Value {
	sorted := append([]NodeID(nil), uses...)
	insertionSort(sorted)
	v := &Value{ID: id, DefID: defID, Uses: sorted}
	g.Values[id] = v
	return v
}

func (g *Graph) Value(id ValueID) *Value {
	v, ok := g.Values[id]
	if !ok {
		panic(fmt.Sprintf("regalloc: reference to undefined value v%d", id))
	}
	return v
}

func insertionSort(ids []NodeID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
