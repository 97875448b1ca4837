package regalloc

// builder.go contains the small amount of graph-construction scaffolding
// this module needs for its own tests and demo driver. The real IR layer
// that owns construction and typing would populate a Graph this way or
// similarly; nothing here participates in allocation itself.

// AddBlock appends a new, empty block to g and returns it.
func AddBlock(g *Graph) *Block {
	b := &Block{ID: len(g.Blocks)}
	g.Blocks = append(g.Blocks, b)
	return b
}

// SetControl attaches cn as b's terminator and stamps cn.Owner, which the
// hole analysis (C4) needs to test for fallthrough.
func (b *Block) SetControl(cn *ControlNode) {
	cn.Owner = b
	b.Control = cn
}

// FinalizeGraph derives predecessor lists, each block's FirstID and
// FirstNonGapMoveID, the Empty flag, and the defining-site index
// (defResults/defPhis) from the blocks and control nodes already
// assembled. Call it once after every block's Nodes/Phis/Control have
// been set.
func FinalizeGraph(g *Graph) {
	for _, b := range g.Blocks {
		switch cn := b.Control; cn.Kind {
		case CtrlJump:
			cn.Target.Preds = append(cn.Target.Preds, b)
		case CtrlConditional:
			cn.TrueTarget.Preds = append(cn.TrueTarget.Preds, b)
			cn.FalseTarget.Preds = append(cn.FalseTarget.Preds, b)
		case CtrlJumpLoop:
			cn.LoopHeader.Preds = append(cn.LoopHeader.Preds, b)
		case CtrlReturn:
			// terminal: no successor edge
		}
	}

	g.defResults = make(map[ValueID]*Result)
	g.defPhis = make(map[ValueID]*Phi)

	for _, b := range g.Blocks {
		for _, phi := range b.Phis {
			g.defPhis[phi.Value] = phi
		}
		if len(b.Nodes) == 0 {
			b.FirstID = b.Control.ID
			b.FirstNonGapMoveID = b.Control.ID
			b.Empty = len(b.Phis) == 0 && b.Control.Kind == CtrlJump
			continue
		}
		b.FirstID = b.Nodes[0].ID
		b.FirstNonGapMoveID = b.Nodes[0].ID
		first := true
		for _, n := range b.Nodes {
			if !n.IsGapMove() {
				if first {
					b.FirstNonGapMoveID = n.ID
					first = false
				}
				if n.Result != nil {
					g.defResults[n.Result.Value] = n.Result
				}
			}
		}
	}
}
