// Command regallocdemo builds a small hand-written graph and runs it
// through the allocator, printing the chosen location of every input and
// result, plus a "gap move" line for each gap move the allocator inserted.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/linearscan"
	"github.com/xyproto/linearscan/internal/engine"
)

func main() {
	archFlag := flag.String("arch", "amd64", "target architecture (amd64, arm64, riscv64)")
	flag.Parse()

	arch, err := engine.ParseArch(*archFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "regallocdemo:", err)
		os.Exit(1)
	}
	catalog, err := engine.NewRegisterCatalog(arch)
	if err != nil {
		fmt.Fprintln(os.Stderr, "regallocdemo:", err)
		os.Exit(1)
	}

	g := buildDemoGraph()

	cfg := regalloc.LoadConfig()
	alloc := regalloc.NewAllocator(g, catalog, cfg)
	alloc.SetTraceOutput(os.Stderr)

	if err := alloc.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "regallocdemo: allocation failed:", err)
		os.Exit(1)
	}

	report(g)
}

// buildDemoGraph assembles a spill-on-call scenario: two
// values computed in registers, a call that clobbers everything, and a
// third value combining the first two's spilled-and-reloaded contents.
func buildDemoGraph() *regalloc.Graph {
	g := regalloc.NewGraph()
	b := regalloc.AddBlock(g)

	const (
		v0 regalloc.ValueID = 0
		v1 regalloc.ValueID = 1
		v2 regalloc.ValueID = 2
	)
	const (
		n0 regalloc.NodeID = 0 // defines v0
		n1 regalloc.NodeID = 1 // defines v1 from v0
		n2 regalloc.NodeID = 2 // a call, defines nothing useful to v0/v1
		n3 regalloc.NodeID = 3 // defines v2 from v0 and v1
		c0 regalloc.NodeID = 4 // Return v2
	)

	g.DefineValue(v0, n0, n1, n3)
	g.DefineValue(v1, n1, n3)
	g.DefineValue(v2, n3, c0)

	b.Nodes = []*regalloc.Node{
		{
			ID:     n0,
			Result: &regalloc.Result{Value: v0, Policy: regalloc.ResultMustHaveRegister},
		},
		{
			ID:         n1,
			Inputs:     []regalloc.Input{{Value: v0, Policy: regalloc.PolicyRegisterOrSlot}},
			Result:     &regalloc.Result{Value: v1, Policy: regalloc.ResultMustHaveRegister},
			Properties: regalloc.Properties{},
		},
		{
			ID:         n2,
			Properties: regalloc.Properties{IsCall: true},
		},
		{
			ID: n3,
			Inputs: []regalloc.Input{
				{Value: v0, Policy: regalloc.PolicyMustHaveRegister},
				{Value: v1, Policy: regalloc.PolicyMustHaveRegister},
			},
			Result: &regalloc.Result{Value: v2, Policy: regalloc.ResultMustHaveRegister},
		},
	}
	b.SetControl(&regalloc.ControlNode{
		ID:     c0,
		Kind:   regalloc.CtrlReturn,
		Inputs: []regalloc.Input{{Value: v2, Policy: regalloc.PolicyRegisterOrSlot}},
	})

	regalloc.FinalizeGraph(g)
	return g
}

func report(g *regalloc.Graph) {
	for _, b := range g.Blocks {
		fmt.Printf("block %d:\n", b.ID)
		for _, n := range b.Nodes {
			if n.IsGapMove() {
				fmt.Printf("  gap move\n")
				continue
			}
			fmt.Printf("  node %d\n", n.ID)
			for _, in := range n.Inputs {
				fmt.Printf("    input v%d -> %s\n", in.Value, describe(in.Allocated))
			}
			if n.Result != nil {
				fmt.Printf("    result v%d -> %s\n", n.Result.Value, describe(n.Result.Allocated))
			}
		}
	}
	fmt.Printf("top of stack: %d slots\n", g.TopOfStack)
}

func describe(op regalloc.AllocatedOperand) string {
	switch {
	case op.IsRegister():
		return fmt.Sprintf("r%d", op.Index)
	case op.IsStackSlot():
		return fmt.Sprintf("slot%d", op.Index)
	default:
		return "unallocated"
	}
}
