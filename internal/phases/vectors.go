package phases

import "github.com/roach88/kforge/internal/ir"

// VectorMaterialization turns object parameters of a vector type into
// VectorValue nodes and rewrites lane proxies into lane reads.
type VectorMaterialization struct{}

func (VectorMaterialization) Name() string { return "vectors" }

func (p VectorMaterialization) Run(g *ir.Graph, pc *Context) error {
	for _, param := range g.NodesOf(ir.OpParam) {
		proxies := usagesOf(g, param, ir.OpVectorElemProxy)
		kind, ok := ir.KindByName(param.TypeName)
		if !ok || !kind.IsVector() {
			if len(proxies) > 0 {
				return unimplemented(p.Name(), proxies[0], "lane access on non-vector type %q", param.TypeName)
			}
			continue
		}
		vec := vectorValueOf(g, param)
		if vec == nil {
			vec = g.Add(ir.OpVectorValue, kind, param.ID())
			pc.report().VectorsMaterialized++
		}
		vec.NeedsLoad = pc.Kernel
		for _, proxy := range proxies {
			if proxy.Index < 0 || proxy.Index >= kind.Lanes() {
				return unimplemented(p.Name(), proxy, "lane %d of %s", proxy.Index, kind)
			}
			elem := g.Add(ir.OpVectorElem, kind.Elem(), vec.ID())
			elem.Index = proxy.Index
			g.ReplaceAtUsages(proxy.ID(), elem.ID())
			g.Delete(proxy)
		}
		for _, st := range usagesOf(g, param, ir.OpVectorStore) {
			g.ReplaceAtUsagesIf(param.ID(), vec.ID(), func(u *ir.Node) bool { return u.ID() == st.ID() })
		}
	}
	return nil
}

func vectorValueOf(g *ir.Graph, param *ir.Node) *ir.Node {
	if vs := usagesOf(g, param, ir.OpVectorValue); len(vs) > 0 {
		return vs[0]
	}
	return nil
}

func usagesOf(g *ir.Graph, n *ir.Node, op ir.Op) []*ir.Node {
	var out []*ir.Node
	for _, u := range g.Usages(n.ID()) {
		if u.Op() == op {
			out = append(out, u)
		}
	}
	return out
}
