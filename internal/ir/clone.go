package ir

// CloneNodes duplicates the given nodes. Edges between cloned nodes are
// redirected to the copies; data references leaving the set are resolved
// through subst when present and kept otherwise. Control edges leaving the
// set are left unset for the caller to link. It returns the original to
// copy mapping.
func (g *Graph) CloneNodes(ids []NodeID, subst map[NodeID]NodeID) map[NodeID]NodeID {
	copies := make(map[NodeID]NodeID, len(ids))
	for _, id := range ids {
		orig := g.Node(id)
		if orig == nil {
			continue
		}
		cp := g.Add(orig.op, orig.Kind)
		cp.Elem = orig.Elem
		cp.Value = orig.Value
		cp.Index = orig.Index
		cp.Name = orig.Name
		cp.TypeName = orig.TypeName
		cp.Space = orig.Space
		cp.Math = orig.Math
		cp.Dims = orig.Dims
		cp.Factor = orig.Factor
		cp.NeedsLoad = orig.NeedsLoad
		cp.Final = orig.Final
		copies[id] = cp.id
	}
	resolve := func(id NodeID) NodeID {
		if c, ok := copies[id]; ok {
			return c
		}
		if s, ok := subst[id]; ok {
			return s
		}
		return id
	}
	for _, id := range ids {
		orig := g.Node(id)
		if orig == nil {
			continue
		}
		cp := g.nodes[copies[id]]
		for _, in := range orig.inputs {
			g.AppendInput(cp, resolve(in))
		}
		if orig.anchor.IsValid() {
			g.SetAnchor(cp, resolve(orig.anchor))
		}
		if c, ok := copies[orig.next]; ok {
			g.SetNext(cp, c)
		}
		for i, s := range orig.succs {
			if c, ok := copies[s]; ok {
				g.SetSucc(cp, i, c)
			}
		}
		for _, e := range orig.ends {
			if c, ok := copies[e]; ok {
				g.AddEnd(cp, c)
			}
		}
	}
	return copies
}
