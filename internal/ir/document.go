package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Document is the serializable form of a graph. Node ids are symbolic
// strings; control and data edges refer to them by name.
type Document struct {
	Name   string     `yaml:"name" json:"name"`
	Params []ParamDoc `yaml:"params,omitempty" json:"params,omitempty"`
	Nodes  []NodeDoc  `yaml:"nodes" json:"nodes"`
}

// ParamDoc declares a kernel parameter.
type ParamDoc struct {
	Name  string `yaml:"name" json:"name"`
	Kind  string `yaml:"kind" json:"kind"`
	Elem  string `yaml:"elem,omitempty" json:"elem,omitempty"`
	Type  string `yaml:"type,omitempty" json:"type,omitempty"`
	Space string `yaml:"space,omitempty" json:"space,omitempty"`
}

// NodeDoc is one node. Param nodes refer to their declaration by Index.
type NodeDoc struct {
	ID        string   `yaml:"id" json:"id"`
	Op        string   `yaml:"op" json:"op"`
	Kind      string   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Elem      string   `yaml:"elem,omitempty" json:"elem,omitempty"`
	Value     string   `yaml:"value,omitempty" json:"value,omitempty"`
	Inputs    []string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Anchor    string   `yaml:"anchor,omitempty" json:"anchor,omitempty"`
	Next      string   `yaml:"next,omitempty" json:"next,omitempty"`
	Succs     []string `yaml:"succs,omitempty" json:"succs,omitempty"`
	Ends      []string `yaml:"ends,omitempty" json:"ends,omitempty"`
	Index     int      `yaml:"index,omitempty" json:"index,omitempty"`
	Name      string   `yaml:"name,omitempty" json:"name,omitempty"`
	Type      string   `yaml:"type,omitempty" json:"type,omitempty"`
	Space     string   `yaml:"space,omitempty" json:"space,omitempty"`
	Math      string   `yaml:"math,omitempty" json:"math,omitempty"`
	Dims      []int    `yaml:"dims,omitempty" json:"dims,omitempty"`
	Factor    int      `yaml:"factor,omitempty" json:"factor,omitempty"`
	NeedsLoad bool     `yaml:"needs_load,omitempty" json:"needs_load,omitempty"`
	Final     bool     `yaml:"final,omitempty" json:"final,omitempty"`
}

// DocumentError reports an invalid graph document.
type DocumentError struct {
	Node    string
	Message string
}

func (e *DocumentError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("graph document: node %q: %s", e.Node, e.Message)
	}
	return "graph document: " + e.Message
}

// ToDocument renders g with ids "n<id>". Only live nodes are included.
func ToDocument(g *Graph) Document {
	name := func(id NodeID) string {
		if !id.IsValid() {
			return ""
		}
		return "n" + strconv.Itoa(int(id))
	}
	names := func(ids []NodeID) []string {
		if len(ids) == 0 {
			return nil
		}
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = name(id)
		}
		return out
	}
	doc := Document{Name: g.Name}
	for _, p := range g.Params {
		pd := ParamDoc{Name: p.Name, Kind: p.Kind.String(), Type: p.TypeName}
		if p.Elem != KindIllegal {
			pd.Elem = p.Elem.String()
		}
		if p.Space != SpaceNone {
			pd.Space = p.Space.String()
		}
		doc.Params = append(doc.Params, pd)
	}
	for _, n := range g.Nodes() {
		nd := NodeDoc{
			ID:        name(n.id),
			Op:        n.op.String(),
			Inputs:    names(n.inputs),
			Anchor:    name(n.anchor),
			Next:      name(n.next),
			Ends:      names(n.ends),
			Index:     n.Index,
			Name:      n.Name,
			Type:      n.TypeName,
			Factor:    n.Factor,
			NeedsLoad: n.NeedsLoad,
			Final:     n.Final,
		}
		if n.Kind != KindVoid && n.Kind != KindIllegal {
			nd.Kind = n.Kind.String()
		}
		if n.Elem != KindIllegal {
			nd.Elem = n.Elem.String()
		}
		if n.op == OpConst {
			nd.Value = n.Value.String()
		}
		if n.op == OpIf {
			nd.Succs = []string{name(n.succs[0]), name(n.succs[1])}
		}
		if n.Space != SpaceNone {
			nd.Space = n.Space.String()
		}
		if n.Math != MathNone {
			nd.Math = n.Math.String()
		}
		if n.op == OpThreadConfig {
			nd.Dims = n.Dims[:]
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	return doc
}

// FromDocument builds a graph from a document. The document's start node
// (op "start") becomes the graph's Start. The result is verified.
func FromDocument(doc Document) (*Graph, error) {
	g := New(doc.Name)
	for _, pd := range doc.Params {
		p, err := paramFromDoc(pd)
		if err != nil {
			return nil, err
		}
		g.Params = append(g.Params, p)
	}

	ids := make(map[string]NodeID, len(doc.Nodes))
	sawStart := false
	for _, nd := range doc.Nodes {
		if _, dup := ids[nd.ID]; dup || nd.ID == "" {
			return nil, &DocumentError{Node: nd.ID, Message: "missing or duplicate id"}
		}
		op, ok := OpByName(nd.Op)
		if !ok {
			return nil, &DocumentError{Node: nd.ID, Message: fmt.Sprintf("unknown op %q", nd.Op)}
		}
		if op == OpStart {
			if sawStart {
				return nil, &DocumentError{Node: nd.ID, Message: "second start node"}
			}
			sawStart = true
			ids[nd.ID] = g.start
			continue
		}
		kind := KindVoid
		if nd.Kind != "" {
			if kind, ok = KindByName(nd.Kind); !ok {
				return nil, &DocumentError{Node: nd.ID, Message: fmt.Sprintf("unknown kind %q", nd.Kind)}
			}
		}
		if op == OpConst {
			v, err := parseValue(kind, nd.Value)
			if err != nil {
				return nil, &DocumentError{Node: nd.ID, Message: err.Error()}
			}
			n := g.Const(v)
			ids[nd.ID] = n.id
			continue
		}
		n := g.Add(op, kind)
		if err := payloadFromDoc(n, nd, g); err != nil {
			return nil, err
		}
		ids[nd.ID] = n.id
	}
	if !sawStart {
		return nil, &DocumentError{Message: "no start node"}
	}

	ref := func(owner, s string) (NodeID, error) {
		if s == "" {
			return NoNode, nil
		}
		id, ok := ids[s]
		if !ok {
			return NoNode, &DocumentError{Node: owner, Message: fmt.Sprintf("reference to unknown node %q", s)}
		}
		return id, nil
	}
	for _, nd := range doc.Nodes {
		n := g.nodes[ids[nd.ID]]
		if n.op == OpConst {
			continue
		}
		for _, in := range nd.Inputs {
			id, err := ref(nd.ID, in)
			if err != nil {
				return nil, err
			}
			g.AppendInput(n, id)
		}
		anchor, err := ref(nd.ID, nd.Anchor)
		if err != nil {
			return nil, err
		}
		if anchor.IsValid() {
			g.SetAnchor(n, anchor)
		}
		next, err := ref(nd.ID, nd.Next)
		if err != nil {
			return nil, err
		}
		if next.IsValid() {
			g.SetNext(n, next)
		}
		for i, s := range nd.Succs {
			if i > 1 {
				return nil, &DocumentError{Node: nd.ID, Message: "more than two successors"}
			}
			id, err := ref(nd.ID, s)
			if err != nil {
				return nil, err
			}
			g.SetSucc(n, i, id)
		}
		for _, e := range nd.Ends {
			id, err := ref(nd.ID, e)
			if err != nil {
				return nil, err
			}
			g.AddEnd(n, id)
		}
	}
	if err := Verify(g); err != nil {
		return nil, err
	}
	return g, nil
}

func paramFromDoc(pd ParamDoc) (ParamInfo, error) {
	p := ParamInfo{Name: pd.Name, TypeName: pd.Type}
	var ok bool
	if p.Kind, ok = KindByName(pd.Kind); !ok {
		return p, &DocumentError{Message: fmt.Sprintf("param %q: unknown kind %q", pd.Name, pd.Kind)}
	}
	if pd.Elem != "" {
		if p.Elem, ok = KindByName(pd.Elem); !ok {
			return p, &DocumentError{Message: fmt.Sprintf("param %q: unknown elem %q", pd.Name, pd.Elem)}
		}
	}
	if pd.Space != "" {
		if p.Space, ok = SpaceByName(pd.Space); !ok {
			return p, &DocumentError{Message: fmt.Sprintf("param %q: unknown space %q", pd.Name, pd.Space)}
		}
	} else if p.Kind == KindObject {
		p.Space = SpaceGlobal
	}
	return p, nil
}

func payloadFromDoc(n *Node, nd NodeDoc, g *Graph) error {
	var ok bool
	if nd.Elem != "" {
		if n.Elem, ok = KindByName(nd.Elem); !ok {
			return &DocumentError{Node: nd.ID, Message: fmt.Sprintf("unknown elem %q", nd.Elem)}
		}
	}
	if nd.Space != "" {
		if n.Space, ok = SpaceByName(nd.Space); !ok {
			return &DocumentError{Node: nd.ID, Message: fmt.Sprintf("unknown space %q", nd.Space)}
		}
	}
	if nd.Math != "" {
		if n.Math, ok = MathByName(nd.Math); !ok {
			return &DocumentError{Node: nd.ID, Message: fmt.Sprintf("unknown math op %q", nd.Math)}
		}
	}
	n.Index = nd.Index
	n.Name = nd.Name
	n.TypeName = nd.Type
	n.Factor = nd.Factor
	n.NeedsLoad = nd.NeedsLoad
	n.Final = nd.Final
	copy(n.Dims[:], nd.Dims)
	if n.op == OpParam {
		if nd.Index < 0 || nd.Index >= len(g.Params) {
			return &DocumentError{Node: nd.ID, Message: fmt.Sprintf("param index %d out of range", nd.Index)}
		}
		p := g.Params[nd.Index]
		n.Kind, n.Elem, n.Name, n.TypeName, n.Space = p.Kind, p.Elem, p.Name, p.TypeName, p.Space
	}
	return nil
}

func parseValue(kind Kind, s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case kind == KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("invalid bool constant %q", s)
		}
		return BoolValue(b), nil
	case kind.IsFloat() && !kind.IsVector():
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid %s constant %q", kind, s)
		}
		return FloatValue(kind, f), nil
	case kind.IsInteger():
		i, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid %s constant %q", kind, s)
		}
		return IntValue(kind, i), nil
	}
	return Value{}, fmt.Errorf("constants of kind %s are not supported", kind)
}

// canonicalMap converts a document to the generic form MarshalCanonical
// accepts.
func (d Document) canonicalMap() map[string]any {
	params := make([]any, 0, len(d.Params))
	for _, p := range d.Params {
		params = append(params, map[string]any{
			"name": p.Name, "kind": p.Kind, "elem": p.Elem, "type": p.Type, "space": p.Space,
		})
	}
	nodes := make([]any, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		m := map[string]any{"id": n.ID, "op": n.Op}
		put := func(k, v string) {
			if v != "" {
				m[k] = v
			}
		}
		put("kind", n.Kind)
		put("elem", n.Elem)
		put("value", n.Value)
		put("anchor", n.Anchor)
		put("next", n.Next)
		put("name", n.Name)
		put("type", n.Type)
		put("space", n.Space)
		put("math", n.Math)
		for k, list := range map[string][]string{"inputs": n.Inputs, "succs": n.Succs, "ends": n.Ends} {
			if len(list) > 0 {
				arr := make([]any, len(list))
				for i, s := range list {
					arr[i] = s
				}
				m[k] = arr
			}
		}
		if n.Index != 0 {
			m["index"] = n.Index
		}
		if n.Factor != 0 {
			m["factor"] = n.Factor
		}
		if len(n.Dims) > 0 {
			dims := make([]any, len(n.Dims))
			for i, v := range n.Dims {
				dims[i] = v
			}
			m["dims"] = dims
		}
		if n.NeedsLoad {
			m["needs_load"] = true
		}
		if n.Final {
			m["final"] = true
		}
		nodes = append(nodes, m)
	}
	return map[string]any{"name": d.Name, "params": params, "nodes": nodes}
}
