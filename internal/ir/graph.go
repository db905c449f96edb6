package ir

// NodeDescriptor describes one step of a pipeline graph.
type NodeDescriptor struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Metadata *NodeMetadata `json:"metadata,omitempty"`

	// Configuration is opaque step configuration. A "schema" entry, when
	// present, describes the step's input or output ports.
	Configuration Object `json:"configuration,omitempty"`
}

// NodeMetadata is display metadata; Visual is carried through untouched.
type NodeMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Visual      Object `json:"visual,omitempty"`
}

// Title returns the display title, falling back to the id.
func (d NodeDescriptor) Title() string {
	if d.Metadata != nil && d.Metadata.Title != "" {
		return d.Metadata.Title
	}
	return d.ID
}

// Schema returns the configured schema, or nil.
func (d NodeDescriptor) Schema() Object {
	schema, _ := d.Configuration.Get("schema").(Object)
	return schema
}

// Clone returns a shallow copy with its own metadata struct.
func (d NodeDescriptor) Clone() NodeDescriptor {
	out := d
	if d.Metadata != nil {
		md := *d.Metadata
		out.Metadata = &md
	}
	return out
}

// Object returns the canonical payload view of the descriptor.
func (d NodeDescriptor) Object() Object {
	obj := Object{
		"id":   String(d.ID),
		"type": String(d.Type),
	}
	if d.Metadata != nil {
		md := Object{}
		if d.Metadata.Title != "" {
			md["title"] = String(d.Metadata.Title)
		}
		if d.Metadata.Description != "" {
			md["description"] = String(d.Metadata.Description)
		}
		if len(d.Metadata.Visual) > 0 {
			md["visual"] = d.Metadata.Visual
		}
		obj["metadata"] = md
	}
	if len(d.Configuration) > 0 {
		obj["configuration"] = d.Configuration
	}
	return obj
}

// Edge is a directed data dependency between two steps.
// Out and In name the ports; "*" on Out means the whole output bundle.
type Edge struct {
	From     string `json:"from"`
	Out      string `json:"out,omitempty"`
	To       string `json:"to"`
	In       string `json:"in,omitempty"`
	Constant bool   `json:"constant,omitempty"`
}

// Object returns the canonical payload view of the edge.
func (e Edge) Object() Object {
	obj := Object{
		"from": String(e.From),
		"out":  String(e.Out),
		"to":   String(e.To),
		"in":   String(e.In),
	}
	if e.Constant {
		obj["constant"] = Bool(true)
	}
	return obj
}

// GraphDescriptor is the static description of a pipeline.
type GraphDescriptor struct {
	Title string           `json:"title,omitempty"`
	URL   string           `json:"url,omitempty"`
	Nodes []NodeDescriptor `json:"nodes,omitempty"`
	Edges []Edge           `json:"edges,omitempty"`
}

// Node returns the descriptor with the given id.
func (g *GraphDescriptor) Node(id string) (NodeDescriptor, bool) {
	if g == nil {
		return NodeDescriptor{}, false
	}
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeDescriptor{}, false
}

// Object returns the canonical payload view of the graph.
func (g GraphDescriptor) Object() Object {
	nodes := make(Array, len(g.Nodes))
	for i, n := range g.Nodes {
		nodes[i] = n.Object()
	}
	edges := make(Array, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = e.Object()
	}
	obj := Object{
		"nodes": nodes,
		"edges": edges,
	}
	if g.Title != "" {
		obj["title"] = String(g.Title)
	}
	if g.URL != "" {
		obj["url"] = String(g.URL)
	}
	return obj
}
