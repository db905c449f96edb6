package graphspec

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/runtrace/internal/ir"
)

// CompileGraph parses a CUE value into a GraphDescriptor.
//
// The CUE value should be the graph struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`graph: { nodes: { ... } }`)
//	g, err := CompileGraph(v.LookupPath(cue.ParsePath("graph")))
func CompileGraph(v cue.Value) (*ir.GraphDescriptor, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	g := &ir.GraphDescriptor{}

	var err error
	if g.Title, err = optionalString(v, "title"); err != nil {
		return nil, err
	}
	if g.URL, err = optionalString(v, "url"); err != nil {
		return nil, err
	}

	g.Nodes, err = parseNodes(v)
	if err != nil {
		return nil, err
	}
	if len(g.Nodes) == 0 {
		return nil, &CompileError{
			Field:   "nodes",
			Message: "at least one node is required",
			Pos:     v.Pos(),
		}
	}

	g.Edges, err = parseEdges(v, g)
	if err != nil {
		return nil, err
	}

	return g, nil
}

// parseNodes extracts node descriptors in declaration order.
func parseNodes(v cue.Value) ([]ir.NodeDescriptor, error) {
	nodesVal := v.LookupPath(cue.ParsePath("nodes"))
	if !nodesVal.Exists() {
		return nil, nil
	}

	iter, err := nodesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var nodes []ir.NodeDescriptor
	for iter.Next() {
		node, err := parseNode(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func parseNode(id string, v cue.Value) (ir.NodeDescriptor, error) {
	node := ir.NodeDescriptor{ID: id}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return node, &CompileError{
			Field:   fmt.Sprintf("nodes.%s.type", id),
			Message: "node type is required",
			Pos:     v.Pos(),
		}
	}
	typ, err := typeVal.String()
	if err != nil {
		return node, formatCUEError(err)
	}
	node.Type = typ

	md := ir.NodeMetadata{}
	if md.Title, err = optionalString(v, "title"); err != nil {
		return node, err
	}
	if md.Description, err = optionalString(v, "description"); err != nil {
		return node, err
	}
	if md.Visual, err = optionalObject(v, "visual"); err != nil {
		return node, err
	}
	if md.Title != "" || md.Description != "" || md.Visual != nil {
		node.Metadata = &md
	}

	if node.Configuration, err = optionalObject(v, "configuration"); err != nil {
		return node, err
	}
	return node, nil
}

// parseEdges extracts edges and checks that both ends name declared nodes.
func parseEdges(v cue.Value, g *ir.GraphDescriptor) ([]ir.Edge, error) {
	edgesVal := v.LookupPath(cue.ParsePath("edges"))
	if !edgesVal.Exists() {
		return nil, nil
	}

	iter, err := edgesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var edges []ir.Edge
	for i := 0; iter.Next(); i++ {
		ev := iter.Value()
		field := fmt.Sprintf("edges[%d]", i)

		var edge ir.Edge
		if edge.From, err = requiredString(ev, "from", field); err != nil {
			return nil, err
		}
		if edge.To, err = requiredString(ev, "to", field); err != nil {
			return nil, err
		}
		if edge.Out, err = optionalString(ev, "out"); err != nil {
			return nil, err
		}
		if edge.In, err = optionalString(ev, "in"); err != nil {
			return nil, err
		}
		if cv := ev.LookupPath(cue.ParsePath("constant")); cv.Exists() {
			if edge.Constant, err = cv.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		for _, end := range []struct{ name, id string }{{"from", edge.From}, {"to", edge.To}} {
			if _, ok := g.Node(end.id); !ok {
				return nil, &CompileError{
					Field:   field + "." + end.name,
					Message: fmt.Sprintf("unknown node %q", end.id),
					Pos:     ev.Pos(),
				}
			}
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func requiredString(v cue.Value, name, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalObject(v cue.Value, name string) (ir.Object, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return nil, nil
	}
	val, err := toValue(fv)
	if err != nil {
		return nil, err
	}
	obj, ok := val.(ir.Object)
	if !ok {
		return nil, &CompileError{
			Field:   name,
			Message: "must be a struct",
			Pos:     fv.Pos(),
		}
	}
	return obj, nil
}

// toValue converts a concrete CUE value to a payload value.
func toValue(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(i), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.Array{}
		for iter.Next() {
			elem, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.Object{}
		for iter.Next() {
			elem, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	case cue.FloatKind:
		return nil, &CompileError{
			Field:   "type",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported value kind %s", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError reports an invalid graph definition.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
