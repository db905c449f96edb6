package trace

import (
	"maps"
	"slices"

	"github.com/roach88/runtrace/internal/ir"
)

// Broadcast is the port name that stands for a step's whole output bundle.
const Broadcast = "*"

// EdgeKey is the identity of an edge for value accounting.
//
// An edge whose out port is "*" always has in port "*", whatever its
// nominal in port. Edges that differ only in Constant are distinct.
type EdgeKey struct {
	From     string
	Out      string
	To       string
	In       string
	Constant bool
}

// KeyOf returns the normalized identity of e.
func KeyOf(e ir.Edge) EdgeKey {
	k := EdgeKey{
		From:     e.From,
		Out:      e.Out,
		To:       e.To,
		In:       e.In,
		Constant: e.Constant,
	}
	if k.Out == Broadcast {
		k.In = Broadcast
	}
	return k
}

// String renders the key as "from|out|to|in|c" (c only for constant edges).
func (k EdgeKey) String() string {
	c := ""
	if k.Constant {
		c = "c"
	}
	return k.From + "|" + k.Out + "|" + k.To + "|" + k.In + "|" + c
}

// EdgeValueStore holds the ordered history of values transmitted across each
// edge. It is persistent: recording returns a new store and leaves the
// receiver untouched, so a store captured in a snapshot never changes.
type EdgeValueStore struct {
	values  map[EdgeKey][]ir.Value
	current *ir.Edge
}

// NewEdgeValueStore returns an empty store.
func NewEdgeValueStore() *EdgeValueStore {
	return &EdgeValueStore{values: map[EdgeKey][]ir.Value{}}
}

// RecordAll records one firing of a set of edges that left the same step.
// Each edge carries the whole outputs bundle when its out port is "*" or
// empty, otherwise the outputs field named by the out port. The last edge
// becomes current. A nil outputs bundle records nothing.
func (s *EdgeValueStore) RecordAll(edges []ir.Edge, outputs ir.Object) *EdgeValueStore {
	if outputs == nil || len(edges) == 0 {
		return s
	}
	next := s.clone()
	for _, e := range edges {
		next.append(e, portValue(outputs, e.Out))
	}
	return next
}

// Record records one value arriving over e. inputs is the receiving step's
// input bundle: the edge carries all of it when its out port is "*" or its
// in port is empty, otherwise the field named by the in port.
func (s *EdgeValueStore) Record(e ir.Edge, inputs ir.Object) *EdgeValueStore {
	if inputs == nil {
		return s
	}
	var value ir.Value
	if e.Out == Broadcast || e.In == "" {
		value = inputs
	} else {
		value = fieldOrNull(inputs, e.In)
	}
	next := s.clone()
	next.append(e, value)
	return next
}

// ValuesFor returns the full ordered history for e, or an empty slice if e
// never fired. The returned slice must not be modified.
func (s *EdgeValueStore) ValuesFor(e ir.Edge) []ir.Value {
	if s == nil {
		return []ir.Value{}
	}
	values, ok := s.values[KeyOf(e)]
	if !ok {
		return []ir.Value{}
	}
	return values
}

// Current returns the most recently fired edge.
func (s *EdgeValueStore) Current() (ir.Edge, bool) {
	if s == nil || s.current == nil {
		return ir.Edge{}, false
	}
	return *s.current, true
}

// Len returns the number of distinct edges with a history.
func (s *EdgeValueStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Keys returns the recorded edge identities in a stable order.
func (s *EdgeValueStore) Keys() []EdgeKey {
	if s == nil {
		return []EdgeKey{}
	}
	keys := slices.Collect(maps.Keys(s.values))
	slices.SortFunc(keys, func(a, b EdgeKey) int {
		switch as, bs := a.String(), b.String(); {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	})
	return keys
}

// without returns a store with every history of edges leaving stepID
// removed. Used when a step is about to run again.
func (s *EdgeValueStore) without(stepID string) *EdgeValueStore {
	next := s.clone()
	for k := range next.values {
		if k.From == stepID {
			delete(next.values, k)
		}
	}
	if next.current != nil && next.current.From == stepID {
		next.current = nil
	}
	return next
}

func (s *EdgeValueStore) clone() *EdgeValueStore {
	next := &EdgeValueStore{
		values:  make(map[EdgeKey][]ir.Value, len(s.values)+1),
		current: s.current,
	}
	for k, v := range s.values {
		// Clip so appends on the copy never write into shared backing arrays.
		next.values[k] = slices.Clip(v)
	}
	return next
}

func (s *EdgeValueStore) append(e ir.Edge, value ir.Value) {
	key := KeyOf(e)
	s.values[key] = append(s.values[key], value)
	edge := e
	s.current = &edge
}

func portValue(outputs ir.Object, port string) ir.Value {
	if port == "" || port == Broadcast {
		return outputs
	}
	return fieldOrNull(outputs, port)
}

func fieldOrNull(obj ir.Object, name string) ir.Value {
	if v := obj.Get(name); v != nil {
		return v
	}
	return ir.Null{}
}
