package schema

import (
	"sort"
	"strings"
)

// NodeKind tags a schema node as an object exposing properties or as a leaf.
type NodeKind int

const (
	// NodeLeaf is any schema value without a usable properties map: scalars,
	// arrays, boolean schemas, or objects without "properties".
	NodeLeaf NodeKind = iota
	// NodeObject is a schema object carrying a "properties" object.
	NodeObject
)

func (k NodeKind) String() string {
	if k == NodeObject {
		return "object"
	}
	return "leaf"
}

// Node is the tagged tree the resolver walks. Only "properties" nesting is
// modelled; every other keyword is ignored.
type Node struct {
	Kind       NodeKind
	Properties map[string]*Node
}

// Build converts a decoded schema payload into a Node tree.
func Build(payload any) *Node {
	object, ok := payload.(map[string]any)
	if !ok {
		return &Node{Kind: NodeLeaf}
	}
	props, ok := object["properties"].(map[string]any)
	if !ok {
		return &Node{Kind: NodeLeaf}
	}

	node := &Node{
		Kind:       NodeObject,
		Properties: make(map[string]*Node, len(props)),
	}
	for key, child := range props {
		node.Properties[key] = Build(child)
	}
	return node
}

// Property returns the child registered under name. Leaves never have
// children.
func (n *Node) Property(name string) (*Node, bool) {
	if n == nil || n.Kind != NodeObject {
		return nil, false
	}
	child, ok := n.Properties[name]
	return child, ok
}

// Paths lists every dotted property path reachable from n, sorted.
func (n *Node) Paths() []string {
	var out []string
	n.collect(nil, &out)
	sort.Strings(out)
	return out
}

func (n *Node) collect(prefix []string, out *[]string) {
	if n == nil || n.Kind != NodeObject {
		return
	}
	for key, child := range n.Properties {
		path := append(append([]string(nil), prefix...), key)
		*out = append(*out, strings.Join(path, "."))
		child.collect(path, out)
	}
}
