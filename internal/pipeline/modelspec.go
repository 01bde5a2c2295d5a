package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/store"
)

// DefaultClassName labels models declared without a class.
const DefaultClassName = "any"

// ModelSpecError reports a model declaration that does not follow the
// class:file[:parent][:min:max] grammar.
type ModelSpecError struct {
	Spec   string
	Reason string
}

func (e *ModelSpecError) Error() string {
	return fmt.Sprintf("invalid model spec %q: %s", e.Spec, e.Reason)
}

// ModelSpec is one parsed model declaration.
type ModelSpec struct {
	ClassName string
	File      string
	// Parent is empty for top-level models.
	Parent string
	// MinOccurrences and MaxOccurrences bound the detections of a child model.
	MinOccurrences int
	MaxOccurrences int
	// MinChildOccurrences and MaxChildOccurrences bound the matched children of a
	// top-level model.
	MinChildOccurrences int
	MaxChildOccurrences int
}

// ModelNode is a top-level model with the child models attached to it.
type ModelNode struct {
	ModelSpec
	Children []*ModelNode

	raw string
}

func newSpec(class, file string) ModelSpec {
	return ModelSpec{
		ClassName:           class,
		File:                file,
		MaxOccurrences:      detector.Unbounded,
		MaxChildOccurrences: detector.Unbounded,
	}
}

// ParseModelSpec parses a colon separated model declaration:
//
//	file
//	class:file
//	class:file:parent
//	class:file:minChild:maxChild
//	class:file:parent:min:max
func ParseModelSpec(s string) (ModelSpec, error) {
	items := strings.Split(s, ":")
	for _, it := range items {
		if it == "" {
			return ModelSpec{}, &ModelSpecError{Spec: s, Reason: "empty field"}
		}
	}

	atoi := func(v, field string) (int, error) {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, &ModelSpecError{Spec: s, Reason: fmt.Sprintf("%s is not an integer: %q", field, v)}
		}
		return n, nil
	}

	switch len(items) {
	case 1:
		return newSpec(DefaultClassName, items[0]), nil
	case 2:
		return newSpec(items[0], items[1]), nil
	case 3:
		m := newSpec(items[0], items[1])
		m.Parent = items[2]
		return m, nil
	case 4:
		m := newSpec(items[0], items[1])
		var err error
		if m.MinChildOccurrences, err = atoi(items[2], "minChild"); err != nil {
			return ModelSpec{}, err
		}
		if m.MaxChildOccurrences, err = atoi(items[3], "maxChild"); err != nil {
			return ModelSpec{}, err
		}
		return m, nil
	case 5:
		m := newSpec(items[0], items[1])
		m.Parent = items[2]
		var err error
		if m.MinOccurrences, err = atoi(items[3], "min"); err != nil {
			return ModelSpec{}, err
		}
		if m.MaxOccurrences, err = atoi(items[4], "max"); err != nil {
			return ModelSpec{}, err
		}
		return m, nil
	default:
		return ModelSpec{}, &ModelSpecError{Spec: s, Reason: fmt.Sprintf("expected 1 to 5 fields, got %d", len(items))}
	}
}

// ParseModelSpecs parses every declaration and arranges them into top-level nodes
// sorted by class name. Children are sorted by class name too. A later declaration of
// the same class replaces the earlier one.
func ParseModelSpecs(specs []string) ([]*ModelNode, error) {
	top := map[string]*ModelNode{}
	children := map[string]map[string]*ModelNode{}

	for _, s := range specs {
		m, err := ParseModelSpec(s)
		if err != nil {
			return nil, err
		}
		if m.Parent == "" {
			top[m.ClassName] = &ModelNode{ModelSpec: m}
			continue
		}
		if children[m.Parent] == nil {
			children[m.Parent] = map[string]*ModelNode{}
		}
		children[m.Parent][m.ClassName] = &ModelNode{ModelSpec: m, raw: s}
	}

	for _, parent := range sortedKeys(children) {
		kids := children[parent]
		names := sortedKeys(kids)
		node, ok := top[parent]
		if !ok {
			return nil, &ModelSpecError{Spec: kids[names[0]].raw, Reason: fmt.Sprintf("parent class %q is not declared", parent)}
		}
		for _, name := range names {
			node.Children = append(node.Children, kids[name])
		}
	}

	out := make([]*ModelNode, 0, len(top))
	for _, name := range sortedKeys(top) {
		out = append(out, top[name])
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Record converts the node into its persisted form.
func (n *ModelNode) Record() store.Model {
	m := store.Model{
		ClassName:           n.ClassName,
		File:                n.File,
		MinOccurrences:      n.MinOccurrences,
		MaxOccurrences:      n.MaxOccurrences,
		MinChildOccurrences: n.MinChildOccurrences,
		MaxChildOccurrences: n.MaxChildOccurrences,
	}
	for _, c := range n.Children {
		m.Children = append(m.Children, c.Record())
	}
	return m
}
