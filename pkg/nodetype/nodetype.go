// Package nodetype is the static catalogue of pipeline operations.
//
// Every NodeType has exactly one Config holding its port counts and the
// ordered parameter schema. Each type's parameters are a concrete record
// (BlurParams, DeepFryParams, ...) behind the Params interface, so code that
// switches on a node's parameters can be checked for exhaustiveness.
// The numeric values of NodeType are part of the wire format shared with the
// cv executor and must never be renumbered.
package nodetype

import (
	"errors"
	"fmt"
	"strings"
)

// NodeType identifies the operation a node performs.
type NodeType int

const (
	Source NodeType = iota
	Output
	Blur
	DeepFry
)

var ErrUnknownType = errors.New("unknown node type")

var typeNames = map[NodeType]string{
	Source:  "Source",
	Output:  "Output",
	Blur:    "Blur",
	DeepFry: "DeepFry",
}

func (t NodeType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// Valid reports whether t is registered.
func (t NodeType) Valid() bool {
	_, ok := registry[t]
	return ok
}

// Parse accepts a type name (case-insensitive) and returns its NodeType.
func Parse(name string) (NodeType, error) {
	for t, n := range typeNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}
