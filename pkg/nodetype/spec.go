package nodetype

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Kind is the editor control used for a parameter. It also fixes the value
// representation: int for IntBox/IntSlider, float64 for NumberBox/NumberSlider,
// bool for Toggle.
type Kind int

const (
	IntBox Kind = iota
	NumberBox
	IntSlider
	NumberSlider
	Toggle
)

var kindNames = map[Kind]string{
	IntBox:       "int_box",
	NumberBox:    "number_box",
	IntSlider:    "int_slider",
	NumberSlider: "number_slider",
	Toggle:       "toggle",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown parameter kind %q", text)
}

func (k Kind) integral() bool { return k == IntBox || k == IntSlider }
func (k Kind) numeric() bool  { return k != Toggle }

// ParamSpec describes one parameter of a node type.
type ParamSpec struct {
	Key         string   `json:"key" yaml:"key"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Kind        Kind     `json:"kind" yaml:"kind"`
	Default     any      `json:"default" yaml:"default"`
	Min         *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Options     []any    `json:"options,omitempty" yaml:"options,omitempty"`
}

func bound(v float64) *float64 { return &v }

// Check reports whether v is a valid value for the parameter in its
// normalized representation.
func (s ParamSpec) Check(v any) error {
	if !s.Kind.numeric() {
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%s: expected bool, got %T", s.Key, v)
		}
		return nil
	}

	f, ok := toFloat(v)
	if !ok {
		return fmt.Errorf("%s: expected number, got %T", s.Key, v)
	}
	if s.Kind.integral() && f != math.Trunc(f) {
		return fmt.Errorf("%s: expected integer, got %v", s.Key, v)
	}
	if s.Min != nil && f < *s.Min {
		return fmt.Errorf("%s: %v below minimum %v", s.Key, v, *s.Min)
	}
	if s.Max != nil && f > *s.Max {
		return fmt.Errorf("%s: %v above maximum %v", s.Key, v, *s.Max)
	}
	if len(s.Options) > 0 && !s.inOptions(f) {
		return fmt.Errorf("%s: %v is not one of %v", s.Key, v, s.Options)
	}
	return nil
}

// Coerce maps an untrusted value onto the parameter's domain. Values of the
// wrong kind and values outside Options fall back to the default; numbers are
// rounded for integer kinds and clamped to Min/Max.
func (s ParamSpec) Coerce(v any) any {
	if !s.Kind.numeric() {
		if b, ok := v.(bool); ok {
			return b
		}
		return s.Default
	}

	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return s.Default
	}
	if s.Kind.integral() {
		f = math.Round(f)
	}
	if s.Min != nil {
		f = math.Max(f, *s.Min)
	}
	if s.Max != nil {
		f = math.Min(f, *s.Max)
	}
	if len(s.Options) > 0 && !s.inOptions(f) {
		return s.Default
	}
	if s.Kind.integral() {
		return int(f)
	}
	return f
}

func (s ParamSpec) inOptions(f float64) bool {
	return slices.ContainsFunc(s.Options, func(o any) bool {
		of, ok := toFloat(o)
		return ok && of == f
	})
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
