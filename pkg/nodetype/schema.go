package nodetype

import (
	"encoding/json"
	"strconv"

	"github.com/invopop/jsonschema"
)

// Schema renders the parameter schema of t as a JSON Schema object, built
// from the ParamSpecs so the registry stays the single source of truth.
func Schema(t NodeType) *jsonschema.Schema {
	cfg := ConfigFor(t)

	props := jsonschema.NewProperties()
	required := make([]string, 0, len(cfg.Params))
	for _, s := range cfg.Params {
		prop := &jsonschema.Schema{
			Title:       s.Name,
			Description: s.Description,
			Default:     s.Default,
		}
		switch {
		case s.Kind == Toggle:
			prop.Type = "boolean"
		case s.Kind.integral():
			prop.Type = "integer"
		default:
			prop.Type = "number"
		}
		if s.Min != nil {
			prop.Minimum = number(*s.Min)
		}
		if s.Max != nil {
			prop.Maximum = number(*s.Max)
		}
		if len(s.Options) > 0 {
			prop.Enum = s.Options
		}
		props.Set(s.Key, prop)
		required = append(required, s.Key)
	}

	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                cfg.Name,
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

// Descriptor is the public description of a node type: its configuration
// and the JSON Schema of its parameters.
type Descriptor struct {
	Config `yaml:",inline"`
	Schema *jsonschema.Schema `json:"schema" yaml:"-"`
}

// Describe returns a Descriptor for every registered type in wire order.
func Describe() []Descriptor {
	configs := Configs()
	out := make([]Descriptor, len(configs))
	for i, cfg := range configs {
		out[i] = Descriptor{Config: cfg, Schema: Schema(cfg.Type)}
	}
	return out
}

func number(f float64) json.Number {
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
}
