package nodetype

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Config is the static description of one node type.
type Config struct {
	Type    NodeType    `json:"type" yaml:"type"`
	Name    string      `json:"name" yaml:"name"`
	Inputs  int         `json:"inputs" yaml:"inputs"`
	Outputs int         `json:"outputs" yaml:"outputs"`
	Params  []ParamSpec `json:"params" yaml:"params"`

	decode func(data []byte) (Params, error)
}

// Spec returns the ParamSpec with the given key.
func (c Config) Spec(key string) (ParamSpec, bool) {
	i := slices.IndexFunc(c.Params, func(s ParamSpec) bool { return s.Key == key })
	if i < 0 {
		return ParamSpec{}, false
	}
	return c.Params[i], true
}

func decodeInto[P Params](data []byte) (Params, error) {
	var p P
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

var registry = buildRegistry(
	Config{
		Type:    Source,
		Name:    "Source",
		Inputs:  0,
		Outputs: 1,
		decode:  decodeInto[SourceParams],
	},
	Config{
		Type:    Output,
		Name:    "Output",
		Inputs:  1,
		Outputs: 0,
		decode:  decodeInto[OutputParams],
	},
	Config{
		Type:    Blur,
		Name:    "Blur",
		Inputs:  1,
		Outputs: 1,
		Params: []ParamSpec{
			{
				Key:         "size",
				Name:        "Kernel size",
				Description: "Width and height of the box filter in pixels.",
				Kind:        IntSlider,
				Default:     5,
				Min:         bound(1),
				Max:         bound(99),
			},
		},
		decode: decodeInto[BlurParams],
	},
	// The defaults are the fixed effect of the bundled cv executable, which
	// ignores these params.
	Config{
		Type:    DeepFry,
		Name:    "Deep Fry",
		Inputs:  1,
		Outputs: 1,
		Params: []ParamSpec{
			{
				Key:         "contrast",
				Name:        "Contrast",
				Description: "Gain applied to every channel.",
				Kind:        NumberSlider,
				Default:     2.0,
				Min:         bound(1),
				Max:         bound(4),
			},
			{
				Key:         "brightness",
				Name:        "Brightness",
				Description: "Offset added after the gain.",
				Kind:        IntSlider,
				Default:     50,
				Min:         bound(0),
				Max:         bound(100),
			},
			{
				Key:         "saturation",
				Name:        "Saturation",
				Description: "Multiplier for the HSV saturation channel.",
				Kind:        NumberBox,
				Default:     2.0,
				Min:         bound(0),
				Max:         bound(5),
			},
			{
				Key:         "sharpen",
				Name:        "Sharpen",
				Description: "Run a 3x3 sharpening kernel.",
				Kind:        Toggle,
				Default:     true,
			},
			{
				Key:         "levels",
				Name:        "Posterize levels",
				Description: "Number of intensity levels kept per channel.",
				Kind:        IntBox,
				Default:     4,
				Options:     []any{2, 4, 8, 16},
			},
		},
		decode: decodeInto[DeepFryParams],
	},
)

// buildRegistry panics on a malformed schema. The registry is static, so
// this fails at process start rather than on user input.
func buildRegistry(configs ...Config) map[NodeType]Config {
	r := make(map[NodeType]Config, len(configs))
	for _, c := range configs {
		if _, dup := r[c.Type]; dup {
			panic(fmt.Sprintf("nodetype: %s registered twice", c.Type))
		}
		if c.Inputs < 0 || c.Outputs < 0 {
			panic(fmt.Sprintf("nodetype: %s has negative port count", c.Type))
		}
		if c.Params == nil {
			c.Params = []ParamSpec{}
		}
		seen := make(map[string]bool, len(c.Params))
		for _, s := range c.Params {
			if seen[s.Key] {
				panic(fmt.Sprintf("nodetype: %s declares %q twice", c.Type, s.Key))
			}
			seen[s.Key] = true
			if err := s.Check(s.Default); err != nil {
				panic(fmt.Sprintf("nodetype: %s default: %v", c.Type, err))
			}
		}
		r[c.Type] = c
	}
	return r
}

// ConfigFor returns the configuration of t. Calling it with an unregistered
// type is a programming error and panics; use Lookup for untrusted input.
func ConfigFor(t NodeType) Config {
	c, ok := registry[t]
	if !ok {
		panic(fmt.Sprintf("nodetype: %s is not registered", t))
	}
	return c
}

// Lookup returns the configuration of t if it is registered.
func Lookup(t NodeType) (Config, bool) {
	c, ok := registry[t]
	return c, ok
}

// Types returns every registered type in wire order.
func Types() []NodeType {
	types := make([]NodeType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Configs returns every registered configuration in wire order.
func Configs() []Config {
	types := Types()
	configs := make([]Config, len(types))
	for i, t := range types {
		configs[i] = registry[t]
	}
	return configs
}
