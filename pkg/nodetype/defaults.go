package nodetype

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultParams returns the parameter record of t with every field at its
// schema default.
func DefaultParams(t NodeType) Params {
	cfg := ConfigFor(t)
	p, err := fromValues(cfg, defaultValues(cfg))
	if err != nil {
		panic(fmt.Sprintf("nodetype: %s defaults do not fit its record: %v", t, err))
	}
	return p
}

// DefaultValues returns the default parameter map of t, keyed exactly by the
// schema keys.
func DefaultValues(t NodeType) map[string]any {
	return defaultValues(ConfigFor(t))
}

func defaultValues(cfg Config) map[string]any {
	values := make(map[string]any, len(cfg.Params))
	for _, s := range cfg.Params {
		values[s.Key] = s.Default
	}
	return values
}

// DecodeParams builds the record of t from an untrusted JSON object.
// Unknown keys are dropped, missing keys take their default and every value is
// passed through ParamSpec.Coerce. A params value that is not a JSON object is
// treated as empty.
func DecodeParams(t NodeType, raw json.RawMessage) (Params, error) {
	cfg, ok := Lookup(t)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}

	in := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&in); err != nil {
			in = map[string]any{}
		}
	}

	values := make(map[string]any, len(cfg.Params))
	for _, s := range cfg.Params {
		v, present := in[s.Key]
		if !present {
			values[s.Key] = s.Default
			continue
		}
		values[s.Key] = s.Coerce(v)
	}
	return fromValues(cfg, values)
}

// Values flattens a record into its schema-keyed map, with ints for integer
// kinds and float64 for number kinds.
func Values(p Params) map[string]any {
	cfg := ConfigFor(p.NodeType())
	raw := rawValues(p)
	values := make(map[string]any, len(cfg.Params))
	for _, s := range cfg.Params {
		if v, ok := raw[s.Key]; ok {
			values[s.Key] = s.Coerce(v)
		}
	}
	return values
}

// Validate checks every field of p against its spec.
func Validate(p Params) error {
	cfg, ok := Lookup(p.NodeType())
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownType, int(p.NodeType()))
	}
	raw := rawValues(p)
	for _, s := range cfg.Params {
		v, ok := raw[s.Key]
		if !ok {
			return fmt.Errorf("%s: missing %q", cfg.Type, s.Key)
		}
		if err := s.Check(v); err != nil {
			return fmt.Errorf("%s: %w", cfg.Type, err)
		}
	}
	return nil
}

func rawValues(p Params) map[string]any {
	data, err := json.Marshal(p)
	if err != nil {
		panic(fmt.Sprintf("nodetype: marshal %s params: %v", p.NodeType(), err))
	}
	raw := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		panic(fmt.Sprintf("nodetype: decode %s params: %v", p.NodeType(), err))
	}
	return raw
}

func fromValues(cfg Config, values map[string]any) (Params, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return cfg.decode(data)
}
