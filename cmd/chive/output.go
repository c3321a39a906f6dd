package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chive/backend/pkg/graph"
	"github.com/chive/backend/pkg/project"
)

// dataError marks failures caused by malformed input rather than by the
// environment.
type dataError struct {
	err error
}

func (e dataError) Error() string { return e.err.Error() }
func (e dataError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var de dataError
	if errors.As(err, &de) {
		return ExitDataError
	}
	return ExitError
}

// output writes v to w in the selected format.
func output(w io.Writer, v any) error {
	if outputFormat == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readProject(path string) (project.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return project.Project{}, err
	}
	var p project.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return project.Project{}, dataError{fmt.Errorf("%s: %w", path, err)}
	}
	if err := p.Data.Validate(); err != nil {
		return project.Project{}, dataError{fmt.Errorf("%s: %w", path, err)}
	}
	return p, nil
}

func writeProject(path string, p project.Project) error {
	if p.Data.Nodes == nil {
		p.Data = graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
