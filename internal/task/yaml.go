// Package task defines the immutable task graph model that feeds the
// scheduler and orchestrator.
//
// Graphs can be constructed programmatically from []Task or parsed from a
// YAML definition:
//
//	name: nightly-build
//	description: compile, test and package
//	tasks:
//	  - id: compile
//	  - id: unit-tests
//	    depends_on: [compile]
//	    priority: 5
//	    max_attempts: 2
//	  - id: package
//	    depends_on: [unit-tests]
//	    metadata:
//	      command: "make package"
//
// Because YAML is a superset of JSON, the same functions accept JSON
// graph definitions unchanged.
package task

import (
	"fmt"
	"os"

	"github.com/conduct-dev/conduct/internal/types"
	"gopkg.in/yaml.v3"
)

// yamlGraph is the on-disk shape of a graph definition.
type yamlGraph struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Tasks       []yamlTask `yaml:"tasks"`
}

// yamlTask is the on-disk shape of one task entry. Only id is required.
type yamlTask struct {
	ID           string         `yaml:"id"`
	DependsOn    []string       `yaml:"depends_on"`
	Priority     int            `yaml:"priority"`
	MaxAttempts  int            `yaml:"max_attempts"`
	Command      string         `yaml:"command"`
	Metadata     map[string]any `yaml:"metadata"`
}

// ParseGraph parses a YAML (or JSON) graph definition and constructs a
// validated Graph from it. A task's command shorthand, when present, is
// folded into its metadata under the "command" key so the scheduling core
// stays oblivious to it. Graph options, such as WithDefaultMaxAttempts,
// apply to the constructed graph.
func ParseGraph(data []byte, opts ...GraphOption) (*Graph, error) {
	var raw yamlGraph
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, types.WrapError(types.GRAPH_PARSE_FAILED, "failed to parse graph definition", err)
	}

	if len(raw.Tasks) == 0 {
		return nil, types.NewError(types.GRAPH_EMPTY, "graph definition must contain a tasks list")
	}

	tasks := make([]Task, 0, len(raw.Tasks))
	for _, rt := range raw.Tasks {
		t := Task{
			ID:           rt.ID,
			Dependencies: rt.DependsOn,
			Priority:     rt.Priority,
			MaxAttempts:  rt.MaxAttempts,
			Metadata:     rt.Metadata,
		}
		if rt.Command != "" {
			if t.Metadata == nil {
				t.Metadata = make(map[string]any, 1)
			}
			t.Metadata["command"] = rt.Command
		}
		tasks = append(tasks, t)
	}

	return newGraph(raw.Name, raw.Description, tasks, opts...)
}

// ParseGraphFile reads a graph definition from a file and parses it.
func ParseGraphFile(path string, opts ...GraphOption) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.GRAPH_PARSE_FAILED,
			fmt.Sprintf("failed to read graph file %s", path), err)
	}

	return ParseGraph(data, opts...)
}
