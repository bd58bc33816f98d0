// Package task defines the benchmark task descriptors and their loading
// from YAML or JSON task files. Tasks are immutable once loaded and execute
// in the order the file declares them.
package task

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Type names one kind of benchmark work.
type Type string

const (
	// TypeLoadGraph bulk-loads the dataset. It is the only task whose
	// failure aborts the whole run, and the snapshot baseline is captured
	// immediately after it succeeds.
	TypeLoadGraph Type = "load_graph"

	TypeAddVertices      Type = "add_vertices"
	TypeRemoveVertices   Type = "remove_vertices"
	TypeAddEdges         Type = "add_edges"
	TypeRemoveEdges      Type = "remove_edges"
	TypeReadNeighbors    Type = "read_neighbors"
	TypeUpdateProperties Type = "update_properties"
	TypeQueryVertices    Type = "query_vertices"
)

var knownTypes = map[Type]bool{
	TypeLoadGraph:        true,
	TypeAddVertices:      true,
	TypeRemoveVertices:   true,
	TypeAddEdges:         true,
	TypeRemoveEdges:      true,
	TypeReadNeighbors:    true,
	TypeQueryVertices:    true,
	TypeUpdateProperties: true,
}

// Parameters carries the per-type arguments of a task. Unused fields are
// left at their zero value.
type Parameters struct {
	// Source is the dataset path for load_graph.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`

	// Vertices are origin identifiers for vertex-addressed tasks.
	Vertices []string `yaml:"vertices,omitempty" json:"vertices,omitempty"`

	// Edges are origin identifier pairs for edge-addressed tasks.
	Edges [][2]string `yaml:"edges,omitempty" json:"edges,omitempty"`

	// Label is the edge label for add_edges/remove_edges.
	Label string `yaml:"label,omitempty" json:"label,omitempty"`

	// Direction is in, out, or both for read_neighbors.
	Direction string `yaml:"direction,omitempty" json:"direction,omitempty"`

	// Key and Value are used by update_properties and query_vertices.
	Key   string `yaml:"key,omitempty" json:"key,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Workers switches the task into throughput mode when positive.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`

	// TxBatch is the per-worker transaction granularity in throughput
	// mode. Zero means one transaction per slice.
	TxBatch int `yaml:"tx_batch,omitempty" json:"tx_batch,omitempty"`

	// Warmup runs that many singleton operations before the first trial.
	// Warm-up measurements are never reported.
	Warmup int `yaml:"warmup,omitempty" json:"warmup,omitempty"`
}

// Task is one declared unit of benchmark work.
type Task struct {
	Type       Type       `yaml:"task_type" json:"task_type"`
	OpsCount   int        `yaml:"ops_count" json:"ops_count"`
	BatchSizes []int      `yaml:"batch_sizes,omitempty" json:"batch_sizes,omitempty"`
	Parameters Parameters `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Name is the task identifier used in progress events and reports.
func (t Task) Name() string { return string(t.Type) }

// IsLoad reports whether this is the bulk-load task.
func (t Task) IsLoad() bool { return t.Type == TypeLoadGraph }

// Throughput reports whether the task runs in concurrent throughput mode.
func (t Task) Throughput() bool { return t.Parameters.Workers > 0 }

// file is the top-level task file shape.
type file struct {
	Tasks []Task `yaml:"tasks" json:"tasks"`
}

// Load reads an ordered task list from a YAML (or JSON) file, applies
// defaults, and validates every descriptor.
func Load(path string) ([]Task, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse task file %s: %w", path, err)
	}

	for i := range f.Tasks {
		applyDefaults(&f.Tasks[i])

		if err := validate(f.Tasks[i]); err != nil {
			return nil, fmt.Errorf("task %d (%s): %w", i, f.Tasks[i].Type, err)
		}
	}

	return f.Tasks, nil
}

func applyDefaults(t *Task) {
	if len(t.BatchSizes) == 0 {
		t.BatchSizes = []int{1}
	}

	if t.Type == TypeReadNeighbors && t.Parameters.Direction == "" {
		t.Parameters.Direction = "out"
	}
}

func validate(t Task) error {
	if !knownTypes[t.Type] {
		return fmt.Errorf("unknown task type %q", t.Type)
	}

	if t.OpsCount < 0 {
		return fmt.Errorf("ops_count must not be negative, got %d", t.OpsCount)
	}

	for _, bs := range t.BatchSizes {
		if bs <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", bs)
		}
	}

	if t.Parameters.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d",
			t.Parameters.Workers)
	}

	switch t.Type {
	case TypeLoadGraph:
		if t.Parameters.Source == "" {
			return fmt.Errorf("load_graph requires parameters.source")
		}

	case TypeAddEdges, TypeRemoveEdges:
		if t.Parameters.Label == "" {
			return fmt.Errorf("%s requires parameters.label", t.Type)
		}

	case TypeReadNeighbors:
		switch t.Parameters.Direction {
		case "in", "out", "both":
		default:
			return fmt.Errorf(
				"direction must be in, out, or both, got %q",
				t.Parameters.Direction,
			)
		}

	case TypeUpdateProperties, TypeQueryVertices:
		if t.Parameters.Key == "" {
			return fmt.Errorf("%s requires parameters.key", t.Type)
		}
	}

	return nil
}
