package relay

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Graph describes the set of nodes attached to a core at startup.
type Graph struct {
	// Workers is the number of dispatch workers. 0 means hardware
	// concurrency.
	Workers uint64 `yaml:"workers"`

	// EraseWorkers is the number of segment eraser workers.
	EraseWorkers uint64 `yaml:"eraseWorkers"`

	Nodes []GraphNode `yaml:"nodes"`
}

// GraphNode is one node instance to load.
type GraphNode struct {
	Name   string `yaml:"name"`
	Plugin string `yaml:"plugin"`
}

// LoadGraph reads and validates a node graph file.
func LoadGraph(path string) (Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Graph{}, errors.Wrapf(err, "reading node graph %q failed", path)
	}
	return ParseGraph(raw)
}

// ParseGraph parses and validates a node graph document.
func ParseGraph(raw []byte) (Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return Graph{}, errors.Wrapf(err, "parsing node graph failed")
	}

	names := map[string]struct{}{}
	for i, n := range g.Nodes {
		if n.Name == "" {
			return Graph{}, errors.Errorf("node %d has no name", i)
		}
		if n.Plugin == "" {
			return Graph{}, errors.Errorf("node %q has no plugin path", n.Name)
		}
		if _, exists := names[n.Name]; exists {
			return Graph{}, errors.Errorf("node name %q is used twice", n.Name)
		}
		names[n.Name] = struct{}{}
	}
	return g, nil
}
