package classify

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/inodb/vibe-indel/internal/features"
)

// Forest is a pure-Go scorer over an ensemble of decision trees
// exported from the training stack as a versioned JSON artifact. Each
// leaf carries a class distribution; tree outputs are averaged and
// renormalized.
type Forest struct {
	schema string
	trees  []tree
}

type tree struct {
	Nodes []treeNode `json:"nodes"`
}

// treeNode is either an internal split (Feature/Threshold/Left/Right)
// or a leaf (Leaf holds [somatic, germline, artifact]).
type treeNode struct {
	Feature   string    `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
	Leaf      []float64 `json:"leaf,omitempty"`
}

type forestArtifact struct {
	Schema  string   `json:"schema"`
	Classes []string `json:"classes"`
	Trees   []tree   `json:"trees"`
}

// LoadForest reads a forest model artifact from disk.
func LoadForest(path string) (*Forest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model artifact: %w", err)
	}
	defer f.Close()
	return ReadForest(f)
}

// ReadForest decodes a forest model artifact.
func ReadForest(r io.Reader) (*Forest, error) {
	var artifact forestArtifact
	if err := json.NewDecoder(r).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}

	if len(artifact.Trees) == 0 {
		return nil, fmt.Errorf("model artifact has no trees")
	}
	if got := artifact.Classes; len(got) != 3 ||
		got[0] != string(LabelSomatic) || got[1] != string(LabelGermline) || got[2] != string(LabelArtifact) {
		return nil, fmt.Errorf("model artifact classes %v, want [somatic germline artifact]", got)
	}

	known := make(map[string]bool)
	for _, name := range features.Names() {
		known[name] = true
	}
	for ti, tr := range artifact.Trees {
		if len(tr.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range tr.Nodes {
			if len(n.Leaf) > 0 {
				if len(n.Leaf) != 3 {
					return nil, fmt.Errorf("tree %d node %d: leaf has %d classes", ti, ni, len(n.Leaf))
				}
				continue
			}
			if !known[n.Feature] {
				return nil, fmt.Errorf("tree %d node %d: unknown feature %q", ti, ni, n.Feature)
			}
			if n.Left < 0 || n.Left >= len(tr.Nodes) || n.Right < 0 || n.Right >= len(tr.Nodes) {
				return nil, fmt.Errorf("tree %d node %d: child index out of range", ti, ni)
			}
		}
	}

	return &Forest{schema: artifact.Schema, trees: artifact.Trees}, nil
}

// Schema returns the feature schema the model was trained on.
func (f *Forest) Schema() string {
	return f.schema
}

// Score averages the class distributions reached in every tree.
func (f *Forest) Score(v *features.Vector) (Probs, error) {
	var sum [3]float64
	for ti := range f.trees {
		leaf, err := f.trees[ti].walk(v)
		if err != nil {
			return Probs{}, fmt.Errorf("tree %d: %w", ti, err)
		}
		for i := 0; i < 3; i++ {
			sum[i] += leaf[i]
		}
	}

	total := sum[0] + sum[1] + sum[2]
	if total <= 0 {
		return Probs{}, fmt.Errorf("degenerate model output: total mass %g", total)
	}
	return Probs{
		Somatic:  sum[0] / total,
		Germline: sum[1] / total,
		Artifact: sum[2] / total,
	}, nil
}

// walk descends from the root to a leaf. Values at or below the split
// threshold go left.
func (t *tree) walk(v *features.Vector) ([]float64, error) {
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[idx]
		if len(n.Leaf) > 0 {
			return n.Leaf, nil
		}
		if v.Get(n.Feature) <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
	return nil, fmt.Errorf("cycle detected in tree traversal")
}
