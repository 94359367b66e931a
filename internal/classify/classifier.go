// Package classify applies a pre-trained scoring function to indel
// feature vectors and turns calibrated class probabilities into a final
// label under a documented decision rule.
package classify

import (
	"errors"
	"fmt"

	"github.com/inodb/vibe-indel/internal/features"
)

// Label is the final classification of an indel.
type Label string

const (
	LabelSomatic  Label = "somatic"
	LabelGermline Label = "germline"
	LabelArtifact Label = "artifact"
)

// ErrSchemaMismatch indicates the scorer was trained against a
// different feature schema than this build produces. Fatal at startup.
var ErrSchemaMismatch = errors.New("classifier feature schema mismatch")

// Probs is the calibrated per-class probability triple.
type Probs struct {
	Somatic  float64
	Germline float64
	Artifact float64
}

// Get returns the probability for a label.
func (p Probs) Get(l Label) float64 {
	switch l {
	case LabelSomatic:
		return p.Somatic
	case LabelGermline:
		return p.Germline
	default:
		return p.Artifact
	}
}

// Scorer is the opaque trained model: feature vector in, probability
// triple out. Implementations must be stateless and safe for concurrent
// use; the pipeline invokes one shared Scorer from all region workers.
type Scorer interface {
	// Schema returns the feature schema version the model was trained on.
	Schema() string
	Score(v *features.Vector) (Probs, error)
}

// Decision is the classification outcome with its audit trace.
type Decision struct {
	Label Label
	Probs Probs
	// Trace records why this label was chosen at this confidence.
	Trace string
}

// conservativeOrder is the documented tie-break preference for
// near-equal probabilities: artifact over germline over somatic, so an
// ambiguous call never inflates the somatic set.
var conservativeOrder = []Label{LabelArtifact, LabelGermline, LabelSomatic}

// Classifier wraps a Scorer with the decision rule. It holds no mutable
// state; Classify never modifies its input and may be called from any
// number of goroutines.
type Classifier struct {
	scorer Scorer
	margin float64
}

// New creates a Classifier. The scorer's schema must match the feature
// schema this build produces; a mismatch is a configuration error that
// aborts the whole run. Margin must be in [0, 1).
func New(scorer Scorer, margin float64) (*Classifier, error) {
	if scorer.Schema() != features.SchemaVersion {
		return nil, fmt.Errorf("%w: model schema %q, build schema %q",
			ErrSchemaMismatch, scorer.Schema(), features.SchemaVersion)
	}
	if margin < 0 || margin >= 1 {
		return nil, fmt.Errorf("decision margin must be in [0, 1), got %g", margin)
	}
	return &Classifier{scorer: scorer, margin: margin}, nil
}

// Classify scores the vector and applies the decision rule: the class
// with maximum probability wins; when the top two probabilities differ
// by less than the margin, the conservative order artifact > germline >
// somatic decides between them.
func (c *Classifier) Classify(v *features.Vector) (*Decision, error) {
	probs, err := c.scorer.Score(v)
	if err != nil {
		return nil, fmt.Errorf("score features: %w", err)
	}

	first, second := rankTop2(probs)
	if probs.Get(first)-probs.Get(second) < c.margin {
		label := preferConservative(first, second)
		return &Decision{
			Label: label,
			Probs: probs,
			Trace: fmt.Sprintf("margin tie-break: %s (%.4f) vs %s (%.4f) within %.4f, conservative order chose %s",
				first, probs.Get(first), second, probs.Get(second), c.margin, label),
		}, nil
	}

	return &Decision{
		Label: first,
		Probs: probs,
		Trace: fmt.Sprintf("argmax: %s at %.4f", first, probs.Get(first)),
	}, nil
}

// rankTop2 returns the two highest-probability labels. Exact
// probability ties resolve in conservative order, keeping the rule
// deterministic rather than an artifact of evaluation order.
func rankTop2(p Probs) (Label, Label) {
	ranked := make([]Label, len(conservativeOrder))
	copy(ranked, conservativeOrder)
	if p.Get(ranked[1]) > p.Get(ranked[0]) {
		ranked[0], ranked[1] = ranked[1], ranked[0]
	}
	if p.Get(ranked[2]) > p.Get(ranked[1]) {
		ranked[1], ranked[2] = ranked[2], ranked[1]
	}
	if p.Get(ranked[1]) > p.Get(ranked[0]) {
		ranked[0], ranked[1] = ranked[1], ranked[0]
	}
	return ranked[0], ranked[1]
}

func preferConservative(a, b Label) Label {
	for _, l := range conservativeOrder {
		if l == a || l == b {
			return l
		}
	}
	return a
}
