// Package features derives the fixed-schema numeric vector the
// classifier consumes from a reconciled indel and its local context.
package features

import "fmt"

// SchemaVersion identifies the feature layout. Scorers trained against
// a different version must be rejected at startup.
const SchemaVersion = "v1"

// Feature names, in vector order. The order is part of the schema: the
// ONNX scorer feeds the vector positionally.
const (
	VAF             = "vaf"
	IndelLength     = "indel_length"
	Complexity      = "complexity"
	Support         = "support"
	LogDepth        = "log_depth"
	SoftClipRatio   = "softclip_ratio"
	MeanBaseQual    = "mean_base_quality"
	MeanMapQual     = "mean_mapping_quality"
	HomopolymerLen  = "homopolymer_length"
	DinucRepeats    = "dinucleotide_repeats"
	StrandRatio     = "strand_ratio"
	IsInsertion     = "is_insertion"
	FlankGC         = "flank_gc_content"
	PopulationFreq  = "population_frequency"
)

// Names returns the schema's feature names in vector order.
func Names() []string {
	return []string{
		VAF, IndelLength, Complexity, Support, LogDepth,
		SoftClipRatio, MeanBaseQual, MeanMapQual,
		HomopolymerLen, DinucRepeats, StrandRatio, IsInsertion,
		FlankGC, PopulationFreq,
	}
}

// Vector is one indel's feature values, keyed by name. Every schema key
// is always present with a defined numeric value; zero-evidence cases
// take documented defaults so the classifier's input contract is total.
type Vector struct {
	values map[string]float64
}

// NewVector creates a Vector with every schema key set to zero.
func NewVector() *Vector {
	v := &Vector{values: make(map[string]float64, len(Names()))}
	for _, name := range Names() {
		v.values[name] = 0
	}
	return v
}

// Set assigns a feature value. Unknown names panic: they indicate a
// schema programming error, not a data condition.
func (v *Vector) Set(name string, value float64) {
	if _, ok := v.values[name]; !ok {
		panic(fmt.Sprintf("features: %q is not in schema %s", name, SchemaVersion))
	}
	v.values[name] = value
}

// Get returns a feature value.
func (v *Vector) Get(name string) float64 {
	return v.values[name]
}

// Values returns the vector in schema order, for positional scorers.
func (v *Vector) Values() []float64 {
	out := make([]float64, 0, len(v.values))
	for _, name := range Names() {
		out = append(out, v.values[name])
	}
	return out
}

// Map returns a copy of the name -> value mapping, for output assembly.
func (v *Vector) Map() map[string]float64 {
	out := make(map[string]float64, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out
}

// Complete reports whether every schema key is populated. Assembly uses
// this to reject vectors built outside NewVector.
func (v *Vector) Complete() bool {
	if v == nil || v.values == nil {
		return false
	}
	for _, name := range Names() {
		if _, ok := v.values[name]; !ok {
			return false
		}
	}
	return true
}
