package vcf

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Population holds cohort allele frequencies loaded from a population
// VCF (gnomAD-style AF INFO field). Lookups are keyed by normalized
// allele; alleles absent from the cohort report frequency 0.
type Population struct {
	freqs   map[string]float64
	skipped int
}

// LoadPopulation reads the whole population VCF at path.
func LoadPopulation(path string) (*Population, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	return readPopulation(p)
}

// ReadPopulation loads population frequencies from an io.Reader.
func ReadPopulation(r io.Reader) (*Population, error) {
	p, err := NewParserFromReader(r)
	if err != nil {
		return nil, err
	}
	return readPopulation(p)
}

func readPopulation(p *Parser) (*Population, error) {
	pop := &Population{freqs: make(map[string]float64)}
	for {
		v, err := p.Next()
		if err != nil {
			return nil, err
		}
		if v == nil {
			break
		}

		// AF values on a multi-allelic line are index-matched to the alts,
		// so the line is split by hand rather than via SplitMultiAllelic.
		alts := strings.Split(v.Alt, ",")
		afs := parseAFList(v.Info, len(alts))
		chrom := v.NormalizeChrom()
		for i, alt := range alts {
			sv := &Variant{Ref: v.Ref, Alt: alt}
			if !sv.IsIndel() {
				pop.skipped++
				continue
			}
			pop.freqs[popKey(chrom, v.Pos, v.Ref, alt)] = afs[i]
		}
	}
	return pop, nil
}

// parseAFList expands the AF INFO value into one frequency per alt.
// Missing or malformed entries default to 0.
func parseAFList(info map[string]interface{}, n int) []float64 {
	out := make([]float64, n)
	raw, ok := info["AF"].(string)
	if !ok {
		return out
	}
	for i, tok := range strings.Split(raw, ",") {
		if i >= n {
			break
		}
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			out[i] = f
		}
	}
	return out
}

// PopulationFrequency returns the cohort allele frequency, or 0 when
// the allele was not seen in the cohort.
func (p *Population) PopulationFrequency(chrom string, pos int64, ref, alt string) float64 {
	v := Variant{Chrom: chrom}
	return p.freqs[popKey(v.NormalizeChrom(), pos, ref, alt)]
}

// Len returns the number of loaded indel alleles.
func (p *Population) Len() int {
	return len(p.freqs)
}

// Skipped returns the number of non-indel alleles dropped during load.
func (p *Population) Skipped() int {
	return p.skipped
}

func popKey(chrom string, pos int64, ref, alt string) string {
	return fmt.Sprintf("%s:%d:%s:%s", chrom, pos, ref, alt)
}
