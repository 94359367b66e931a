package vcf

import (
	"strings"
	"testing"
)

const testVCF = `##fileformat=VCFv4.2
##INFO=<ID=DP,Number=1,Type=Integer,Description="Depth">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
1	100	.	A	AT	50	PASS	DP=30
1	200	rs123	GAC	G	.	PASS	DP=12;SOMATIC
2	300	.	C	T	99	PASS	DP=44
`

func newTestParser(t *testing.T, body string) *Parser {
	t.Helper()
	p, err := NewParserFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	return p
}

func TestParser_Variants(t *testing.T) {
	p := newTestParser(t, testVCF)

	v, err := p.Next()
	if err != nil {
		t.Fatalf("Failed to read variant: %v", err)
	}
	if v == nil {
		t.Fatal("Expected a variant, got nil")
	}
	if v.Chrom != "1" {
		t.Errorf("Expected chrom 1, got %s", v.Chrom)
	}
	if v.Pos != 100 {
		t.Errorf("Expected pos 100, got %d", v.Pos)
	}
	if v.Ref != "A" || v.Alt != "AT" {
		t.Errorf("Expected A>AT, got %s>%s", v.Ref, v.Alt)
	}
	if !v.IsIndel() || !v.IsInsertion() {
		t.Error("A>AT should be an insertion")
	}
	if v.Info["DP"] != "30" {
		t.Errorf("Expected DP=30, got %v", v.Info["DP"])
	}

	v, err = p.Next()
	if err != nil {
		t.Fatalf("Failed to read second variant: %v", err)
	}
	if v.ID != "rs123" {
		t.Errorf("Expected ID rs123, got %s", v.ID)
	}
	if !v.IsDeletion() {
		t.Error("GAC>G should be a deletion")
	}
	if v.Info["SOMATIC"] != true {
		t.Error("Expected SOMATIC flag in INFO")
	}

	v, err = p.Next()
	if err != nil {
		t.Fatalf("Failed to read third variant: %v", err)
	}
	if v.IsIndel() {
		t.Error("C>T should not be an indel")
	}

	v, err = p.Next()
	if err != nil {
		t.Fatalf("Error checking for more variants: %v", err)
	}
	if v != nil {
		t.Error("Expected no more variants")
	}
}

func TestParser_Header(t *testing.T) {
	p := newTestParser(t, testVCF)

	header := p.Header()
	if len(header) != 3 {
		t.Fatalf("Expected 3 header lines, got %d", len(header))
	}
	if header[0] != "##fileformat=VCFv4.2" {
		t.Errorf("Unexpected first header line: %s", header[0])
	}
	if header[2][:6] != "#CHROM" {
		t.Error("Missing #CHROM header line")
	}
}

func TestParser_MissingHeader(t *testing.T) {
	_, err := NewParserFromReader(strings.NewReader("1\t100\t.\tA\tAT\t.\tPASS\t.\n"))
	if err == nil {
		t.Fatal("Expected error for missing #CHROM header")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("Expected ParseError, got %T", err)
	}
}

func TestParser_InvalidPosition(t *testing.T) {
	p := newTestParser(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n1\tabc\t.\tA\tAT\t.\tPASS\t.\n")

	_, err := p.Next()
	if err == nil {
		t.Fatal("Expected error for invalid position")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("Expected ParseError, got %T", err)
	}
	if pe.Line != 2 {
		t.Errorf("Expected error at line 2, got %d", pe.Line)
	}
}

func TestParser_TooFewColumns(t *testing.T) {
	p := newTestParser(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n1\t100\t.\tA\n")

	_, err := p.Next()
	if err == nil {
		t.Fatal("Expected error for truncated line")
	}
}

func TestSplitMultiAllelic(t *testing.T) {
	tests := []struct {
		name     string
		alt      string
		expected int
	}{
		{"single allele", "AT", 1},
		{"two alleles", "AT,ATT", 2},
		{"three alleles", "AT,ATT,A", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{
				Chrom: "12",
				Pos:   100,
				Ref:   "A",
				Alt:   tt.alt,
			}

			variants := SplitMultiAllelic(v)
			if len(variants) != tt.expected {
				t.Errorf("Expected %d variants, got %d", tt.expected, len(variants))
			}

			// Each variant should have only one alt allele
			for _, split := range variants {
				if strings.Contains(split.Alt, ",") {
					t.Errorf("Split variant should not contain comma in alt: %s", split.Alt)
				}
				if split.Pos != 100 {
					t.Error("Split variants should keep the original position")
				}
			}
		})
	}
}

func TestNormalizeChrom(t *testing.T) {
	if got := (&Variant{Chrom: "chr12"}).NormalizeChrom(); got != "12" {
		t.Errorf("Expected 12, got %s", got)
	}
	if got := (&Variant{Chrom: "12"}).NormalizeChrom(); got != "12" {
		t.Errorf("Expected 12, got %s", got)
	}
}

func TestParseError(t *testing.T) {
	err := &ParseError{
		Line:    42,
		Message: "expected 8 columns, found 7",
	}

	expected := "vcf parse error at line 42: expected 8 columns, found 7"
	if err.Error() != expected {
		t.Errorf("Error message mismatch: got %q, want %q", err.Error(), expected)
	}
}
