package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-indel/internal/assemble"
)

// ResultWriter writes classified indel records as VCF data lines with
// the classification carried in INFO fields.
type ResultWriter struct {
	w     *bufio.Writer
	runID string
}

// NewResultWriter creates a VCF output writer for one run.
func NewResultWriter(w io.Writer, runID string) *ResultWriter {
	return &ResultWriter{w: bufio.NewWriter(w), runID: runID}
}

// WriteHeader writes the VCF meta lines and the #CHROM line.
func (rw *ResultWriter) WriteHeader() error {
	lines := []string{
		"##fileformat=VCFv4.2",
		fmt.Sprintf("##source=vibe-indel run_id=%s", rw.runID),
		"##FILTER=<ID=NtF,Description=\"Candidate not found in alignment evidence\">",
		"##FILTER=<ID=RqN,Description=\"Rescued with a nearby equivalent allele\">",
		"##INFO=<ID=PREDICTION,Number=1,Type=String,Description=\"Predicted class: somatic, germline, or artifact\">",
		"##INFO=<ID=PROB,Number=3,Type=Float,Description=\"Class probabilities in somatic,germline,artifact order\">",
		"##INFO=<ID=COMPLEXITY,Number=1,Type=Integer,Description=\"Number of elementary edits merged into the event\">",
		"##INFO=<ID=SUPPORT,Number=1,Type=Integer,Description=\"Supporting read count\">",
		"##INFO=<ID=DEPTH,Number=1,Type=Integer,Description=\"Read depth at the event\">",
		"##INFO=<ID=RQB,Number=1,Type=String,Description=\"Originally requested allele when a nearby equivalent was substituted\">",
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO",
	}
	for _, line := range lines {
		if _, err := rw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Write writes one record as a VCF line.
func (rw *ResultWriter) Write(r *assemble.Record) error {
	var lb strings.Builder
	lb.Grow(128)

	lb.WriteString(r.Chrom)
	lb.WriteByte('\t')
	lb.WriteString(strconv.FormatInt(r.Pos, 10))
	lb.WriteString("\t.\t")
	lb.WriteString(r.Ref)
	lb.WriteByte('\t')
	lb.WriteString(r.Alt)
	lb.WriteString("\t.\t")

	if r.Outcome == assemble.OutcomeNotFound {
		lb.WriteString("NtF\t.")
		lb.WriteByte('\n')
		_, err := rw.w.WriteString(lb.String())
		return err
	}

	if r.Rescued {
		lb.WriteString("RqN\t")
	} else {
		lb.WriteString("PASS\t")
	}
	lb.WriteString("PREDICTION=")
	lb.WriteString(string(r.Label))
	lb.WriteString(";PROB=")
	lb.WriteString(formatProb(r.Probs.Somatic))
	lb.WriteByte(',')
	lb.WriteString(formatProb(r.Probs.Germline))
	lb.WriteByte(',')
	lb.WriteString(formatProb(r.Probs.Artifact))
	lb.WriteString(";COMPLEXITY=")
	lb.WriteString(strconv.Itoa(r.Complexity))
	lb.WriteString(";SUPPORT=")
	lb.WriteString(strconv.Itoa(r.Support))
	lb.WriteString(";DEPTH=")
	lb.WriteString(strconv.Itoa(r.Depth))
	if r.Rescued && r.Rescue != nil {
		lb.WriteString(";RQB=")
		lb.WriteString(r.Rescue.RequestedChrom)
		lb.WriteByte(':')
		lb.WriteString(strconv.FormatInt(r.Rescue.RequestedPos, 10))
		lb.WriteString(r.Rescue.RequestedRef)
		lb.WriteByte('>')
		lb.WriteString(r.Rescue.RequestedAlt)
	}

	lb.WriteByte('\n')
	_, err := rw.w.WriteString(lb.String())
	return err
}

// Flush flushes the underlying writer.
func (rw *ResultWriter) Flush() error {
	return rw.w.Flush()
}

func formatProb(p float64) string {
	return strconv.FormatFloat(p, 'f', 4, 64)
}
