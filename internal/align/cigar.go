package align

import (
	"fmt"
	"strconv"
	"strings"
)

// CIGAR operator bytes as defined by the SAM specification.
const (
	OpMatch    = 'M'
	OpIns      = 'I'
	OpDel      = 'D'
	OpSkip     = 'N'
	OpSoftClip = 'S'
	OpHardClip = 'H'
	OpPad      = 'P'
	OpEqual    = '='
	OpDiff     = 'X'
)

// CigarOp is a single CIGAR operation.
type CigarOp struct {
	Op  byte
	Len int
}

// ConsumesReference reports whether the operator advances the reference position.
func (c CigarOp) ConsumesReference() bool {
	switch c.Op {
	case OpMatch, OpDel, OpSkip, OpEqual, OpDiff:
		return true
	default:
		return false
	}
}

// ConsumesRead reports whether the operator advances the read position.
func (c CigarOp) ConsumesRead() bool {
	switch c.Op {
	case OpMatch, OpIns, OpSoftClip, OpEqual, OpDiff:
		return true
	default:
		return false
	}
}

// ParseCigar parses a CIGAR string like "3M2D9I4M" into operations.
// Returns an error for empty strings, unknown operators, or zero-length ops.
func ParseCigar(s string) ([]CigarOp, error) {
	if s == "" || s == "*" {
		return nil, fmt.Errorf("empty cigar")
	}

	var ops []CigarOp
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			continue
		}
		if start == i {
			return nil, fmt.Errorf("cigar %q: missing length before operator %q", s, s[i])
		}
		n, err := strconv.Atoi(s[start:i])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("cigar %q: invalid length %q", s, s[start:i])
		}
		switch s[i] {
		case OpMatch, OpIns, OpDel, OpSkip, OpSoftClip, OpHardClip, OpPad, OpEqual, OpDiff:
			ops = append(ops, CigarOp{Op: s[i], Len: n})
		default:
			return nil, fmt.Errorf("cigar %q: unknown operator %q", s, s[i])
		}
		start = i + 1
	}
	if start != len(s) {
		return nil, fmt.Errorf("cigar %q: trailing length without operator", s)
	}
	return ops, nil
}

// CigarString renders operations back into CIGAR notation.
func CigarString(ops []CigarOp) string {
	var b strings.Builder
	for _, op := range ops {
		b.WriteString(strconv.Itoa(op.Len))
		b.WriteByte(op.Op)
	}
	return b.String()
}

// ReferenceLength sums the lengths of all operations that consume reference bases.
func ReferenceLength(ops []CigarOp) int {
	var n int
	for _, op := range ops {
		if op.ConsumesReference() {
			n += op.Len
		}
	}
	return n
}
