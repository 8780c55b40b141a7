package bam

import (
	"errors"
	"fmt"

	"github.com/biogo/hts/sam"
	"github.com/scttfrdmn/camofinder/pkg/camo"
)

// errFiltered marks records skipped by flag, which are not errors
var errFiltered = errors.New("record filtered")

// convert validates a record placed on c and converts it to a camo.Read.
// lastPos tracks the previous start on this contig to detect unsorted input.
func (s *Source) convert(rec *sam.Record, c camo.Contig, lastPos *int) (camo.Read, error) {
	if rec.Flags&sam.Unmapped != 0 || rec.Flags&s.opts.ExcludeFlags != 0 {
		s.filtered.Add(1)
		return camo.Read{}, errFiltered
	}

	if reason := validateRecord(rec, c); reason != "" {
		return camo.Read{}, &camo.MalformedRecordError{
			Contig: c.Name,
			Name:   rec.Name,
			Pos:    rec.Pos,
			Reason: reason,
		}
	}

	if rec.Pos < *lastPos {
		return camo.Read{}, &camo.MalformedRecordError{
			Contig: c.Name,
			Name:   rec.Name,
			Pos:    rec.Pos,
			Reason: fmt.Sprintf("starts before the previous record (%d); input is not coordinate sorted", *lastPos),
		}
	}
	*lastPos = rec.Pos

	return convertRecord(rec), nil
}

// validateRecord returns why a mapped record is structurally invalid,
// or "" if it is usable
func validateRecord(rec *sam.Record, c camo.Contig) string {
	if rec.Pos < 0 {
		return "negative alignment position"
	}
	if len(rec.Cigar) == 0 {
		return "mapped record without CIGAR"
	}
	if n := rec.Seq.Length; n > 0 && !rec.Cigar.IsValid(n) {
		return fmt.Sprintf("CIGAR %s is inconsistent with sequence length %d", rec.Cigar, n)
	}
	if end := rec.End(); end > c.Length {
		return fmt.Sprintf("alignment ends at %d, past contig length %d", end, c.Length)
	}
	return ""
}

// convertRecord converts a sam.Record to the fields the aggregator uses.
// End follows the CIGAR's reference-consuming operations.
func convertRecord(rec *sam.Record) camo.Read {
	return camo.Read{
		Name:  rec.Name,
		Start: rec.Pos,
		End:   rec.End(),
		MapQ:  int(rec.MapQ),
	}
}
