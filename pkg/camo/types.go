package camo

import (
	"fmt"
	"strings"
)

// Classification is the label assigned to a single locus
type Classification uint8

const (
	// None means the locus is not reported
	None Classification = iota
	// Incomplete loci have an unknown reference base
	Incomplete
	// Dark loci have too little depth or too much low-MAPQ mass
	Dark
	// Camouflaged loci are dark loci dominated by multi-mapping reads
	Camouflaged
)

// Classes lists the reported classifications in output order
var Classes = []Classification{Camouflaged, Dark, Incomplete}

func (c Classification) String() string {
	switch c {
	case None:
		return "none"
	case Incomplete:
		return "incomplete"
	case Dark:
		return "dark"
	case Camouflaged:
		return "camo"
	default:
		return fmt.Sprintf("Classification(%d)", uint8(c))
	}
}

// ParseClassification parses the String form of a Classification
func ParseClassification(s string) (Classification, error) {
	switch strings.ToLower(s) {
	case "none":
		return None, nil
	case "incomplete":
		return Incomplete, nil
	case "dark":
		return Dark, nil
	case "camo", "camouflaged":
		return Camouflaged, nil
	}
	return None, fmt.Errorf("unknown classification: %q", s)
}

// LocusStats holds per-position read counts.
// Invariant: 0 <= CamoReads <= DarkReads <= Depth.
type LocusStats struct {
	Depth     int // reads overlapping the locus
	DarkReads int // reads with MAPQ < DarkMapQCutoff
	CamoReads int // reads with MAPQ <= camo threshold
}

// Validate checks the counter invariant
func (s LocusStats) Validate() error {
	if s.CamoReads < 0 || s.CamoReads > s.DarkReads || s.DarkReads > s.Depth {
		return &InvariantError{
			Reason: fmt.Sprintf("inconsistent locus counts depth=%d dark=%d camo=%d",
				s.Depth, s.DarkReads, s.CamoReads),
		}
	}
	return nil
}

// Region is a run of consecutive loci with the same classification.
// Coordinates are 0-based, half-open.
type Region struct {
	Contig string
	Start  int
	End    int
	Class  Classification
}

// Len returns the number of loci in the region
func (r Region) Len() int {
	return r.End - r.Start
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d(%s)", r.Contig, r.Start, r.End, r.Class)
}

// Read is the part of an alignment record the aggregator needs
type Read struct {
	Name  string
	Start int // 0-based leftmost reference position
	End   int // exclusive; Start + reference-consumed CIGAR length
	MapQ  int
}

// Contig describes a reference sequence to walk
type Contig struct {
	Name   string
	Length int
	Index  int // position in the alignment header
}

// LocusRecord is the per-base detail emitted for every reported locus
type LocusRecord struct {
	Contig string
	Pos    int
	Base   byte
	Stats  LocusStats
	Class  Classification
}
