package camo

import "fmt"

// Outputs routes regions to the emitter of their classification.
// Any emitter may be nil, in which case its regions are discarded.
type Outputs struct {
	Camouflaged RegionEmitter
	Dark        RegionEmitter
	Incomplete  RegionEmitter

	// Loci receives per-base detail for every reported locus (optional)
	Loci LocusEmitter
}

// EmitRegion implements RegionEmitter
func (o Outputs) EmitRegion(r Region) error {
	var dst RegionEmitter
	switch r.Class {
	case Camouflaged:
		dst = o.Camouflaged
	case Dark:
		dst = o.Dark
	case Incomplete:
		dst = o.Incomplete
	default:
		return &InvariantError{Contig: r.Contig, Pos: r.Start, Reason: fmt.Sprintf("region with class %s", r.Class)}
	}
	if dst == nil {
		return nil
	}
	return dst.EmitRegion(r)
}

// EmitLocus implements LocusEmitter
func (o Outputs) EmitLocus(rec LocusRecord) error {
	if o.Loci == nil {
		return nil
	}
	return o.Loci.EmitLocus(rec)
}

// wantsLoci reports whether per-base detail is requested
func (o Outputs) wantsLoci() bool {
	return o.Loci != nil
}
