package camo

// Classify assigns a Classification to one locus.
//
// Rules are applied in order:
//  1. an N reference base is Incomplete
//  2. depth <= DarkDepth is Dark
//  3. a dark-read share below MinDarkMapQMass is not reported
//  4. a camo-read share of the dark reads >= MinCamoMapQMass is Camouflaged
//  5. anything else that reached this point is Dark
//
// Percentages are compared in integer arithmetic so boundaries are exact.
func Classify(stats LocusStats, refBase byte, cfg *Config) Classification {
	if refBase == 'N' || refBase == 'n' {
		return Incomplete
	}

	if stats.Depth <= cfg.DarkDepth {
		return Dark
	}

	// 100*dark/depth < min
	if 100*stats.DarkReads < cfg.MinDarkMapQMass*stats.Depth {
		return None
	}

	dark := stats.DarkReads
	if dark < 1 {
		dark = 1
	}
	if 100*stats.CamoReads >= cfg.MinCamoMapQMass*dark {
		return Camouflaged
	}

	return Dark
}

// DarkMassPct returns the share of reads below DarkMapQCutoff, in percent
func (s LocusStats) DarkMassPct() float64 {
	if s.Depth == 0 {
		return 0
	}
	return 100 * float64(s.DarkReads) / float64(s.Depth)
}

// CamoMassPct returns the share of dark reads at camo MAPQ, in percent
func (s LocusStats) CamoMassPct() float64 {
	dark := s.DarkReads
	if dark < 1 {
		dark = 1
	}
	return 100 * float64(s.CamoReads) / float64(dark)
}
