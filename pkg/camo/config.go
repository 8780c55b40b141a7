package camo

import (
	"fmt"
	"io"
	"strings"
)

// DarkMapQCutoff is the fixed MAPQ below which a read counts as dark
const DarkMapQCutoff = 10

// Stringency controls how malformed alignment records are handled
type Stringency int

const (
	// Strict aborts the run on the first malformed record
	Strict Stringency = iota
	// Lenient logs a warning and skips the record
	Lenient
	// Silent skips the record without reporting it
	Silent
)

func (s Stringency) String() string {
	switch s {
	case Strict:
		return "STRICT"
	case Lenient:
		return "LENIENT"
	case Silent:
		return "SILENT"
	default:
		return fmt.Sprintf("Stringency(%d)", int(s))
	}
}

// ParseStringency parses STRICT, LENIENT or SILENT (case-insensitive)
func ParseStringency(s string) (Stringency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STRICT":
		return Strict, nil
	case "LENIENT":
		return Lenient, nil
	case "SILENT":
		return Silent, nil
	}
	return Strict, &ConfigError{
		Option: "validation stringency",
		Value:  s,
		Reason: "must be one of STRICT, LENIENT, SILENT",
	}
}

// Config holds the classification thresholds.
// It is built once, validated, and then shared read-only.
type Config struct {
	MinRegionSize     int // minimum emitted region length in bp
	CamoMapQThreshold int // reads with MAPQ <= this are camouflaged
	MinDarkMapQMass   int // percent (>=) of reads with MAPQ < 10 for a dark locus
	MinCamoMapQMass   int // percent (>=) of dark reads at camo MAPQ for a camo locus
	DarkDepth         int // depth (<=) at which a locus is dark regardless of MAPQ
	Stringency        Stringency
}

// NewConfig creates a Config with the documented defaults
func NewConfig() *Config {
	return &Config{
		MinRegionSize:     1,
		CamoMapQThreshold: 0,
		MinDarkMapQMass:   90,
		MinCamoMapQMass:   50,
		DarkDepth:         5,
		Stringency:        Strict,
	}
}

// Validate checks every threshold for range errors
func (c *Config) Validate() error {
	if c.MinRegionSize < 1 {
		return &ConfigError{Option: "min region size", Value: c.MinRegionSize, Reason: "must be >= 1"}
	}
	// A camo read must also be a dark read
	if c.CamoMapQThreshold < 0 || c.CamoMapQThreshold >= DarkMapQCutoff {
		return &ConfigError{
			Option: "camo MAPQ threshold",
			Value:  c.CamoMapQThreshold,
			Reason: fmt.Sprintf("must be between 0 and %d", DarkMapQCutoff-1),
		}
	}
	if c.MinDarkMapQMass < 0 || c.MinDarkMapQMass > 100 {
		return &ConfigError{Option: "min dark MAPQ mass", Value: c.MinDarkMapQMass, Reason: "must be a percentage (0-100)"}
	}
	if c.MinCamoMapQMass < 0 || c.MinCamoMapQMass > 100 {
		return &ConfigError{Option: "min camo MAPQ mass", Value: c.MinCamoMapQMass, Reason: "must be a percentage (0-100)"}
	}
	if c.DarkDepth < 0 {
		return &ConfigError{Option: "dark depth", Value: c.DarkDepth, Reason: "must be >= 0"}
	}
	switch c.Stringency {
	case Strict, Lenient, Silent:
	default:
		return &ConfigError{Option: "validation stringency", Value: c.Stringency, Reason: "unknown value"}
	}
	return nil
}

// ShowConfig prints the effective configuration
func (c *Config) ShowConfig(w io.Writer) {
	fmt.Fprintf(w, "Configuration:\n")
	fmt.Fprintf(w, "  Min region size: %d bp\n", c.MinRegionSize)
	fmt.Fprintf(w, "  Camo MAPQ threshold: <= %d\n", c.CamoMapQThreshold)
	fmt.Fprintf(w, "  Dark MAPQ cutoff: < %d\n", DarkMapQCutoff)
	fmt.Fprintf(w, "  Min dark MAPQ mass: >= %d%%\n", c.MinDarkMapQMass)
	fmt.Fprintf(w, "  Min camo MAPQ mass: >= %d%%\n", c.MinCamoMapQMass)
	fmt.Fprintf(w, "  Dark depth: <= %d\n", c.DarkDepth)
	fmt.Fprintf(w, "  Validation stringency: %s\n", c.Stringency)
}
