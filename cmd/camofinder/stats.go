package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scttfrdmn/camofinder/pkg/bed"
	"github.com/scttfrdmn/camofinder/pkg/camo"
	"github.com/spf13/cobra"
)

var statsClass string

var statsCmd = &cobra.Command{
	Use:   "stats <regions.bed>...",
	Short: "Show region statistics for camofinder BED output",
	Long: `Display region counts and bases per contig for BED files written by
'camofinder find'. Files ending in .zst are decompressed.

Example:
  camofinder stats camo.bed dark.bed incomplete.bed`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			class := classForPath(path)
			regions, err := bed.ReadFile(cmd.Context(), path, class)
			if err != nil {
				return &camo.InputError{Kind: "BED file", Path: path, Err: err}
			}
			printStats(path, class, regions)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsClass, "class", "",
		"Classification of the input (camo, dark, incomplete); guessed from the file name when empty")
}

// classForPath resolves the classification label for a BED file
func classForPath(path string) camo.Classification {
	if statsClass != "" {
		if c, err := camo.ParseClassification(statsClass); err == nil {
			return c
		}
	}
	name := strings.ToLower(filepath.Base(path))
	for _, c := range camo.Classes {
		if strings.Contains(name, c.String()) {
			return c
		}
	}
	return camo.None
}

type contigStats struct {
	name    string
	regions int
	bases   int64
	longest int
}

func printStats(path string, class camo.Classification, regions []camo.Region) {
	byContig := make(map[string]*contigStats)
	var order []string
	var total int64
	longest := 0
	for _, r := range regions {
		cs, ok := byContig[r.Contig]
		if !ok {
			cs = &contigStats{name: r.Contig}
			byContig[r.Contig] = cs
			order = append(order, r.Contig)
		}
		cs.regions++
		cs.bases += int64(r.Len())
		if r.Len() > cs.longest {
			cs.longest = r.Len()
		}
		total += int64(r.Len())
		if r.Len() > longest {
			longest = r.Len()
		}
	}

	fmt.Println("===========================================")
	fmt.Printf("%s\n", path)
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Printf("Class: %s\n", class)
	fmt.Printf("  Regions: %d\n", len(regions))
	fmt.Printf("  Bases: %d\n", total)
	if len(regions) > 0 {
		fmt.Printf("  Mean region size: %.1f bp\n", float64(total)/float64(len(regions)))
		fmt.Printf("  Longest region: %d bp\n", longest)
	}
	fmt.Println()

	if len(order) == 0 {
		return
	}

	// Largest contribution first
	sort.SliceStable(order, func(i, j int) bool {
		return byContig[order[i]].bases > byContig[order[j]].bases
	})

	fmt.Println("Contigs:")
	for _, name := range order {
		cs := byContig[name]
		fmt.Printf("  %s: %d regions, %d bp (longest %d bp)\n", cs.name, cs.regions, cs.bases, cs.longest)
	}
	fmt.Println()
}
