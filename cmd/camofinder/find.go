package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/biogo/hts/sam"
	"github.com/cheggaaa/pb/v3"
	"github.com/scttfrdmn/camofinder/pkg/bam"
	"github.com/scttfrdmn/camofinder/pkg/bed"
	"github.com/scttfrdmn/camofinder/pkg/camo"
	"github.com/scttfrdmn/camofinder/pkg/reference"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var findCmd = &cobra.Command{
	Use:   "find -i <input.bam> -g <reference.fa>",
	Short: "Classify every locus and write camo, dark and incomplete BED files",
	Long: `Walk every locus of every contig in a coordinate-sorted SAM/BAM file and
write regions that are camouflaged, dark or incomplete as BED files.

A locus is classified in this order:
  1. reference base N or n                        -> incomplete
  2. depth <= --dark-depth                         -> dark
  3. share of reads with MAPQ < 10 below
     --min-dark-mapq-mass                          -> not reported
  4. share of those reads with MAPQ <=
     --camo-mapq-threshold >= --min-camo-mapq-mass -> camouflaged
  5. otherwise                                     -> dark

Consecutive loci with the same class are merged into regions; regions
shorter than --min-region-size are not written.

The reference must be indexed with 'samtools faidx'. A BAM index (.bai)
next to the input enables walking contigs in parallel (--workers).

Output paths may be local files, '-' for stdout, or s3://bucket/key.
A .zst suffix writes zstd-compressed output.

Examples:
  camofinder find -i sample.bam -g hg38.fa

  # Treat MAPQ <= 9 as camouflaged, skip regions under 20 bp
  camofinder find -i sample.bam -g hg38.fa -t 9 -s 20

  # Stream from an aligner, per-base detail, upload results
  bwa mem ref.fa r1.fq r2.fq | samtools sort | \
    camofinder find -i - -g ref.fa -c s3://bucket/camo.bed --base-output loci.tsv.zst`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromViper()
		if err != nil {
			return err
		}
		if viper.GetBool("show-config") {
			cfg.ShowConfig(os.Stderr)
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runFind(ctx, cfg)
	},
}

func init() {
	f := findCmd.Flags()

	// Classification arguments
	f.IntP("min-region-size", "s", 1,
		"Minimum region size (bp) to write. Per-base detail is written for every locus regardless")
	f.IntP("camo-mapq-threshold", "t", 0,
		"MAPQ threshold (<=) at which a read is considered camouflaged (0-9)")
	f.IntP("min-dark-mapq-mass", "m", 90,
		"Minimum percentage (>=) of reads with MAPQ < 10 for a locus to be dark")
	f.IntP("min-camo-mapq-mass", "r", 50,
		"Minimum percentage (>=) of dark reads at or below the camo threshold for a locus to be camouflaged")
	f.IntP("dark-depth", "d", 5,
		"Depth (<=) at which a locus is dark regardless of MAPQ")
	f.StringP("validation-stringency", "v", "STRICT",
		"Handling of malformed records: STRICT, LENIENT or SILENT")

	// Input/output arguments
	f.StringP("input", "i", "", "Input SAM or BAM file ('-' for stdin)")
	f.StringP("human-ref", "g", "", "Reference FASTA, indexed with 'samtools faidx'")
	f.StringP("camo-bed-output", "c", "camo.bed", "Output BED for camouflaged regions")
	f.StringP("dark-bed-output", "a", "dark.bed", "Output BED for dark regions")
	f.StringP("incomplete-bed-output", "n", "incomplete.bed", "Output BED for incomplete regions")
	f.String("base-output", "", "Optional per-base detail table for every reported locus")
	f.String("summary", "", "Optional JSON run summary")

	// Execution
	f.StringSlice("contig", nil, "Only walk these contigs (repeatable)")
	f.Int("workers", 0, "Contigs walked in parallel with an indexed BAM (0 = auto-detect)")
	f.Int("exclude-flags", int(bam.DefaultExcludeFlags),
		"Skip reads with any of these SAM flags (unmapped reads are always skipped)")
	f.String("temp-dir", os.TempDir(), "Directory for per-contig spill files")
	f.Bool("progress", false, "Show a progress bar")
	f.Bool("show-config", false, "Print the effective configuration and exit")

	viper.BindPFlags(f)
}

// configFromViper builds the engine configuration from flags, config file
// and environment
func configFromViper() (*camo.Config, error) {
	stringency, err := camo.ParseStringency(viper.GetString("validation-stringency"))
	if err != nil {
		return nil, err
	}

	cfg := &camo.Config{
		MinRegionSize:     viper.GetInt("min-region-size"),
		CamoMapQThreshold: viper.GetInt("camo-mapq-threshold"),
		MinDarkMapQMass:   viper.GetInt("min-dark-mapq-mass"),
		MinCamoMapQMass:   viper.GetInt("min-camo-mapq-mass"),
		DarkDepth:         viper.GetInt("dark-depth"),
		Stringency:        stringency,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runFind(ctx context.Context, cfg *camo.Config) error {
	log := logrus.StandardLogger()

	input := viper.GetString("input")
	refPath := viper.GetString("human-ref")
	if input == "" {
		return &camo.ConfigError{Option: "input", Value: input, Reason: "--input is required"}
	}
	if refPath == "" {
		return &camo.ConfigError{Option: "human-ref", Value: refPath, Reason: "--human-ref is required"}
	}

	workers := viper.GetInt("workers")
	if workers <= 0 {
		workers = camo.DefaultWorkers()
	}

	// Open every input before any output is created
	ref, err := reference.Open(refPath)
	if err != nil {
		return err
	}
	defer ref.Close()

	src, err := bam.Open(input, bam.Options{
		ExcludeFlags: sam.Flags(viper.GetInt("exclude-flags")),
		Stringency:   cfg.Stringency,
		UseIndex:     workers > 1,
		Log:          log,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	contigs := selectedContigs(src.Contigs(), viper.GetStringSlice("contig"))
	if err := ref.CheckContigs(contigs); err != nil {
		return err
	}

	outputs, err := bed.OpenSet(ctx, bed.Paths{
		Camouflaged: viper.GetString("camo-bed-output"),
		Dark:        viper.GetString("dark-bed-output"),
		Incomplete:  viper.GetString("incomplete-bed-output"),
		Loci:        viper.GetString("base-output"),
	})
	if err != nil {
		return err
	}

	opts := camo.Options{
		Workers: workers,
		Contigs: viper.GetStringSlice("contig"),
		TempDir: viper.GetString("temp-dir"),
		Log:     log,
	}

	var bar *pb.ProgressBar
	if viper.GetBool("progress") {
		var total int64
		for _, c := range contigs {
			total += int64(c.Length)
		}
		bar = pb.Full.Start64(total)
		opts.Progress = func(loci int64) { bar.Add64(loci) }
	}

	engine, err := camo.NewEngine(cfg, opts)
	if err != nil {
		outputs.Close()
		return err
	}

	log.WithFields(logrus.Fields{
		"input":   input,
		"indexed": src.Indexed(),
		"contigs": len(contigs),
	}).Info("classifying loci")

	summary, runErr := engine.Run(ctx, src, ref, outputs.Outputs)
	if bar != nil {
		bar.Finish()
	}
	closeErr := outputs.Close()
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finalize outputs: %w", closeErr)
	}

	summary.FilteredReads = src.Filtered()
	logSummary(log, summary)

	if path := viper.GetString("summary"); path != "" {
		if err := writeSummary(ctx, path, summary); err != nil {
			return err
		}
	}
	return nil
}

// selectedContigs mirrors the engine's contig restriction so the
// reference is only checked for contigs that will be walked
func selectedContigs(all []camo.Contig, names []string) []camo.Contig {
	if len(names) == 0 {
		return all
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []camo.Contig
	for _, c := range all {
		if wanted[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

func logSummary(log logrus.FieldLogger, s *camo.Summary) {
	log.WithFields(logrus.Fields{
		"contigs":   s.Contigs,
		"loci":      s.Loci,
		"malformed": s.MalformedReads,
		"filtered":  s.FilteredReads,
		"workers":   s.Workers,
		"elapsed":   s.Elapsed,
	}).Info("classification complete")

	for _, c := range camo.Classes {
		cs := s.Class(c)
		log.WithFields(logrus.Fields{
			"loci":    cs.Loci,
			"regions": cs.Regions,
			"bases":   cs.RegionBases,
			"dropped": cs.Dropped,
		}).Infof("%s regions", c)
	}
}

func writeSummary(ctx context.Context, path string, s *camo.Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	w, err := bed.Create(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		w.Close()
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return w.Close()
}
