package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scttfrdmn/camofinder/pkg/camo"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setFlags overrides viper keys for one test and restores defaults after
func setFlags(t *testing.T, values map[string]interface{}) {
	t.Helper()
	for k, v := range values {
		viper.Set(k, v)
	}
	t.Cleanup(func() {
		for k := range values {
			if f := findCmd.Flags().Lookup(k); f != nil {
				viper.Set(k, f.DefValue)
			}
		}
		viper.Set("contig", []string{})
	})
}

func TestFindEndToEnd(t *testing.T) {
	dir := t.TempDir()

	ref := "ACGTACGTACNNNNACGTAC"
	writeFile(t, filepath.Join(dir, "ref.fa"), ">chr1\n"+ref+"\n")
	writeFile(t, filepath.Join(dir, "ref.fa.fai"), fmt.Sprintf("chr1\t%d\t6\t%d\t%d\n", len(ref), len(ref), len(ref)+1))

	var sam strings.Builder
	sam.WriteString("@HD\tVN:1.6\tSO:coordinate\n@SQ\tSN:chr1\tLN:20\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sam, "r%d\t0\tchr1\t1\t0\t10M\t*\t0\t0\tACGTACGTAC\t*\n", i)
	}
	writeFile(t, filepath.Join(dir, "reads.sam"), sam.String())

	setFlags(t, map[string]interface{}{
		"input":                 filepath.Join(dir, "reads.sam"),
		"human-ref":             filepath.Join(dir, "ref.fa"),
		"camo-bed-output":       filepath.Join(dir, "camo.bed"),
		"dark-bed-output":       filepath.Join(dir, "dark.bed"),
		"incomplete-bed-output": filepath.Join(dir, "incomplete.bed"),
		"summary":               filepath.Join(dir, "summary.json"),
		"workers":               1,
		"temp-dir":              dir,
	})

	cfg, err := configFromViper()
	require.NoError(t, err)
	require.NoError(t, runFind(context.Background(), cfg))

	for name, want := range map[string]string{
		"camo.bed":       "chr1\t0\t10\n",
		"incomplete.bed": "chr1\t10\t14\n",
		"dark.bed":       "chr1\t14\t20\n",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, string(data), name)
	}

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)
	var summary camo.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, int64(20), summary.Loci)
	assert.Equal(t, int64(10), summary.Classes["camo"].RegionBases)
	assert.Equal(t, int64(1), summary.Classes["dark"].Regions)
}

func TestFindRequiresInputs(t *testing.T) {
	setFlags(t, map[string]interface{}{"input": "", "human-ref": ""})

	cfg, err := configFromViper()
	require.NoError(t, err)

	err = runFind(context.Background(), cfg)
	var cfgErr *camo.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestFindMissingReferenceIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ref.fa"), ">chr1\nACGT\n")
	writeFile(t, filepath.Join(dir, "reads.sam"), "@HD\tVN:1.6\tSO:coordinate\n@SQ\tSN:chr1\tLN:4\n")

	setFlags(t, map[string]interface{}{
		"input":           filepath.Join(dir, "reads.sam"),
		"human-ref":       filepath.Join(dir, "ref.fa"),
		"camo-bed-output": filepath.Join(dir, "camo.bed"),
	})

	cfg, err := configFromViper()
	require.NoError(t, err)

	err = runFind(context.Background(), cfg)
	var inputErr *camo.InputError
	require.True(t, errors.As(err, &inputErr))

	// Nothing is written when an input is missing
	_, statErr := os.Stat(filepath.Join(dir, "camo.bed"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestConfigFromViperRejectsBadValues(t *testing.T) {
	setFlags(t, map[string]interface{}{"validation-stringency": "PARANOID"})
	_, err := configFromViper()
	var cfgErr *camo.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestConfigFromViperRange(t *testing.T) {
	setFlags(t, map[string]interface{}{"camo-mapq-threshold": 12})
	_, err := configFromViper()
	var cfgErr *camo.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestSelectedContigs(t *testing.T) {
	all := []camo.Contig{{Name: "chr1"}, {Name: "chr2"}, {Name: "chr3"}}
	assert.Equal(t, all, selectedContigs(all, nil))
	assert.Equal(t, []camo.Contig{{Name: "chr1"}, {Name: "chr3"}}, selectedContigs(all, []string{"chr3", "chr1"}))
}

func TestClassForPath(t *testing.T) {
	assert.Equal(t, camo.Camouflaged, classForPath("out/sample.camo.bed"))
	assert.Equal(t, camo.Dark, classForPath("/data/DARK.bed.zst"))
	assert.Equal(t, camo.Incomplete, classForPath("incomplete.bed"))
	assert.Equal(t, camo.None, classForPath("regions.bed"))
}
