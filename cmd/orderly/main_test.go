package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderly/normalization"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func TestSimulateCurateSeed(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "orderly.db")
	exportDir := filepath.Join(dir, "exports")
	seedPath := filepath.Join(dir, "seeds", "ref_sku_names.csv")
	t.Setenv("ORDERLY_EXPORT_DIR", exportDir)
	t.Setenv("ORDERLY_SEED_PATH", seedPath)
	t.Setenv("ORDERLY_WORKERS", "2")

	out := runCLI(t, "--db", dbPath, "--log-level", "ERROR", "simulate", "--skus", "15", "--vendors", "5", "--seed", "42")
	assert.Contains(t, out, "15 SKU")

	out = runCLI(t, "--db", dbPath, "--log-level", "ERROR", "curate", "--format", "csv,json,xlsx")
	assert.Contains(t, out, "15 сущностей")

	entries, err := os.ReadDir(exportDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	// csv, json, xlsx и отчет
	assert.Len(t, names, 4)
	for _, ext := range []string{".csv", ".json", ".xlsx"} {
		found := false
		for _, name := range names {
			if strings.HasPrefix(name, "sku_name_curation_") && strings.HasSuffix(name, ext) {
				found = true
			}
		}
		assert.True(t, found, "missing %s export in %v", ext, names)
	}

	out = runCLI(t, "--db", dbPath, "--log-level", "ERROR", "seed", "--effective-from", "2026-10-14")
	assert.Contains(t, out, "версия v0.1")

	file, err := os.Open(seedPath)
	require.NoError(t, err)
	rows, err := normalization.ReadSeedCSV(file)
	file.Close()
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
	for _, row := range rows {
		assert.Equal(t, normalization.SeedSourceAuto, row.Source)
		assert.Equal(t, "v0.1", row.Version)
		assert.NotEmpty(t, row.CanonicalName)
	}

	out = runCLI(t, "--db", dbPath, "--log-level", "ERROR", "seed")
	assert.Contains(t, out, "версия v0.2")
}

func TestSeedFromReviewedCSV(t *testing.T) {
	dir := t.TempDir()
	reviewed := filepath.Join(dir, "reviewed.csv")
	seedPath := filepath.Join(dir, "seed.csv")
	require.NoError(t, os.WriteFile(reviewed, []byte(
		"sku_id,final_sku_name,decision\n"+
			"SKU2,USB Hub,AUTO\n"+
			"SKU1,Wireless Keyboard,APPROVED\n"+
			"SKU3,,NEED_APPROVAL\n"), 0o644))

	out := runCLI(t, "--db", filepath.Join(dir, "orderly.db"), "--log-level", "ERROR",
		"seed", "--reviewed", reviewed, "--seed-path", seedPath, "--version", "v1.0")
	assert.Contains(t, out, "добавлено/обновлено 2")

	rows, err := normalization.LoadSeedFile(seedPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "SKU1", rows[0].EntityID)
	assert.Equal(t, normalization.SeedSourceApproved, rows[0].Source)
	assert.Equal(t, "v1.0", rows[1].Version)
}

func TestCurateRejectsUnknownFormat(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "orderly.db"), "curate", "--format", "pdf"})
	assert.Error(t, root.Execute())
}

func TestSimulateTruthEvaluate(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "orderly.db")
	truth := filepath.Join(dir, "truth.csv")
	t.Setenv("ORDERLY_EXPORT_DIR", filepath.Join(dir, "exports"))

	runCLI(t, "--db", dbPath, "--log-level", "ERROR", "simulate", "--skus", "10", "--vendors", "0", "--seed", "7", "--truth", truth)
	rows, err := normalization.LoadSeedFile(truth)
	require.NoError(t, err)
	require.Len(t, rows, 10)

	runCLI(t, "--db", dbPath, "--log-level", "ERROR", "curate")
	out := runCLI(t, "--db", dbPath, "--log-level", "ERROR", "evaluate", "--truth", truth, "--threshold", "50,80")
	assert.Contains(t, out, "Текущие решения")
	assert.Contains(t, out, "evaluated: 10")
	assert.Contains(t, out, "Порог 80.0")
}
