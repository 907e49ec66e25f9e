package normalization

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadReviewedCSV_HeaderAliases(t *testing.T) {
	input := "SKU ID,Raw Names,Final SKU Name,Decision\n" +
		"SKU1,a | b,Wireless Keyboard, approved \n" +
		"SKU2,c,,NEED_APPROVAL\n"

	rows, err := ReadReviewedCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, ReviewedRow{EntityID: "SKU1", FinalName: "Wireless Keyboard", Decision: "APPROVED"}, rows[0])
	assert.Equal(t, "NEED_APPROVAL", rows[1].Decision)
}

func TestReadReviewedCSV_MissingColumns(t *testing.T) {
	_, err := ReadReviewedCSV(strings.NewReader("entity_id,decision\nSKU1,AUTO\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "final_canonical_name")
}

func TestBuildSeedRows(t *testing.T) {
	reviewed := []ReviewedRow{
		{EntityID: "SKU1", FinalName: "Wireless Keyboard", Decision: "APPROVED"},
		{EntityID: "SKU2", FinalName: "USB Hub", Decision: "AUTO"},
		{EntityID: "SKU3", FinalName: "", Decision: "NEED_APPROVAL"},
		{EntityID: "SKU4", FinalName: "Mouse", Decision: "REJECTED"},
	}

	rows, err := BuildSeedRows(reviewed, "2024-05-01", "v0.1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, SeedRow{EntityID: "SKU1", CanonicalName: "Wireless Keyboard", Source: SeedSourceApproved, EffectiveFrom: "2024-05-01", Version: "v0.1"}, rows[0])
	assert.Equal(t, SeedSourceAuto, rows[1].Source)
}

func TestBuildSeedRows_Validation(t *testing.T) {
	_, err := BuildSeedRows([]ReviewedRow{{EntityID: "SKU1", FinalName: "  ", Decision: "AUTO"}}, "2024-05-01", "v0.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSeedValidation))

	_, err = BuildSeedRows([]ReviewedRow{{EntityID: "", FinalName: "Mouse", Decision: "APPROVED"}}, "2024-05-01", "v0.1")
	assert.True(t, errors.Is(err, ErrSeedValidation))
}

func TestMergeSeed(t *testing.T) {
	existing := []SeedRow{
		{EntityID: "SKU2", CanonicalName: "Approved Name", Source: SeedSourceApproved, Version: "v0.1"},
		{EntityID: "SKU1", CanonicalName: "Old Auto", Source: SeedSourceAuto, Version: "v0.1"},
	}
	incoming := []SeedRow{
		{EntityID: "SKU2", CanonicalName: "Auto Name", Source: SeedSourceAuto, Version: "v0.2"},
		{EntityID: "SKU1", CanonicalName: "New Auto", Source: SeedSourceAuto, Version: "v0.2"},
		{EntityID: "SKU0", CanonicalName: "Fresh", Source: SeedSourceApproved, Version: "v0.2"},
	}

	merged := MergeSeed(existing, incoming)
	require.Len(t, merged, 3)

	assert.Equal(t, []string{"SKU0", "SKU1", "SKU2"}, []string{merged[0].EntityID, merged[1].EntityID, merged[2].EntityID})
	assert.Equal(t, "New Auto", merged[1].CanonicalName)
	assert.Equal(t, "Approved Name", merged[2].CanonicalName, "auto rows must not override approved ones")
}

func TestNextSeedVersion(t *testing.T) {
	tests := []struct {
		name     string
		versions []string
		expected string
	}{
		{"empty seed", nil, "v0.1"},
		{"minor bump", []string{"v0.1", "v0.3", "v0.2"}, "v0.4"},
		{"major only", []string{"v2"}, "v2.1"},
		{"unknown versions", []string{"latest", ""}, "v0.1"},
		{"major wins", []string{"v1.0", "v0.9"}, "v1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []SeedRow
			for _, v := range tt.versions {
				rows = append(rows, SeedRow{EntityID: "X", Version: v})
			}
			assert.Equal(t, tt.expected, NextSeedVersion(rows))
		})
	}
}

func TestSeedCSV_RoundTripKeepsOrder(t *testing.T) {
	rows := []SeedRow{
		{EntityID: "SKU1", CanonicalName: "Wireless Keyboard, Black", Source: SeedSourceApproved, EffectiveFrom: "2024-05-01", Version: "v0.1"},
		{EntityID: "SKU2", CanonicalName: "USB Hub", Source: SeedSourceAuto, EffectiveFrom: "2024-05-01", Version: "v0.1"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSeedCSV(&buf, rows))

	parsed, err := ReadSeedCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, parsed)
}

func TestReadSeedCSV_LegacyHeader(t *testing.T) {
	input := "sku_id,canonical_name,source,effective_from,version\nSKU9,Stapler,auto_ref,2024-01-01,v0.3\n"
	rows, err := ReadSeedCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "SKU9", rows[0].EntityID)

	empty, err := ReadSeedCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ReadSeedCSV(strings.NewReader("entity_id,canonical_name\n"))
	assert.Error(t, err)
}
