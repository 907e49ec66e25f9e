package normalization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sku001() EntityGroup {
	return EntityGroup{
		EntityID: "SKU001",
		Observations: []AliasObservation{
			{RawText: "wireless keyboard black", OccurrenceCount: 2},
			{RawText: "techflow keybord wireles black", OccurrenceCount: 2},
			{RawText: "brand new wireless keyboard black", OccurrenceCount: 2},
			{RawText: "techflow wireless keyboard", OccurrenceCount: 1},
		},
	}
}

func newTestEngine(t *testing.T, opts Options) *CurationEngine {
	t.Helper()
	engine, err := NewCurationEngine(opts)
	require.NoError(t, err)
	return engine
}

func TestCurationEngine_EndToEnd(t *testing.T) {
	engine := newTestEngine(t, DefaultOptions())

	explanation, err := engine.Explain(sku001())
	require.NoError(t, err)

	assert.Equal(t, "keyboard", explanation.RepresentativeMap["keybord"])
	assert.Equal(t, "wireless", explanation.RepresentativeMap["wireles"])
	assert.Equal(t, []string{"keyboard", "wireless"}, explanation.CanonicalTokens)

	record := explanation.Record
	assert.Equal(t, "SKU001", record.EntityID)
	assert.Equal(t, EntityKindSKU, record.Kind)
	assert.Equal(t, DecisionAuto, record.Decision)
	require.NotNil(t, record.FinalCanonicalName)
	assert.Equal(t, "wireless keyboard black", *record.FinalCanonicalName)
	assert.Equal(t, "wireless keyboard black", record.BestMatchText)
	assert.InDelta(t, 85.0, record.MatchScore, 0.01)
	assert.InDelta(t, 79.07, record.RunnerUpScore, 0.01)
	assert.Len(t, record.RankedAliases, 3)
	assert.Len(t, record.RawAliases, 4)
	assert.Equal(t, 7, record.TotalOccurrences)
}

func TestCurationEngine_CanonicalizedAliasText(t *testing.T) {
	engine := newTestEngine(t, DefaultOptions())

	explanation, err := engine.Explain(sku001())
	require.NoError(t, err)

	var typoAlias *RankedAlias
	for i := range explanation.Ranked {
		if explanation.Ranked[i].Text == "techflow keybord wireles black" {
			typoAlias = &explanation.Ranked[i]
		}
	}
	require.NotNil(t, typoAlias)
	assert.Equal(t, "techflow keyboard wireless black", typoAlias.CanonicalizedText)
}

func TestCurationEngine_Deterministic(t *testing.T) {
	engine := newTestEngine(t, CandidateExportOptions())

	first, err := engine.Curate(sku001())
	require.NoError(t, err)
	for range 10 {
		again, err := engine.Curate(sku001())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCurationEngine_InputShape(t *testing.T) {
	tests := []struct {
		name  string
		group EntityGroup
	}{
		{"no observations", EntityGroup{EntityID: "SKU1"}},
		{"only blank aliases", EntityGroup{EntityID: "SKU1", Observations: []AliasObservation{{RawText: "   ", OccurrenceCount: 2}}}},
		{"zero occurrence count", EntityGroup{EntityID: "SKU1", Observations: []AliasObservation{{RawText: "mouse", OccurrenceCount: 0}}}},
		{"empty entity id", EntityGroup{Observations: []AliasObservation{{RawText: "mouse", OccurrenceCount: 1}}}},
		{"unknown kind", EntityGroup{EntityID: "SKU1", Kind: "industry", Observations: []AliasObservation{{RawText: "mouse", OccurrenceCount: 1}}}},
	}

	engine := newTestEngine(t, DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := engine.Curate(tt.group)
			assert.Nil(t, record)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInputShape), "unexpected error: %v", err)
		})
	}
}

func TestCurationEngine_MergesDuplicateAliases(t *testing.T) {
	engine := newTestEngine(t, DefaultOptions())

	record, err := engine.Curate(EntityGroup{
		EntityID: "SKU2",
		Observations: []AliasObservation{
			{RawText: "USB Hub", OccurrenceCount: 1},
			{RawText: "USB Hub ", OccurrenceCount: 2},
			{RawText: "", OccurrenceCount: 4},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"USB Hub"}, record.RawAliases)
	assert.Equal(t, 3, record.TotalOccurrences)
	assert.True(t, record.IsSingleton())
	// Одиночный алиас совпадает со своими каноническими токенами
	assert.Equal(t, DecisionAuto, record.Decision)
}

func TestCurationEngine_EmptyCanonicalTokens(t *testing.T) {
	engine := newTestEngine(t, DefaultOptions())

	record, err := engine.Curate(EntityGroup{
		EntityID: "SKU3",
		Observations: []AliasObservation{
			{RawText: "the", OccurrenceCount: 1},
			{RawText: "&amp; of", OccurrenceCount: 3},
		},
	})
	require.NoError(t, err)

	assert.Empty(t, record.CanonicalTokens)
	assert.Zero(t, record.MatchScore)
	assert.Equal(t, DecisionNeedApproval, record.Decision)
	assert.Equal(t, "&amp; of", record.RankedAliases[0].Text)
}

func TestCurationEngine_VendorProfile(t *testing.T) {
	engine := newTestEngine(t, DefaultOptions())

	record, err := engine.Curate(EntityGroup{
		EntityID: "V001",
		Kind:     EntityKindVendor,
		Observations: []AliasObservation{
			{RawText: "Acme Corp", OccurrenceCount: 3},
			{RawText: "ACME Corporation", OccurrenceCount: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"acme"}, record.CanonicalTokens)
	// Оба варианта сводятся к одному токену, лидер не отрывается от второго места
	assert.Equal(t, DecisionNeedApproval, record.Decision)
	assert.Equal(t, "Acme Corp", record.RankedAliases[0].Text)
}

func TestCurationEngine_WithNormalizer(t *testing.T) {
	stub := stubNormalizer{tokens: []string{"fixed"}}
	engine, err := NewCurationEngine(DefaultOptions(), WithNormalizer(EntityKindSKU, stub))
	require.NoError(t, err)

	record, err := engine.Curate(EntityGroup{EntityID: "SKU4", Observations: []AliasObservation{{RawText: "anything", OccurrenceCount: 1}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"fixed"}, record.CanonicalTokens)
}

type stubNormalizer struct {
	tokens []string
}

func (s stubNormalizer) Normalize(string) []string        { return append([]string(nil), s.tokens...) }
func (s stubNormalizer) VocabularyTokens(string) []string { return append([]string(nil), s.tokens...) }

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Options)
		parameter string
	}{
		{"negative edit distance", func(o *Options) { o.MaxEditDistance = -1 }, "max_edit_distance"},
		{"zero representative length", func(o *Options) { o.MinRepresentativeLength = 0 }, "min_representative_length"},
		{"zero top_m", func(o *Options) { o.TopMCanonicalTokens = 0 }, "top_m_canonical_tokens"},
		{"negative top_k", func(o *Options) { o.TopKRankedAliases = -3 }, "top_k_ranked_aliases"},
		{"threshold above 100", func(o *Options) { o.AutoApprovalThreshold = 120 }, "auto_approval_score_threshold"},
		{"unknown scorer", func(o *Options) { o.Scorer = "jaro" }, "scorer"},
	}

	require.NoError(t, DefaultOptions().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)

			err := opts.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.parameter, cfgErr.Parameter)

			_, err = NewCurationEngine(opts)
			assert.Error(t, err)
		})
	}
}
