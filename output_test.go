package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squash-venue-enrichment/internal/detector"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/internal/processor"
	"squash-venue-enrichment/internal/scorer"
)

func TestParseMinConfidence(t *testing.T) {
	for in, want := range map[string]models.Confidence{
		"HIGH":     models.ConfidenceHigh,
		" medium ": models.ConfidenceMedium,
		"low":      models.ConfidenceLow,
	} {
		got, err := parseMinConfidence(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := parseMinConfidence("certain")
	assert.Error(t, err)
	_, err = parseMinConfidence("")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "error: places unavailable", describe(models.CategorizationResult{Error: "places unavailable"}))
	assert.Equal(t, "no category", describe(models.CategorizationResult{}))

	res := models.CategorizationResult{
		CategoryID:           models.IntPtr(5),
		CategoryName:         "Dedicated Facility",
		Confidence:           models.ConfidenceHigh,
		Source:               models.SourceGoogleMapping,
		MatchedType:          "name_high_confidence",
		CategoryUpdated:      true,
		PlaceIDRefreshed:     true,
		PlaceIDRefreshSource: "Google (free)",
		NameUpdated:          true,
		OldName:              "Riverside SC",
		CourtCountUpdated:    true,
		CourtCount:           &models.CourtCountResult{CourtCount: models.IntPtr(4)},
	}
	got := describe(res)
	assert.Contains(t, got, "set Dedicated Facility (5) HIGH via GOOGLE_MAPPING/name_high_confidence")
	assert.Contains(t, got, "place id refreshed (Google (free))")
	assert.Contains(t, got, `renamed from "Riverside SC"`)
	assert.Contains(t, got, "4 courts")

	res.CategoryUpdated = false
	assert.Contains(t, describe(res), "suggested Dedicated Facility")

	flagged := models.CategorizationResult{VenueFlaggedForDeletion: true, DeletionReason: "no squash courts"}
	assert.Equal(t, "no category; flagged for deletion: no squash courts", describe(flagged))
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "OPENAI/ai", sourceLabel(models.CategorizationResult{Source: models.SourceOpenAI, MatchedType: "ai"}))
	assert.Equal(t, "MANUAL", sourceLabel(models.CategorizationResult{Source: models.SourceManual}))
}

func sampleSummary() *processor.Summary {
	return &processor.Summary{
		RunID:             "3f2a9c1d-run",
		Duration:          1500 * time.Millisecond,
		DryRun:            true,
		Processed:         2,
		CategoriesUpdated: 1,
		Failed:            1,
		Results: []models.CategorizationResult{
			{VenueID: 1, VenueName: "Riverside Squash Club", CategoryID: models.IntPtr(5), CategoryName: "Dedicated Facility", Confidence: models.ConfidenceHigh, Source: models.SourceGoogleMapping, CategoryUpdated: true},
			{VenueID: 2, VenueName: "Old Courts", Error: "place id expired"},
		},
		Unmapped: detector.Report{
			UnmappedVenues: 1,
			Types:          []detector.TypeStats{{Type: "bowling_alley", Count: 1, Samples: []detector.Sample{{VenueID: 3, Name: "Lanes & Courts"}}}},
			Suggestions:    []detector.Suggestion{{Name: "Bowling Centre", Count: 1}},
		},
		Cost: &scorer.CostStats{TotalRequests: 3, TotalTokens: 1200, EstimatedCostUSD: 0.0042},
	}
}

func TestWriteSummary_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, sampleSummary(), "text"))
	out := buf.String()

	assert.Contains(t, out, "Run 3f2a9c1d-run: 2 venues in 1.5s (dry run, nothing written)")
	assert.Contains(t, out, "Riverside Squash Club")
	assert.Contains(t, out, "error: place id expired")
	assert.Contains(t, out, "categories updated:")
	assert.Contains(t, out, "bowling_alley")
	assert.Contains(t, out, "Lanes & Courts")
	assert.Contains(t, out, `suggested category "Bowling Centre" x1`)
	assert.Contains(t, out, "OpenAI: 3 requests, 1200 tokens")
	assert.NotContains(t, out, "interrupted")
}

func TestWriteSummary_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, sampleSummary(), "json"))

	var got processor.Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "3f2a9c1d-run", got.RunID)
	assert.Len(t, got.Results, 2)
	assert.Equal(t, 1, got.Unmapped.UnmappedVenues)
}

func TestWriteResult_Text(t *testing.T) {
	var buf bytes.Buffer
	res := models.CategorizationResult{
		VenueID:    7,
		VenueName:  "Harbour Leisure Centre",
		CategoryID: models.IntPtr(2),
		Confidence: models.ConfidenceMedium,
		Source:     models.SourceGoogleMapping,
		Reasoning:  "multi-sport venue",
		CourtCount: &models.CourtCountResult{Confidence: models.ConfidenceLow, EvidenceFound: true},
	}
	require.NoError(t, writeResult(&buf, res, "text"))
	out := buf.String()
	assert.Contains(t, out, "Venue 7: Harbour Leisure Centre")
	assert.Contains(t, out, "reasoning: multi-sport venue")
	assert.Contains(t, out, "courts: unknown (LOW, evidence=true)")
}
