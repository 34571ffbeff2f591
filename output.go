package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/internal/processor"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResult(w io.Writer, res models.CategorizationResult, format string) error {
	if format == "json" {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "Venue %d: %s\n", res.VenueID, res.VenueName)
	fmt.Fprintf(w, "  %s\n", describe(res))
	if res.Reasoning != "" {
		fmt.Fprintf(w, "  reasoning: %s\n", res.Reasoning)
	}
	if res.CourtCount != nil {
		cc := res.CourtCount
		count := "unknown"
		if cc.CourtCount != nil {
			count = fmt.Sprint(*cc.CourtCount)
		}
		fmt.Fprintf(w, "  courts: %s (%s, evidence=%t) %s\n", count, cc.Confidence, cc.EvidenceFound, cc.SourceURL)
	}
	return nil
}

// describe is the one-line outcome shown per venue.
func describe(res models.CategorizationResult) string {
	var parts []string
	switch {
	case res.Error != "":
		parts = append(parts, "error: "+res.Error)
	case res.CategoryID == nil:
		parts = append(parts, "no category")
	default:
		verb := "suggested"
		if res.CategoryUpdated {
			verb = "set"
		}
		parts = append(parts, fmt.Sprintf("%s %s (%d) %s via %s", verb, res.CategoryName, *res.CategoryID, res.Confidence, sourceLabel(res)))
	}
	if res.PlaceIDRefreshed {
		parts = append(parts, "place id refreshed ("+res.PlaceIDRefreshSource+")")
	}
	if res.NameUpdated {
		parts = append(parts, fmt.Sprintf("renamed from %q", res.OldName))
	}
	if res.CourtCountUpdated && res.CourtCount != nil && res.CourtCount.CourtCount != nil {
		parts = append(parts, fmt.Sprintf("%d courts", *res.CourtCount.CourtCount))
	}
	if res.VenueFlaggedForDeletion {
		parts = append(parts, "flagged for deletion: "+res.DeletionReason)
	}
	return strings.Join(parts, "; ")
}

func sourceLabel(res models.CategorizationResult) string {
	if res.MatchedType != "" {
		return string(res.Source) + "/" + res.MatchedType
	}
	return string(res.Source)
}

func writeSummary(w io.Writer, sum *processor.Summary, format string) error {
	if format == "json" {
		return writeJSON(w, sum)
	}
	mode := ""
	if sum.DryRun {
		mode = " (dry run, nothing written)"
	}
	fmt.Fprintf(w, "Run %s: %d venues in %s%s\n\n", sum.RunID, sum.Processed, sum.Duration.Round(time.Millisecond), mode)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVENUE\tOUTCOME")
	for _, r := range sum.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.VenueID, r.VenueName, describe(r))
	}
	_ = tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range []struct {
		label string
		n     int
	}{
		{"categories updated", sum.CategoriesUpdated},
		{"unchanged", sum.Unchanged},
		{"below min confidence", sum.BelowConfidence},
		{"failed", sum.Failed},
		{"flagged for deletion", sum.Flagged},
		{"place ids refreshed", sum.PlaceIDsRefreshed},
		{"names updated", sum.NamesUpdated},
		{"context adjusted", sum.ContextAdjusted},
		{"categorized by AI", sum.AICategorized},
		{"court counts searched", sum.CourtCountsSearched},
		{"court counts updated", sum.CourtCountsUpdated},
	} {
		fmt.Fprintf(tw, "%s:\t%d\n", row.label, row.n)
	}
	_ = tw.Flush()
	if sum.Interrupted {
		fmt.Fprintln(w, "run interrupted before the batch finished")
	}

	if !sum.Unmapped.Empty() {
		fmt.Fprintf(w, "\nUnmapped venues: %d\n", sum.Unmapped.UnmappedVenues)
		for _, t := range sum.Unmapped.Types {
			names := make([]string, len(t.Samples))
			for i, s := range t.Samples {
				names[i] = s.Name
			}
			fmt.Fprintf(w, "  %-28s %3d  e.g. %s\n", t.Type, t.Count, strings.Join(names, ", "))
		}
		for _, s := range sum.Unmapped.Suggestions {
			fmt.Fprintf(w, "  suggested category %q x%d\n", s.Name, s.Count)
		}
	}
	if sum.Cost != nil && sum.Cost.TotalRequests > 0 {
		fmt.Fprintf(w, "\nOpenAI: %d requests, %d tokens, ~$%.4f\n", sum.Cost.TotalRequests, sum.Cost.TotalTokens, sum.Cost.EstimatedCostUSD)
	}
	return nil
}
