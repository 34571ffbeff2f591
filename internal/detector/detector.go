// Package detector collects statistics on venues the type mapper could not
// place, so taxonomy gaps can be reviewed after a batch.
package detector

import (
	"sort"
	"strings"
	"sync"

	"squash-venue-enrichment/internal/constants"
	"squash-venue-enrichment/internal/models"
)

// genericTypes carry no information about the facility.
var genericTypes = map[string]bool{
	"point_of_interest": true,
	"establishment":     true,
}

const noTypes = "(no types)"

// Sample identifies one unmapped venue.
type Sample struct {
	VenueID int64  `json:"venue_id"`
	Name    string `json:"name"`
}

// TypeStats counts unmapped venues carrying one Google type.
type TypeStats struct {
	Type    string   `json:"type"`
	Count   int      `json:"count"`
	Samples []Sample `json:"samples"`
}

// Suggestion is a category name the AI proposed, with how often.
type Suggestion struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Report is the end-of-batch view.
type Report struct {
	UnmappedVenues int          `json:"unmapped_venues"`
	Types          []TypeStats  `json:"types"`
	Suggestions    []Suggestion `json:"suggestions,omitempty"`
}

// Empty reports whether nothing was tracked.
func (r Report) Empty() bool { return r.UnmappedVenues == 0 && len(r.Suggestions) == 0 }

// Detector is safe for concurrent use.
type Detector struct {
	mu          sync.Mutex
	seen        map[int64]bool
	types       map[string]*TypeStats
	suggestions map[string]*Suggestion
}

func New() *Detector {
	d := &Detector{}
	d.Reset()
	return d
}

// Reset drops everything tracked so far.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[int64]bool)
	d.types = make(map[string]*TypeStats)
	d.suggestions = make(map[string]*Suggestion)
}

// Track records the venue when the mapping found nothing or only LOW. A
// venue is counted once however often it is tracked.
func (d *Detector) Track(venue models.Venue, snap models.PlacesSnapshot, m models.MappingResult) bool {
	if m.Found() && m.Confidence != models.ConfidenceLow {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[venue.ID] {
		return false
	}
	d.seen[venue.ID] = true

	name := snap.DisplayName
	if name == "" {
		name = venue.Name
	}
	for _, t := range informativeTypes(snap) {
		st, ok := d.types[t]
		if !ok {
			st = &TypeStats{Type: t}
			d.types[t] = st
		}
		st.Count++
		if len(st.Samples) < constants.DetectorSampleVenues {
			st.Samples = append(st.Samples, Sample{VenueID: venue.ID, Name: name})
		}
	}
	return true
}

func informativeTypes(snap models.PlacesSnapshot) []string {
	all := append([]string{snap.PrimaryType}, snap.Types...)
	out := make([]string, 0, len(all))
	dup := make(map[string]bool, len(all))
	for _, t := range all {
		t = strings.TrimSpace(t)
		if t == "" || genericTypes[t] || dup[t] {
			continue
		}
		dup[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		out = append(out, noTypes)
	}
	return out
}

// RecordSuggestion counts a new category name proposed by the AI.
func (d *Detector) RecordSuggestion(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	key := strings.ToLower(name)

	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.suggestions[key]
	if !ok {
		s = &Suggestion{Name: name}
		d.suggestions[key] = s
	}
	s.Count++
}

// Report returns types by descending count (name breaks ties), cut to top
// when top > 0.
func (d *Detector) Report(top int) Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := Report{UnmappedVenues: len(d.seen)}
	for _, st := range d.types {
		cp := *st
		cp.Samples = append([]Sample(nil), st.Samples...)
		r.Types = append(r.Types, cp)
	}
	sort.Slice(r.Types, func(i, j int) bool {
		if r.Types[i].Count != r.Types[j].Count {
			return r.Types[i].Count > r.Types[j].Count
		}
		return r.Types[i].Type < r.Types[j].Type
	})
	if top > 0 && len(r.Types) > top {
		r.Types = r.Types[:top]
	}

	for _, s := range d.suggestions {
		r.Suggestions = append(r.Suggestions, *s)
	}
	sort.Slice(r.Suggestions, func(i, j int) bool {
		if r.Suggestions[i].Count != r.Suggestions[j].Count {
			return r.Suggestions[i].Count > r.Suggestions[j].Count
		}
		return r.Suggestions[i].Name < r.Suggestions[j].Name
	})
	return r
}
