package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"squash-venue-enrichment/internal/constants"
	"squash-venue-enrichment/internal/domain"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/internal/scraper"
	"squash-venue-enrichment/internal/updater"
	"squash-venue-enrichment/internal/venuecontext"
	"squash-venue-enrichment/pkg/logging"
)

// Options control one venue's run.
type Options struct {
	// MinConfidence gates category persistence in the caller. The
	// orchestrator itself never gates on it.
	MinConfidence models.Confidence
	// DryRun computes everything and writes nothing. Result flags then say
	// what would have been written.
	DryRun          bool
	SkipCourtCounts bool
	// Actor is recorded on audit rows; empty uses the updater's default.
	Actor string

	// tracker overrides Deps.Tracker for one batch.
	tracker UnmappedTracker
}

// Capabilities are the optional collaborators present, fixed at construction.
type Capabilities struct {
	AIFallback  bool
	CourtCounts bool
}

// Outcome says whether a stage ended the run.
type Outcome int

const (
	Next Outcome = iota // defer to the next stage
	Done                // terminal
)

// Stage is one step of the per-venue pipeline.
type Stage struct {
	Name string
	Run  func(ctx context.Context, r *run) Outcome
}

// run is the mutable state of one venue's pass through the stages.
type run struct {
	venue  models.Venue
	snap   models.PlacesSnapshot
	opts   Options
	result models.CategorizationResult
	notes  []string
}

func (r *run) note(format string, args ...any) {
	r.notes = append(r.notes, fmt.Sprintf(format, args...))
}

func (r *run) fail(reason EarlyExitReason) Outcome {
	r.result.Error = reason.Description
	r.result.ExitCode = reason.Code
	return Done
}

// Deps are the orchestrator's collaborators. AI, Courts and Tracker may be
// nil. Batches always track into a detector of their own.
type Deps struct {
	Venues   domain.VenueRepository
	Places   PlacesGateway
	Mapper   TypeMapper
	Context  ContextAnalyzer
	AI       AICategorizer
	Courts   CourtCounter
	Tracker  UnmappedTracker
	Updater  VenueUpdater
	Taxonomy *models.Taxonomy
}

// Orchestrator runs the categorization pipeline for one venue at a time.
type Orchestrator struct {
	d      Deps
	caps   Capabilities
	stages []Stage
	log    *logging.ComponentLogger
}

func NewOrchestrator(d Deps, log *logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.Nop()
	}
	if d.Taxonomy == nil {
		d.Taxonomy = models.DefaultTaxonomy()
	}
	o := &Orchestrator{
		d:    d,
		caps: Capabilities{AIFallback: d.AI != nil, CourtCounts: d.Courts != nil},
		log:  log.WithComponent("orchestrator"),
	}
	o.stages = []Stage{
		{Name: "guard", Run: o.guard},
		{Name: "fetch_details", Run: o.fetchDetails},
		{Name: "reconcile_name", Run: o.reconcileName},
		{Name: "classify", Run: o.classify},
		{Name: "court_count", Run: o.enrichCourtCount},
	}
	return o
}

// Capabilities reports which optional collaborators are wired.
func (o *Orchestrator) Capabilities() Capabilities { return o.caps }

// Stages lists the pipeline stage names in order.
func (o *Orchestrator) Stages() []string {
	names := make([]string, len(o.stages))
	for i, s := range o.stages {
		names[i] = s.Name
	}
	return names
}

// Categorize runs every stage until one is terminal and returns the full
// result. Failures are reported in the result, never as a panic or error.
func (o *Orchestrator) Categorize(ctx context.Context, venue models.Venue, opts Options) models.CategorizationResult {
	r := &run{
		venue: venue,
		opts:  opts,
		result: models.CategorizationResult{
			VenueID:            venue.ID,
			VenueName:          venue.Name,
			PreviousCategoryID: venue.CategoryID,
			Confidence:         models.ConfidenceLow,
		},
	}
	for _, st := range o.stages {
		if st.Run(ctx, r) == Done {
			o.log.Debug("pipeline ended", logging.Int64("venue_id", venue.ID), logging.String("stage", st.Name))
			break
		}
	}

	res := r.result
	res.CategoryName = o.d.Taxonomy.NameOf(res.CategoryID)
	if len(r.notes) > 0 {
		res.Reasoning = joinReasons(append([]string{res.Reasoning}, r.notes...)...)
	}
	return res
}

func joinReasons(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "; ")
}

// tracker is the batch's own tracker when one is set, else Deps.Tracker,
// which may be nil.
func (o *Orchestrator) tracker(r *run) UnmappedTracker {
	if r.opts.tracker != nil {
		return r.opts.tracker
	}
	return o.d.Tracker
}

func (o *Orchestrator) guard(ctx context.Context, r *run) Outcome {
	if skip, reason := checkVenueState(&r.venue); skip {
		return r.fail(reason)
	}
	if skip, reason := checkPlaceID(&r.venue); skip {
		return r.fail(reason)
	}
	return Next
}

func (o *Orchestrator) fetchDetails(ctx context.Context, r *run) Outcome {
	snap, err := o.d.Places.GetDetails(ctx, r.venue.GPlaceID)
	if err == nil {
		o.accept(r, snap)
		return Next
	}
	// Only a definite "no such place" justifies repair; outages and open
	// breakers end the run without side effects.
	if !scraper.IsPermanent(err) {
		o.log.Warn("place details unavailable", logging.Int64("venue_id", r.venue.ID), logging.Error(err))
		return r.fail(PlacesUnavailable(err))
	}
	o.log.Info("place details failed, repairing place id",
		logging.Int64("venue_id", r.venue.ID),
		logging.String("place_id", r.venue.GPlaceID),
		logging.Error(err))
	return o.repairPlaceID(ctx, r)
}

func (o *Orchestrator) accept(r *run, snap *models.PlacesSnapshot) {
	r.snap = *snap
	r.result.GooglePrimaryType = snap.PrimaryType
	r.result.GoogleTypes = snap.Types
	if snap.PermanentlyClosed() {
		r.note("Google reports this place as permanently closed")
	}
}

func (o *Orchestrator) reconcileName(ctx context.Context, r *run) Outcome {
	name := strings.TrimSpace(r.snap.DisplayName)
	if name == "" || name == strings.TrimSpace(r.venue.Name) {
		return Next
	}
	if !r.opts.DryRun {
		if err := o.d.Venues.UpdateNameCtx(ctx, r.venue.ID, name); err != nil {
			o.log.Warn("rename failed", logging.Int64("venue_id", r.venue.ID), logging.Error(err))
			r.note("rename to %q failed", name)
			return Next
		}
	}
	r.result.NameUpdated = true
	r.result.OldName = r.venue.Name
	r.result.NewName = name
	r.venue.Name = name
	r.result.VenueName = name
	return Next
}

func (o *Orchestrator) classify(ctx context.Context, r *run) Outcome {
	res := &r.result

	mapping := o.d.Mapper.MapToCategory(ctx, r.snap)
	cr := o.d.Context.AnalyzeContext(ctx, r.venue, r.snap)
	adj := venuecontext.AdjustCategoryForContext(mapping, cr)

	res.CategoryID = adj.CategoryID
	res.Confidence = adj.Confidence
	res.Reasoning = adj.Reasoning
	res.MatchedType = mapping.MatchedType
	res.SubVenue = cr.IsSubVenue
	res.ContextAdjusted = adj.Adjusted
	if adj.CategoryID != nil {
		res.Source = models.SourceGoogleMapping
	}

	if adj.CategoryID == nil || adj.Confidence == models.ConfidenceLow {
		if t := o.tracker(r); t != nil {
			t.Track(r.venue, r.snap, models.MappingResult{
				CategoryID: adj.CategoryID, Confidence: adj.Confidence, Reasoning: adj.Reasoning, MatchedType: mapping.MatchedType,
			})
		}
	}
	if adj.Confidence != models.ConfidenceLow || !o.caps.AIFallback {
		return Next
	}

	ai := o.d.AI.Categorize(ctx, r.venue, r.snap, adj.Reasoning)
	res.AISuggestedCategory = ai.SuggestedCategory
	if ai.SuggestNewCategory {
		res.AISuggestNew = true
		if t := o.tracker(r); t != nil {
			t.RecordSuggestion(ai.SuggestedCategory)
		}
	}
	if ai.CategoryID == nil {
		r.note("AI: %s", ai.Reasoning)
		return Next
	}
	res.CategoryID = ai.CategoryID
	res.Confidence = ai.Confidence
	res.Reasoning = ai.Reasoning
	res.Source = models.SourceOpenAI
	res.MatchedType = "ai"
	return Next
}

func (o *Orchestrator) enrichCourtCount(ctx context.Context, r *run) Outcome {
	if !o.caps.CourtCounts || r.opts.SkipCourtCounts || r.venue.HasCourtCount() {
		return Next
	}
	if r.venue.CourtCountSearchedWithin(constants.CourtCountRecheckAfter, time.Now()) {
		r.note("court count searched recently, not repeated")
		return Next
	}
	res := &r.result

	cc, err := o.d.Courts.AnalyzeCourtCount(ctx, r.venue, r.snap)
	if err != nil {
		o.log.Warn("court count search failed", logging.Int64("venue_id", r.venue.ID), logging.Error(err))
		r.note("court count search failed")
		return Next
	}
	res.CourtCountSearched = true
	res.CourtCount = &cc

	if cc.Applicable() {
		res.CourtCountUpdated = o.writeCourtCount(ctx, r, cc)
	} else if !r.opts.DryRun {
		if err := o.d.Venues.MarkCourtCountSearchedCtx(ctx, r.venue.ID); err != nil {
			o.log.Warn("mark court count searched failed", logging.Int64("venue_id", r.venue.ID), logging.Error(err))
		}
	}

	if !cc.EvidenceFound {
		o.flag(ctx, r, updater.ReasonNoSquashCourts, joinReasons("No evidence of squash courts found", cc.Reasoning))
		return Done
	}
	return Next
}

func (o *Orchestrator) writeCourtCount(ctx context.Context, r *run, cc models.CourtCountResult) bool {
	if r.opts.DryRun {
		return true
	}
	reason := cc.Reasoning
	if cc.SourceURL != "" {
		reason = joinReasons(reason, "source: "+cc.SourceURL)
	}
	u := o.d.Updater.UpdateCourtCount(ctx, r.venue.ID, *cc.CourtCount, domain.AuditMeta{
		Confidence: cc.Confidence,
		Reasoning:  reason,
		Source:     models.SourceOpenAI,
		ChangedBy:  r.opts.Actor,
	})
	if !u.Success {
		r.note("court count update failed: %s", u.Message)
		if err := o.d.Venues.MarkCourtCountSearchedCtx(ctx, r.venue.ID); err != nil {
			o.log.Warn("mark court count searched failed", logging.Int64("venue_id", r.venue.ID), logging.Error(err))
		}
		return false
	}
	return true
}

func (o *Orchestrator) flag(ctx context.Context, r *run, reason, details string) {
	r.result.DeletionReason = reason
	if !r.opts.DryRun {
		u := o.d.Updater.FlagVenueForDeletion(ctx, r.venue.ID, reason, details)
		if !u.Success {
			r.note("flag for deletion failed: %s", u.Message)
			return
		}
	}
	r.result.VenueFlaggedForDeletion = true
}
