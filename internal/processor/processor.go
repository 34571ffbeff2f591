package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"squash-venue-enrichment/internal/constants"
	"squash-venue-enrichment/internal/detector"
	"squash-venue-enrichment/internal/domain"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/internal/scorer"
	errs "squash-venue-enrichment/pkg/errors"
	"squash-venue-enrichment/pkg/logging"
	"squash-venue-enrichment/pkg/metrics"
)

// ErrBatchRunning is returned when a batch is started while another runs.
var ErrBatchRunning = errors.New("a categorization batch is already running")

// unmappedReportSize is how many unmapped type combinations a summary lists.
const unmappedReportSize = 10

// BatchOptions control one batch run.
type BatchOptions struct {
	Options
	Limit int
	// Delay paces venues when RPS is zero.
	Delay time.Duration
	RPS   float64
}

// Summary is the outcome of a batch run.
type Summary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	DryRun    bool          `json:"dry_run"`

	Processed           int `json:"processed"`
	CategoriesUpdated   int `json:"categories_updated"`
	Unchanged           int `json:"unchanged"`
	BelowConfidence     int `json:"below_confidence"`
	Failed              int `json:"failed"`
	Flagged             int `json:"flagged_for_deletion"`
	PlaceIDsRefreshed   int `json:"place_ids_refreshed"`
	NamesUpdated        int `json:"names_updated"`
	ContextAdjusted     int `json:"context_adjusted"`
	AICategorized       int `json:"ai_categorized"`
	CourtCountsSearched int `json:"court_counts_searched"`
	CourtCountsUpdated  int `json:"court_counts_updated"`

	ByConfidence map[models.Confidence]int `json:"by_confidence"`
	Interrupted  bool                      `json:"interrupted,omitempty"`

	Unmapped detector.Report               `json:"unmapped"`
	Cost     *scorer.CostStats             `json:"cost,omitempty"`
	Results  []models.CategorizationResult `json:"results"`
}

// Config carries the processor's batch-level collaborators.
type Config struct {
	// Actor is the default changed_by for audit rows.
	Actor string
	Cost  *scorer.CostTracker
}

// Processor drives the orchestrator for single venues and batches, and owns
// the confidence-gated category write.
type Processor struct {
	orch    *Orchestrator
	venues  domain.VenueRepository
	updater VenueUpdater
	cost    *scorer.CostTracker
	actor   string
	log     *logging.ComponentLogger

	running sync.Mutex

	mProcessed *metrics.Counter
	mUpdated   *metrics.Counter
	mFailed    *metrics.Counter
	mFlagged   *metrics.Counter
}

func New(d Deps, cfg Config, log *logging.Logger) *Processor {
	if log == nil {
		log = logging.Nop()
	}
	return &Processor{
		orch:       NewOrchestrator(d, log),
		venues:     d.Venues,
		updater:    d.Updater,
		cost:       cfg.Cost,
		actor:      cfg.Actor,
		log:        log.WithComponent("processor"),
		mProcessed: metrics.Default.Counter("venues_processed_total", "Venues run through the categorization pipeline"),
		mUpdated:   metrics.Default.Counter("venues_updated_total", "Venue categories written"),
		mFailed:    metrics.Default.Counter("venues_failed_total", "Venues whose pipeline run ended in an error"),
		mFlagged:   metrics.Default.Counter("venues_flagged_total", "Venues flagged for deletion"),
	}
}

// Capabilities reports which optional collaborators are wired.
func (p *Processor) Capabilities() Capabilities { return p.orch.Capabilities() }

// CategorizeVenue runs the pipeline for one venue and applies the result.
// The error is non-nil only when the venue could not be loaded.
func (p *Processor) CategorizeVenue(ctx context.Context, venueID int64, opts Options) (models.CategorizationResult, error) {
	v, err := p.venues.GetVenueCtx(ctx, venueID)
	if err != nil {
		return models.CategorizationResult{}, err
	}
	if opts.Actor == "" {
		opts.Actor = p.actor
	}
	return p.process(ctx, *v, opts), nil
}

func (p *Processor) process(ctx context.Context, v models.Venue, opts Options) models.CategorizationResult {
	ctx = logging.WithVenueID(ctx, v.ID)
	res := p.orch.Categorize(ctx, v, opts)
	p.applyCategory(ctx, &res, opts)

	if !opts.DryRun && !IsGuardExit(res.ExitCode) {
		if err := p.venues.TouchVenueCtx(ctx, v.ID); err != nil && !errs.Is(err, errs.ErrNotFound) {
			p.log.Warn("touch venue failed", logging.Int64("venue_id", v.ID), logging.Error(err))
		}
	}

	p.mProcessed.Inc(1)
	if res.Failed() {
		p.mFailed.Inc(1)
	}
	if res.VenueFlaggedForDeletion {
		p.mFlagged.Inc(1)
	}
	if res.CategoryUpdated {
		p.mUpdated.Inc(1)
	}
	return res
}

// shouldWriteCategory is the persistence gate: a real, changed category at
// or above the minimum confidence from a run that neither failed nor
// flagged the venue.
func shouldWriteCategory(res models.CategorizationResult, min models.Confidence) bool {
	if res.Failed() || res.VenueFlaggedForDeletion || res.CategoryID == nil {
		return false
	}
	id := *res.CategoryID
	if models.IsGap(id) || id == res.PreviousCategoryID {
		return false
	}
	return res.Confidence.AtLeast(min)
}

func (p *Processor) applyCategory(ctx context.Context, res *models.CategorizationResult, opts Options) {
	min := opts.MinConfidence
	if !min.Valid() {
		min = models.ConfidenceMedium
	}
	if !shouldWriteCategory(*res, min) {
		return
	}
	if opts.DryRun {
		res.CategoryUpdated = true
		return
	}
	u := p.updater.UpdateCategory(ctx, res.VenueID, *res.CategoryID, domain.AuditMeta{
		Confidence: res.Confidence,
		Reasoning:  res.Reasoning,
		Source:     res.Source,
		ChangedBy:  opts.Actor,
	})
	if !u.Success {
		p.log.Warn("category update failed",
			logging.Int64("venue_id", res.VenueID), logging.String("message", u.Message))
		res.Error = u.Message
		return
	}
	res.CategoryUpdated = true
}

// RunBatch categorizes up to opts.Limit queued venues, one at a time, paced
// by the rate limiter. Only one batch runs per Processor at a time.
func (p *Processor) RunBatch(ctx context.Context, opts BatchOptions) (*Summary, error) {
	if !p.running.TryLock() {
		return nil, ErrBatchRunning
	}
	defer p.running.Unlock()

	if opts.Limit <= 0 {
		opts.Limit = constants.BatchLimitDefault
	}
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	if opts.Actor == "" {
		opts.Actor = p.actor
	}
	opts.Actor = batchActor(opts.Actor, runID)

	venues, err := p.venues.ListVenuesForCategorizationCtx(ctx, opts.Limit)
	if err != nil {
		return nil, err
	}
	// each batch reports only its own unmapped venues
	det := detector.New()
	opts.tracker = det

	sum := &Summary{
		RunID:        runID,
		StartedAt:    time.Now().UTC(),
		DryRun:       opts.DryRun,
		ByConfidence: make(map[models.Confidence]int),
		Results:      make([]models.CategorizationResult, 0, len(venues)),
	}
	p.log.Info("batch started",
		logging.String("run_id", runID),
		logging.Int("venues", len(venues)),
		logging.Bool("dry_run", opts.DryRun),
		logging.String("min_confidence", string(opts.MinConfidence)))

	limiter := newLimiter(opts.RPS, opts.Delay)
	for _, v := range venues {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				sum.Interrupted = true
				break
			}
		} else if ctx.Err() != nil {
			sum.Interrupted = true
			break
		}
		res := p.process(ctx, v, opts.Options)
		sum.add(res)
	}

	sum.Duration = time.Since(sum.StartedAt)
	sum.Unmapped = det.Report(unmappedReportSize)
	if p.cost != nil {
		st := p.cost.Stats()
		sum.Cost = &st
	}
	p.log.Info("batch finished",
		logging.String("run_id", runID),
		logging.Int("processed", sum.Processed),
		logging.Int("updated", sum.CategoriesUpdated),
		logging.Int("failed", sum.Failed),
		logging.Int("flagged", sum.Flagged),
		logging.Duration("duration", sum.Duration))
	return sum, nil
}

func batchActor(actor, runID string) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	if actor == "" {
		return "batch/" + short
	}
	return actor + "/" + short
}

func newLimiter(rps float64, delay time.Duration) *rate.Limiter {
	switch {
	case rps > 0:
		return rate.NewLimiter(rate.Limit(rps), 1)
	case delay > 0:
		return rate.NewLimiter(rate.Every(delay), 1)
	}
	return nil
}

func (s *Summary) add(res models.CategorizationResult) {
	s.Processed++
	s.Results = append(s.Results, res)

	switch {
	case res.Failed():
		s.Failed++
	case res.CategoryUpdated:
		s.CategoriesUpdated++
	case res.CategoryID != nil && *res.CategoryID == res.PreviousCategoryID:
		s.Unchanged++
	case res.CategoryID != nil && !models.IsGap(*res.CategoryID) && !res.VenueFlaggedForDeletion:
		s.BelowConfidence++
	}
	if res.CategoryID != nil && !res.Failed() {
		s.ByConfidence[res.Confidence]++
	}
	if res.VenueFlaggedForDeletion {
		s.Flagged++
	}
	if res.PlaceIDRefreshed {
		s.PlaceIDsRefreshed++
	}
	if res.NameUpdated {
		s.NamesUpdated++
	}
	if res.ContextAdjusted {
		s.ContextAdjusted++
	}
	if res.Source == models.SourceOpenAI {
		s.AICategorized++
	}
	if res.CourtCountSearched {
		s.CourtCountsSearched++
	}
	if res.CourtCountUpdated {
		s.CourtCountsUpdated++
	}
}
