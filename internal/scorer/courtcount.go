package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"squash-venue-enrichment/internal/constants"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/internal/prompts"
	"squash-venue-enrichment/internal/social"
	"squash-venue-enrichment/pkg/circuit"
	errs "squash-venue-enrichment/pkg/errors"
	"squash-venue-enrichment/pkg/logging"
	"squash-venue-enrichment/pkg/utils"
)

// PageLookup fetches social page metadata for extra court-count context.
type PageLookup interface {
	PageInfo(ctx context.Context, pageURL string) (*social.PageInfo, error)
}

// CourtCountAnalyzer asks a web-search model how many squash courts a venue
// has.
type CourtCountAnalyzer struct {
	client        ChatClient
	prompts       *prompts.Manager
	model         string
	excludeDomain string
	pages         PageLookup
	cb            *circuit.Breaker
	cost          *CostTracker
	log           *logging.ComponentLogger
}

// NewCourtCountAnalyzer builds the analyzer. excludeDomain is the directory's
// own site, which must never be cited. pages may be nil.
func NewCourtCountAnalyzer(client ChatClient, pm *prompts.Manager, model, excludeDomain string, pages PageLookup, cost *CostTracker, log *logging.Logger) *CourtCountAnalyzer {
	if log == nil {
		log = logging.Nop()
	}
	if cost == nil {
		cost = NewCostTracker()
	}
	if model == "" {
		model = "gpt-4o-search-preview"
	}
	cb := circuit.New(circuit.Config{
		Name:              "openai_search",
		OperationTimeout:  constants.OpenAISearchTimeout,
		OpenFor:           constants.OpenAIOpenFor,
		MaxConsecFailures: constants.CircuitMaxConsecFailures,
		FailureRate:       constants.OpenAICircuitFailureRate,
		SlowCallThreshold: constants.OpenAISlowCallThreshold,
	}, log).WithPermanent(IsPermanent)
	return &CourtCountAnalyzer{
		client:        client,
		prompts:       pm,
		model:         model,
		excludeDomain: strings.ToLower(strings.TrimSpace(excludeDomain)),
		pages:         pages,
		cb:            cb,
		cost:          cost,
		log:           log.WithComponent("court_count"),
	}
}

func (a *CourtCountAnalyzer) Breaker() *circuit.Breaker { return a.cb }

type courtCountPrompt struct {
	Name          string
	Address       string
	Website       string
	Domain        string
	Social        string
	ExcludeDomain string
	PluralDefault int
}

// AnalyzeCourtCount returns an error only when no usable answer came back;
// callers must not treat that as "no courts".
func (a *CourtCountAnalyzer) AnalyzeCourtCount(ctx context.Context, venue models.Venue, snap models.PlacesSnapshot) (models.CourtCountResult, error) {
	const op = "CourtCountAnalyzer.AnalyzeCourtCount"

	name := snap.DisplayName
	if name == "" {
		name = venue.Name
	}
	address := snap.FormattedAddress
	if address == "" {
		address = venue.FullAddress()
	}
	website := utils.NormalizeURL(snap.Website)
	if website == "" {
		website = utils.NormalizeURL(venue.Website)
	}
	domain := utils.ExtractDomain(website)
	if a.excludeDomain != "" && utils.OnDomain(website, a.excludeDomain) {
		website, domain = "", ""
	}

	sys, err := a.prompts.Render(prompts.CourtCountSystem, nil)
	if err != nil {
		return models.CourtCountResult{}, err
	}
	user, err := a.prompts.Render(prompts.CourtCountUser, courtCountPrompt{
		Name:          name,
		Address:       address,
		Website:       website,
		Domain:        domain,
		Social:        a.socialContext(ctx, venue),
		ExcludeDomain: a.excludeDomain,
		PluralDefault: constants.PluralCourtsDefault,
	})
	if err != nil {
		return models.CourtCountResult{}, err
	}

	resp, err := circuit.Call(ctx, a.cb, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: a.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: sys},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			MaxTokens: constants.OpenAICourtCountMaxTokens,
		})
	})
	if err != nil {
		return models.CourtCountResult{}, errs.NewExternal(op, system, "court count search failed", err)
	}
	a.cost.AddUsage(resp.Usage)

	res, ok := parseCourtCount(firstContent(resp))
	if !ok {
		return models.CourtCountResult{}, errs.NewBiz(op, "unusable court count response", nil)
	}
	res = a.screen(res)
	a.log.Debug("court count answered",
		logging.Int64("venue_id", venue.ID),
		logging.Any("court_count", res.CourtCount),
		logging.String("confidence", string(res.Confidence)),
		logging.Bool("evidence_found", res.EvidenceFound))
	return res, nil
}

func (a *CourtCountAnalyzer) socialContext(ctx context.Context, venue models.Venue) string {
	if a.pages == nil || venue.FacebookURL == "" {
		return ""
	}
	info, err := a.pages.PageInfo(ctx, venue.FacebookURL)
	if err != nil {
		a.log.Warn("facebook page lookup failed", logging.Int64("venue_id", venue.ID), logging.Error(err))
		return ""
	}
	return info.Summary()
}

// screen drops counts that cite the directory itself or are not plausible.
func (a *CourtCountAnalyzer) screen(r models.CourtCountResult) models.CourtCountResult {
	if a.excludeDomain != "" && r.SourceURL != "" && utils.OnDomain(r.SourceURL, a.excludeDomain) {
		r.CourtCount = nil
		r.Confidence = models.ConfidenceLow
		r.Reasoning = strings.TrimSpace(r.Reasoning + " (Discarded: source is the directory itself)")
		r.SourceURL = ""
		r.SourceType = "none"
		r.EvidenceFound = true
	}
	if r.CourtCount != nil && (*r.CourtCount <= 0 || *r.CourtCount > constants.MaxPlausibleCourts) {
		r.Reasoning = strings.TrimSpace(fmt.Sprintf("%s (Discarded implausible count %d)", r.Reasoning, *r.CourtCount))
		r.CourtCount = nil
		r.Confidence = models.ConfidenceLow
	}
	return r
}

var sourceTypes = map[string]bool{
	"official_website": true,
	"social_media":     true,
	"federation":       true,
	"booking_site":     true,
	"news":             true,
	"other":            true,
	"none":             true,
}

type courtCountJSON struct {
	CourtCount    any    `json:"court_count"`
	Confidence    string `json:"confidence"`
	Reasoning     string `json:"reasoning"`
	SourceURL     string `json:"source_url"`
	SourceType    string `json:"source_type"`
	EvidenceFound *bool  `json:"evidence_found"`
}

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

	fieldCount    = regexp.MustCompile(`"court_count"\s*:\s*"?(\d+|null)`)
	fieldConf     = regexp.MustCompile(`"confidence"\s*:\s*"(\w+)"`)
	fieldReason   = regexp.MustCompile(`"reasoning"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	fieldURL      = regexp.MustCompile(`"source_url"\s*:\s*"([^"]*)"`)
	fieldType     = regexp.MustCompile(`"source_type"\s*:\s*"(\w+)"`)
	fieldEvidence = regexp.MustCompile(`"evidence_found"\s*:\s*(true|false)`)

	numberedCourts = regexp.MustCompile(`\b(\d{1,3})\s+(?:([a-z\-]+)\s+)?squash\s+courts?\b`)
	pluralCourts   = regexp.MustCompile(`\bsquash\s+courts\b`)
	singularCourt  = regexp.MustCompile(`\b(?:a|one|single)\s+(?:[a-z\-]+\s+)?squash\s+court\b|\bsquash\s+court\b`)
	noCourts       = regexp.MustCompile(`\bno\s+(?:sign\s+of\s+|evidence\s+of\s+)?squash\s+courts?\b|\bdoes\s+not\s+have\s+(?:any\s+)?squash\b`)
)

// otherSports disqualify the word before "squash courts" as a count qualifier.
var otherSports = map[string]bool{
	"tennis": true, "padel": true, "badminton": true, "racquetball": true,
	"pickleball": true, "basketball": true, "netball": true, "volleyball": true,
	"futsal": true, "table-tennis": true,
}

var numberWords = map[string]string{
	"one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
	"six": "6", "seven": "7", "eight": "8", "nine": "9", "ten": "10",
	"eleven": "11", "twelve": "12", "thirteen": "13", "fourteen": "14",
	"fifteen": "15", "sixteen": "16", "twenty": "20",
}

var numberWord = regexp.MustCompile(`\b(one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|thirteen|fourteen|fifteen|sixteen|twenty)\b`)

// digits rewrites written numbers as digits.
func digits(s string) string {
	return numberWord.ReplaceAllStringFunc(s, func(w string) string { return numberWords[w] })
}

// parseCourtCount tries, in order: the JSON object (bare or fenced), a
// field-by-field regex read of broken JSON, and plain-language hints.
func parseCourtCount(content string) (models.CourtCountResult, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.CourtCountResult{}, false
	}

	if obj := jsonObject(content); obj != "" {
		var raw courtCountJSON
		if err := json.Unmarshal([]byte(obj), &raw); err == nil {
			return fromJSON(raw), true
		}
	}
	if r, ok := fromBrokenJSON(content); ok {
		return r, true
	}
	return fromProse(content)
}

func jsonObject(content string) string {
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	start, end := strings.Index(content, "{"), strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func fromJSON(raw courtCountJSON) models.CourtCountResult {
	r := models.CourtCountResult{
		Confidence:    models.ParseConfidence(raw.Confidence),
		Reasoning:     strings.TrimSpace(raw.Reasoning),
		SourceURL:     strings.TrimSpace(raw.SourceURL),
		SourceType:    normalizeSourceType(raw.SourceType, raw.SourceURL),
		EvidenceFound: true,
	}
	switch v := raw.CourtCount.(type) {
	case float64:
		r.CourtCount = models.IntPtr(int(v))
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(digits(strings.ToLower(v)))); err == nil {
			r.CourtCount = models.IntPtr(n)
		}
	}
	if raw.EvidenceFound != nil {
		r.EvidenceFound = *raw.EvidenceFound
	}
	if r.CourtCount == nil && r.EvidenceFound {
		applyHint(&r, strings.ToLower(r.Reasoning))
	}
	return r
}

func fromBrokenJSON(content string) (models.CourtCountResult, bool) {
	m := fieldCount.FindStringSubmatch(content)
	if m == nil {
		return models.CourtCountResult{}, false
	}
	r := models.CourtCountResult{Confidence: models.ConfidenceLow, EvidenceFound: true}
	if n, err := strconv.Atoi(m[1]); err == nil {
		r.CourtCount = models.IntPtr(n)
	}
	if c := fieldConf.FindStringSubmatch(content); c != nil {
		r.Confidence = models.ParseConfidence(c[1])
	}
	if c := fieldReason.FindStringSubmatch(content); c != nil {
		r.Reasoning = strings.ReplaceAll(c[1], `\"`, `"`)
	}
	if c := fieldURL.FindStringSubmatch(content); c != nil {
		r.SourceURL = c[1]
	}
	sourceType := ""
	if c := fieldType.FindStringSubmatch(content); c != nil {
		sourceType = c[1]
	}
	r.SourceType = normalizeSourceType(sourceType, r.SourceURL)
	if c := fieldEvidence.FindStringSubmatch(content); c != nil {
		r.EvidenceFound = c[1] == "true"
	}
	return r, true
}

// fromProse reads an answer that ignored the JSON instruction. It never
// reports evidence_found=false: prose is too weak to flag a venue on.
func fromProse(content string) (models.CourtCountResult, bool) {
	text := strings.ToLower(content)
	r := models.CourtCountResult{
		Confidence:    models.ConfidenceLow,
		Reasoning:     truncate(strings.Join(strings.Fields(content), " "), 300),
		SourceType:    "none",
		EvidenceFound: true,
	}
	if noCourts.MatchString(text) {
		return models.CourtCountResult{}, false
	}
	if n, ok := squashCourtNumber(digits(text)); ok {
		r.CourtCount = models.IntPtr(n)
		r.Confidence = models.ConfidenceMedium
		return r, true
	}
	if applyHint(&r, text) {
		return r, true
	}
	return models.CourtCountResult{}, false
}

// squashCourtNumber returns the first "<n> [word] squash court(s)" count whose
// qualifier is not another sport.
func squashCourtNumber(text string) (int, bool) {
	for _, m := range numberedCourts.FindAllStringSubmatch(text, -1) {
		if otherSports[m[2]] {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	return 0, false
}

// applyHint fills a missing count from "squash courts" / "a squash court"
// wording. The result stays LOW.
func applyHint(r *models.CourtCountResult, text string) bool {
	switch {
	case pluralCourts.MatchString(text):
		r.CourtCount = models.IntPtr(constants.PluralCourtsDefault)
	case singularCourt.MatchString(text):
		r.CourtCount = models.IntPtr(constants.SingularCourtDefault)
	default:
		return false
	}
	r.Confidence = models.ConfidenceLow
	return true
}

func normalizeSourceType(t, url string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if sourceTypes[t] {
		return t
	}
	if url == "" {
		return "none"
	}
	return "other"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
