package scorer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"squash-venue-enrichment/internal/constants"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/internal/prompts"
	"squash-venue-enrichment/pkg/circuit"
	"squash-venue-enrichment/pkg/logging"
)

const invalidCategoryNote = "(Invalid category ID returned by AI)"

// Categorizer asks the model to pick a category when the rule-based mapping
// is not confident.
type Categorizer struct {
	client  ChatClient
	prompts *prompts.Manager
	tax     *models.Taxonomy
	model   string
	cb      *circuit.Breaker
	cost    *CostTracker
	log     *logging.ComponentLogger
}

func NewCategorizer(client ChatClient, pm *prompts.Manager, tax *models.Taxonomy, model string, cost *CostTracker, log *logging.Logger) *Categorizer {
	if log == nil {
		log = logging.Nop()
	}
	if tax == nil {
		tax = models.DefaultTaxonomy()
	}
	if cost == nil {
		cost = NewCostTracker()
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	cb := circuit.New(circuit.Config{
		Name:              "openai",
		OperationTimeout:  constants.OpenAIOperationTimeout,
		OpenFor:           constants.OpenAIOpenFor,
		MaxConsecFailures: constants.CircuitMaxConsecFailures,
		FailureRate:       constants.OpenAICircuitFailureRate,
		SlowCallThreshold: constants.OpenAISlowCallThreshold,
	}, log).WithPermanent(IsPermanent)
	return &Categorizer{
		client:  client,
		prompts: pm,
		tax:     tax,
		model:   model,
		cb:      cb,
		cost:    cost,
		log:     log.WithComponent("ai_categorizer"),
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Categorizer) Breaker() *circuit.Breaker { return c.cb }

type categorizePrompt struct {
	Name        string
	Address     string
	Website     string
	PrimaryType string
	Types       string
	Summary     string
	Hint        string
	Categories  []models.Category
	GapID       int
	GapName     string
}

// Categorize never fails: problems come back as a nil category at LOW with
// the cause in Reasoning and Failed set.
func (c *Categorizer) Categorize(ctx context.Context, venue models.Venue, snap models.PlacesSnapshot, hint string) models.AICategoryResult {
	name := snap.DisplayName
	if name == "" {
		name = venue.Name
	}
	address := snap.FormattedAddress
	if address == "" {
		address = venue.FullAddress()
	}
	website := snap.Website
	if website == "" {
		website = venue.Website
	}
	types := strings.Join(snap.Types, ", ")
	if types == "" {
		types = "none"
	}
	primary := snap.PrimaryType
	if primary == "" {
		primary = "none"
	}

	sys, err := c.prompts.Render(prompts.CategorizeSystem, nil)
	if err != nil {
		return c.failed("render prompt", err)
	}
	user, err := c.prompts.Render(prompts.CategorizeUser, categorizePrompt{
		Name:        name,
		Address:     address,
		Website:     website,
		PrimaryType: primary,
		Types:       types,
		Summary:     snap.EditorialSummary,
		Hint:        hint,
		Categories:  c.tax.All(),
		GapID:       models.CategoryDontKnow,
		GapName:     c.tax.Name(models.CategoryDontKnow),
	})
	if err != nil {
		return c.failed("render prompt", err)
	}

	resp, err := circuit.Call(ctx, c.cb, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: sys},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: constants.OpenAICategorizeTemperature,
			MaxTokens:   constants.OpenAICategorizeMaxTokens,
		})
	})
	if err != nil {
		c.log.Warn("categorize call failed", logging.Int64("venue_id", venue.ID), logging.Error(err))
		return c.failed("OpenAI request failed", err)
	}
	c.cost.AddUsage(resp.Usage)

	content := firstContent(resp)
	if content == "" {
		return c.failed("empty response", nil)
	}
	out := parseCategorization(content, c.tax)
	c.log.Debug("categorized",
		logging.Int64("venue_id", venue.ID),
		logging.String("category", c.tax.NameOf(out.CategoryID)),
		logging.String("confidence", string(out.Confidence)))
	return out
}

func (c *Categorizer) failed(msg string, err error) models.AICategoryResult {
	reason := "AI categorization failed: " + msg
	if err != nil {
		reason = fmt.Sprintf("%s: %v", reason, err)
	}
	return models.AICategoryResult{Confidence: models.ConfidenceLow, Reasoning: reason, Failed: true}
}

var (
	responseLine = regexp.MustCompile(`^[\s>*\-#]*([A-Za-z_ ]+?)[\s*]*:\s*(.*)$`)
	firstInt     = regexp.MustCompile(`-?\d+`)
)

// parseCategorization reads the KEY: value block. Keys are matched without
// regard to case, spacing or markdown emphasis; unknown lines are ignored.
func parseCategorization(content string, tax *models.Taxonomy) models.AICategoryResult {
	out := models.AICategoryResult{Confidence: models.ConfidenceLow}
	var (
		idSeen, idValid bool
		reasoning       []string
		inReasoning     bool
	)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := responseLine.FindStringSubmatch(line)
		key := ""
		if m != nil {
			key = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(m[1]), " ", "_"))
		}
		val := ""
		if m != nil {
			val = strings.Trim(strings.TrimSpace(m[2]), "*\"` ")
		}

		switch key {
		case "CATEGORY_ID":
			inReasoning = false
			idSeen = true
			if n := firstInt.FindString(val); n != "" {
				if id, err := strconv.Atoi(n); err == nil && tax.Valid(id) {
					out.CategoryID = models.IntPtr(id)
					idValid = true
				}
			}
		case "CONFIDENCE":
			inReasoning = false
			out.Confidence = models.ParseConfidence(val)
		case "REASONING":
			inReasoning = true
			if val != "" {
				reasoning = append(reasoning, val)
			}
		case "SUGGESTED_CATEGORY":
			inReasoning = false
			if !out.SuggestNewCategory && !isNone(val) {
				out.SuggestedCategory = val
			}
		case "SUGGEST_NEW_CATEGORY":
			inReasoning = false
			if !isNone(val) {
				out.SuggestNewCategory = true
				out.SuggestedCategory = val
			}
		default:
			if inReasoning {
				reasoning = append(reasoning, line)
			}
		}
	}

	out.Reasoning = strings.Join(reasoning, " ")
	if !idValid {
		out.CategoryID = nil
		out.Confidence = models.ConfidenceLow
		if idSeen {
			out.Reasoning = strings.TrimSpace(out.Reasoning + " " + invalidCategoryNote)
		} else {
			out.Reasoning = strings.TrimSpace(out.Reasoning + " (No category ID in AI response)")
		}
	}
	return out
}

func isNone(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "none", "n/a", "no", "null", "-":
		return true
	}
	return false
}
