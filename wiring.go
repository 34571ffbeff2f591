package main

import (
	"context"

	"squash-venue-enrichment/internal/constants"
	"squash-venue-enrichment/internal/infrastructure/repository"
	"squash-venue-enrichment/internal/mapper"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/internal/processor"
	"squash-venue-enrichment/internal/prompts"
	"squash-venue-enrichment/internal/scorer"
	"squash-venue-enrichment/internal/scraper"
	"squash-venue-enrichment/internal/social"
	"squash-venue-enrichment/internal/translate"
	"squash-venue-enrichment/internal/updater"
	"squash-venue-enrichment/internal/venuecontext"
	"squash-venue-enrichment/pkg/circuit"
	"squash-venue-enrichment/pkg/config"
	"squash-venue-enrichment/pkg/container"
	"squash-venue-enrichment/pkg/database"
	"squash-venue-enrichment/pkg/health"
	"squash-venue-enrichment/pkg/logging"
)

// Optional gateways are nil when their credentials are missing. They are
// wrapped so the container never hands out a typed nil as an interface.
type (
	aiCapability     struct{ c *scorer.Categorizer }
	courtsCapability struct{ a *scorer.CourtCountAnalyzer }
)

// buildContainer registers every provider. Nothing is constructed until a
// command resolves what it needs, so migrate never touches the APIs.
func buildContainer(cfg *config.Config, log *logging.Logger) *container.Container {
	c := container.New()

	c.MustProvide(func() *config.Config { return cfg }, true)
	c.MustProvide(func() *logging.Logger { return log }, true)

	c.MustProvide(func(cfg *config.Config) (*database.DB, error) { return database.NewWithConfig(cfg) }, true)
	c.MustProvide(func(db *database.DB) *repository.SQLRepository { return repository.NewSQLRepository(db) }, true)
	c.MustProvide(func(db *database.DB) *repository.SQLUnitOfWorkFactory { return repository.NewSQLUnitOfWorkFactory(db) }, true)

	// The categories table is the source of truth once migrated; the built-in
	// taxonomy covers a fresh database.
	c.MustProvide(func(repo *repository.SQLRepository, log *logging.Logger) *models.Taxonomy {
		cats, err := repo.ListCategoriesCtx(context.Background())
		if err == nil && len(cats) > 0 {
			if tax, terr := models.NewTaxonomy(cats); terr == nil {
				return tax
			}
		}
		if err != nil {
			log.Warn("loading categories failed, using built-in taxonomy", logging.Error(err))
		}
		return models.DefaultTaxonomy()
	}, true)

	c.MustProvide(func(cfg *config.Config) (*prompts.Manager, error) { return prompts.NewManager(cfg.PromptDir) }, true)
	c.MustProvide(func() *scorer.CostTracker { return scorer.NewCostTracker() }, true)

	c.MustProvide(func(cfg *config.Config, log *logging.Logger) (*scraper.PlacesGateway, error) {
		return scraper.NewPlacesGateway(cfg.GoogleMapsAPIKey, cfg.GoogleMapsBaseURL, log)
	}, true)

	c.MustProvide(func(cfg *config.Config, pm *prompts.Manager, tax *models.Taxonomy, cost *scorer.CostTracker, log *logging.Logger) aiCapability {
		if cfg.OpenAIAPIKey == "" {
			log.Warn("OPENAI_API_KEY not set, AI fallback disabled")
			return aiCapability{}
		}
		client := scorer.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITimeout)
		return aiCapability{scorer.NewCategorizer(client, pm, tax, cfg.OpenAIModel, cost, log)}
	}, true)

	c.MustProvide(func(cfg *config.Config, pm *prompts.Manager, cost *scorer.CostTracker, log *logging.Logger) courtsCapability {
		if cfg.OpenAIAPIKey == "" {
			return courtsCapability{}
		}
		// web-search answers take far longer than chat completions
		timeout := cfg.OpenAITimeout
		if timeout < constants.OpenAISearchTimeout {
			timeout = constants.OpenAISearchTimeout
		}
		client := scorer.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, timeout)
		var pages scorer.PageLookup
		if cfg.FacebookAccessToken != "" {
			pages = social.NewClient(cfg.FacebookAccessToken)
		}
		return courtsCapability{scorer.NewCourtCountAnalyzer(client, pm, cfg.OpenAISearchModel, cfg.DirectoryDomain, pages, cost, log)}
	}, true)

	c.MustProvide(func(cfg *config.Config, tax *models.Taxonomy, log *logging.Logger) (*mapper.Mapper, error) {
		rules, err := mapper.DefaultRules()
		if err != nil {
			return nil, err
		}
		var tr mapper.Translator
		if cfg.TranslateAPIKey != "" {
			tr = translate.NewClient(cfg.TranslateAPIKey)
		}
		return mapper.New(rules, tax, tr, log), nil
	}, true)

	c.MustProvide(func(repo *repository.SQLRepository, tax *models.Taxonomy, log *logging.Logger) (*venuecontext.Analyzer, error) {
		rules, err := venuecontext.DefaultRules()
		if err != nil {
			return nil, err
		}
		return venuecontext.New(rules, repo, tax, log), nil
	}, true)

	c.MustProvide(func(uow *repository.SQLUnitOfWorkFactory, repo *repository.SQLRepository, tax *models.Taxonomy, cfg *config.Config, log *logging.Logger) *updater.Updater {
		return updater.New(uow, repo, tax, cfg.Actor, log)
	}, true)

	c.MustProvide(func(
		repo *repository.SQLRepository,
		places *scraper.PlacesGateway,
		m *mapper.Mapper,
		an *venuecontext.Analyzer,
		ai aiCapability,
		courts courtsCapability,
		upd *updater.Updater,
		cost *scorer.CostTracker,
		tax *models.Taxonomy,
		cfg *config.Config,
		log *logging.Logger,
	) *processor.Processor {
		d := processor.Deps{
			Venues:   repo,
			Places:   places,
			Mapper:   m,
			Context:  an,
			Updater:  upd,
			Taxonomy: tax,
		}
		if ai.c != nil {
			d.AI = ai.c
		}
		if courts.a != nil {
			d.Courts = courts.a
		}
		return processor.New(d, processor.Config{Actor: cfg.Actor, Cost: cost}, log)
	}, true)

	c.MustProvide(func(db *database.DB, places *scraper.PlacesGateway, ai aiCapability, courts courtsCapability, log *logging.Logger) *health.Manager {
		hm := health.NewManager(constants.HealthTimeoutDefault, log)
		hm.Register(health.Database("database", db.Conn()))
		breakers := []*circuit.Breaker{places.Breaker()}
		if ai.c != nil {
			breakers = append(breakers, ai.c.Breaker())
		}
		if courts.a != nil {
			breakers = append(breakers, courts.a.Breaker())
		}
		hm.Register(health.Breakers("upstreams", breakers...))
		return hm
	}, true)

	return c
}
