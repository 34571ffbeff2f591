package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"squash-venue-enrichment/internal/constants"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/internal/processor"
	"squash-venue-enrichment/pkg/config"
	"squash-venue-enrichment/pkg/container"
	errs "squash-venue-enrichment/pkg/errors"
)

var (
	runMinConfidence string
	runDryRun        bool
	runSkipCourts    bool
	runOutput        string

	batchLimit int
	batchDelay time.Duration
	batchRPS   float64
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Categorize the next batch of gap-category venues",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := runOptions()
		if err != nil {
			return err
		}
		bo := processor.BatchOptions{Options: opts, Limit: batchLimit, Delay: cfg.BatchDelay, RPS: cfg.BatchRPS}
		if cmd.Flags().Changed("delay") {
			bo.Delay = batchDelay
		}
		if cmd.Flags().Changed("rps") {
			bo.RPS = batchRPS
		}

		p, err := resolveProcessor()
		if err != nil {
			return err
		}
		sum, err := p.RunBatch(ctx, bo)
		if err != nil {
			return err
		}
		return writeSummary(cmd.OutOrStdout(), sum, runOutput)
	},
}

var categorizeVenueCmd = &cobra.Command{
	Use:   "categorize-venue <venue-id>",
	Short: "Run the pipeline for a single venue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return errs.NewValidation("categorize-venue", fmt.Sprintf("invalid venue id %q", args[0]), err)
		}
		opts, err := runOptions()
		if err != nil {
			return err
		}
		p, err := resolveProcessor()
		if err != nil {
			return err
		}
		res, err := p.CategorizeVenue(cmd.Context(), id, opts)
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), res, runOutput)
	},
}

func init() {
	for _, c := range []*cobra.Command{categorizeCmd, categorizeVenueCmd} {
		c.Flags().StringVar(&runMinConfidence, "min-confidence", "", "lowest confidence written to the database: HIGH, MEDIUM or LOW (default $MIN_CONFIDENCE)")
		c.Flags().BoolVar(&runDryRun, "dry-run", false, "compute and report changes without writing anything")
		c.Flags().BoolVar(&runSkipCourts, "skip-courts", false, "skip the court-count lookup")
		c.Flags().StringVarP(&runOutput, "output", "o", "text", "output format: text or json")
	}
	categorizeCmd.Flags().IntVar(&batchLimit, "limit", constants.BatchLimitDefault, "max number of venues to process")
	categorizeCmd.Flags().DurationVar(&batchDelay, "delay", constants.BatchDelayDefault, "pause between venues (default $BATCH_DELAY)")
	categorizeCmd.Flags().Float64Var(&batchRPS, "rps", 0, "venues per second; overrides --delay when set")

	rootCmd.AddCommand(categorizeCmd, categorizeVenueCmd)
}

// runOptions turns the shared flags into pipeline options.
func runOptions() (processor.Options, error) {
	minConf := runMinConfidence
	if minConf == "" {
		minConf = cfg.MinConfidence
	}
	conf, err := parseMinConfidence(minConf)
	if err != nil {
		return processor.Options{}, err
	}
	switch runOutput {
	case "text", "json":
	default:
		return processor.Options{}, errs.NewValidation("flags", fmt.Sprintf("unknown output format %q", runOutput), nil)
	}
	return processor.Options{
		MinConfidence:   conf,
		DryRun:          runDryRun,
		SkipCourtCounts: runSkipCourts,
		Actor:           cfg.Actor,
	}, nil
}

// parseMinConfidence is strict: a typo must not silently lower the gate.
func parseMinConfidence(s string) (models.Confidence, error) {
	c := models.Confidence(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", errs.NewValidation("flags", fmt.Sprintf("invalid min confidence %q (want HIGH, MEDIUM or LOW)", s), nil)
	}
	return c, nil
}

func resolveProcessor() (*processor.Processor, error) {
	if err := cfg.Validate(config.Scope{Database: true, Places: true}); err != nil {
		return nil, err
	}
	return container.Resolve[*processor.Processor](deps)
}
