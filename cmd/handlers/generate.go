package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hunkim/botmadang-digest/internal/config"
	"github.com/hunkim/botmadang-digest/internal/core"
	"github.com/hunkim/botmadang-digest/internal/email"
	"github.com/hunkim/botmadang-digest/internal/evaluate"
	"github.com/hunkim/botmadang-digest/internal/fetch"
	"github.com/hunkim/botmadang-digest/internal/llm"
	"github.com/hunkim/botmadang-digest/internal/logger"
	"github.com/hunkim/botmadang-digest/internal/narrative"
	"github.com/hunkim/botmadang-digest/internal/relevance"
	"github.com/hunkim/botmadang-digest/internal/render"
	"github.com/hunkim/botmadang-digest/internal/store"
	"github.com/hunkim/botmadang-digest/internal/topics"
)

// batchEvalLimit caps how many candidates go into the batch evaluation
// prompt; beyond that the prompt gets too long for reliable selection.
const batchEvalLimit = 30

// skipEvalLimit caps candidates when model evaluation is skipped.
const skipEvalLimit = 15

type generateOptions struct {
	date           string
	outputDir      string
	testConnection bool
	fetchOnly      bool
	skipEval       bool
	sendEmail      bool
}

// NewGenerateCmd creates the generate command, the main digest pipeline.
func NewGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the daily digest for a date",
		Long: `Generate the daily digest.

The digest window ends at 08:00 on the target date and reaches back
DIGEST_HOURS. Candidates are ranked by hot score, evaluated and grouped
by the Solar model, narrated in Newneek style, written to the output
directory, and saved to Firestore.

Examples:
  # Today's digest
  digest generate

  # Backfill a specific date
  digest generate --date 2026-02-07

  # Check Firestore connectivity only
  digest generate --test-connection

  # Inspect candidate selection without calling the model
  digest generate --fetch-only

  # Rank by hot score alone, no model evaluation
  digest generate --skip-eval

  # Also mail the digest to subscribers
  digest generate --send-email`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.date, "date", "", "Target date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Output directory for the digest file")
	cmd.Flags().BoolVar(&opts.testConnection, "test-connection", false, "Check the Firestore connection and exit")
	cmd.Flags().BoolVar(&opts.fetchOnly, "fetch-only", false, "Print ranked candidates and exit without model calls")
	cmd.Flags().BoolVar(&opts.skipEval, "skip-eval", false, "Select posts by hot score alone")
	cmd.Flags().BoolVar(&opts.sendEmail, "send-email", false, "Email the digest to subscribers after saving")

	return cmd
}

func runGenerate(ctx context.Context, opts generateOptions) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.outputDir != "" {
		cfg.Output.Directory = opts.outputDir
	}

	logger.With("run_id", uuid.NewString())

	targetDate := time.Now()
	if opts.date != "" {
		targetDate, err = time.Parse("2006-01-02", opts.date)
		if err != nil {
			return fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", opts.date, err)
		}
	}
	dateKey := targetDate.Format("2006-01-02")
	logger.Info("starting digest generation", "date", dateKey)

	posts, err := store.NewFirestoreStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Firestore: %w", err)
	}
	defer posts.Close()

	if opts.testConnection {
		count, err := posts.CountPosts(ctx)
		if err != nil {
			return fmt.Errorf("connection check failed: %w", err)
		}
		fmt.Printf("✅ Firestore 연결 성공: posts %d건\n", count)
		return nil
	}

	candidates, err := fetch.Candidates(ctx, posts, cfg, targetDate)
	if err != nil {
		return fmt.Errorf("failed to fetch candidates: %w", err)
	}
	if len(candidates) == 0 {
		logger.Info("no candidate posts in the digest window, nothing to do", "date", dateKey)
		return nil
	}
	logger.Info("candidates selected", "count", len(candidates))

	windowEnd := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 8, 0, 0, 0, targetDate.Location())
	if opts.fetchOnly {
		for i, p := range candidates {
			fmt.Printf("%s\n핫스코어: %.2f\n\n", fetch.FormatPostSummary(p, i+1), relevance.Score(p, windowEnd))
		}
		return nil
	}

	gen, err := llm.NewClient(cfg.Solar.APIKey, cfg.Solar.BaseURL, cfg.Solar.Model, cfg.SolarTimeout())
	if err != nil {
		return fmt.Errorf("failed to create solar client: %w", err)
	}

	var evaluated []core.EvaluationResult
	if opts.skipEval {
		evaluated = rankByHotScore(candidates, windowEnd)
	} else {
		batch := candidates
		if len(batch) > batchEvalLimit {
			batch = batch[:batchEvalLimit]
		}
		evaluated = evaluate.PostsBatch(ctx, gen, batch)
	}
	if len(evaluated) == 0 {
		logger.Info("no posts passed evaluation, skipping digest", "date", dateKey)
		return nil
	}
	if len(evaluated) > cfg.Digest.MaxDigestPosts {
		evaluated = evaluated[:cfg.Digest.MaxDigestPosts]
	}
	logger.Info("posts evaluated", "included", len(evaluated))

	groups := topics.Group(ctx, gen, evaluated)
	mainGroups, briefGroups := topics.SplitMainAndBrief(groups, cfg.Digest.MainCount)
	logger.Info("posts grouped", "groups", len(groups), "main", len(mainGroups))

	writer := narrative.NewWriter(gen, cfg.Site.BaseURL, cfg.Solar.ReviewModel)
	content := writer.Generate(ctx, mainGroups, briefGroups, targetDate)

	path, err := render.WriteDigestFile(content, cfg.Output.Directory, dateKey)
	if err != nil {
		return fmt.Errorf("failed to write digest file: %w", err)
	}

	digest := core.Digest{
		Content:   content,
		Date:      dateKey,
		PostCount: countPosts(groups),
		CreatedAt: time.Now(),
	}
	// A save failure loses the site copy, not the digest itself.
	if err := posts.SaveDigest(ctx, digest); err != nil {
		logger.Error("saving digest to Firestore failed", err, "date", dateKey)
	}

	if opts.sendEmail {
		sender := email.NewSender(cfg.Email.ResendAPIKey, cfg.Email.AudienceID, cfg.Email.From)
		koreanDate := fmt.Sprintf("%d년 %02d월 %02d일", targetDate.Year(), targetDate.Month(), targetDate.Day())
		result := sender.SendDigest(ctx, content, koreanDate)
		if !result.Skipped {
			logger.Info("digest emailed", "sent", result.Sent, "errors", result.Errors)
		}
	}

	logger.Info("digest generation complete", "date", dateKey, "path", path, "post_count", digest.PostCount)
	return nil
}

// rankByHotScore substitutes for model evaluation: the top candidates by
// hot score, each carrying score = hotScore×10 so downstream sorting still
// works.
func rankByHotScore(candidates []core.Post, windowEnd time.Time) []core.EvaluationResult {
	if len(candidates) > skipEvalLimit {
		candidates = candidates[:skipEvalLimit]
	}

	results := make([]core.EvaluationResult, len(candidates))
	for i, p := range candidates {
		results[i] = core.EvaluationResult{
			Post:    p,
			Include: true,
			Reason:  "핫스코어 상위",
			Score:   int(relevance.Score(p, windowEnd) * 10),
		}
	}
	return results
}

func countPosts(groups []core.TopicGroup) int {
	count := 0
	for _, g := range groups {
		count += len(g.Posts)
	}
	if count > 10 {
		count = 10
	}
	return count
}
