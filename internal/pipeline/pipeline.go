// Package pipeline wires the study stages together: retrieval, aggregation, dataset
// construction and analysis, each exchanging CSV tables through the configured paths.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/liqstudy/internal/aggregate"
	"github.com/rewired-gh/liqstudy/internal/analysis"
	"github.com/rewired-gh/liqstudy/internal/config"
	"github.com/rewired-gh/liqstudy/internal/dataset"
	"github.com/rewired-gh/liqstudy/internal/logger"
	"github.com/rewired-gh/liqstudy/internal/models"
	"github.com/rewired-gh/liqstudy/internal/parser"
	"github.com/rewired-gh/liqstudy/internal/storage"
	"github.com/rewired-gh/liqstudy/internal/tables"
	"github.com/rewired-gh/liqstudy/internal/telegram"
)

// Stage names, as recorded in the runs archive.
const (
	StageFetchMessages = "fetch_messages"
	StageFetchPrices   = "fetch_prices"
	StageAggregate     = "aggregate"
	StageBuild         = "build"
	StageAnalyze       = "analyze"
)

// MessageSource retrieves raw chat messages.
type MessageSource interface {
	CollectMessages(ctx context.Context, opts telegram.CollectOptions) ([]models.RawMessage, error)
}

// PriceSource retrieves price bars labelled at their closing instant.
type PriceSource interface {
	FetchKlines(ctx context.Context, symbol string, interval models.Interval, start, end time.Time) ([]models.PriceBar, error)
}

// Notifier receives study summaries and stage failures.
type Notifier interface {
	SendSummary(interval models.Interval, corr []models.CorrelationRow, events []models.EventStudyRow) error
	SendError(stage string, err error) error
}

// Deps are the optional collaborators of a Runner. Stages that need a missing
// collaborator fail; a nil Store disables run recording and archiving.
type Deps struct {
	Store    *storage.Storage
	Messages MessageSource
	Prices   PriceSource
	Notifier Notifier
}

// Runner executes pipeline stages for one configuration.
type Runner struct {
	cfg  *config.Config
	deps Deps
	now  func() time.Time
}

// New creates a Runner. cfg must already be validated.
func New(cfg *config.Config, deps Deps) *Runner {
	return &Runner{cfg: cfg, deps: deps, now: time.Now}
}

// Report is the output of the analysis stage.
type Report struct {
	Interval    models.Interval
	Rows        int
	Thresholds  analysis.Thresholds
	Correlation []models.CorrelationRow
	EventStudy  []models.EventStudyRow
}

// track records a stage run around fn and logs its outcome.
func (r *Runner) track(stage string, fn func(log *logger.Logger) (int, error)) error {
	log := logger.ForStage(stage)
	started := time.Now()

	var run *models.Run
	if r.deps.Store != nil {
		var err error
		if run, err = r.deps.Store.StartRun(stage, r.cfg.Analysis.Interval); err != nil {
			log.Warn("Failed to record run: %v", err)
		}
	}

	rows, err := fn(log)

	if run != nil {
		if finishErr := r.deps.Store.FinishRun(run, rows, err); finishErr != nil {
			log.Warn("Failed to record run result: %v", finishErr)
		}
	}
	if err != nil {
		log.Error("Stage failed after %v: %v", time.Since(started), err)
		if r.cfg.Telegram.Notify && r.deps.Notifier != nil {
			if sendErr := r.deps.Notifier.SendError(stage, err); sendErr != nil {
				log.Warn("Failed to send error notification to Telegram: %v", sendErr)
			}
		}
		return fmt.Errorf("%s: %w", stage, err)
	}
	log.Info("Stage completed in %v (rows=%d)", time.Since(started), rows)
	return nil
}

// FetchMessages collects chat messages in the window and writes the RawMessage table.
// With a store, collected messages are archived and the table is written from the
// archive, so messages seen by earlier runs are kept.
func (r *Runner) FetchMessages(ctx context.Context) error {
	return r.track(StageFetchMessages, func(log *logger.Logger) (int, error) {
		if r.deps.Messages == nil {
			return 0, errors.New("no message source configured")
		}
		start, end, err := r.cfg.Window.Range(r.now())
		if err != nil {
			return 0, err
		}

		msgs, err := r.deps.Messages.CollectMessages(ctx, telegram.CollectOptions{
			Start:    start,
			End:      end,
			Contains: r.cfg.Telegram.Contains,
			Limit:    r.cfg.Telegram.Limit,
		})
		if err != nil {
			return 0, err
		}
		log.Info("Collected %d messages between %s and %s", len(msgs),
			models.FormatTimestamp(start), models.FormatTimestamp(end))

		if r.deps.Store != nil {
			added, err := r.deps.Store.AddMessages(r.cfg.Telegram.ChatID, msgs)
			if err != nil {
				return 0, err
			}
			if msgs, err = r.deps.Store.Messages(r.cfg.Telegram.ChatID, start, end); err != nil {
				return 0, err
			}
			log.Debug("Archived %d new messages, %d in window", added, len(msgs))
		}

		path := r.cfg.Paths.MessagesPath()
		if err := tables.WriteMessages(path, msgs); err != nil {
			return 0, err
		}
		log.Info("Saved %s (rows=%d)", path, len(msgs))
		return len(msgs), nil
	})
}

// FetchPrices retrieves price bars for the window and writes the PriceBar table.
func (r *Runner) FetchPrices(ctx context.Context) error {
	return r.track(StageFetchPrices, func(log *logger.Logger) (int, error) {
		if r.deps.Prices == nil {
			return 0, errors.New("no price source configured")
		}
		start, end, err := r.cfg.Window.Range(r.now())
		if err != nil {
			return 0, err
		}
		symbol := r.cfg.Binance.Symbol
		interval := r.cfg.Analysis.Interval

		bars, err := r.deps.Prices.FetchKlines(ctx, symbol, interval, start, end)
		if err != nil {
			return 0, err
		}
		log.Info("Fetched %d %s bars for %s", len(bars), interval, symbol)

		if r.deps.Store != nil {
			added, err := r.deps.Store.AddPriceBars(symbol, interval, bars)
			if err != nil {
				return 0, err
			}
			// bars opening inside the window close up to one interval after it
			if bars, err = r.deps.Store.PriceBars(symbol, interval, start, end.Add(interval.Duration())); err != nil {
				return 0, err
			}
			log.Debug("Archived %d new bars, %d in window", added, len(bars))
		}

		path := r.cfg.Paths.PricesPath(symbol, interval)
		if err := tables.WritePriceBars(path, bars); err != nil {
			return 0, err
		}
		log.Info("Saved %s (rows=%d)", path, len(bars))
		return len(bars), nil
	})
}

// FetchAll runs FetchMessages and FetchPrices concurrently. Message retrieval is
// skipped when no message source is set and the existing RawMessage table is used.
func (r *Runner) FetchAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if r.deps.Messages != nil {
		g.Go(func() error { return r.FetchMessages(ctx) })
	} else {
		logger.Info("Telegram collection disabled, using existing %s", r.cfg.Paths.MessagesPath())
	}
	g.Go(func() error { return r.FetchPrices(ctx) })
	return g.Wait()
}

// Aggregate parses the RawMessage table and writes the AggregatedBucket table.
func (r *Runner) Aggregate(ctx context.Context) error {
	return r.track(StageAggregate, func(log *logger.Logger) (int, error) {
		cfg := r.cfg.Analysis
		msgs, skipped, err := tables.ReadMessages(r.cfg.Paths.MessagesPath())
		if err != nil {
			return 0, err
		}
		if skipped > 0 {
			log.Warn("Skipped %d messages with unparseable timestamps", skipped)
		}

		res := parser.ParseMessages(msgs, cfg.SymbolFilter)
		log.Info("Parsed %d events from %d messages (rejected=%d, filtered=%d, no_symbol=%d)",
			len(res.Events), res.Messages, res.Rejected, res.Filtered, res.NoSymbol)
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		buckets := aggregate.Aggregate(res.Events, cfg.Interval)
		path := r.cfg.Paths.BucketsPath(cfg.Interval)
		if err := tables.WriteBuckets(path, buckets); err != nil {
			return 0, err
		}
		log.Info("Saved %s (rows=%d, interval=%s)", path, len(buckets), cfg.Interval)
		return len(buckets), nil
	})
}

// Build joins the AggregatedBucket and PriceBar tables and writes the DatasetRow table.
func (r *Runner) Build(ctx context.Context) error {
	return r.track(StageBuild, func(log *logger.Logger) (int, error) {
		interval := r.cfg.Analysis.Interval
		buckets, err := tables.ReadBuckets(r.cfg.Paths.BucketsPath(interval))
		if err != nil {
			return 0, err
		}
		bars, err := tables.ReadPriceBars(r.cfg.Paths.PricesPath(r.cfg.Binance.Symbol, interval))
		if err != nil {
			return 0, err
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		rows := dataset.Build(buckets, bars)
		log.Info("Joined %d buckets with %d bars into %d rows", len(buckets), len(bars), len(rows))

		path := r.cfg.Paths.DatasetPath(interval)
		if err := tables.WriteDataset(path, rows); err != nil {
			return 0, err
		}
		log.Info("Saved %s (rows=%d, interval=%s)", path, len(rows), interval)
		return len(rows), nil
	})
}

// Analyze reads the DatasetRow table, runs the correlation and event-study engines and
// writes both result tables.
func (r *Runner) Analyze(ctx context.Context) (*Report, error) {
	var report *Report
	err := r.track(StageAnalyze, func(log *logger.Logger) (int, error) {
		cfg := r.cfg.Analysis
		rows, err := tables.ReadDataset(r.cfg.Paths.DatasetPath(cfg.Interval))
		if err != nil {
			return 0, err
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		study := analysis.NewEventStudyEngine(cfg)
		rep := &Report{
			Interval:    cfg.Interval,
			Rows:        len(rows),
			Thresholds:  study.Thresholds(rows),
			Correlation: analysis.NewCorrelationEngine(cfg).Run(rows),
			EventStudy:  study.Run(rows),
		}
		log.Info("Analyzed %d rows (long threshold=%g, short threshold=%g)",
			len(rows), rep.Thresholds.Long, rep.Thresholds.Short)

		corrPath := r.cfg.Paths.CorrelationPath(cfg.Interval)
		if err := tables.WriteCorrelations(corrPath, rep.Correlation); err != nil {
			return 0, err
		}
		eventsPath := r.cfg.Paths.EventStudyPath(cfg.Interval)
		if err := tables.WriteEventStudy(eventsPath, rep.EventStudy); err != nil {
			return 0, err
		}
		log.Info("Saved %s and %s", corrPath, eventsPath)

		report = rep
		return len(rows), nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Run executes every stage in order: fetch, aggregate, build, analyze. When
// notifications are enabled the report is sent to the notifier.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if err := r.FetchAll(ctx); err != nil {
		return nil, err
	}
	if err := r.Aggregate(ctx); err != nil {
		return nil, err
	}
	if err := r.Build(ctx); err != nil {
		return nil, err
	}
	report, err := r.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	r.Notify(report)
	return report, nil
}

// Notify sends report to the notifier when notifications are enabled.
func (r *Runner) Notify(report *Report) {
	if !r.cfg.Telegram.Notify || r.deps.Notifier == nil {
		logger.Debug("Summary notification disabled")
		return
	}
	if err := r.deps.Notifier.SendSummary(report.Interval, report.Correlation, report.EventStudy); err != nil {
		logger.Error("Failed to send Telegram summary: %v", err)
		return
	}
	logger.Info("Sent Telegram summary")
}
