package reading

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daideguchi/yomihosei/internal/audit"
	"github.com/daideguchi/yomihosei/internal/kana"
	"github.com/daideguchi/yomihosei/internal/lexicon"
	"github.com/daideguchi/yomihosei/internal/observe"
	"github.com/daideguchi/yomihosei/pkg/provider/reasoner"
	"github.com/daideguchi/yomihosei/pkg/provider/speech"
	"github.com/daideguchi/yomihosei/pkg/provider/tokenizer"
)

// Engine runs the full correction pipeline for one narration. An Engine
// is not safe for concurrent Runs; create one per narration. Separate
// engines may share the lexicon, providers, and sinks.
type Engine struct {
	log       *slog.Logger
	tok       tokenizer.Tokenizer
	speech    speech.Engine
	reasoner  reasoner.Reasoner
	lex       *lexicon.Lexicon
	risk      *RiskClassifier
	validator *Validator
	budget    Budget
	metrics   *observe.Metrics
	sink      audit.Sink
	speaker   int
	dryRun    bool
	verbose   bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithBudget replaces the default reasoning-call budget.
func WithBudget(b Budget) EngineOption {
	return func(e *Engine) { e.budget = b }
}

// WithValidator replaces the default validator.
func WithValidator(v *Validator) EngineOption {
	return func(e *Engine) { e.validator = v }
}

// WithMetrics sets the metrics instance. Default is
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithAuditSink sets the audit sink. Default is [audit.Nop].
func WithAuditSink(s audit.Sink) EngineOption {
	return func(e *Engine) { e.sink = s }
}

// WithVerboseAudit additionally audits tokens that never reach the
// reasoning stage: trivial matches and forbidden-tier drops get one
// record per token. Off by default; the volume is roughly one record
// per morpheme.
func WithVerboseAudit(on bool) EngineOption {
	return func(e *Engine) { e.verbose = on }
}

// WithSpeaker sets the speech-engine speaker ID used for accent queries.
func WithSpeaker(id int) EngineOption {
	return func(e *Engine) { e.speaker = id }
}

// WithDryRun stops the pipeline after batch selection: no reasoning
// calls are made and no patches are applied. The result reports what
// would have been sent.
func WithDryRun(on bool) EngineOption {
	return func(e *Engine) { e.dryRun = on }
}

// NewEngine assembles an Engine from its providers. lex may be nil,
// which disables hazard and forbidden-list classification.
func NewEngine(tok tokenizer.Tokenizer, sp speech.Engine, rs reasoner.Reasoner, lex *lexicon.Lexicon, opts ...EngineOption) *Engine {
	e := &Engine{
		log:      slog.Default(),
		tok:      tok,
		speech:   sp,
		reasoner: rs,
		lex:      lex,
		risk:     NewRiskClassifier(lex),
		budget:   DefaultBudget(),
		sink:     audit.Nop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.validator == nil {
		e.validator = NewValidator(lex)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Result is the outcome of one correction run.
type Result struct {
	// State is the terminal pipeline state: StateDone, StateAborted, or
	// StateBatching for dry runs.
	State State

	// Queries holds one accent representation per input block. After a
	// successful run the accepted corrections are applied in place;
	// after an abort or dry run they are the engine's untouched output.
	Queries []*speech.AudioQuery

	// Records are the aggregated risky surfaces, in first-seen order.
	Records []*SurfaceRecord

	// Batches are the selected reasoning batches (also set on dry runs).
	Batches [][]*SurfaceRecord

	// Accepted maps surface to its validated corrected reading.
	Accepted map[string]string

	// Rejected maps surface to the reason its correction was refused.
	Rejected map[string]RejectReason

	// PatchCounts tallies patch applications per method.
	PatchCounts map[PatchMethod]int

	// ReasonerCalls is the number of reasoning-service calls made.
	ReasonerCalls int
}

// Run executes the pipeline over the narration's blocks. The displayed
// text is never modified; only the accent representations in
// Result.Queries change.
//
// A reasoning-service failure aborts the run: the returned Result
// carries the untouched accent representations with State ==
// StateAborted, alongside the error, so callers can fall back to
// uncorrected synthesis.
func (e *Engine) Run(ctx context.Context, blocks []string) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "correction.run")
	defer span.End()
	runID := observe.CorrelationID(ctx)
	log := observe.With(ctx, e.log)

	res := &Result{
		State:    StateCollecting,
		Accepted: make(map[string]string),
		Rejected: make(map[string]RejectReason),
	}

	agg := NewAggregator()
	queries, err := e.collect(ctx, blocks, agg)
	res.Queries = queries
	if err != nil {
		res.State = StateAborted
		e.metrics.RecordRun(ctx, "aborted")
		return res, err
	}
	res.Records = agg.Records()

	res.State = StateBatching
	res.Batches = SelectBatches(res.Records, e.budget)
	log.Info("batches selected",
		"surfaces", len(res.Records),
		"batches", len(res.Batches),
		"budget_calls", e.budget.MaxCalls)

	if e.dryRun {
		e.metrics.RecordRun(ctx, "dry_run")
		return res, nil
	}
	if len(res.Batches) == 0 {
		// No decisions and no patches, but the aggregated surfaces still
		// get their unsent records.
		e.writeAudit(ctx, runID, res, nil, nil)
		res.State = StateDone
		e.metrics.RecordRun(ctx, "done")
		return res, nil
	}

	res.State = StateAwaitingCorrection
	decisions, err := e.consult(ctx, res)
	if err != nil {
		res.State = StateAborted
		e.metrics.RecordRun(ctx, "aborted")
		e.metrics.RecordProviderError(ctx, "reasoner")
		return res, err
	}

	res.State = StateValidating
	bySurface := make(map[string]*SurfaceRecord, len(res.Records))
	for _, rec := range res.Records {
		bySurface[rec.Surface] = rec
	}
	for _, d := range decisions {
		rec := bySurface[d.Surface]
		reason := e.validator.Check(d, rec)
		if d.Verdict == reasoner.VerdictNG {
			if reason == RejectNone {
				res.Accepted[d.Surface] = kana.NormalizeReading(d.CorrectedReading)
			} else {
				res.Rejected[d.Surface] = reason
				log.Warn("correction rejected",
					"surface", d.Surface,
					"reading", d.CorrectedReading,
					"reason", string(reason))
			}
		}
		e.metrics.RecordDecision(ctx, string(d.Verdict), string(reason))
	}

	res.State = StatePatching
	patches := BuildPatches(res.Records, res.Accepted)
	outcomes := ApplyPatches(log, res.Queries, patches)
	res.PatchCounts = CountMethods(outcomes)
	for method, n := range res.PatchCounts {
		e.metrics.RecordPatch(ctx, string(method), n)
	}

	e.writeAudit(ctx, runID, res, decisions, outcomes)

	res.State = StateDone
	e.metrics.RecordRun(ctx, "done")
	log.Info("correction run complete",
		"surfaces", len(res.Records),
		"accepted", len(res.Accepted),
		"rejected", len(res.Rejected),
		"reasoner_calls", res.ReasonerCalls)
	return res, nil
}

// collect runs tokenization, accent queries, alignment, disagreement
// detection, and risk classification for every block, feeding the
// aggregator. Provider failures here are fatal: without an accent
// representation per block there is nothing to correct or to return.
func (e *Engine) collect(ctx context.Context, blocks []string, agg *Aggregator) ([]*speech.AudioQuery, error) {
	queries := make([]*speech.AudioQuery, len(blocks))
	runID := observe.CorrelationID(ctx)
	log := observe.With(ctx, e.log)

	for i, text := range blocks {
		if err := ctx.Err(); err != nil {
			return queries, err
		}

		start := time.Now()
		morphemes, err := e.tok.Tokenize(text)
		e.metrics.TokenizeDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			e.metrics.RecordProviderError(ctx, "tokenizer")
			return queries, fmt.Errorf("reading: tokenize block %d: %w", i, err)
		}

		start = time.Now()
		q, err := e.speech.AudioQuery(ctx, text, e.speaker)
		e.metrics.AudioQueryDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			e.metrics.RecordProviderError(ctx, "speech")
			return queries, fmt.Errorf("reading: audio query block %d: %w", i, err)
		}
		queries[i] = q

		for _, tok := range AlignBlock(i, text, morphemes, q) {
			verdict, err := DetectVerdict(tok.BaselineReading, tok.EngineReading)
			if err != nil {
				// Malformed input is absorbed as a trivial match, never
				// fatal for the run.
				log.Warn("token excluded from correction",
					"surface", tok.Surface,
					"block", i,
					"error", err)
			}
			if verdict == VerdictTrivialMatch {
				e.auditToken(ctx, runID, tok, verdict)
				continue
			}
			tier := e.risk.Classify(tok.Surface)
			if tier == TierC {
				e.auditToken(ctx, runID, tok, verdict)
				continue
			}
			agg.Add(tok, tier, e.risk.HazardTags(tok.Surface))
		}
	}
	return queries, nil
}

// consult submits every selected batch sequentially. One attempt per
// batch; any failure is fatal for the run.
func (e *Engine) consult(ctx context.Context, res *Result) ([]reasoner.Decision, error) {
	var decisions []reasoner.Decision

	for _, batch := range res.Batches {
		req := reasoner.BatchRequest{Items: make([]reasoner.QueryItem, 0, len(batch))}
		for _, rec := range batch {
			req.Items = append(req.Items, reasoner.QueryItem{
				Surface:          rec.Surface,
				BaselineReadings: rec.BaselineReadings,
				EngineReadings:   rec.EngineReadings,
				HazardTags:       rec.HazardTags,
				Contexts:         rec.Contexts,
			})
		}

		start := time.Now()
		resp, err := e.reasoner.CorrectReadings(ctx, req)
		e.metrics.ReasonDuration.Record(ctx, time.Since(start).Seconds())
		res.ReasonerCalls++
		if err != nil {
			e.metrics.RecordReasonerCall(ctx, "error", len(req.Items))
			return nil, fmt.Errorf("reading: reasoning call %d: %w", res.ReasonerCalls, err)
		}
		e.metrics.RecordReasonerCall(ctx, "ok", len(req.Items))
		decisions = append(decisions, resp.Decisions...)
	}
	return decisions, nil
}

// auditToken records a token that was absorbed before aggregation,
// either as a trivial match or as a forbidden-tier drop. Only active
// with verbose auditing.
func (e *Engine) auditToken(ctx context.Context, runID string, tok Token, verdict Verdict) {
	if !e.verbose {
		return
	}
	r := audit.Record{
		Timestamp:        time.Now().UTC(),
		RunID:            runID,
		Surface:          tok.Surface,
		Tier:             e.risk.Classify(tok.Surface).String(),
		BaselineReadings: []string{tok.BaselineReading},
		EngineReadings:   []string{tok.EngineReading},
		Verdict:          string(verdict),
		Occurrences:      1,
	}
	if err := e.sink.Write(ctx, r); err != nil {
		e.log.Warn("audit write failed", "surface", tok.Surface, "error", err)
	}
}

// writeAudit emits one record per aggregated surface. Surfaces that
// never made a batch are audited as unsent so the budget's effect stays
// visible.
func (e *Engine) writeAudit(ctx context.Context, runID string, res *Result, decisions []reasoner.Decision, outcomes []PatchOutcome) {
	decided := make(map[string]reasoner.Decision, len(decisions))
	for _, d := range decisions {
		decided[d.Surface] = d
	}
	sent := make(map[string]bool)
	for _, batch := range res.Batches {
		for _, rec := range batch {
			sent[rec.Surface] = true
		}
	}
	aligned := make(map[string]int)
	clipped := make(map[string]int)
	for _, o := range outcomes {
		switch o.Method {
		case PatchAligned:
			aligned[o.Patch.Surface]++
		case PatchClipped:
			clipped[o.Patch.Surface]++
		}
	}

	for _, rec := range res.Records {
		r := audit.Record{
			Timestamp:        time.Now().UTC(),
			RunID:            runID,
			Surface:          rec.Surface,
			Tier:             rec.Tier.String(),
			BaselineReadings: rec.BaselineReadings,
			EngineReadings:   rec.EngineReadings,
			Verdict:          "unsent",
			Occurrences:      len(rec.Occurrences),
			PatchedAligned:   aligned[rec.Surface],
			PatchedClipped:   clipped[rec.Surface],
		}
		if sent[rec.Surface] {
			// Absent decisions count as OK: the service saw the surface
			// and requested no change.
			r.Verdict = string(reasoner.VerdictOK)
			if d, ok := decided[rec.Surface]; ok {
				r.Verdict = string(d.Verdict)
				r.CorrectedReading = res.Accepted[rec.Surface]
				r.Reject = string(res.Rejected[rec.Surface])
			}
		}
		if err := e.sink.Write(ctx, r); err != nil {
			e.log.Warn("audit write failed", "surface", rec.Surface, "error", err)
		}
	}
}
