// Command yomihosei corrects kanji misreadings in VOICEVOX accent queries
// before synthesis. It tokenizes each narration, compares baseline readings
// against the speech engine's output, asks a reasoning service about the
// risky disagreements, and patches the validated corrections back into the
// accent queries.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/daideguchi/yomihosei/internal/audit"
	"github.com/daideguchi/yomihosei/internal/config"
	"github.com/daideguchi/yomihosei/internal/health"
	"github.com/daideguchi/yomihosei/internal/lexicon"
	"github.com/daideguchi/yomihosei/internal/observe"
	"github.com/daideguchi/yomihosei/internal/reading"
	"github.com/daideguchi/yomihosei/internal/resilience"
	"github.com/daideguchi/yomihosei/pkg/provider/reasoner"
	"github.com/daideguchi/yomihosei/pkg/provider/reasoner/anyllm"
	oareasoner "github.com/daideguchi/yomihosei/pkg/provider/reasoner/openai"
	"github.com/daideguchi/yomihosei/pkg/provider/speech"
	"github.com/daideguchi/yomihosei/pkg/provider/speech/voicevox"
	"github.com/daideguchi/yomihosei/pkg/provider/tokenizer"
	"github.com/daideguchi/yomihosei/pkg/provider/tokenizer/kagome"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	dryRun := flag.Bool("dry-run", false, "detect and batch but make no reasoning calls")
	outDir := flag.String("out", "", "directory for corrected query files (default: next to each input)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "yomihosei: no narration files given\nusage: yomihosei [flags] narration.txt ...")
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "yomihosei: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "yomihosei: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("yomihosei starting",
		"config", *configPath,
		"log_level", cfg.LogLevel,
		"narrations", flag.NArg(),
		"dry_run", *dryRun,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "yomihosei"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	if providers.Tokenizer == nil || providers.Speech == nil {
		slog.Error("tokenizer and speech providers are required",
			"tokenizer", cfg.Tokenizer.Name,
			"speech", cfg.Speech.Name,
		)
		return 1
	}
	if providers.Reasoner == nil && !*dryRun {
		slog.Warn("no reasoner configured, forcing dry run")
		*dryRun = true
	}

	// ── Lexicon ───────────────────────────────────────────────────────────────
	lex, err := lexicon.Load(cfg.Lexicon.HazardsPath, cfg.Lexicon.ForbiddenPath)
	if err != nil {
		slog.Error("failed to load lexicon", "err", err)
		return 1
	}
	slog.Info("lexicon loaded", "hazards", lex.HazardCount(), "forbidden", lex.ForbiddenCount())

	// ── Audit sink ────────────────────────────────────────────────────────────
	sink, err := buildAuditSink(ctx, cfg.Audit)
	if err != nil {
		slog.Error("failed to set up audit sink", "err", err)
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sink.Close(closeCtx); err != nil {
			slog.Warn("audit sink close error", "err", err)
		}
	}()

	// ── Metrics and health endpoints ──────────────────────────────────────────
	if cfg.Metrics.ListenAddr != "" {
		checkers := []health.Checker{health.SpeechChecker(providers.Speech, cfg.Speaker)}
		if pinger, ok := sink.(health.Pinger); ok {
			checkers = append(checkers, health.SinkChecker(pinger))
		}
		srv := serveMetrics(cfg.Metrics.ListenAddr, checkers)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// ── Correction engine ─────────────────────────────────────────────────────
	// An Engine handles one narration at a time; each goroutine below gets
	// its own, sharing the providers, lexicon, and sink.
	engineOpts := []reading.EngineOption{
		reading.WithLogger(logger),
		reading.WithBudget(budgetFromConfig(cfg.Budget)),
		reading.WithValidator(validatorFromConfig(cfg.Validation, lex)),
		reading.WithSpeaker(cfg.Speaker),
		reading.WithDryRun(*dryRun),
		reading.WithAuditSink(sink),
		reading.WithVerboseAudit(cfg.Audit.Verbose),
	}
	newEngine := func() *reading.Engine {
		return reading.NewEngine(providers.Tokenizer, providers.Speech, providers.Reasoner, lex, engineOpts...)
	}

	printStartupSummary(cfg, *dryRun)

	// ── Process narrations ────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, path := range flag.Args() {
		g.Go(func() error {
			return processNarration(gctx, newEngine(), path, *outDir)
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("interrupted")
			return 1
		}
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("all narrations processed")
	return 0
}

// ── Narration processing ──────────────────────────────────────────────────────

// narrationOutput is the JSON document written next to each input file.
// The queries carry the corrected accent representations; the displayed
// text itself is never rewritten.
type narrationOutput struct {
	Source      string               `json:"source"`
	State       string               `json:"state"`
	Accepted    map[string]string    `json:"accepted,omitempty"`
	Rejected    map[string]string    `json:"rejected,omitempty"`
	Calls       int                  `json:"reasoner_calls"`
	PatchCounts map[string]int       `json:"patch_counts,omitempty"`
	Queries     []*speech.AudioQuery `json:"queries"`
}

func processNarration(ctx context.Context, engine *reading.Engine, path, outDir string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read narration %q: %w", path, err)
	}

	blocks := splitBlocks(string(raw))
	if len(blocks) == 0 {
		slog.Warn("narration is empty, skipping", "path", path)
		return nil
	}

	result, err := engine.Run(ctx, blocks)
	if err != nil {
		// An aborted run still carries usable, uncorrected queries. Write
		// them so synthesis can proceed, but surface the failure.
		if result != nil && len(result.Queries) > 0 {
			slog.Warn("correction aborted, writing uncorrected queries",
				"path", path, "err", err)
			if werr := writeOutput(path, outDir, result); werr != nil {
				return werr
			}
			return nil
		}
		return fmt.Errorf("correct narration %q: %w", path, err)
	}

	slog.Info("narration processed",
		"path", path,
		"blocks", len(blocks),
		"state", string(result.State),
		"accepted", len(result.Accepted),
		"rejected", len(result.Rejected),
		"reasoner_calls", result.ReasonerCalls,
	)
	return writeOutput(path, outDir, result)
}

func writeOutput(path, outDir string, result *reading.Result) error {
	out := narrationOutput{
		Source:   filepath.Base(path),
		State:    string(result.State),
		Accepted: result.Accepted,
		Calls:    result.ReasonerCalls,
		Queries:  result.Queries,
	}
	if len(result.Rejected) > 0 {
		out.Rejected = make(map[string]string, len(result.Rejected))
		for surface, reason := range result.Rejected {
			out.Rejected[surface] = string(reason)
		}
	}
	if len(result.PatchCounts) > 0 {
		out.PatchCounts = make(map[string]int, len(result.PatchCounts))
		for method, n := range result.PatchCounts {
			out.PatchCounts[string(method)] = n
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queries for %q: %w", path, err)
	}

	dest := outputPath(path, outDir)
	if err := os.WriteFile(dest, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write queries %q: %w", dest, err)
	}
	slog.Debug("queries written", "path", dest)
	return nil
}

// outputPath derives the destination for a narration's query file:
// the input name with a .queries.json suffix, placed in outDir when set.
func outputPath(path, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".queries.json"
	if outDir != "" {
		return filepath.Join(outDir, base)
	}
	return filepath.Join(filepath.Dir(path), base)
}

// splitBlocks cuts a narration into blocks on blank lines. Whitespace-only
// blocks are dropped; line breaks inside a block are preserved so character
// offsets stay meaningful.
func splitBlocks(text string) []string {
	var blocks []string
	for _, part := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			blocks = append(blocks, trimmed)
		}
	}
	return blocks
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providers bundles the three instantiated pipeline providers.
type providers struct {
	Tokenizer tokenizer.Tokenizer
	Speech    speech.Engine
	Reasoner  reasoner.Reasoner
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterTokenizer("kagome", func(config.ProviderEntry) (tokenizer.Tokenizer, error) {
		return kagome.New()
	})

	reg.RegisterSpeech("voicevox", func(entry config.ProviderEntry) (speech.Engine, error) {
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:50021"
		}
		var opts []voicevox.Option
		if entry.TimeoutSeconds > 0 {
			opts = append(opts, voicevox.WithTimeout(time.Duration(entry.TimeoutSeconds)*time.Second))
		}
		primary := voicevox.New(baseURL, opts...)

		// A second VOICEVOX instance can be named via options for failover.
		fallbackURL := optString(entry.Options, "fallback_url")
		if fallbackURL == "" {
			return primary, nil
		}
		group := resilience.NewSpeechFallback(primary, baseURL, resilience.FallbackConfig{})
		group.AddFallback(fallbackURL, voicevox.New(fallbackURL, opts...))
		return group, nil
	})

	reg.RegisterReasoner("anyllm", func(entry config.ProviderEntry) (reasoner.Reasoner, error) {
		var backendOpts []anyllmlib.Option
		if entry.APIKey != "" {
			backendOpts = append(backendOpts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			backendOpts = append(backendOpts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(entry.Provider, entry.Model, backendOpts)
	})

	reg.RegisterReasoner("openai", func(entry config.ProviderEntry) (reasoner.Reasoner, error) {
		var opts []oareasoner.Option
		if entry.BaseURL != "" {
			opts = append(opts, oareasoner.WithBaseURL(entry.BaseURL))
		}
		if entry.TimeoutSeconds > 0 {
			opts = append(opts, oareasoner.WithTimeout(time.Duration(entry.TimeoutSeconds)*time.Second))
		}
		return oareasoner.New(entry.APIKey, entry.Model, opts...)
	})
}

// buildProviders instantiates the providers named in cfg using the registry.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providers, error) {
	ps := &providers{}

	if name := cfg.Tokenizer.Name; name != "" {
		p, err := reg.CreateTokenizer(cfg.Tokenizer)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not registered, skipping", "kind", "tokenizer", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create tokenizer provider %q: %w", name, err)
		} else {
			ps.Tokenizer = p
			slog.Info("provider created", "kind", "tokenizer", "name", name)
		}
	}

	if name := cfg.Speech.Name; name != "" {
		p, err := reg.CreateSpeech(cfg.Speech)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not registered, skipping", "kind", "speech", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create speech provider %q: %w", name, err)
		} else {
			ps.Speech = p
			slog.Info("provider created", "kind", "speech", "name", name)
		}
	}

	if name := cfg.Reasoner.Name; name != "" {
		p, err := reg.CreateReasoner(cfg.Reasoner)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not registered, skipping", "kind", "reasoner", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create reasoner provider %q: %w", name, err)
		} else {
			ps.Reasoner = p
			slog.Info("provider created", "kind", "reasoner", "name", name, "backend", cfg.Reasoner.Provider)
		}
	}

	return ps, nil
}

// ── Engine configuration ──────────────────────────────────────────────────────

// budgetFromConfig maps the YAML budget onto the engine budget, keeping
// built-in defaults for unset fields.
func budgetFromConfig(bc config.BudgetConfig) reading.Budget {
	b := reading.DefaultBudget()
	if bc.MaxCalls > 0 {
		b.MaxCalls = bc.MaxCalls
	}
	if bc.MaxSurfacesPerCall > 0 {
		b.MaxSurfacesPerCall = bc.MaxSurfacesPerCall
	}
	if bc.MaxTotalSurfaces > 0 {
		b.MaxTotalSurfaces = bc.MaxTotalSurfaces
	}
	return b
}

func validatorFromConfig(vc config.ValidationConfig, lex *lexicon.Lexicon) *reading.Validator {
	var opts []reading.ValidatorOption

	switch vc.Matcher {
	case config.MatcherExact:
		opts = append(opts, reading.WithMatcher(reading.ExactMatcher{}))
	default:
		threshold := vc.FuzzyThreshold
		if threshold == 0 {
			threshold = 0.85
		}
		opts = append(opts, reading.WithMatcher(reading.FuzzyMatcher{Threshold: threshold}))
	}

	if vc.MinConfidence != "" {
		opts = append(opts, reading.WithMinConfidence(reasoner.ParseConfidence(string(vc.MinConfidence))))
	}
	if vc.MoraTolerance != 0 {
		opts = append(opts, reading.WithMoraTolerance(vc.MoraTolerance))
	}

	return reading.NewValidator(lex, opts...)
}

// buildAuditSink assembles the configured decision sinks. With neither a
// file nor Postgres configured, decisions go to the structured log only.
func buildAuditSink(ctx context.Context, ac config.AuditConfig) (audit.Sink, error) {
	var sinks audit.Multi

	if ac.FilePath != "" {
		sinks = append(sinks, audit.NewFileSink(ac.FilePath))
		slog.Info("audit sink enabled", "kind", "file", "path", ac.FilePath)
	}
	if ac.PostgresDSN != "" {
		pg, err := audit.NewPostgresSink(ctx, ac.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect audit database: %w", err)
		}
		sinks = append(sinks, pg)
		slog.Info("audit sink enabled", "kind", "postgres")
	}

	if len(sinks) == 0 {
		return audit.SlogSink{}, nil
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

// ── Metrics endpoint ──────────────────────────────────────────────────────────

func serveMetrics(addr string, checkers []health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics endpoint error", "err", err)
		}
	}()
	return srv
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, dryRun bool) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        yomihosei — run summary        ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Tokenizer", cfg.Tokenizer.Name, "")
	printProvider("Speech", cfg.Speech.Name, "")
	printProvider("Reasoner", cfg.Reasoner.Name, cfg.Reasoner.Model)
	fmt.Printf("║  Speaker         : %-19d ║\n", cfg.Speaker)
	if dryRun {
		fmt.Printf("║  Mode            : %-19s ║\n", "dry run")
	} else {
		fmt.Printf("║  Mode            : %-19s ║\n", "correcting")
	}
	if cfg.Metrics.ListenAddr != "" {
		fmt.Printf("║  Metrics         : %-19s ║\n", cfg.Metrics.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
