package reading

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/daideguchi/yomihosei/internal/audit"
	"github.com/daideguchi/yomihosei/pkg/provider/reasoner"
	reasonermock "github.com/daideguchi/yomihosei/pkg/provider/reasoner/mock"
	"github.com/daideguchi/yomihosei/pkg/provider/speech"
	speechmock "github.com/daideguchi/yomihosei/pkg/provider/speech/mock"
	"github.com/daideguchi/yomihosei/pkg/provider/tokenizer"
	tokmock "github.com/daideguchi/yomihosei/pkg/provider/tokenizer/mock"
)

// memorySink collects audit records in memory.
type memorySink struct {
	records []audit.Record
}

func (m *memorySink) Write(_ context.Context, rec audit.Record) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) Close(context.Context) error { return nil }

// ichigyouFixture wires mocks for the narration 一行目を読む where the
// engine misreads 一行 as ヒトクダリ.
func ichigyouFixture(t *testing.T) (*tokmock.Tokenizer, *speechmock.Engine) {
	t.Helper()
	text := "一行目を読む"
	tok := &tokmock.Tokenizer{ByText: map[string][]tokenizer.Morpheme{
		text: {
			{Surface: "一行", Reading: "イチギョウ", Start: 0},
			{Surface: "目", Reading: "メ", Start: 2},
			{Surface: "を", Reading: "ヲ", Start: 3},
			{Surface: "読む", Reading: "ヨム", Start: 4},
		},
	}}
	sp := &speechmock.Engine{ByText: map[string]*speech.AudioQuery{
		text: speechmock.QueryFromKana("ヒトクダリ", "メ", "ヲ", "ヨム"),
	}}
	return tok, sp
}

func TestEngineRun_CorrectsMisreading(t *testing.T) {
	t.Parallel()

	tok, sp := ichigyouFixture(t)
	rs := &reasonermock.Reasoner{
		Decide: func(surface string) reasoner.Decision {
			return reasoner.Decision{
				Surface:          surface,
				Verdict:          reasoner.VerdictNG,
				CorrectedReading: "イチギョウ",
				Confidence:       reasoner.ConfidenceHigh,
			}
		},
	}
	sink := &memorySink{}

	e := NewEngine(tok, sp, rs, testLexicon(t), WithAuditSink(sink))
	res, err := e.Run(context.Background(), []string{"一行目を読む"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.State != StateDone {
		t.Errorf("state = %v, want done", res.State)
	}
	if got := res.Queries[0].Reading(); got != "イチギョウメヲヨム" {
		t.Errorf("patched reading = %q, want イチギョウメヲヨム", got)
	}
	if res.Accepted["一行"] != "イチギョウ" {
		t.Errorf("accepted = %v", res.Accepted)
	}
	if rs.CallCount() != 1 {
		t.Errorf("reasoner calls = %d, want 1", rs.CallCount())
	}

	// The hazard tags must ride along to the reasoning service.
	if items := rs.Calls[0].Req.Items; len(items) != 1 || len(items[0].HazardTags) == 0 {
		t.Errorf("batch items = %+v, want 一行 with hazard tags", items)
	}

	// One audit record per aggregated surface.
	if len(sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(sink.records))
	}
	rec := sink.records[0]
	if rec.Surface != "一行" || rec.Verdict != "ng" || rec.CorrectedReading != "イチギョウ" {
		t.Errorf("audit record = %+v", rec)
	}
	if rec.PatchedAligned != 1 {
		t.Errorf("audit patched_aligned = %d, want 1", rec.PatchedAligned)
	}
}

func TestEngineRun_NoDisagreements(t *testing.T) {
	t.Parallel()

	text := "犬と猫"
	tok := &tokmock.Tokenizer{ByText: map[string][]tokenizer.Morpheme{
		text: {
			{Surface: "犬", Reading: "イヌ", Start: 0},
			{Surface: "と", Reading: "ト", Start: 1},
			{Surface: "猫", Reading: "ネコ", Start: 2},
		},
	}}
	sp := &speechmock.Engine{ByText: map[string]*speech.AudioQuery{
		text: speechmock.QueryFromKana("イヌ", "ト", "ネコ"),
	}}
	rs := &reasonermock.Reasoner{}

	e := NewEngine(tok, sp, rs, testLexicon(t))
	res, err := e.Run(context.Background(), []string{text})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("state = %v, want done", res.State)
	}
	if rs.CallCount() != 0 {
		t.Errorf("reasoner calls = %d, want 0 when nothing disagrees", rs.CallCount())
	}
	if got := res.Queries[0].Reading(); got != "イヌトネコ" {
		t.Errorf("reading = %q, want untouched イヌトネコ", got)
	}
}

func TestEngineRun_AbortOnReasonerFailure(t *testing.T) {
	t.Parallel()

	tok, sp := ichigyouFixture(t)
	rs := &reasonermock.Reasoner{Err: errors.New("model unavailable")}

	e := NewEngine(tok, sp, rs, testLexicon(t))
	res, err := e.Run(context.Background(), []string{"一行目を読む"})
	if err == nil {
		t.Fatal("Run returned nil error")
	}
	if res.State != StateAborted {
		t.Errorf("state = %v, want aborted", res.State)
	}
	// The accent representation must be returned untouched for fallback
	// synthesis.
	if got := res.Queries[0].Reading(); got != "ヒトクダリメヲヨム" {
		t.Errorf("reading = %q, want the engine's original", got)
	}
	if len(res.Accepted) != 0 {
		t.Errorf("accepted = %v, want none after abort", res.Accepted)
	}
}

func TestEngineRun_RejectedCorrectionLeavesAudioUntouched(t *testing.T) {
	t.Parallel()

	tok, sp := ichigyouFixture(t)
	rs := &reasonermock.Reasoner{
		Decide: func(surface string) reasoner.Decision {
			return reasoner.Decision{
				Surface:          surface,
				Verdict:          reasoner.VerdictNG,
				CorrectedReading: "totally wrong", // not kana
				Confidence:       reasoner.ConfidenceHigh,
			}
		},
	}

	e := NewEngine(tok, sp, rs, testLexicon(t))
	res, err := e.Run(context.Background(), []string{"一行目を読む"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("state = %v, want done (rejection is not an abort)", res.State)
	}
	if res.Rejected["一行"] != RejectNotKana {
		t.Errorf("rejected = %v, want 一行 → not_kana", res.Rejected)
	}
	if got := res.Queries[0].Reading(); got != "ヒトクダリメヲヨム" {
		t.Errorf("reading = %q, want untouched after rejection", got)
	}
}

func TestEngineRun_DryRunMakesNoCalls(t *testing.T) {
	t.Parallel()

	tok, sp := ichigyouFixture(t)
	rs := &reasonermock.Reasoner{}

	e := NewEngine(tok, sp, rs, testLexicon(t), WithDryRun(true))
	res, err := e.Run(context.Background(), []string{"一行目を読む"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateBatching {
		t.Errorf("state = %v, want batching", res.State)
	}
	if rs.CallCount() != 0 {
		t.Errorf("reasoner calls = %d, want 0 on dry run", rs.CallCount())
	}
	if len(res.Batches) != 1 || res.Batches[0][0].Surface != "一行" {
		t.Errorf("batches = %+v, want 一行 selected", res.Batches)
	}
	if got := res.Queries[0].Reading(); got != "ヒトクダリメヲヨム" {
		t.Errorf("reading = %q, want untouched on dry run", got)
	}
}

func TestEngineRun_BudgetLimitsSurfaces(t *testing.T) {
	t.Parallel()

	// Two disagreeing surfaces but budget for one.
	text := "辛い一行"
	tok := &tokmock.Tokenizer{ByText: map[string][]tokenizer.Morpheme{
		text: {
			{Surface: "辛い", Reading: "カライ", Start: 0},
			{Surface: "一行", Reading: "イチギョウ", Start: 2},
		},
	}}
	sp := &speechmock.Engine{ByText: map[string]*speech.AudioQuery{
		text: speechmock.QueryFromKana("ツライ", "ヒトクダリ"),
	}}
	rs := &reasonermock.Reasoner{}

	e := NewEngine(tok, sp, rs, testLexicon(t),
		WithBudget(Budget{MaxCalls: 1, MaxSurfacesPerCall: 1, MaxTotalSurfaces: 1}))
	res, err := e.Run(context.Background(), []string{text})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rs.CallCount() != 1 {
		t.Fatalf("reasoner calls = %d, want 1", rs.CallCount())
	}
	items := rs.Calls[0].Req.Items
	if len(items) != 1 {
		t.Fatalf("batch size = %d, want 1", len(items))
	}
	// 一行 is Tier A (hazard) and must outrank the Tier B 辛い.
	if items[0].Surface != "一行" {
		t.Errorf("selected surface = %q, want 一行", items[0].Surface)
	}
	if len(res.Records) != 2 {
		t.Errorf("records = %d, want both surfaces aggregated", len(res.Records))
	}
}

func TestEngineRun_TokenizerFailureAborts(t *testing.T) {
	t.Parallel()

	tok := &tokmock.Tokenizer{Err: fmt.Errorf("dictionary not loaded")}
	sp := &speechmock.Engine{}
	rs := &reasonermock.Reasoner{}

	e := NewEngine(tok, sp, rs, testLexicon(t))
	res, err := e.Run(context.Background(), []string{"一行目を読む"})
	if err == nil {
		t.Fatal("Run returned nil error")
	}
	if res.State != StateAborted {
		t.Errorf("state = %v, want aborted", res.State)
	}
}

func TestEngineRun_Idempotent(t *testing.T) {
	t.Parallel()

	// Two full runs over the same narration, with the same providers and
	// decisions, must produce byte-identical patched representations.
	correct := func() *Result {
		tok, sp := ichigyouFixture(t)
		rs := &reasonermock.Reasoner{
			Decide: func(surface string) reasoner.Decision {
				return reasoner.Decision{
					Surface:          surface,
					Verdict:          reasoner.VerdictNG,
					CorrectedReading: "イチギョウ",
					Confidence:       reasoner.ConfidenceHigh,
				}
			},
		}
		e := NewEngine(tok, sp, rs, testLexicon(t))
		res, err := e.Run(context.Background(), []string{"一行目を読む"})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	}

	first := correct()
	second := correct()

	a, err := json.Marshal(first.Queries)
	if err != nil {
		t.Fatalf("marshal first run: %v", err)
	}
	b, err := json.Marshal(second.Queries)
	if err != nil {
		t.Fatalf("marshal second run: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("repeated runs diverge:\nfirst:  %s\nsecond: %s", a, b)
	}
	if got := first.Queries[0].Reading(); got != "イチギョウメヲヨム" {
		t.Errorf("patched reading = %q, want イチギョウメヲヨム", got)
	}
}

func TestEngineRun_CorrectedInputNeedsNoCalls(t *testing.T) {
	t.Parallel()

	// Feeding text whose engine reading already matches the baseline (as
	// it would after a successful correction) must produce zero calls and
	// zero patches.
	text := "一行目を読む"
	tok := &tokmock.Tokenizer{ByText: map[string][]tokenizer.Morpheme{
		text: {
			{Surface: "一行", Reading: "イチギョウ", Start: 0},
			{Surface: "目", Reading: "メ", Start: 2},
			{Surface: "を", Reading: "ヲ", Start: 3},
			{Surface: "読む", Reading: "ヨム", Start: 4},
		},
	}}
	sp := &speechmock.Engine{ByText: map[string]*speech.AudioQuery{
		text: speechmock.QueryFromKana("イチギョウ", "メ", "ヲ", "ヨム"),
	}}
	rs := &reasonermock.Reasoner{}

	e := NewEngine(tok, sp, rs, testLexicon(t))
	res, err := e.Run(context.Background(), []string{text})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rs.CallCount() != 0 {
		t.Errorf("reasoner calls = %d, want 0 on already-correct input", rs.CallCount())
	}
	if got := res.Queries[0].Reading(); got != "イチギョウメヲヨム" {
		t.Errorf("reading = %q, want unchanged", got)
	}
}

func TestEngineRun_ZeroBudgetAuditsUnsent(t *testing.T) {
	t.Parallel()

	tok, sp := ichigyouFixture(t)
	rs := &reasonermock.Reasoner{}
	sink := &memorySink{}

	e := NewEngine(tok, sp, rs, testLexicon(t),
		WithAuditSink(sink),
		WithBudget(Budget{}))
	res, err := e.Run(context.Background(), []string{"一行目を読む"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("state = %v, want done", res.State)
	}
	if rs.CallCount() != 0 {
		t.Errorf("reasoner calls = %d, want 0 with a zero budget", rs.CallCount())
	}

	// The budget-cut surface must still leave an audit trail.
	if len(sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(sink.records))
	}
	if rec := sink.records[0]; rec.Surface != "一行" || rec.Verdict != "unsent" {
		t.Errorf("audit record = %+v, want 一行 unsent", rec)
	}
}

func TestEngineRun_VerboseAuditRecordsAbsorbedTokens(t *testing.T) {
	t.Parallel()

	tok, sp := ichigyouFixture(t)
	rs := &reasonermock.Reasoner{
		Decide: func(surface string) reasoner.Decision {
			return reasoner.Decision{
				Surface:          surface,
				Verdict:          reasoner.VerdictNG,
				CorrectedReading: "イチギョウ",
				Confidence:       reasoner.ConfidenceHigh,
			}
		},
	}
	sink := &memorySink{}

	e := NewEngine(tok, sp, rs, testLexicon(t),
		WithAuditSink(sink),
		WithVerboseAudit(true))
	if _, err := e.Run(context.Background(), []string{"一行目を読む"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 目, を, and 読む absorb trivially and get one record each on top of
	// the aggregated 一行 record.
	if len(sink.records) != 4 {
		t.Fatalf("audit records = %d, want 4", len(sink.records))
	}
	trivial := 0
	for _, rec := range sink.records {
		if rec.Verdict == string(VerdictTrivialMatch) {
			trivial++
			if rec.Occurrences != 1 {
				t.Errorf("trivial record %q occurrences = %d, want 1", rec.Surface, rec.Occurrences)
			}
		}
	}
	if trivial != 3 {
		t.Errorf("trivial records = %d, want 3", trivial)
	}
}

func TestEngineRun_EmptyEngineReadingLoggedNotFatal(t *testing.T) {
	t.Parallel()

	// The speech engine drops 一行's morae entirely, so its span aligns to
	// nothing and the detector sees an empty reading.
	text := "一行と"
	tok := &tokmock.Tokenizer{ByText: map[string][]tokenizer.Morpheme{
		text: {
			{Surface: "一行", Reading: "イチギョウ", Start: 0},
			{Surface: "と", Reading: "ト", Start: 2},
		},
	}}
	sp := &speechmock.Engine{ByText: map[string]*speech.AudioQuery{
		text: speechmock.QueryFromKana("ト"),
	}}
	rs := &reasonermock.Reasoner{}

	var buf bytes.Buffer
	e := NewEngine(tok, sp, rs, testLexicon(t),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	res, err := e.Run(context.Background(), []string{text})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("state = %v, want done", res.State)
	}
	if rs.CallCount() != 0 {
		t.Errorf("reasoner calls = %d, want 0", rs.CallCount())
	}
	if !strings.Contains(buf.String(), "token excluded from correction") {
		t.Errorf("log output missing exclusion warning:\n%s", buf.String())
	}
	// Run-stage messages must land on the injected logger too.
	if !strings.Contains(buf.String(), "batches selected") {
		t.Errorf("log output missing run-stage message:\n%s", buf.String())
	}
}

func TestEngines_RunConcurrentlyWithSharedProviders(t *testing.T) {
	t.Parallel()

	tok, sp := ichigyouFixture(t)
	rs := &reasonermock.Reasoner{
		Decide: func(surface string) reasoner.Decision {
			return reasoner.Decision{
				Surface:          surface,
				Verdict:          reasoner.VerdictNG,
				CorrectedReading: "イチギョウ",
				Confidence:       reasoner.ConfidenceHigh,
			}
		},
	}
	lex := testLexicon(t)

	// One engine per narration; the providers and lexicon behind them are
	// shared.
	results := make([]*Result, 4)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := NewEngine(tok, sp, rs, lex)
			res, err := e.Run(context.Background(), []string{"一行目を読む"})
			if err != nil {
				t.Errorf("Run %d: %v", i, err)
				return
			}
			results[i] = res
		}()
	}
	wg.Wait()

	for i, res := range results {
		if res == nil {
			continue
		}
		if got := res.Queries[0].Reading(); got != "イチギョウメヲヨム" {
			t.Errorf("run %d reading = %q, want イチギョウメヲヨム", i, got)
		}
	}
	if rs.CallCount() != 4 {
		t.Errorf("reasoner calls = %d, want 4", rs.CallCount())
	}
}
