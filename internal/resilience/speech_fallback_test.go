package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/daideguchi/yomihosei/pkg/provider/speech/mock"
)

func TestSpeechFallback_PrimaryHealthy(t *testing.T) {
	primary := &mock.Engine{Query: mock.QueryFromKana("イチギョウ")}
	secondary := &mock.Engine{Query: mock.QueryFromKana("ヒトクダリ")}

	f := NewSpeechFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	q, err := f.AudioQuery(context.Background(), "一行", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := q.Reading(); got != "イチギョウ" {
		t.Fatalf("reading = %q, want イチギョウ", got)
	}
	if len(secondary.Calls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.Calls))
	}
}

func TestSpeechFallback_FailsOverToSecondary(t *testing.T) {
	primary := &mock.Engine{Err: errors.New("connection refused")}
	secondary := &mock.Engine{Query: mock.QueryFromKana("ヒトクダリ")}

	f := NewSpeechFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	q, err := f.AudioQuery(context.Background(), "一行", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := q.Reading(); got != "ヒトクダリ" {
		t.Fatalf("reading = %q, want ヒトクダリ", got)
	}
	if len(primary.Calls) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.Calls))
	}
}

func TestSpeechFallback_AllEndpointsDown(t *testing.T) {
	primary := &mock.Engine{Err: errors.New("connection refused")}
	secondary := &mock.Engine{Err: errors.New("gateway timeout")}

	f := NewSpeechFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	_, err := f.AudioQuery(context.Background(), "一行", 1)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("error = %v, want ErrAllFailed", err)
	}
}

func TestSpeechFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &mock.Engine{Err: errors.New("connection refused")}
	secondary := &mock.Engine{Query: mock.QueryFromKana("ヒトクダリ")}

	f := NewSpeechFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	f.AddFallback("secondary", secondary)

	for range 3 {
		if _, err := f.AudioQuery(context.Background(), "一行", 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Two failures trip the primary's breaker; the third query must not
	// reach it.
	if len(primary.Calls) != 2 {
		t.Fatalf("primary called %d times, want 2", len(primary.Calls))
	}
	if len(secondary.Calls) != 3 {
		t.Fatalf("secondary called %d times, want 3", len(secondary.Calls))
	}
}
