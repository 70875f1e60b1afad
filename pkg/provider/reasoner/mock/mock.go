// Package mock provides a test double for the reasoner.Reasoner
// interface.
//
// Use Reasoner in unit tests to verify batching behaviour (call counts,
// batch sizes) and to feed controlled decisions without a live model.
//
// Example:
//
//	r := &mock.Reasoner{
//	    Decide: func(s string) reasoner.Decision {
//	        return reasoner.Decision{Surface: s, Verdict: reasoner.VerdictOK}
//	    },
//	}
package mock

import (
	"context"
	"sync"

	"github.com/daideguchi/yomihosei/pkg/provider/reasoner"
)

// Call records a single invocation of CorrectReadings.
type Call struct {
	Ctx context.Context
	Req reasoner.BatchRequest
}

// Reasoner is a mock implementation of reasoner.Reasoner.
//
// Response selection order: Err (if non-nil), Responses (popped per
// call), Decide (applied per item), otherwise an all-OK response.
type Reasoner struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every call.
	Err error

	// Responses are returned one per call, in order. When exhausted,
	// selection falls through to Decide.
	Responses []*reasoner.BatchResponse

	// Decide, when set, produces one Decision per request item.
	Decide func(surface string) reasoner.Decision

	// Calls records every invocation in order. Read after the test.
	Calls []Call
}

var _ reasoner.Reasoner = (*Reasoner)(nil)

// CorrectReadings records the call and returns the configured response.
func (m *Reasoner) CorrectReadings(ctx context.Context, req reasoner.BatchRequest) (*reasoner.BatchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, Call{Ctx: ctx, Req: req})

	if m.Err != nil {
		return nil, m.Err
	}
	if n := len(m.Calls) - 1; n < len(m.Responses) {
		return m.Responses[n], nil
	}

	resp := &reasoner.BatchResponse{}
	for _, it := range req.Items {
		if m.Decide != nil {
			resp.Decisions = append(resp.Decisions, m.Decide(it.Surface))
			continue
		}
		resp.Decisions = append(resp.Decisions, reasoner.Decision{
			Surface: it.Surface,
			Verdict: reasoner.VerdictOK,
		})
	}
	return resp, nil
}

// CallCount returns the number of recorded calls.
func (m *Reasoner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
