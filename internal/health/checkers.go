package health

import (
	"context"
	"fmt"

	"github.com/daideguchi/yomihosei/pkg/provider/speech"
)

// probeText is the text sent to the speech engine by [SpeechChecker].
// A single short kana keeps the probe cheap.
const probeText = "あ"

// SpeechChecker probes the speech engine with a minimal accent query.
// It fails when the engine is unreachable or returns an empty plan.
func SpeechChecker(engine speech.Engine, speaker int) Checker {
	return Checker{
		Name: "speech",
		Check: func(ctx context.Context) error {
			q, err := engine.AudioQuery(ctx, probeText, speaker)
			if err != nil {
				return err
			}
			if q == nil || q.MoraCount() == 0 {
				return fmt.Errorf("empty accent query for probe text")
			}
			return nil
		},
	}
}

// Pinger is the subset of an audit sink that can verify its backing
// connection. The Postgres sink implements it; file and log sinks do not
// need to.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SinkChecker probes an audit sink's backing connection.
func SinkChecker(p Pinger) Checker {
	return Checker{
		Name:  "audit",
		Check: p.Ping,
	}
}
