package agent

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	ports "github.com/nochan-bot/nochan/nochan/dispatch/ports"
)

// streamDecoder folds one invocation's JSONL event stream into an
// InvocationResult. Stateless between invocations: each run gets a fresh
// decoder.
type streamDecoder struct {
	logger    zerolog.Logger
	sessionID string
	text      strings.Builder
	errs      []string
}

func newStreamDecoder(logger zerolog.Logger) *streamDecoder {
	return &streamDecoder{logger: logger}
}

// decodeLine consumes one stdout line. Unparseable lines are logged and
// skipped, never fatal.
func (d *streamDecoder) decodeLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var ev event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		d.logger.Warn().Str("line", truncate(line, 200)).Msg("Non-JSON line from agent")
		return
	}

	d.logger.Debug().Str("type", ev.Type).Str("line", truncate(line, 300)).Msg("Agent event")

	// First session identifier in the stream wins
	if d.sessionID == "" && ev.SessionID != "" {
		d.sessionID = ev.SessionID
	}

	switch ev.Type {
	case eventText:
		d.text.WriteString(ev.Part.Text)

	case eventToolUse:
		// Diagnostics only; tool activity never reaches the reply content
		d.logger.Info().
			Str("tool", ev.Part.Tool).
			Str("status", ev.Part.State.Status).
			Str("title", ev.Part.State.Title).
			Msg("Agent tool call")
		if ev.Part.State.Output != "" {
			d.logger.Debug().Str("output", truncate(ev.Part.State.Output, 500)).Msg("Agent tool output")
		}

	case eventStepStart:
		d.logger.Debug().Str("session", d.sessionID).Msg("Agent step started")

	case eventStepFinish:
		if ev.Part.Reason == "stop" {
			d.logger.Info().
				Float64("cost", ev.Part.Cost).
				Int("tokens_in", ev.Part.Tokens.Input).
				Int("tokens_out", ev.Part.Tokens.Output).
				Msg("Agent finished")
		} else {
			d.logger.Debug().Str("reason", ev.Part.Reason).Msg("Agent step finished")
		}

	case eventError:
		msg := ev.Error.message()
		d.errs = append(d.errs, msg)
		d.logger.Error().Str("error", msg).Msg("Agent error event")

	default:
		d.logger.Debug().Str("type", ev.Type).Msg("Unknown agent event type")
	}
}

// result builds the aggregate invocation result. One or more error events
// force a failure outcome regardless of decoded text.
func (d *streamDecoder) result() ports.InvocationResult {
	res := ports.InvocationResult{
		ContinuationToken: d.sessionID,
		Content:           d.text.String(),
		Outcome:           ports.OutcomeSuccess,
	}
	if len(d.errs) > 0 {
		res.Outcome = ports.OutcomeFailure
		res.ErrorDetail = strings.Join(d.errs, "; ")
	}
	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
