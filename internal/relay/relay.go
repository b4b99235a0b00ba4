// Package relay drives streaming generation calls and replays cached
// answers. In generate mode every text delta is forwarded to the caller as
// it arrives while the full text accumulates for persistence. In deferred
// mode output is withheld until a sentinel marker has been observed, hiding
// the model's reasoning. In replay mode a stored answer is re-emitted in
// small random fragments with a delay so the caller still sees live-typing
// pacing.
package relay

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/foodanalyzer/food-analyzer/internal/metrics"
	"github.com/foodanalyzer/food-analyzer/internal/provider"
)

// GenerationFallback replaces the accumulated text when a stream fails
// mid-generation.
const GenerationFallback = "Error while generating summary"

// Selector yields generation backends in preference order and receives
// health feedback. Satisfied by router.Router.
type Selector interface {
	Candidates(ctx context.Context) ([]provider.Generator, error)
	RecordSuccess(ctx context.Context, id string)
	RecordFailure(ctx context.Context, id string)
}

// Pacing controls replay-mode fragmentation: fragment sizes are drawn
// uniformly from [MinFragment, MaxFragment] runes, with Delay between
// fragments. Tests inject a zero-delay pacing.
type Pacing struct {
	MinFragment int
	MaxFragment int
	Delay       time.Duration
}

func DefaultPacing() Pacing {
	return Pacing{MinFragment: 1, MaxFragment: 10, Delay: 50 * time.Millisecond}
}

type Relay struct {
	selector Selector
	pacing   Pacing
}

func New(selector Selector, pacing Pacing) *Relay {
	if pacing.MinFragment < 1 {
		pacing.MinFragment = 1
	}
	if pacing.MaxFragment < pacing.MinFragment {
		pacing.MaxFragment = pacing.MinFragment
	}
	return &Relay{selector: selector, pacing: pacing}
}

// Generate performs one streaming generation call, forwarding each delta to
// w immediately. It returns the full accumulated text for persistence. If a
// backend fails before emitting anything, the next candidate is tried; once
// content has reached the caller a failure is terminal and the fallback
// string is returned together with the error.
func (r *Relay) Generate(ctx context.Context, req provider.Request, w io.Writer) (string, error) {
	return r.generate(ctx, req, "", w)
}

// GenerateDeferred behaves like Generate but withholds output until marker
// has been seen in the accumulated stream; only content after the marker is
// forwarded. If the marker never appears, nothing is forwarded at all — the
// accumulated text is still returned, and a warning is logged.
func (r *Relay) GenerateDeferred(ctx context.Context, req provider.Request, marker string, w io.Writer) (string, error) {
	return r.generate(ctx, req, marker, w)
}

func (r *Relay) generate(ctx context.Context, req provider.Request, marker string, w io.Writer) (string, error) {
	candidates, err := r.selector.Candidates(ctx)
	if err != nil {
		return GenerationFallback, err
	}

	var lastErr error
	for _, gen := range candidates {
		text, received, err := r.stream(ctx, gen, req, marker, w)
		if err == nil {
			r.selector.RecordSuccess(ctx, gen.ID())
			return text, nil
		}

		r.selector.RecordFailure(ctx, gen.ID())
		metrics.RecordGenerationError(gen.ID())
		slog.Error("generation stream failed", "provider", gen.ID(), "error", err)
		lastErr = err

		if received {
			// Content already reached the caller, a retry would duplicate it.
			return GenerationFallback, err
		}
	}

	return GenerationFallback, lastErr
}

func (r *Relay) stream(ctx context.Context, gen provider.Generator, req provider.Request, marker string, w io.Writer) (text string, received bool, err error) {
	deltas, errs := gen.GenerateStream(ctx, req)

	var full strings.Builder
	var withheld strings.Builder
	forwarding := marker == ""

	for delta := range deltas {
		received = true
		full.WriteString(delta)

		if forwarding {
			w.Write([]byte(delta))
			continue
		}

		withheld.WriteString(delta)
		if idx := strings.Index(withheld.String(), marker); idx >= 0 {
			forwarding = true
			w.Write([]byte(withheld.String()[idx+len(marker):]))
		}
	}

	select {
	case streamErr, ok := <-errs:
		if ok && streamErr != nil {
			return full.String(), received, streamErr
		}
	default:
	}

	if marker != "" && !forwarding {
		slog.Warn("deferred relay finished without observing marker, nothing was forwarded",
			"provider", gen.ID(),
			"marker", marker,
			"accumulated_len", full.Len(),
		)
	}

	return full.String(), received, nil
}

// Replay emits a stored text to w in random fragments so the caller sees
// pacing similar to a live stream. The concatenation of all fragments is
// exactly the stored text.
func (r *Relay) Replay(ctx context.Context, text string, w io.Writer) error {
	runes := []rune(text)

	for len(runes) > 0 {
		size := r.pacing.MinFragment
		if r.pacing.MaxFragment > r.pacing.MinFragment {
			size += rand.Intn(r.pacing.MaxFragment - r.pacing.MinFragment + 1)
		}
		if size > len(runes) {
			size = len(runes)
		}

		if r.pacing.Delay > 0 {
			select {
			case <-time.After(r.pacing.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		w.Write([]byte(string(runes[:size])))
		runes = runes[size:]
	}

	return nil
}
