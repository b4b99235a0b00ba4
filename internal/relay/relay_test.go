package relay

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/foodanalyzer/food-analyzer/internal/provider"
)

// fakeGenerator emits a fixed delta sequence, then optionally an error.
type fakeGenerator struct {
	id     string
	deltas []string
	err    error
	calls  int
}

func (f *fakeGenerator) ID() string { return f.id }

func (f *fakeGenerator) GenerateStream(ctx context.Context, req provider.Request) (<-chan string, <-chan error) {
	f.calls++
	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, d := range f.deltas {
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
		if f.err != nil {
			errs <- f.err
		}
	}()
	return out, errs
}

func (f *fakeGenerator) HealthCheck(ctx context.Context) error { return nil }

// fakeSelector yields a fixed candidate list and records feedback.
type fakeSelector struct {
	gens      []provider.Generator
	successes []string
	failures  []string
}

func (s *fakeSelector) Candidates(ctx context.Context) ([]provider.Generator, error) {
	if len(s.gens) == 0 {
		return nil, errors.New("no backends")
	}
	return s.gens, nil
}

func (s *fakeSelector) RecordSuccess(ctx context.Context, id string) {
	s.successes = append(s.successes, id)
}

func (s *fakeSelector) RecordFailure(ctx context.Context, id string) {
	s.failures = append(s.failures, id)
}

func zeroDelay() Pacing {
	return Pacing{MinFragment: 1, MaxFragment: 10, Delay: 0}
}

func TestGenerate_ForwardsAndAccumulates(t *testing.T) {
	gen := &fakeGenerator{id: "fake", deltas: []string{"The ", "product ", "is ", "fine."}}
	sel := &fakeSelector{gens: []provider.Generator{gen}}
	r := New(sel, zeroDelay())

	var buf bytes.Buffer
	text, err := r.Generate(context.Background(), provider.Request{Prompt: "p"}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "The product is fine."
	if text != want {
		t.Errorf("accumulated text = %q, want %q", text, want)
	}
	if buf.String() != want {
		t.Errorf("forwarded text = %q, want %q", buf.String(), want)
	}
	if len(sel.successes) != 1 || sel.successes[0] != "fake" {
		t.Errorf("expected one success record for fake, got %v", sel.successes)
	}
}

func TestGenerate_MidStreamErrorReturnsFallback(t *testing.T) {
	gen := &fakeGenerator{id: "fake", deltas: []string{"partial "}, err: errors.New("stream broke")}
	sel := &fakeSelector{gens: []provider.Generator{gen}}
	r := New(sel, zeroDelay())

	var buf bytes.Buffer
	text, err := r.Generate(context.Background(), provider.Request{}, &buf)
	if err == nil {
		t.Fatal("expected error")
	}
	if text != GenerationFallback {
		t.Errorf("expected fallback string, got %q", text)
	}
	if buf.String() != "partial " {
		t.Errorf("forwarded content before failure should remain, got %q", buf.String())
	}
	if len(sel.failures) != 1 {
		t.Errorf("expected one failure record, got %v", sel.failures)
	}
}

func TestGenerate_FallsBackBeforeFirstDelta(t *testing.T) {
	broken := &fakeGenerator{id: "broken", err: errors.New("connect refused")}
	healthy := &fakeGenerator{id: "healthy", deltas: []string{"ok"}}
	sel := &fakeSelector{gens: []provider.Generator{broken, healthy}}
	r := New(sel, zeroDelay())

	var buf bytes.Buffer
	text, err := r.Generate(context.Background(), provider.Request{}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "ok" || buf.String() != "ok" {
		t.Errorf("expected fallback backend output, got text=%q forwarded=%q", text, buf.String())
	}
	if healthy.calls != 1 {
		t.Error("expected the second backend to be called")
	}
	if len(sel.failures) != 1 || sel.failures[0] != "broken" {
		t.Errorf("expected failure recorded for broken, got %v", sel.failures)
	}
}

func TestGenerate_NoRetryAfterContentForwarded(t *testing.T) {
	flaky := &fakeGenerator{id: "flaky", deltas: []string{"some "}, err: errors.New("mid-stream")}
	healthy := &fakeGenerator{id: "healthy", deltas: []string{"ok"}}
	sel := &fakeSelector{gens: []provider.Generator{flaky, healthy}}
	r := New(sel, zeroDelay())

	var buf bytes.Buffer
	text, err := r.Generate(context.Background(), provider.Request{}, &buf)
	if err == nil {
		t.Fatal("expected error")
	}
	if text != GenerationFallback {
		t.Errorf("expected fallback string, got %q", text)
	}
	if healthy.calls != 0 {
		t.Error("must not retry once content has been forwarded")
	}
}

func TestGenerateDeferred_ForwardsOnlyAfterMarker(t *testing.T) {
	gen := &fakeGenerator{id: "fake", deltas: []string{
		"<thinking>let me think",
		" about it</thi",
		"nking>### Step 1",
		": Chop",
	}}
	sel := &fakeSelector{gens: []provider.Generator{gen}}
	r := New(sel, zeroDelay())

	var buf bytes.Buffer
	text, err := r.GenerateDeferred(context.Background(), provider.Request{}, "</thinking>", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if buf.String() != "### Step 1: Chop" {
		t.Errorf("forwarded = %q, want only post-marker content", buf.String())
	}
	if !strings.Contains(text, "<thinking>let me think") {
		t.Error("accumulated text should include the hidden reasoning")
	}
}

func TestGenerateDeferred_MarkerNeverSeen(t *testing.T) {
	gen := &fakeGenerator{id: "fake", deltas: []string{"no marker ", "anywhere"}}
	sel := &fakeSelector{gens: []provider.Generator{gen}}
	r := New(sel, zeroDelay())

	var buf bytes.Buffer
	text, err := r.GenerateDeferred(context.Background(), provider.Request{}, "</thinking>", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if buf.Len() != 0 {
		t.Errorf("nothing may be forwarded without the marker, got %q", buf.String())
	}
	if text != "no marker anywhere" {
		t.Errorf("full text should still be accumulated, got %q", text)
	}
}

// fragmentRecorder captures each Write as one fragment.
type fragmentRecorder struct {
	fragments []string
}

func (f *fragmentRecorder) Write(p []byte) (int, error) {
	f.fragments = append(f.fragments, string(p))
	return len(p), nil
}

func TestReplay_Completeness(t *testing.T) {
	long := strings.Repeat("Nutritional façade — detail. ", 50) // >1000 runes
	cases := map[string]string{
		"empty":  "",
		"single": "x",
		"long":   long,
	}

	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			r := New(&fakeSelector{}, zeroDelay())
			rec := &fragmentRecorder{}

			if err := r.Replay(context.Background(), text, rec); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := strings.Join(rec.fragments, ""); got != text {
				t.Errorf("concatenated fragments differ from stored text (len %d vs %d)", len(got), len(text))
			}
			for _, frag := range rec.fragments {
				n := utf8.RuneCountInString(frag)
				if n < 1 || n > 10 {
					t.Errorf("fragment size %d outside [1,10]", n)
				}
			}
		})
	}
}

func TestReplay_CancelledContext(t *testing.T) {
	r := New(&fakeSelector{}, Pacing{MinFragment: 1, MaxFragment: 1, Delay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := r.Replay(ctx, "abc", &buf); err == nil {
		t.Error("expected context error")
	}
	if buf.Len() != 0 {
		t.Errorf("no fragments expected after cancellation, got %q", buf.String())
	}
}
