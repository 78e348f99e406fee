package pipeline

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/jarvis-voice/core/audio"
	"github.com/koscakluka/jarvis-voice/core/events"
)

type transcriberStub struct {
	mu      sync.Mutex
	results []string
	errs    []error
	calls   [][]byte
}

func (t *transcriberStub) Transcribe(_ context.Context, segment audio.Segment) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := len(t.calls)
	t.calls = append(t.calls, append([]byte(nil), segment.Audio...))
	if i < len(t.errs) && t.errs[i] != nil {
		return "", t.errs[i]
	}
	if i < len(t.results) {
		return t.results[i], nil
	}
	return "", nil
}

type agentStub struct {
	turns [][]string
	errs  []error

	prompts []string
	active  int
	overlap bool
	ended   []string
}

func (a *agentStub) StreamTurn(_ context.Context, sessionID, userText string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		a.active++
		defer func() { a.active-- }()
		if a.active > 1 {
			a.overlap = true
		}

		i := len(a.prompts)
		a.prompts = append(a.prompts, userText)
		var deltas []string
		if i < len(a.turns) {
			deltas = a.turns[i]
		}
		for _, delta := range deltas {
			if !yield(delta, nil) {
				return
			}
		}
		if i < len(a.errs) && a.errs[i] != nil {
			yield("", a.errs[i])
		}
	}
}

func (a *agentStub) EndSession(sessionID string) {
	a.ended = append(a.ended, sessionID)
}

type synthesizerStub struct {
	calls []string
	errs  []error
}

func (s *synthesizerStub) Synthesize(_ context.Context, text string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		i := len(s.calls)
		s.calls = append(s.calls, text)
		if i < len(s.errs) && s.errs[i] != nil {
			yield(nil, s.errs[i])
			return
		}
		yield([]byte("audio:"+text), nil)
	}
}

func chunks(sizes ...int) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for _, size := range sizes {
			if !yield(make([]byte, size)) {
				return
			}
		}
	}
}

func newTestPipeline(t *testing.T, transcriber Transcriber, agent Agent, synthesizer Synthesizer, opts ...PipelineOption) *Pipeline {
	t.Helper()
	p, err := New(append([]PipelineOption{
		WithTranscriber(transcriber),
		WithAgent(agent),
		WithSynthesizer(synthesizer),
	}, opts...)...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return p
}

func collectEvents(seq iter.Seq[events.Event]) []events.Event {
	var out []events.Event
	for event := range seq {
		out = append(out, event)
	}
	return out
}

func kinds(evs []events.Event) []events.Kind {
	out := make([]events.Kind, 0, len(evs))
	for _, event := range evs {
		out = append(out, event.Kind())
	}
	return out
}

func eventSource(evs ...events.Event) iter.Seq[events.Event] {
	return slices.Values(evs)
}

func TestSegmentDispatchesAtThreshold(t *testing.T) {
	testCases := []struct {
		name     string
		sizes    []int
		expected []int
	}{
		{name: "exact threshold", sizes: []int{32000, 32000, 32000}, expected: []int{96000}},
		{name: "crossing threshold", sizes: []int{50000, 50000}, expected: []int{100000}},
		{name: "threshold then tail", sizes: []int{48000, 48000, 10}, expected: []int{96000, 10}},
		{name: "tail only", sizes: []int{1000}, expected: []int{1000}},
		{name: "no audio", sizes: nil, expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			transcriber := &transcriberStub{}
			p := newTestPipeline(t, transcriber, &agentStub{}, &synthesizerStub{})

			collectEvents(p.NewSession().Run(context.Background(), chunks(tc.sizes...)))

			var got []int
			for _, call := range transcriber.calls {
				got = append(got, len(call))
			}
			if !slices.Equal(got, tc.expected) {
				t.Fatalf("expected transcription calls of %v bytes, got %v", tc.expected, got)
			}
		})
	}
}

func TestSilenceProducesNoEvents(t *testing.T) {
	transcriber := &transcriberStub{results: []string{"  \n ", ""}}
	agent := &agentStub{}
	p := newTestPipeline(t, transcriber, agent, &synthesizerStub{})

	evs := collectEvents(p.NewSession().Run(context.Background(), chunks(96000, 500)))

	if len(evs) != 0 {
		t.Fatalf("expected no events, got %v", kinds(evs))
	}
	if len(agent.prompts) != 0 {
		t.Fatalf("expected no agent turns, got %v", agent.prompts)
	}
}

func TestTurnsRunInOrderWithoutOverlap(t *testing.T) {
	transcriber := &transcriberStub{results: []string{"first", "second", "third"}}
	agent := &agentStub{turns: [][]string{{"a."}, {"b."}, {"c."}}}
	p := newTestPipeline(t, transcriber, agent, &synthesizerStub{})

	collectEvents(p.NewSession().Run(context.Background(), chunks(96000, 96000, 96000)))

	if !slices.Equal(agent.prompts, []string{"first", "second", "third"}) {
		t.Fatalf("expected turns in transcript order, got %v", agent.prompts)
	}
	if agent.overlap {
		t.Fatalf("expected turns not to overlap")
	}
}

func TestSynthesisAtSentenceBoundaries(t *testing.T) {
	synthesizer := &synthesizerStub{}
	p := newTestPipeline(t, &transcriberStub{}, &agentStub{}, synthesizer)

	collectEvents(p.synthesize(context.Background(), eventSource(
		events.NewAgentTextDelta("Hello "),
		events.NewAgentTextDelta("world."),
		events.NewAgentTextDelta(" How are you?"),
	)))

	if !slices.Equal(synthesizer.calls, []string{"Hello world.", " How are you?"}) {
		t.Fatalf("expected two synthesis calls, got %q", synthesizer.calls)
	}
}

func TestSynthesisSkipsBlankFragments(t *testing.T) {
	synthesizer := &synthesizerStub{}
	p := newTestPipeline(t, &transcriberStub{}, &agentStub{}, synthesizer)

	evs := collectEvents(p.synthesize(context.Background(), eventSource(
		events.NewAgentTextDelta("Your risk is moderate."),
		events.NewAgentTextDelta("\n\n"),
		events.NewAgentTextDelta(" \t\n"),
	)))

	if !slices.Equal(synthesizer.calls, []string{"Your risk is moderate."}) {
		t.Fatalf("expected a single synthesis call, got %q", synthesizer.calls)
	}
	if evs[len(evs)-1].Kind() != events.KindAgentTextDelta {
		t.Fatalf("expected no audio after blank fragments, got %v", kinds(evs))
	}
}

func TestSynthesisFlushesRemainder(t *testing.T) {
	synthesizer := &synthesizerStub{}
	p := newTestPipeline(t, &transcriberStub{}, &agentStub{}, synthesizer)

	evs := collectEvents(p.synthesize(context.Background(), eventSource(
		events.NewAgentTextDelta("Line one\n"),
		events.NewAgentTextDelta("no boundary"),
	)))
	collectEvents(p.synthesize(context.Background(), eventSource(events.NewAgentTextDelta("   "))))

	if !slices.Equal(synthesizer.calls, []string{"Line one\n", "no boundary"}) {
		t.Fatalf("expected newline boundary and remainder flush, got %q", synthesizer.calls)
	}
	if evs[len(evs)-1].Kind() != events.KindSynthesizedAudio {
		t.Fatalf("expected remainder audio last, got %v", kinds(evs))
	}
}

func TestStagesPassEventsThroughInOrder(t *testing.T) {
	agent := &agentStub{}
	synthesizer := &synthesizerStub{}
	p := newTestPipeline(t, &transcriberStub{}, agent, synthesizer)

	in := []events.Event{
		events.NewTranscriptPartial("what is"),
		events.NewPipelineError(events.StageTransport, "late frame"),
		events.NewSynthesizedAudio([]byte{1}),
		events.NewTranscriptPartial("what is my"),
	}

	out := collectEvents(p.synthesize(context.Background(), p.converse(context.Background(), "s", eventSource(in...))))

	if !slices.Equal(kinds(out), kinds(in)) {
		t.Fatalf("expected %v, got %v", kinds(in), kinds(out))
	}
	if out[3].(events.TranscriptPartial).Text != "what is my" {
		t.Fatalf("expected events unchanged, got %+v", out[3])
	}
	if len(agent.prompts) != 0 || len(synthesizer.calls) != 0 {
		t.Fatalf("expected foreign events to trigger nothing")
	}
}

func TestFailuresDegradeWithoutEndingStream(t *testing.T) {
	transcriber := &transcriberStub{
		results: []string{"", "hello", "again"},
		errs:    []error{errors.New("transcriber down")},
	}
	agent := &agentStub{
		turns: [][]string{{"Sure."}, {"Fine."}},
		errs:  []error{errors.New("agent down")},
	}
	synthesizer := &synthesizerStub{errs: []error{errors.New("tts down")}}
	p := newTestPipeline(t, transcriber, agent, synthesizer)

	evs := collectEvents(p.NewSession().Run(context.Background(), chunks(96000, 96000, 96000)))

	expected := []events.Kind{
		events.KindTranscriptFinal,
		events.KindAgentTextDelta,
		events.KindTranscriptFinal,
		events.KindAgentTextDelta,
		events.KindSynthesizedAudio,
	}
	if !slices.Equal(kinds(evs), expected) {
		t.Fatalf("expected %v, got %v", expected, kinds(evs))
	}
	if !slices.Equal(synthesizer.calls, []string{"Sure.", "Fine."}) {
		t.Fatalf("expected failed fragment dropped and next synthesized, got %q", synthesizer.calls)
	}
}

func TestSurfacedErrorsEmitPipelineErrors(t *testing.T) {
	transcriber := &transcriberStub{errs: []error{errors.New("transcriber down")}}
	p := newTestPipeline(t, transcriber, &agentStub{}, &synthesizerStub{}, WithSurfacedErrors())

	evs := collectEvents(p.NewSession().Run(context.Background(), chunks(96000)))

	if len(evs) != 1 {
		t.Fatalf("expected one error event, got %v", kinds(evs))
	}
	pipelineErr, ok := evs[0].(events.PipelineError)
	if !ok || pipelineErr.Stage != events.StageTranscription || pipelineErr.Message == "" {
		t.Fatalf("expected transcription error event, got %+v", evs[0])
	}
}

func TestEndToEndScenario(t *testing.T) {
	transcriber := &transcriberStub{results: []string{"What is my portfolio risk?"}}
	agent := &agentStub{turns: [][]string{{"Your ", "risk profile ", "is moderate."}}}
	synthesizer := &synthesizerStub{}
	p := newTestPipeline(t, transcriber, agent, synthesizer)

	// 3.5 seconds of 16 kHz mono linear16.
	evs := collectEvents(p.NewSession().Run(context.Background(), chunks(16000, 16000, 16000, 16000, 16000, 16000, 16000)))

	if len(evs) != 5 {
		t.Fatalf("expected 5 events, got %v", kinds(evs))
	}
	if final, ok := evs[0].(events.TranscriptFinal); !ok || final.Text != "What is my portfolio risk?" {
		t.Fatalf("expected final transcript first, got %+v", evs[0])
	}
	for i, expected := range []string{"Your ", "risk profile ", "is moderate."} {
		delta, ok := evs[i+1].(events.AgentTextDelta)
		if !ok || delta.Text != expected {
			t.Fatalf("expected delta %q at %d, got %+v", expected, i+1, evs[i+1])
		}
	}
	speech, ok := evs[4].(events.SynthesizedAudio)
	if !ok || string(speech.Audio) != "audio:Your risk profile is moderate." {
		t.Fatalf("expected synthesized reply last, got %+v", evs[4])
	}
	if len(transcriber.calls) != 2 || len(transcriber.calls[0]) != 96000 || len(transcriber.calls[1]) != 16000 {
		t.Fatalf("expected one full segment and one tail, got %d calls", len(transcriber.calls))
	}
}

func TestPartialTranscripts(t *testing.T) {
	transcriber := &transcriberStub{results: []string{"what", "what is", "what is my risk"}}
	p := newTestPipeline(t, transcriber, &agentStub{}, &synthesizerStub{}, WithPartialWindow(time.Second))

	evs := collectEvents(p.NewSession().Run(context.Background(), chunks(32000, 32000, 32000)))

	expected := []events.Kind{events.KindTranscriptPartial, events.KindTranscriptPartial, events.KindTranscriptFinal}
	if !slices.Equal(kinds(evs), expected) {
		t.Fatalf("expected %v, got %v", expected, kinds(evs))
	}
	if len(transcriber.calls[2]) != 96000 {
		t.Fatalf("expected partials to leave the buffer intact, got final of %d bytes", len(transcriber.calls[2]))
	}
}

type blockingTranscriber struct{}

func (blockingTranscriber) Transcribe(ctx context.Context, _ audio.Segment) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestCallTimeoutBoundsHungCalls(t *testing.T) {
	p := newTestPipeline(t, blockingTranscriber{}, &agentStub{}, &synthesizerStub{},
		WithCallTimeout(20*time.Millisecond), WithSurfacedErrors())

	done := make(chan []events.Event, 1)
	go func() { done <- collectEvents(p.NewSession().Run(context.Background(), chunks(96000))) }()

	select {
	case evs := <-done:
		if len(evs) != 1 || evs[0].Kind() != events.KindPipelineError {
			t.Fatalf("expected a timeout error event, got %v", kinds(evs))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected hung transcription to time out")
	}
}

func TestStoppingRangeStopsSource(t *testing.T) {
	transcriber := &transcriberStub{results: []string{"one", "two"}}
	p := newTestPipeline(t, transcriber, &agentStub{}, &synthesizerStub{})

	pulled := 0
	source := func(yield func([]byte) bool) {
		for range 10 {
			pulled++
			if !yield(make([]byte, 96000)) {
				return
			}
		}
	}

	for range p.NewSession().Run(context.Background(), source) {
		break
	}
	if pulled != 1 {
		t.Fatalf("expected source to stop after first segment, pulled %d", pulled)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New()
	for _, expected := range []error{ErrMissingTranscriber, ErrMissingAgent, ErrMissingSynthesizer} {
		if !errors.Is(err, expected) {
			t.Fatalf("expected %v in %v", expected, err)
		}
	}
}

func TestSessionCloseEndsAgentThreadOnce(t *testing.T) {
	agent := &agentStub{}
	p := newTestPipeline(t, &transcriberStub{}, agent, &synthesizerStub{})

	session := p.NewSession()
	other := p.NewSession()
	session.Close()
	session.Close()

	if len(agent.ended) != 1 || agent.ended[0] != session.ID() {
		t.Fatalf("expected one EndSession for %s, got %v", session.ID(), agent.ended)
	}
	if session.ID() == other.ID() {
		t.Fatalf("expected unique session ids")
	}
}

type warmingAgent struct {
	agentStub
	warmed int
	err    error
}

func (w *warmingAgent) Warm(context.Context) error {
	w.warmed++
	return w.err
}

func TestWarmRunsWarmers(t *testing.T) {
	agent := &warmingAgent{}
	p := newTestPipeline(t, &transcriberStub{}, agent, &synthesizerStub{})
	if err := p.Warm(context.Background()); err != nil {
		t.Fatalf("Warm returned error: %v", err)
	}
	if agent.warmed != 1 {
		t.Fatalf("expected agent warmed once, got %d", agent.warmed)
	}

	agent.err = errors.New("bad tools")
	if err := p.Warm(context.Background()); err == nil {
		t.Fatalf("expected warm error")
	}
}
