package session

import (
	"log/slog"
	"maps"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tomwolfe/ConvoCue/internal/audio"
	"github.com/tomwolfe/ConvoCue/internal/coach"
	"github.com/tomwolfe/ConvoCue/internal/dispatch"
	"github.com/tomwolfe/ConvoCue/internal/energy"
	"github.com/tomwolfe/ConvoCue/internal/health"
	"github.com/tomwolfe/ConvoCue/internal/intent"
	"github.com/tomwolfe/ConvoCue/internal/observe"
	"github.com/tomwolfe/ConvoCue/internal/suggest"
	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
)

// silencePrefix marks suggestions raised by the idle check.
const silencePrefix = "[Silence Breaker] "

// Everything below runs on the loop goroutine.

func (c *Controller) ingestAudio(chunk []float32, meta Meta) {
	if !c.ready(health.ServiceSTT) {
		return
	}
	c.touch()

	if meta.RMS > 0 {
		prev := c.attributor.Current()
		if next := c.attributor.Observe(meta.RMS); next != prev {
			c.dirty = true
			me, them := c.attributor.Averages()
			slog.Debug("session: speaker switched",
				"session_id", c.st.id,
				"speaker", next,
				"rms", meta.RMS,
				"me_avg", me,
				"them_avg", them,
			)
		}
	}

	if samples, ok := c.buffer.Append(chunk); ok {
		c.stopFlushTimer()
		c.transcribe(samples)
		return
	}
	c.armFlush()
}

// armFlush (re)starts the idle flush timer for the current buffer
// generation. A timer that fires after a size flush finds a newer
// generation and does nothing.
func (c *Controller) armFlush() {
	c.stopFlushTimer()
	if c.buffer.Len() == 0 {
		return
	}
	gen := c.buffer.Generation()
	c.flushTimer = c.after(c.cfg.FlushIdle, func() {
		if samples, ok := c.buffer.FlushIdle(gen); ok {
			c.flushTimer = nil
			c.transcribe(samples)
		}
	})
}

func (c *Controller) transcribe(samples []float32) {
	task := c.dispatcher.Issue(dispatch.KindSTT)
	slog.Debug("session: audio flushed",
		"session_id", c.st.id,
		"task_id", task.ID,
		"samples", len(samples),
		"stt_pending", c.dispatcher.Pending(dispatch.KindSTT),
	)
	req := stt.Request{Samples: samples, SampleRate: c.cfg.SampleRate, Language: c.cfg.Language}
	provider := c.cfg.STT
	id := c.st.id

	go func() {
		ctx, span := observe.StartTask(c.ctx, "session.transcribe", id, task.ID,
			attribute.Int("samples", len(samples)))
		tr, err := provider.Transcribe(ctx, req)
		observe.EndSpan(span, err)
		c.post(func() { c.onTranscript(task, tr, err) })
	}()
}

func (c *Controller) onTranscript(task dispatch.Task, tr stt.Transcript, err error) {
	if err != nil {
		if _, out := c.dispatcher.Fail(task.ID); out == dispatch.Accepted {
			c.fail(&RequestError{Kind: task.Kind, TaskID: task.ID, Err: err})
		}
		return
	}
	if _, out := c.dispatcher.Resolve(task.ID); out != dispatch.Accepted {
		return
	}
	if text := strings.TrimSpace(tr.Text); text != "" {
		c.ingestText(text)
		c.dirty = true
	}
}

func (c *Controller) ingestText(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	now := c.clock.Now()
	c.touch()

	var (
		label    intent.Label
		eligible bool
	)
	shortcut, isShortcut := c.cfg.Shortcuts.Lookup(text)
	if isShortcut {
		label, eligible = shortcut.Intent, true
	} else {
		label = c.cfg.Classifier.Classify(text).Label
		eligible = intent.ShouldSuggest(text)
	}
	if !label.IsValid() {
		label = intent.General
	}
	c.history.Record(string(label), now)

	speaker := c.attributor.Current()
	if n := len(c.st.transcript); n > 0 && c.st.transcript[n-1].Speaker == speaker {
		c.st.consecutive++
	} else {
		c.st.consecutive = 1
	}
	c.st.transcript = append(c.st.transcript, Entry{Text: text, Speaker: speaker, Timestamp: now, Intent: label})
	c.st.insights.add(string(label))
	c.st.intent = label

	p := c.st.persona
	c.energy.Deduct(string(label), p.DrainRate)
	c.metrics.RecordDrain(c.ctx, string(label), c.energy.LastDrain())
	c.window.Push(speaker.Label() + ": " + text)

	if speaker == audio.Me || !c.shouldShow(eligible) {
		c.st.suggestion = ""
		c.st.processing = false
		return
	}

	if isShortcut {
		c.show(shortcut.Suggestion, "shortcut")
		return
	}

	recent := c.history.Recent(now)
	band := suggest.BandNormal
	if c.energy.IsExhausted() {
		band = suggest.BandExhausted
	}
	key := suggest.MakeKey(string(label), recent, p.ID, band)
	if e, ok := c.cache.Get(key, now); ok {
		c.metrics.RecordCacheLookup(c.ctx, true)
		c.show(e.Text, "cache")
		return
	}
	c.metrics.RecordCacheLookup(c.ctx, false)

	if !c.ready(health.ServiceLLM) {
		c.st.suggestion = ""
		c.st.processing = false
		return
	}
	c.requestSuggestion(key, label, recent)
}

// shouldShow applies the fatigue fade: below the fatigue threshold an
// eligible suggestion is shown with probability battery/100.
func (c *Controller) shouldShow(eligible bool) bool {
	if !eligible {
		return false
	}
	if !c.energy.IsFatigued() {
		return true
	}
	return c.rand.Float64() < c.energy.Value()/energy.Max
}

func (c *Controller) show(text, source string) {
	c.st.suggestion = text
	c.st.processing = false
	c.st.speakerHint = false
	c.metrics.RecordSuggestion(c.ctx, source)
}

func (c *Controller) requestSuggestion(key string, label intent.Label, recent []string) {
	p := c.st.persona
	exhausted := c.energy.IsExhausted()
	instruction := p.Prompt
	if exhausted {
		instruction = coach.ExhaustedInstruction
	}
	req := coach.SuggestRequest{
		Messages: c.window.Lines(),
		Context: coach.Context{
			Persona:       p.Label,
			Intent:        label,
			Battery:       int(math.Round(c.energy.Value())),
			Exhausted:     exhausted,
			RecentIntents: recent,
		},
		Instruction: instruction,
	}

	c.st.suggestion = coach.BridgePhrase(label)
	c.st.processing = true
	task := c.dispatcher.Issue(dispatch.KindSuggest,
		dispatch.WithSoftTimeout(c.cfg.SoftTimeout, func(dispatch.Task) {
			if c.st.processing {
				c.st.suggestion = coach.StillThinking(label)
				c.dirty = true
			}
		}))
	slog.Debug("session: requesting suggestion",
		"session_id", c.st.id,
		"task_id", task.ID,
		"intent", label,
		"window_lines", c.window.Len(),
		"window_tokens", c.window.TokenEstimate(),
	)
	suggester := c.cfg.Suggester
	id := c.st.id

	go func() {
		ctx, span := observe.StartTask(c.ctx, "session.suggest", id, task.ID,
			attribute.String("intent", string(label)))
		sug, err := suggester.Suggest(ctx, req)
		observe.EndSpan(span, err)
		c.post(func() { c.onSuggestion(task, key, sug, err) })
	}()
}

func (c *Controller) onSuggestion(task dispatch.Task, key string, sug coach.Suggestion, err error) {
	if err != nil {
		if _, out := c.dispatcher.Fail(task.ID); out == dispatch.Accepted {
			c.st.suggestion = ""
			c.st.processing = false
			c.fail(&RequestError{Kind: task.Kind, TaskID: task.ID, Err: err})
			c.dirty = true
		}
		return
	}
	if _, out := c.dispatcher.Resolve(task.ID); out != dispatch.Accepted {
		return
	}
	if evicted, ok := c.cache.Put(key, sug.Text, c.clock.Now()); ok {
		slog.Debug("session: cache evicted", "session_id", c.st.id, "key", evicted)
	}
	c.show(sug.Text, "llm")
	c.st.speakerHint = sug.SpeakerToggle
	c.dirty = true
}

func (c *Controller) summarize() {
	if len(c.st.transcript) == 0 || c.cfg.Summariser == nil {
		return
	}

	lines := make([]coach.Line, len(c.st.transcript))
	stats := coach.Stats{
		TotalCount:   len(c.st.transcript),
		DrainPercent: int(math.Round(energy.Max - c.energy.Value())),
		Distribution: maps.Clone(c.st.insights.Distribution),
		Dominant:     c.st.insights.Dominant,
	}
	for i, e := range c.st.transcript {
		lines[i] = coach.Line{Speaker: string(e.Speaker), Text: e.Text}
		if e.Speaker == audio.Me {
			stats.MeCount++
		} else {
			stats.ThemCount++
		}
	}

	task := c.dispatcher.Issue(dispatch.KindSummarize)
	c.st.summarizing = true
	c.st.summaryErr = ""
	summariser := c.cfg.Summariser
	id := c.st.id

	go func() {
		ctx, span := observe.StartTask(c.ctx, "session.summarize", id, task.ID,
			attribute.Int("entries", len(lines)))
		text, err := summariser.Summarise(ctx, lines, stats)
		observe.EndSpan(span, err)
		c.post(func() { c.onSummary(task, text, err) })
	}()
}

func (c *Controller) onSummary(task dispatch.Task, text string, err error) {
	if err != nil {
		if _, out := c.dispatcher.Fail(task.ID); out == dispatch.Accepted {
			c.st.summarizing = false
			c.st.summaryErr = err.Error()
			c.fail(&RequestError{Kind: task.Kind, TaskID: task.ID, Err: err})
			c.dirty = true
		}
		return
	}
	if _, out := c.dispatcher.Resolve(task.ID); out != dispatch.Accepted {
		return
	}
	c.st.summarizing = false
	c.st.summary = text
	c.dirty = true
}

// armIdle schedules the next silence check.
func (c *Controller) armIdle() {
	c.idleTimer = c.after(c.cfg.IdlePoll, c.idleCheck)
}

// idleCheck raises at most one silence breaker per silence episode.
func (c *Controller) idleCheck() {
	c.armIdle()

	switch {
	case !c.ready(health.ServiceSTT) || !c.ready(health.ServiceLLM):
		return
	case c.energy.Paused() || c.st.processing || c.st.silenceFired:
		return
	case len(c.st.transcript) == 0:
		return
	case c.clock.Now().Sub(c.st.lastActivity) <= c.cfg.SilenceAfter:
		return
	}

	c.st.silenceFired = true
	p := c.st.persona
	c.energy.DeductSilence(string(intent.General), p.DrainRate)
	c.metrics.RecordDrain(c.ctx, string(intent.General), c.energy.LastDrain())

	breakers := p.Breakers()
	c.show(silencePrefix+breakers[c.rand.IntN(len(breakers))], "silence")
	c.st.intent = intent.Social
	c.dirty = true
	slog.Debug("session: silence breaker", "session_id", c.st.id)
}

// fail surfaces a provider error in the snapshot.
func (c *Controller) fail(err *RequestError) {
	c.st.lastErr = err.Error()
	slog.Warn("session: request failed",
		"session_id", c.st.id,
		"kind", err.Kind,
		"task_id", err.TaskID,
		"err", err.Err,
	)
}
