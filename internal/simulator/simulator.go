package simulator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/signald/internal/classify"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

// namespace seeds the deterministic signal ids.
var namespace = uuid.MustParse("6f1f3c1e-5a0b-4c1e-9a51-2f4b8d7e0c3a")

// Config controls what the simulated adapter returns.
type Config struct {
	Source signal.Source

	// Signals, when set, is returned verbatim (filtered by since) instead
	// of generated items.
	Signals []signal.Signal

	// Count is how many synthetic items to generate. Items the classifiers
	// reject are skipped, so fewer signals may come back.
	Count int

	// Spacing separates generated timestamps. Defaults to one hour.
	Spacing time.Duration

	// Status is the health status to report. Defaults to healthy.
	Status signal.HealthStatus

	// FetchErr is returned by FetchSignals when set.
	FetchErr error

	// Panic makes both FetchSignals and CheckHealth panic.
	Panic bool

	// Latency delays every call, honoring cancellation.
	Latency time.Duration

	Now func() time.Time
}

// Adapter is a simulated integration.
type Adapter struct {
	cfg  Config
	sync signal.SyncState
}

var _ signal.Adapter = (*Adapter)(nil)

// New creates a simulator. An empty Source defaults to slack.
func New(cfg Config) *Adapter {
	if cfg.Source == "" {
		cfg.Source = signal.SourceSlack
	}
	if cfg.Spacing <= 0 {
		cfg.Spacing = time.Hour
	}
	if cfg.Status == "" {
		cfg.Status = signal.StatusHealthy
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Adapter{cfg: cfg}
}

// WithSignals is a shorthand for a healthy simulator returning sigs.
func WithSignals(source signal.Source, sigs ...signal.Signal) *Adapter {
	return New(Config{Source: source, Signals: sigs})
}

// Failing is a shorthand for a simulator whose fetch returns err and whose
// health check reports an error.
func Failing(source signal.Source, err error) *Adapter {
	return New(Config{Source: source, FetchErr: err, Status: signal.StatusError})
}

// Source implements signal.Adapter.
func (a *Adapter) Source() signal.Source {
	return a.cfg.Source
}

// CheckHealth implements signal.Adapter.
func (a *Adapter) CheckHealth(ctx context.Context) signal.IntegrationHealth {
	if a.cfg.Panic {
		panic(fmt.Sprintf("simulated panic in %s health check", a.cfg.Source))
	}
	if err := a.wait(ctx); err != nil {
		return signal.ErrorStatus(a.cfg.Source, err)
	}

	workspace := "Simulated " + string(a.cfg.Source)
	var h signal.IntegrationHealth
	switch a.cfg.Status {
	case signal.StatusDegraded:
		h = signal.Healthy(a.cfg.Source, workspace, []string{"read"}, []string{"history:read"})
	case signal.StatusError:
		msg := "simulated outage"
		if a.cfg.FetchErr != nil {
			msg = a.cfg.FetchErr.Error()
		}
		h = signal.ErrorStatus(a.cfg.Source, fmt.Errorf("%s", msg))
	case signal.StatusNotConfigured:
		return signal.NotConfigured(a.cfg.Source)
	default:
		h = signal.Healthy(a.cfg.Source, workspace, []string{"read"}, nil)
	}
	return a.sync.Apply(h)
}

// FetchSignals implements signal.Adapter.
func (a *Adapter) FetchSignals(ctx context.Context, since *time.Time) ([]signal.Signal, error) {
	if a.cfg.Panic {
		panic(fmt.Sprintf("simulated panic in %s fetch", a.cfg.Source))
	}
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	now := a.cfg.Now()
	if a.cfg.FetchErr != nil {
		a.sync.Record(now, a.cfg.FetchErr)
		return nil, a.cfg.FetchErr
	}

	var sigs []signal.Signal
	if a.cfg.Signals != nil {
		sigs = make([]signal.Signal, len(a.cfg.Signals))
		copy(sigs, a.cfg.Signals)
	} else {
		sigs = a.generate(now)
	}

	out := make([]signal.Signal, 0, len(sigs))
	for _, s := range sigs {
		if since != nil && s.Timestamp.Before(*since) {
			continue
		}
		if s.Source == "" {
			s.Source = a.cfg.Source
		}
		s.Normalize()
		out = append(out, s)
	}
	signal.SortByTimestampDesc(out)
	a.sync.Record(now, nil)
	return out, nil
}

func (a *Adapter) wait(ctx context.Context) error {
	if a.cfg.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(a.cfg.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// generate builds Count synthetic signals ending at now.
func (a *Adapter) generate(now time.Time) []signal.Signal {
	out := make([]signal.Signal, 0, a.cfg.Count)
	for i := 0; i < a.cfg.Count; i++ {
		ts := now.Add(-time.Duration(i) * a.cfg.Spacing)
		sourceID := uuid.NewSHA1(namespace, []byte(string(a.cfg.Source)+"/"+strconv.Itoa(i))).String()
		s, ok := a.item(i, now)
		if !ok {
			continue
		}
		s.SourceID = sourceID
		s.Timestamp = ts
		s.URL = "https://sim.signald.local/" + string(a.cfg.Source) + "/" + sourceID
		s.Metadata = map[string]any{"simulated": true, "index": i}
		out = append(out, s)
	}
	return out
}

func (a *Adapter) item(i int, now time.Time) (signal.Signal, bool) {
	switch a.cfg.Source {
	case signal.SourceAsana, signal.SourceLinear, signal.SourceJira, signal.SourceGitHub:
		return taskItem(i, now)
	case signal.SourceWhatsApp:
		return businessItem(i)
	default:
		return chatItem(i)
	}
}

func chatItem(i int) (signal.Signal, bool) {
	m := chatMessages[i%len(chatMessages)]
	res, ok := classify.ClassifyChat(m.text)
	if !ok || res.Confidence < classify.ChatConfidenceThreshold {
		return signal.Signal{}, false
	}
	return signal.Signal{
		Category:   res.Category,
		Confidence: res.Confidence,
		Title:      classify.ExtractTitle(m.text, signal.MaxTitleLen),
		Snippet:    classify.StripMarkup(m.text),
		Sender:     m.sender,
		Channel:    m.channel,
	}, true
}

func taskItem(i int, now time.Time) (signal.Signal, bool) {
	t := sampleTasks[i%len(sampleTasks)]
	task := classify.Task{Name: t.name, Notes: t.notes, Tags: t.tags}
	if t.dueInDays != nil {
		due := now.UTC().Truncate(24*time.Hour).AddDate(0, 0, *t.dueInDays)
		task.Due = &due
	}
	res, ok := classify.ClassifyTask(task, now)
	if !ok {
		return signal.Signal{}, false
	}
	return signal.Signal{
		Category:   res.Category,
		Confidence: res.Confidence,
		Title:      t.name,
		Snippet:    t.notes,
		Owner:      "Sim User",
		Deadline:   task.Due,
		Channel:    t.project,
	}, true
}

func businessItem(i int) (signal.Signal, bool) {
	m := businessMessages[i%len(businessMessages)]
	res, ok := classify.ClassifyBusiness(m.text)
	if !ok {
		return signal.Signal{}, false
	}
	return signal.Signal{
		Category:   res.Category,
		Confidence: res.Confidence,
		Title:      res.Title,
		Snippet:    m.text,
		Sender:     m.sender,
		Channel:    "whatsapp",
	}, true
}
