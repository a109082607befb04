// Package orchestrator runs a sign-in batch: expand targets, resolve each
// credential, check in with retry, record history, then report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crucial707/autosignin/internal/config"
	"github.com/crucial707/autosignin/internal/credential"
	"github.com/crucial707/autosignin/internal/metrics"
	"github.com/crucial707/autosignin/internal/models"
	"github.com/crucial707/autosignin/internal/notify"
	"github.com/crucial707/autosignin/internal/report"
	"github.com/crucial707/autosignin/internal/retry"
	"github.com/crucial707/autosignin/internal/targets"
)

// PacingUnits is the delay between two targets of a batch, in time units.
const PacingUnits = 5

// State is the run phase.
type State string

const (
	StateIdle      State = "idle"
	StateExpanding State = "expanding"
	StateRunning   State = "running"
	StateReporting State = "reporting"
)

// CredentialResolver looks up a target's credential.
type CredentialResolver interface {
	Resolve(ctx context.Context, targetID, baseURL string) (string, credential.Source, error)
}

// HistoryRecorder persists one outcome.
type HistoryRecorder interface {
	Record(ctx context.Context, date, target string, o models.Outcome) error
}

// Deps are the collaborators of an Orchestrator. Sites, History and Notifier
// may be nil.
type Deps struct {
	Sites    credential.SiteLister
	History  HistoryRecorder
	Notifier notify.Notifier
	Sessions targets.SessionFactory
	Presets  map[string]targets.Entry
	Sleep    retry.Sleeper
	Now      func() time.Time
}

// Orchestrator owns one configured set of targets. Runs are serialized.
type Orchestrator struct {
	cfg      config.SignIn
	registry *targets.Registry
	resolver CredentialResolver
	exec     *retry.Executor
	history  HistoryRecorder
	notifier notify.Notifier
	sleep    retry.Sleeper
	now      func() time.Time

	mu    sync.Mutex
	state State
	stMu  sync.RWMutex
}

// New builds an Orchestrator from cfg. The custom site text is parsed once here.
func New(cfg config.SignIn, deps Deps) *Orchestrator {
	if deps.Sessions == nil {
		deps.Sessions = targets.NewSessionFactory(cfg.HTTPTimeout, cfg.UserAgent)
	}
	if deps.Presets == nil {
		deps.Presets = targets.Presets()
	}
	if deps.Sleep == nil {
		deps.Sleep = retry.Sleep
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	custom := targets.ParseCustomSites(cfg.CustomSites)

	// Custom lines carry their own cookie; an explicit inline cookie for the
	// same id takes precedence.
	inline := make(map[string]string, len(cfg.Cookies)+len(custom))
	for _, c := range custom {
		if c.Credential != "" {
			inline[strings.ToLower(c.Name)] = c.Credential
		}
	}
	for k, v := range cfg.Cookies {
		if v != "" {
			inline[strings.ToLower(k)] = v
		}
	}

	exec := retry.New(cfg.MaxAttempts, cfg.Unit)
	exec.Sleep = deps.Sleep

	return &Orchestrator{
		cfg:      cfg,
		registry: targets.NewRegistry(deps.Presets, custom, deps.Sessions),
		resolver: credential.NewResolver(deps.Sites, inline),
		exec:     exec,
		history:  deps.History,
		notifier: deps.Notifier,
		sleep:    deps.Sleep,
		now:      deps.Now,
		state:    StateIdle,
	}
}

// State returns the current run phase.
func (o *Orchestrator) State() State {
	o.stMu.RLock()
	defer o.stMu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.stMu.Lock()
	o.state = s
	o.stMu.Unlock()
}

// Targets expands ids (the configured sites when ids is nil) plus every
// custom site into the run's target list. Duplicates keep their first position.
func (o *Orchestrator) Targets(ids []string) []models.Target {
	if ids == nil {
		ids = o.cfg.Sites
	}
	seen := make(map[string]bool)
	var out []models.Target
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		t := models.Target{ID: id}
		if e, err := o.registry.Lookup(id); err == nil {
			t.Kind = e.Kind
			t.BaseURL = e.BaseURL
			t.Credential = e.Credential
		}
		out = append(out, t)
	}
	for _, id := range ids {
		add(id)
	}
	for _, name := range o.registry.CustomNames() {
		add(name)
	}
	return out
}

// Trigger starts a batch in the background and returns immediately.
func (o *Orchestrator) Trigger(ids []string) {
	go o.RunBatch(context.Background(), ids)
}

// RunBatch runs every target sequentially and returns the outcomes in batch
// order. An empty target list logs a warning and returns nil without a report.
func (o *Orchestrator) RunBatch(ctx context.Context, ids []string) []models.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.setState(StateIdle)

	runID := uuid.New().String()
	log := slog.With("run_id", runID)

	o.setState(StateExpanding)
	list := o.Targets(ids)
	if len(list) == 0 {
		log.Warn("orchestrator: no sign-in targets configured")
		return nil
	}

	done := metrics.StartRun()
	start := time.Now()
	defer func() { done(time.Since(start).Seconds()) }()

	o.setState(StateRunning)
	log.Info("orchestrator: starting sign-in", "targets", len(list))
	outcomes := make([]models.Outcome, 0, len(list))
	for i, t := range list {
		log.Info("orchestrator: signing in", "target", t.ID)
		out := o.runTarget(ctx, t)
		outcomes = append(outcomes, out)
		metrics.RecordSignIn(t.ID, out.Success, out.Attempts)
		log.Info("orchestrator: target finished",
			"target", t.ID, "success", out.Success, "attempts", out.Attempts, "message", out.Message)

		if o.history != nil {
			date := o.now().Format("2006-01-02")
			if err := o.history.Record(ctx, date, t.ID, out); err != nil {
				log.Error("orchestrator: save history failed", "target", t.ID, "error", err)
			}
		}

		if i < len(list)-1 {
			if err := o.sleep(ctx, PacingUnits*o.cfg.Unit); err != nil {
				log.Warn("orchestrator: pacing interrupted", "error", err)
			}
		}
	}

	o.setState(StateReporting)
	o.notify(ctx, log, outcomes)
	log.Info("orchestrator: sign-in finished")
	return outcomes
}

// runTarget never panics and never returns an error; everything becomes an Outcome.
func (o *Orchestrator) runTarget(ctx context.Context, t models.Target) (out models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("orchestrator: target panicked", "target", t.ID, "panic", r)
			out = models.Outcome{Target: t.ID, Message: fmt.Sprintf("签到失败：%v", r)}
		}
	}()

	entry, err := o.registry.Lookup(t.ID)
	if err != nil {
		return models.Outcome{Target: t.ID, Message: "unsupported target: " + t.ID}
	}

	cred, src, err := o.resolver.Resolve(ctx, t.ID, entry.BaseURL)
	if err != nil {
		msg := fmt.Sprintf("签到失败：%v", err)
		if errors.Is(err, credential.ErrNotFound) {
			msg = fmt.Sprintf("credential not found for %s", t.ID)
		}
		return models.Outcome{Target: t.ID, Message: msg}
	}
	slog.Debug("orchestrator: credential resolved", "target", t.ID, "source", src.String())

	return o.exec.Run(ctx, t.ID, o.registry.Attempt(entry, cred))
}

func (o *Orchestrator) notify(ctx context.Context, log *slog.Logger, outcomes []models.Outcome) {
	if !o.cfg.Notify || o.notifier == nil {
		return
	}
	msg := report.Render(report.Aggregate(outcomes))
	if err := o.notifier.Notify(ctx, report.Title, msg); err != nil {
		log.Error("orchestrator: send notification failed", "error", err)
	}
}
