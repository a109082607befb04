package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crucial707/autosignin/internal/config"
	"github.com/crucial707/autosignin/internal/models"
	"github.com/crucial707/autosignin/internal/targets"
)

type fakeProc struct {
	mu    sync.Mutex
	calls int
	creds []string
	fn    func(call int) (bool, string, error)
}

func (p *fakeProc) Run(ctx context.Context, s *targets.Session, baseURL, credential string) (bool, string, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.creds = append(p.creds, credential)
	p.mu.Unlock()
	return p.fn(call)
}

func succeed() *fakeProc {
	return &fakeProc{fn: func(int) (bool, string, error) { return true, "签到成功", nil }}
}

type fakeSites struct {
	sites []models.ManagedSite
	err   error
}

func (f fakeSites) ListManagedSites(ctx context.Context) ([]models.ManagedSite, error) {
	return f.sites, f.err
}

type memHistory struct {
	mu      sync.Mutex
	records []string
	err     error
}

func (h *memHistory) Record(ctx context.Context, date, target string, o models.Outcome) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, date+"/"+target)
	return h.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	titles   []string
	messages []string
	err      error
	done     chan struct{}
}

func (n *fakeNotifier) Notify(ctx context.Context, title, message string) error {
	n.mu.Lock()
	n.titles = append(n.titles, title)
	n.messages = append(n.messages, message)
	n.mu.Unlock()
	if n.done != nil {
		close(n.done)
	}
	return n.err
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return nil
}

func baseConfig() config.SignIn {
	return config.SignIn{
		Notify:      true,
		MaxAttempts: 3,
		Unit:        time.Second,
		HTTPTimeout: 5 * time.Second,
		UserAgent:   "test",
		Cookies:     map[string]string{},
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
}

func TestRunBatch_CredentialScenario(t *testing.T) {
	a, b := succeed(), succeed()
	hist := &memHistory{}
	note := &fakeNotifier{}
	sleeps := &sleepRecorder{}
	cfg := baseConfig()
	cfg.Sites = []string{"a", "b"}

	o := New(cfg, Deps{
		Sites:    fakeSites{sites: []models.ManagedSite{{Name: "Site A", URL: "https://a.example/", Cookie: "managed-a"}}},
		History:  hist,
		Notifier: note,
		Presets: map[string]targets.Entry{
			"a": {BaseURL: "https://a.example/", Procedure: a},
			"b": {BaseURL: "https://b.example/", Procedure: b},
		},
		Sleep: sleeps.sleep,
		Now:   fixedNow,
	})

	outcomes := o.RunBatch(context.Background(), nil)
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if got := outcomes[0]; got.Target != "a" || !got.Success || got.Attempts != 1 {
		t.Errorf("a: unexpected outcome %+v", got)
	}
	if got := outcomes[1]; got.Target != "b" || got.Success || got.Attempts != 0 || !strings.Contains(got.Message, "not found") {
		t.Errorf("b: unexpected outcome %+v", got)
	}
	if a.calls != 1 || a.creds[0] != "managed-a" {
		t.Errorf("a: calls=%d creds=%v", a.calls, a.creds)
	}
	if b.calls != 0 {
		t.Errorf("b must not run without a credential, ran %d times", b.calls)
	}

	if strings.Join(hist.records, ",") != "2026-10-17/a,2026-10-17/b" {
		t.Errorf("history: got %v", hist.records)
	}
	if len(sleeps.waits) != 1 || sleeps.waits[0] != 5*time.Second {
		t.Errorf("expected one pacing wait of 5s, got %v", sleeps.waits)
	}
	if len(note.messages) != 1 {
		t.Fatalf("expected one notification, got %d", len(note.messages))
	}
	if note.titles[0] != "站点签到助手" || note.messages[0] != "站点签到完成\n✅ 成功：a\n❌ 失败：b" {
		t.Errorf("notification: %q / %q", note.titles[0], note.messages[0])
	}
	if o.State() != StateIdle {
		t.Errorf("state after run: %s", o.State())
	}
}

func TestRunBatch_CustomShadowsPreset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/attendance.php" {
			w.Write([]byte("签到成功"))
			return
		}
		w.Write([]byte("index"))
	}))
	defer srv.Close()

	preset := succeed()
	cfg := baseConfig()
	cfg.Sites = []string{"X"}
	cfg.CustomSites = "X|" + srv.URL + "/|uid=9"

	o := New(cfg, Deps{
		Presets: map[string]targets.Entry{"X": {BaseURL: "https://preset.example/", Procedure: preset}},
		Sleep:   (&sleepRecorder{}).sleep,
	})

	list := o.Targets(nil)
	if len(list) != 1 || list[0].Kind != models.KindCustom {
		t.Fatalf("expected one custom target, got %+v", list)
	}

	outcomes := o.RunBatch(context.Background(), nil)
	if len(outcomes) != 1 || !outcomes[0].Success {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	if preset.calls != 0 {
		t.Errorf("preset procedure ran %d times; custom should shadow it", preset.calls)
	}
}

func TestRunBatch_AlwaysFailingUsesAllAttempts(t *testing.T) {
	bad := &fakeProc{fn: func(int) (bool, string, error) { return false, "", errors.New("timeout") }}
	sleeps := &sleepRecorder{}
	cfg := baseConfig()
	cfg.Cookies = map[string]string{"BAD": "c"}

	o := New(cfg, Deps{
		Presets: map[string]targets.Entry{"bad": {BaseURL: "https://bad/", Procedure: bad}},
		Sleep:   sleeps.sleep,
	})
	outcomes := o.RunBatch(context.Background(), []string{"bad"})
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	out := outcomes[0]
	if out.Success || out.Attempts != 3 || out.Message == "" {
		t.Errorf("unexpected outcome %+v", out)
	}
	if bad.calls != 3 {
		t.Errorf("calls: got %d", bad.calls)
	}
	if len(sleeps.waits) != 2 || sleeps.waits[0] != 5*time.Second || sleeps.waits[1] != 10*time.Second {
		t.Errorf("backoff waits: got %v", sleeps.waits)
	}
}

func TestRunBatch_SuccessOnSecondAttempt(t *testing.T) {
	flaky := &fakeProc{fn: func(call int) (bool, string, error) {
		if call == 1 {
			return false, "签到状态未知", nil
		}
		return true, "签到成功", nil
	}}
	sleeps := &sleepRecorder{}
	cfg := baseConfig()
	cfg.Cookies = map[string]string{"f": "c"}

	o := New(cfg, Deps{
		Presets: map[string]targets.Entry{"f": {Procedure: flaky}},
		Sleep:   sleeps.sleep,
	})
	out := o.RunBatch(context.Background(), []string{"f"})[0]
	if !out.Success || out.Attempts != 2 {
		t.Errorf("unexpected outcome %+v", out)
	}
	if len(sleeps.waits) != 1 || sleeps.waits[0] != 5*time.Second {
		t.Errorf("waits: got %v", sleeps.waits)
	}
}

func TestRunBatch_EmptyTargets(t *testing.T) {
	note := &fakeNotifier{}
	o := New(baseConfig(), Deps{Notifier: note, Presets: map[string]targets.Entry{}})
	if got := o.RunBatch(context.Background(), nil); got != nil {
		t.Errorf("expected nil outcomes, got %+v", got)
	}
	if len(note.messages) != 0 {
		t.Error("empty run must not notify")
	}
}

func TestRunBatch_FailuresNeverAbortBatch(t *testing.T) {
	panicking := &fakeProc{fn: func(int) (bool, string, error) { panic("nil pointer") }}
	ok := succeed()
	hist := &memHistory{err: errors.New("disk full")}
	note := &fakeNotifier{err: errors.New("bot offline")}
	cfg := baseConfig()
	cfg.Cookies = map[string]string{"p": "c", "ok": "c"}

	o := New(cfg, Deps{
		History:  hist,
		Notifier: note,
		Presets: map[string]targets.Entry{
			"p":  {Procedure: panicking},
			"ok": {Procedure: ok},
		},
		Sleep: (&sleepRecorder{}).sleep,
	})
	outcomes := o.RunBatch(context.Background(), []string{"p", "unknown", "ok"})
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %+v", outcomes)
	}
	if outcomes[0].Success || !strings.Contains(outcomes[0].Message, "nil pointer") {
		t.Errorf("panicking target: %+v", outcomes[0])
	}
	if outcomes[1].Success || outcomes[1].Attempts != 0 || !strings.Contains(outcomes[1].Message, "unsupported target") {
		t.Errorf("unknown target: %+v", outcomes[1])
	}
	if !outcomes[2].Success {
		t.Errorf("ok target: %+v", outcomes[2])
	}
	if len(hist.records) != 3 {
		t.Errorf("every target should be recorded even when saving fails, got %v", hist.records)
	}
	if len(note.messages) != 1 {
		t.Errorf("report must still be sent after history failures")
	}
}

func TestRunBatch_NotifyDisabled(t *testing.T) {
	note := &fakeNotifier{}
	cfg := baseConfig()
	cfg.Notify = false
	cfg.Cookies = map[string]string{"a": "c"}
	o := New(cfg, Deps{
		Notifier: note,
		Presets:  map[string]targets.Entry{"a": {Procedure: succeed()}},
		Sleep:    (&sleepRecorder{}).sleep,
	})
	o.RunBatch(context.Background(), []string{"a"})
	if len(note.messages) != 0 {
		t.Error("notification sent while disabled")
	}
}

func TestTargets_ExpandAndDedupe(t *testing.T) {
	cfg := baseConfig()
	cfg.Sites = []string{"hh", " ou ", "hh", ""}
	cfg.CustomSites = "mine|mine.example|c=1\nou|ou-mirror.example|c=2\nbroken line"
	o := New(cfg, Deps{})

	list := o.Targets(nil)
	var ids []string
	for _, t := range list {
		ids = append(ids, t.ID)
	}
	if strings.Join(ids, ",") != "hh,ou,mine" {
		t.Fatalf("targets: got %v", ids)
	}
	if list[0].Kind != models.KindPreset || list[0].BaseURL != "https://hhanclub.top/" {
		t.Errorf("hh: %+v", list[0])
	}
	if list[1].Kind != models.KindCustom || list[1].BaseURL != "https://ou-mirror.example/" {
		t.Errorf("ou should be the custom definition: %+v", list[1])
	}
}

func TestRunBatch_CustomCredentialFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "uid=7" {
			w.Write([]byte(`<a href="login.php">login</a>`))
			return
		}
		w.Write([]byte("今天已经签到过了"))
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.CustomSites = "site7|" + srv.URL + "|uid=7"
	o := New(cfg, Deps{Sleep: (&sleepRecorder{}).sleep})

	outcomes := o.RunBatch(context.Background(), []string{})
	if len(outcomes) != 1 || !outcomes[0].Success || outcomes[0].Message != "今日已签到" {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
}

func TestTrigger_RunsInBackground(t *testing.T) {
	note := &fakeNotifier{done: make(chan struct{})}
	cfg := baseConfig()
	cfg.Cookies = map[string]string{"a": "c"}
	o := New(cfg, Deps{
		Notifier: note,
		Presets:  map[string]targets.Entry{"a": {Procedure: succeed()}},
		Sleep:    (&sleepRecorder{}).sleep,
	})

	o.Trigger([]string{"a"})
	select {
	case <-note.done:
	case <-time.After(5 * time.Second):
		t.Fatal("triggered run did not finish")
	}
}
