// Package targets maps target ids to runnable check-in procedures.
package targets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/crucial707/autosignin/internal/models"
)

// ErrUnsupported is returned by Lookup for ids that are neither custom nor preset.
var ErrUnsupported = errors.New("unsupported target")

// Entry is a dispatchable target: where to check in and how.
type Entry struct {
	ID        string
	Kind      models.TargetKind
	BaseURL   string
	Procedure Procedure
	// Credential is the cookie from the custom site line, if any.
	Credential string
}

// Presets returns the built-in targets keyed by id.
func Presets() map[string]Entry {
	return map[string]Entry{
		"hh": {
			ID:        "hh",
			BaseURL:   "https://hhanclub.top/",
			Procedure: Attendance{PanelPath: "usercp.php", SignPath: "attendance.php"},
		},
		"ou": {
			ID:        "ou",
			BaseURL:   "https://ourbits.club/",
			Procedure: Attendance{LinkSelector: "a.faqlink[href*='attendance.php']", SignPath: "attendance.php"},
		},
		"ttg": {
			ID:        "ttg",
			BaseURL:   "https://totheglory.im/",
			Procedure: SignedForm{SignPath: "signed.php"},
		},
	}
}

// CustomProcedure is run for every custom site.
var CustomProcedure Procedure = Attendance{SignPath: "attendance.php"}

// Registry is the id -> entry table built once per orchestrator.
type Registry struct {
	presets  map[string]Entry
	custom   map[string]Entry
	order    []string
	sessions SessionFactory
}

// NewRegistry builds the dispatch table. Custom sites are kept in parse order.
func NewRegistry(presets map[string]Entry, custom []CustomSite, sessions SessionFactory) *Registry {
	r := &Registry{
		presets:  make(map[string]Entry, len(presets)),
		custom:   make(map[string]Entry, len(custom)),
		sessions: sessions,
	}
	for id, e := range presets {
		e.ID = id
		e.Kind = models.KindPreset
		r.presets[id] = e
	}
	for _, c := range custom {
		if _, dup := r.custom[c.Name]; dup {
			slog.Warn("targets: duplicate custom site ignored", "name", c.Name)
			continue
		}
		r.custom[c.Name] = Entry{
			ID:         c.Name,
			Kind:       models.KindCustom,
			BaseURL:    c.BaseURL,
			Procedure:  CustomProcedure,
			Credential: c.Credential,
		}
		r.order = append(r.order, c.Name)
	}
	return r
}

// CustomNames returns custom site names in configuration order.
func (r *Registry) CustomNames() []string {
	return append([]string(nil), r.order...)
}

// Lookup finds the entry for id. Custom sites shadow presets of the same name.
func (r *Registry) Lookup(id string) (Entry, error) {
	if e, ok := r.custom[id]; ok {
		return e, nil
	}
	if e, ok := r.presets[id]; ok {
		return e, nil
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrUnsupported, id)
}

// Attempt returns a single check-in attempt for e. Each call opens its own
// session and closes it on every return path, panics included.
func (r *Registry) Attempt(e Entry, credential string) func(ctx context.Context) (bool, string, error) {
	return func(ctx context.Context) (bool, string, error) {
		s, err := r.sessions()
		if err != nil {
			return false, "", fmt.Errorf("open session: %w", err)
		}
		defer s.Close()
		return e.Procedure.Run(ctx, s, e.BaseURL, credential)
	}
}

// CustomSite is one parsed "name|baseAddress|credential" line.
type CustomSite struct {
	Name       string
	BaseURL    string
	Credential string
}

// ParseCustomSites parses the free-text custom site block. Blank lines and
// lines starting with # are ignored; malformed lines are logged and skipped.
func ParseCustomSites(text string) []CustomSite {
	var out []CustomSite
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		site, err := parseCustomLine(line)
		if err != nil {
			slog.Warn("targets: skipping custom site line", "line", i+1, "error", err)
			continue
		}
		slog.Info("targets: parsed custom site", "name", site.Name, "base_url", site.BaseURL)
		out = append(out, site)
	}
	return out
}

func parseCustomLine(line string) (CustomSite, error) {
	parts := strings.SplitN(line, "|", 3)
	if len(parts) < 3 {
		return CustomSite{}, fmt.Errorf("want name|baseAddress|credential, got %d fields", len(parts))
	}
	site := CustomSite{
		Name:       strings.TrimSpace(parts[0]),
		BaseURL:    strings.TrimSpace(parts[1]),
		Credential: strings.TrimSpace(parts[2]),
	}
	if site.Name == "" {
		return CustomSite{}, errors.New("empty name")
	}
	if site.BaseURL == "" {
		return CustomSite{}, errors.New("empty base address")
	}
	if !strings.Contains(site.BaseURL, "://") {
		site.BaseURL = "https://" + site.BaseURL
	}
	u, err := url.Parse(site.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return CustomSite{}, fmt.Errorf("invalid base address %q", parts[1])
	}
	if !strings.HasSuffix(site.BaseURL, "/") {
		site.BaseURL += "/"
	}
	return site, nil
}
