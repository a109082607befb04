// Package credential picks the session cookie used to check in to a target.
//
// The managed site inventory always wins over inline configuration. A
// failing inventory query degrades to inline configuration instead of
// failing the target.
package credential

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/crucial707/autosignin/internal/models"
)

// ErrNotFound means no source had a non-empty credential for the target.
var ErrNotFound = errors.New("credential not found")

// Source identifies where a credential came from.
type Source int

const (
	SourceNone Source = iota
	ManagedSiteStore
	InlineConfiguration
)

func (s Source) String() string {
	switch s {
	case ManagedSiteStore:
		return "managed_site_store"
	case InlineConfiguration:
		return "inline_configuration"
	default:
		return "none"
	}
}

// SiteLister is the read-only view of the managed site inventory.
type SiteLister interface {
	ListManagedSites(ctx context.Context) ([]models.ManagedSite, error)
}

// Resolver applies the credential priority chain.
type Resolver struct {
	sites  SiteLister
	inline map[string]string
}

// NewResolver returns a Resolver. sites may be nil when no inventory is
// available; inline keys are matched case-insensitively.
func NewResolver(sites SiteLister, inline map[string]string) *Resolver {
	m := make(map[string]string, len(inline))
	for k, v := range inline {
		m[strings.ToLower(k)] = v
	}
	return &Resolver{sites: sites, inline: m}
}

// Resolve returns the credential for targetID. baseURL is optional and only
// widens the inventory match.
func (r *Resolver) Resolve(ctx context.Context, targetID, baseURL string) (string, Source, error) {
	if r.sites != nil {
		site, err := r.findSite(ctx, targetID, baseURL)
		switch {
		case err != nil:
			slog.Warn("credential: site store unavailable, falling back to inline configuration",
				"target", targetID, "error", err)
		case site != nil && site.Cookie != "":
			slog.Info("credential: using managed site cookie", "target", targetID, "site", site.Name)
			return site.Cookie, ManagedSiteStore, nil
		}
	}

	if c := r.inline[strings.ToLower(targetID)]; c != "" {
		slog.Info("credential: using inline cookie", "target", targetID)
		return c, InlineConfiguration, nil
	}

	slog.Warn("credential: no cookie configured", "target", targetID)
	return "", SourceNone, ErrNotFound
}

// findSite returns the first inventory entry matching targetID or baseURL, or nil.
func (r *Resolver) findSite(ctx context.Context, targetID, baseURL string) (*models.ManagedSite, error) {
	sites, err := r.sites.ListManagedSites(ctx)
	if err != nil {
		return nil, err
	}
	id := strings.ToLower(targetID)
	key := hostKey(baseURL)
	for i := range sites {
		s := &sites[i]
		if id != "" && s.Name != "" && strings.Contains(strings.ToLower(s.Name), id) {
			return s, nil
		}
		if key == "" {
			continue
		}
		if (s.URL != "" && strings.Contains(s.URL, key)) || (s.Domain != "" && strings.Contains(s.Domain, key)) {
			return s, nil
		}
	}
	return nil, nil
}

// hostKey reduces a base address to the host part so "https://hhanclub.top/"
// matches an inventory URL without the trailing slash.
func hostKey(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return ""
	}
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return strings.TrimSuffix(baseURL, "/")
}
