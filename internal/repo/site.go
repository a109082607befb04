package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/autosignin/internal/models"
)

// SiteRepo reads the managed site inventory. Nothing in this module writes to it.
type SiteRepo struct {
	DB *sql.DB
}

// NewSiteRepo returns a new SiteRepo.
func NewSiteRepo(db *sql.DB) *SiteRepo {
	return &SiteRepo{DB: db}
}

// Count returns the number of active managed sites.
func (r *SiteRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM sites WHERE is_active = true").Scan(&n)
	return n, err
}

// ListManagedSites returns active sites in inventory order (by id). The
// credential resolver relies on this order for first-match semantics.
func (r *SiteRepo) ListManagedSites(ctx context.Context) ([]models.ManagedSite, error) {
	query := `
		SELECT id, name, url, domain, cookie
		FROM sites
		WHERE is_active = true
		ORDER BY id
	`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ManagedSite
	for rows.Next() {
		var s models.ManagedSite
		if err := rows.Scan(&s.ID, &s.Name, &s.URL, &s.Domain, &s.Cookie); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
