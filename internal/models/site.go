package models

// ManagedSite is a site record owned by the external site inventory. It is only read here.
type ManagedSite struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Domain string `json:"domain"`
	Cookie string `json:"-"`
}
