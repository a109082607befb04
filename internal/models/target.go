package models

// TargetKind tells whether a target comes from the built-in preset table or
// from the user's custom site lines.
type TargetKind int

const (
	KindPreset TargetKind = iota
	KindCustom
)

func (k TargetKind) String() string {
	if k == KindCustom {
		return "custom"
	}
	return "preset"
}

// Target is one site to check in against during a run.
type Target struct {
	ID         string     `json:"id"`
	Kind       TargetKind `json:"kind"`
	BaseURL    string     `json:"base_url,omitempty"`
	Credential string     `json:"-"`
}

// MarshalText renders the kind as "preset" or "custom" in JSON.
func (k TargetKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
