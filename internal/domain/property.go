package domain

// PropertyIdentity is derived from a listing name and never stored.
type PropertyIdentity struct {
	Address string `json:"address"`
	Slug    string `json:"slug"`
	Unit    string `json:"unit,omitempty"` // "" when the listing carries no unit label
}
