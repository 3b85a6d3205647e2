package social

// Author is the read-only profile projection used for affinity scoring.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Verified    bool   `json:"verified"`
	Reputation  int64  `json:"reputation"`
	Active      bool   `json:"active"`
}
