package model

// Account is one pool sub-account with its own API credentials.
// Accounts are loaded once from configuration and are immutable for
// the duration of a run.
type Account struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Group  string `json:"group,omitempty"`
	Active bool   `json:"active"`
}
