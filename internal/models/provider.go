package models

import "strings"

// Provider identifies the identity provider a message author signed in with.
type Provider int

const (
	ProviderUnknown Provider = iota
	ProviderGitHub
	ProviderGoogle
	ProviderEmail
)

// ParseProvider maps the stored provider string onto a Provider.
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "github":
		return ProviderGitHub
	case "google":
		return ProviderGoogle
	case "email":
		return ProviderEmail
	default:
		return ProviderUnknown
	}
}

func (p Provider) String() string {
	switch p {
	case ProviderGitHub:
		return "github"
	case ProviderGoogle:
		return "google"
	case ProviderEmail:
		return "email"
	default:
		return "unknown"
	}
}
