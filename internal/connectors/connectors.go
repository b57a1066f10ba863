package connectors

import (
	"context"
	"fmt"
	"strings"

	"nakasem/internal"
)

const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

// NormalizeProvider lower-cases and validates a provider name.
func NormalizeProvider(provider string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(provider))
	switch p {
	case ProviderGmail, ProviderIMAP:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported mail provider: %q", provider)
	}
}
