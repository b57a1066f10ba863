package imap

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"

	"nakasem/internal/config"
)

func TestFormatAddresses(t *testing.T) {
	got := formatAddresses([]*imap.Address{
		{PersonalName: "מחסן", MailboxName: "warehouse", HostName: "example.com"},
		nil,
		{MailboxName: "office", HostName: "example.com"},
	})
	assert.Equal(t, "מחסן <warehouse@example.com>, office@example.com", got)
	assert.Equal(t, "", formatAddresses(nil))
}

func TestNewConnectorRequiresCredentials(t *testing.T) {
	_, err := NewConnector(config.Config{IMAPHost: "mail.example.com"}, nil)
	assert.ErrorContains(t, err, "IMAP_USER")

	c, err := NewConnector(config.Config{IMAPHost: "mail.example.com", IMAPUser: "u", IMAPPassword: "p", IMAPPort: 993}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 993, c.port)
}

func TestToFetched(t *testing.T) {
	msg := &imap.Message{
		SeqNum:       3,
		Uid:          42,
		InternalDate: time.Date(2024, 6, 4, 9, 30, 0, 0, time.FixedZone("IDT", 3*3600)),
		Envelope: &imap.Envelope{
			Subject: "תעודת משלוח",
			From:    []*imap.Address{{MailboxName: "warehouse", HostName: "example.com"}},
		},
	}
	got := toFetched(msg, []byte("raw"))
	assert.Equal(t, "imap-42", got.MessageID)
	assert.Equal(t, "imap", got.Provider)
	assert.Equal(t, "2024-06-04T06:30:00Z", got.ReceivedAt)
	assert.Equal(t, "warehouse@example.com", got.From)
	assert.Equal(t, []byte("raw"), got.Raw)
}
