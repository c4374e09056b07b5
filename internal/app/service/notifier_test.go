package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ikkim/vintage-store-backend/pkg/whatsapp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	messages []whatsapp.Message
	err      error
}

func (s *recordingSender) Send(ctx context.Context, msg whatsapp.Message) (*whatsapp.MessageResponse, error) {
	s.messages = append(s.messages, msg)
	if s.err != nil {
		return nil, s.err
	}
	return &whatsapp.MessageResponse{SID: "SM123", Status: "queued", To: msg.To}, nil
}

func TestFormatReservationNotice(t *testing.T) {
	items := []LineItem{
		{Name: "Campera de jean", Price: decimal.NewFromInt(18500)},
		{Name: "Pollera", Price: decimal.RequireFromString("9000.5")},
	}

	body := FormatReservationNotice("Ana 1155", items, decimal.RequireFromString("27500.5"))

	assert.Equal(t, "Nueva reserva de Ana 1155\n- Campera de jean: $18500.00\n- Pollera: $9000.50\nTotal: $27500.50", body)
}

func TestFormatExpiryNotice(t *testing.T) {
	body := FormatExpiryNotice("Campera", "Ana")
	assert.Contains(t, body, "Ana")
	assert.Contains(t, body, "\"Campera\"")
}

func TestWhatsAppNotifier_SendsToSeller(t *testing.T) {
	sender := &recordingSender{}
	notifier := NewWhatsAppNotifier(sender, "+5491100000000")

	err := notifier.SendReservationNotice(context.Background(), "Ana", []LineItem{{Name: "Campera", Price: decimal.NewFromInt(100)}}, decimal.NewFromInt(100))
	require.NoError(t, err)
	err = notifier.SendExpiryNotice(context.Background(), "Campera", "Ana")
	require.NoError(t, err)

	require.Len(t, sender.messages, 2)
	for _, msg := range sender.messages {
		assert.Equal(t, "+5491100000000", msg.To)
	}
	assert.Contains(t, sender.messages[0].Body, "Nueva reserva de Ana")
}

func TestWhatsAppNotifier_PropagatesSendError(t *testing.T) {
	sender := &recordingSender{err: whatsapp.ErrSendFailed}
	notifier := NewWhatsAppNotifier(sender, "+5491100000000")

	err := notifier.SendExpiryNotice(context.Background(), "Campera", "Ana")
	assert.True(t, errors.Is(err, whatsapp.ErrSendFailed))
}

func TestLogNotifier(t *testing.T) {
	notifier := NewLogNotifier()
	assert.NoError(t, notifier.SendReservationNotice(context.Background(), "Ana", nil, decimal.Zero))
	assert.NoError(t, notifier.SendExpiryNotice(context.Background(), "Campera", "Ana"))
}
