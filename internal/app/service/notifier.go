package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ikkim/vintage-store-backend/pkg/logger"
	"github.com/ikkim/vintage-store-backend/pkg/whatsapp"
	"github.com/shopspring/decimal"
)

// LineItem is one product in a reservation notice.
type LineItem struct {
	Name  string
	Price decimal.Decimal
}

// Notifier delivers best-effort messages about reservations. Callers never
// let a send failure affect reservation state.
type Notifier interface {
	SendReservationNotice(ctx context.Context, buyerContact string, items []LineItem, total decimal.Decimal) error
	SendExpiryNotice(ctx context.Context, productName, buyerContact string) error
}

// MessageSender is implemented by whatsapp.Client.
type MessageSender interface {
	Send(ctx context.Context, msg whatsapp.Message) (*whatsapp.MessageResponse, error)
}

type whatsAppNotifier struct {
	sender   MessageSender
	sellerTo string
}

// NewWhatsAppNotifier sends notices to the seller's WhatsApp number, who then
// follows up with the buyer to arrange the transfer.
func NewWhatsAppNotifier(sender MessageSender, sellerTo string) Notifier {
	return &whatsAppNotifier{sender: sender, sellerTo: sellerTo}
}

func (n *whatsAppNotifier) SendReservationNotice(ctx context.Context, buyerContact string, items []LineItem, total decimal.Decimal) error {
	resp, err := n.sender.Send(ctx, whatsapp.Message{
		To:   n.sellerTo,
		Body: FormatReservationNotice(buyerContact, items, total),
	})
	if err != nil {
		return err
	}

	logger.Debug("Reservation notice sent", map[string]interface{}{
		"message_sid": resp.SID,
		"buyer_info":  buyerContact,
	})
	return nil
}

func (n *whatsAppNotifier) SendExpiryNotice(ctx context.Context, productName, buyerContact string) error {
	resp, err := n.sender.Send(ctx, whatsapp.Message{
		To:   n.sellerTo,
		Body: FormatExpiryNotice(productName, buyerContact),
	})
	if err != nil {
		return err
	}

	logger.Debug("Expiry notice sent", map[string]interface{}{
		"message_sid": resp.SID,
		"buyer_info":  buyerContact,
	})
	return nil
}

type logNotifier struct{}

// NewLogNotifier writes notices to the log instead of sending them. Used when
// no messaging gateway is configured.
func NewLogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) SendReservationNotice(ctx context.Context, buyerContact string, items []LineItem, total decimal.Decimal) error {
	logger.Info("[DEV] Reservation notice", map[string]interface{}{
		"buyer_info": buyerContact,
		"body":       FormatReservationNotice(buyerContact, items, total),
	})
	return nil
}

func (logNotifier) SendExpiryNotice(ctx context.Context, productName, buyerContact string) error {
	logger.Info("[DEV] Expiry notice", map[string]interface{}{
		"buyer_info": buyerContact,
		"body":       FormatExpiryNotice(productName, buyerContact),
	})
	return nil
}

func FormatReservationNotice(buyerContact string, items []LineItem, total decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nueva reserva de %s\n", buyerContact)
	for _, item := range items {
		fmt.Fprintf(&b, "- %s: $%s\n", item.Name, item.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: $%s", total.StringFixed(2))
	return b.String()
}

func FormatExpiryNotice(productName, buyerContact string) string {
	return fmt.Sprintf("La reserva de %s para \"%s\" expiró y el producto volvió a estar disponible", buyerContact, productName)
}
