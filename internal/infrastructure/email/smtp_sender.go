package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/skyfare/backend/internal/domain/billing"
)

// Config holds SMTP connection settings for outbound invoice mail
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPInvoiceSender delivers invoice notification emails over SMTP. The
// gateway emails the primary recipient itself when it publishes an
// invoice; this sender covers the additional recipients by sharing the
// hosted payment page link.
type SMTPInvoiceSender struct {
	config Config
	logger *zap.Logger
}

// NewSMTPInvoiceSender creates a new SMTPInvoiceSender
func NewSMTPInvoiceSender(config Config, logger *zap.Logger) *SMTPInvoiceSender {
	return &SMTPInvoiceSender{config: config, logger: logger}
}

// SendInvoiceEmail sends one invoice notification to the recipient
func (s *SMTPInvoiceSender) SendInvoiceEmail(ctx context.Context, invoice *billing.Invoice, recipient string) error {
	msg := buildInvoiceMessage(s.config.From, recipient, invoice)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := smtp.SendMail(addr, auth, s.config.From, []string{recipient}, msg); err != nil {
		return fmt.Errorf("sending invoice email: %w", err)
	}

	s.logger.Info("invoice email sent",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("recipient", recipient))
	return nil
}

// buildInvoiceMessage renders a plain-text notification carrying the
// hosted payment page link
func buildInvoiceMessage(from, to string, invoice *billing.Invoice) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Invoice %s\r\n", invoice.InvoiceNumber)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Invoice %s for %s %s is ready.\r\n",
		invoice.InvoiceNumber, invoice.Amount.StringFixed(2), invoice.Currency)
	if invoice.PublicURL != "" {
		fmt.Fprintf(&b, "\r\nView and pay online: %s\r\n", invoice.PublicURL)
	}
	return []byte(b.String())
}
