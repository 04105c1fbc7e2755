// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// Package delivery sends generated invoices to clients by email. Delivery is
// best-effort: a failure here never fails the run that materialized the
// invoice, it only gets recorded alongside it.
package delivery

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/fakturo/fakturo/internal/config"
	"github.com/fakturo/fakturo/internal/logging"
	"github.com/fakturo/fakturo/internal/metrics"
	"github.com/fakturo/fakturo/internal/models"
)

// ErrNotConfigured is returned when auto-send is requested but no SMTP host
// is configured.
var ErrNotConfigured = errors.New("email delivery is not configured")

// Sender delivers a materialized invoice to its client.
type Sender interface {
	SendInvoice(ctx context.Context, inv *models.Invoice, variant models.InvoiceVariant) error
}

// EmailSender sends invoices over SMTP. Outbound sends pass through a rate
// limiter (providers throttle aggressively) and a circuit breaker so a dead
// SMTP server stops consuming execution time for every due profile.
type EmailSender struct {
	cfg     *config.SMTPConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewEmailSender creates an SMTP-backed invoice sender.
func NewEmailSender(cfg *config.SMTPConfig) *EmailSender {
	sendRate := cfg.SendRate
	if sendRate <= 0 {
		sendRate = 1
	}
	burst := cfg.SendBurst
	if burst <= 0 {
		burst = 1
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("SMTP circuit breaker state change")
			metrics.EmailBreakerState.Set(breakerStateValue(to))
		},
	})

	return &EmailSender{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(sendRate), burst),
		breaker: breaker,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// SendInvoice emails the invoice to its client address.
func (s *EmailSender) SendInvoice(ctx context.Context, inv *models.Invoice, variant models.InvoiceVariant) error {
	if s.cfg.Host == "" {
		return ErrNotConfigured
	}
	if inv.ClientEmail == "" {
		return fmt.Errorf("invoice %s has no client email", inv.ID)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait aborted: %w", err)
	}

	msg := s.buildMessage(inv, variant)

	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.sendSMTP(ctx, inv.ClientEmail, msg)
	})
	if err != nil {
		outcome := "failed"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
		metrics.EmailDeliveries.WithLabelValues(outcome).Inc()
		return err
	}

	metrics.EmailDeliveries.WithLabelValues("sent").Inc()
	logging.Debug().
		Str("invoice_id", inv.ID).
		Str("recipient", inv.ClientEmail).
		Msg("Invoice email sent")
	return nil
}

// buildMessage constructs the email message with headers and a plain-text
// body. The variant drives the subject line; rendering richer documents is
// the invoicing domain's job.
func (s *EmailSender) buildMessage(inv *models.Invoice, variant models.InvoiceVariant) string {
	var msg strings.Builder

	fromName := s.cfg.FromName
	if fromName == "" {
		fromName = "Fakturo"
	}

	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, s.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", inv.ClientEmail))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subjectFor(inv, variant)))
	msg.WriteString(fmt.Sprintf("X-Fakturo-Invoice-ID: %s\r\n", inv.ID))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("Invoice %s\r\n", inv.Number))
	msg.WriteString(fmt.Sprintf("Issue date: %s\r\n", inv.IssueDate.Format("2006-01-02")))
	if inv.DueDate != nil {
		msg.WriteString(fmt.Sprintf("Due date: %s\r\n", inv.DueDate.Format("2006-01-02")))
	}
	msg.WriteString(fmt.Sprintf("Total: %.2f %s\r\n", float64(inv.TotalCents)/100, inv.Currency))
	if inv.Notes != "" {
		msg.WriteString("\r\n")
		msg.WriteString(inv.Notes)
		msg.WriteString("\r\n")
	}

	return msg.String()
}

func subjectFor(inv *models.Invoice, variant models.InvoiceVariant) string {
	switch variant {
	case models.VariantProforma:
		return fmt.Sprintf("Proforma invoice %s", inv.Number)
	case models.VariantSummary:
		return fmt.Sprintf("Invoice summary %s", inv.Number)
	default:
		return fmt.Sprintf("Invoice %s", inv.Number)
	}
}

// sendSMTP performs the SMTP conversation.
func (s *EmailSender) sendSMTP(ctx context.Context, to, msg string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if s.cfg.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: s.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if s.cfg.User != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// Quit failures after a successful DATA are ignored; the message is out.
	_ = client.Quit()
	return nil
}
