// Package notify delivers loan reminder emails.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// ErrNoAddress is returned for a blank recipient.
var ErrNoAddress = errors.New("reminder address required")

// Gateway sends a reminder to one address.
type Gateway interface {
	SendReminder(ctx context.Context, address string) error
}

// LogGateway stands in for a mail server by logging each reminder.
type LogGateway struct {
	Logger *slog.Logger
}

func (g LogGateway) SendReminder(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrNoAddress
	}
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "sending reminder email", "address", address)
	return nil
}
