// Package notifications holds outbound notification tasks, discovered under
// the "notifications" app label.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/dyluth/backend/pkg/taskqueue"
)

// Label is the installed-app name these tasks are discovered under.
const Label = "notifications"

func init() {
	taskqueue.RegisterApp(Label, Register)
}

// Email is the argument of notifications.send_email.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Register adds the notification tasks to r.
func Register(r *taskqueue.Registry) error {
	return r.Register(taskqueue.Task{
		Name:       "notifications.send_email",
		Handler:    taskqueue.HandlerFunc(SendEmail),
		Queue:      "notifications",
		MaxRetries: 3,
		RetryDelay: 10 * time.Second,
		RateLimit:  "10/s",
	})
}

// SendEmail validates the message and hands it to the mail relay.
// Delivery is logged; there is no relay configured in this project yet.
func SendEmail(ctx context.Context, args json.RawMessage) (any, error) {
	var e Email
	if err := json.Unmarshal(args, &e); err != nil {
		return nil, fmt.Errorf("invalid email arguments: %w", err)
	}

	addr, err := mail.ParseAddress(e.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", e.To, err)
	}

	if e.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}

	slog.InfoContext(ctx, "email queued for delivery", "to", addr.Address, "subject", e.Subject)
	return map[string]string{"to": addr.Address, "status": "queued"}, nil
}
