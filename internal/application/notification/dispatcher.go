package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	domnotify "github.com/Zhima-Mochi/storefront-orders/internal/domain/notification"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"
)

const (
	notificationService = "notification-service"
	notifyPeer          = "mailer"
)

// Renderer turns a named template and its data into a subject and body.
type Renderer interface {
	Render(name string, data any) (subject, body string, err error)
}

// Dispatcher renders templates and hands them to the configured channel. Every call is a
// single attempt; callers decide whether a failure matters.
type Dispatcher struct {
	directory domnotify.CustomerDirectory
	notifier  domnotify.Notifier
	renderer  Renderer
	ins       application.Instruments
	sent      observability.Counter // notifications_total{template,outcome}
}

func NewDispatcher(directory domnotify.CustomerDirectory, notifier domnotify.Notifier, renderer Renderer, tel observability.Observability) *Dispatcher {
	ins := application.NewInstruments(tel, notificationService)
	return &Dispatcher{
		directory: directory,
		notifier:  notifier,
		renderer:  renderer,
		ins:       ins,
		sent:      ins.Metrics.Counter(observability.MNotifications),
	}
}

// NotifyUser resolves the user's address and sends the rendered template.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID, template string, data any) error {
	email, err := d.directory.Email(ctx, userID)
	if err != nil {
		d.sent.Add(1, observability.L("template", template), observability.L("outcome", "no_recipient"))
		return fmt.Errorf("notification: resolve %s: %w", userID, err)
	}
	return d.NotifyAddress(ctx, email, template, data)
}

// NotifyAddress sends the rendered template to a known address.
func (d *Dispatcher) NotifyAddress(ctx context.Context, email, template string, data any) (err error) {
	logger := logctx.FromOr(ctx, d.ins.Log).With(observability.F("template", template))
	outcome := "sent"
	start := time.Now()
	defer func() {
		d.sent.Add(1, observability.L("template", template), observability.L("outcome", outcome))
		if err != nil {
			logger.Warn("notification_failed", observability.F("outcome", outcome), observability.F("error", err.Error()))
			return
		}
		logger.Info("notification_sent")
	}()

	if strings.TrimSpace(email) == "" {
		outcome = "no_recipient"
		return domnotify.ErrNoRecipient
	}
	subject, body, rerr := d.renderer.Render(template, data)
	if rerr != nil {
		outcome = "render_failed"
		return rerr
	}

	nerr := d.notifier.Notify(ctx, email, subject, body)
	extOutcome := "success"
	if nerr != nil {
		extOutcome = "error"
		if errors.Is(nerr, context.DeadlineExceeded) {
			extOutcome = "timeout"
		}
	}
	d.ins.External(notifyPeer, template, extOutcome, start)
	if nerr != nil {
		outcome = "failed"
		return fmt.Errorf("notification: deliver %s: %w", template, nerr)
	}
	return nil
}
