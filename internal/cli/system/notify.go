package system

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/notifier"
)

// NotifyCmd delivers due reminders to the tray app.
type NotifyCmd struct {
	Once   bool `help:"Deliver what is due now and exit."`
	DryRun bool `help:"Print notifications to stdout instead of sending them."`
}

// consoleSender prints notifications instead of delivering them.
type consoleSender struct {
	out io.Writer
}

func (s consoleSender) Send(title, body string) error {
	_, err := fmt.Fprintf(s.out, "[DryRun] %s: %s\n", title, body)
	return err
}

func (c *NotifyCmd) Run(ctx *cli.Context) error {
	var sender notifier.Sender = notifier.NewTraySender(ctx.Config.Notifications.TrayIdentifier)
	if c.DryRun {
		sender = consoleSender{out: ctx.Out}
	}
	d := notifier.NewDispatcher(ctx.Store, sender, ctx.Config.Notifications.PollInterval)

	if c.Once {
		n, err := d.DeliverDue()
		if err != nil {
			return fmt.Errorf("failed to deliver notifications: %w", err)
		}
		fmt.Fprintf(ctx.Out, "Delivered %d notification(s).\n", n)
		return nil
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start notification dispatcher: %w", err)
	}
	logger.Info("Notification dispatcher started", "interval", ctx.Config.Notifications.PollInterval)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("Notification dispatcher stopping")
	return d.Stop()
}

// RemindersCmd lists pending reminders.
type RemindersCmd struct{}

func (c *RemindersCmd) Run(ctx *cli.Context) error {
	pending, err := ctx.Center.Pending()
	if err != nil {
		return fmt.Errorf("failed to list reminders: %w", err)
	}
	if len(pending) == 0 {
		fmt.Fprintln(ctx.Out, "No pending reminders.")
		return nil
	}
	for _, n := range pending {
		fmt.Fprintf(ctx.Out, "%s  %-40s %s\n", n.FireAt.Local().Format(time.DateTime), n.Identifier, n.Title)
	}
	return nil
}
