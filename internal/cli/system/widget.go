package system

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/models"
)

type WidgetShowCmd struct {
	Storage string `arg:"" optional:"" help:"Only this storage (waiting|answered|not_answered)."`
}

func (c *WidgetShowCmd) Run(ctx *cli.Context) error {
	storages := models.AllStorages
	if c.Storage != "" {
		st, err := models.ParseStorage(c.Storage)
		if err != nil {
			return err
		}
		storages = []models.Storage{st}
	}

	for _, st := range storages {
		items, err := ctx.Widget.Snapshot(st)
		if err != nil {
			return fmt.Errorf("failed to read widget snapshot: %w", err)
		}
		fmt.Fprintf(ctx.Out, "%s (%d)\n", models.StorageMeta(st).Name, len(items))
		for _, item := range items {
			fmt.Fprintf(ctx.Out, "  %s  %s\n", item.Title, item.Content)
		}
	}
	return nil
}

// WidgetRefreshCmd republishes the favorites snapshot.
type WidgetRefreshCmd struct{}

func (c *WidgetRefreshCmd) Run(ctx *cli.Context) error {
	ctx.Widget.Refresh()
	fmt.Fprintln(ctx.Out, "Widget refresh requested.")
	return nil
}

// WidgetWatchCmd prints the favorites snapshot every time it is republished.
type WidgetWatchCmd struct{}

func (c *WidgetWatchCmd) Run(ctx *cli.Context) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	show := &WidgetShowCmd{}
	fmt.Fprintf(ctx.Out, "Watching %s (Ctrl+C to stop)\n", ctx.Config.WidgetDir())
	return ctx.Surface.Watch(sigCtx, func() {
		if err := show.Run(ctx); err != nil {
			fmt.Fprintln(ctx.Out, cli.WarningStyle.Render("⚠ "+err.Error()))
		}
	})
}
