package prayers

import (
	"fmt"
	"time"

	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/models"
)

type PrayerListCmd struct {
	Storage   string `short:"s" help:"Only this storage (waiting|answered|not_answered)."`
	Category  string `short:"c" help:"Only this category."`
	Favorites bool   `short:"f" help:"Only favorites."`
}

func (c *PrayerListCmd) Run(ctx *cli.Context) error {
	var (
		st  models.Storage
		cat models.Category
		err error
	)
	if c.Storage != "" {
		if st, err = models.ParseStorage(c.Storage); err != nil {
			return err
		}
	}
	if c.Category != "" {
		if cat, err = models.ParseCategory(c.Category); err != nil {
			return err
		}
	}

	var prayers []models.Prayer
	switch {
	case c.Favorites && st != "":
		prayers = ctx.Prayers.FavoritesInStorage(st)
	case c.Favorites:
		prayers = ctx.Prayers.FavoritePrayers()
	case cat != "" && st != "":
		prayers = ctx.Prayers.PrayersByCategoryInStorage(cat, st)
	case cat != "":
		prayers = ctx.Prayers.PrayersByCategory(cat)
	case st != "":
		prayers = ctx.Prayers.PrayersInStorage(st)
	default:
		prayers = ctx.Prayers.All()
	}

	if c.Favorites && cat != "" {
		filtered := prayers[:0]
		for _, p := range prayers {
			if p.Category == cat {
				filtered = append(filtered, p)
			}
		}
		prayers = filtered
	}

	cli.RenderList(ctx.Out, prayers, time.Now())
	return nil
}

type PrayerShowCmd struct {
	ID string `arg:"" help:"Prayer ID or prefix."`
}

func (c *PrayerShowCmd) Run(ctx *cli.Context) error {
	p, err := ctx.ResolvePrayer(c.ID)
	if err != nil {
		return err
	}
	cli.RenderDetail(ctx.Out, p, time.Now())
	return nil
}

type StatsCmd struct{}

func (c *StatsCmd) Run(ctx *cli.Context) error {
	cli.RenderStats(ctx.Out, ctx.Prayers.Stats())
	return nil
}

type TargetsCmd struct{}

func (c *TargetsCmd) Run(ctx *cli.Context) error {
	targets := ctx.Prayers.AllTargets()
	if len(targets) == 0 {
		fmt.Fprintln(ctx.Out, "No targets yet.")
		return nil
	}
	for _, t := range targets {
		fmt.Fprintln(ctx.Out, t)
	}
	return nil
}
