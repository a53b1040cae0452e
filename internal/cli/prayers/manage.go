package prayers

import (
	"fmt"

	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/models"
)

type PrayerMoveCmd struct {
	ID      string `arg:"" help:"Prayer ID or prefix."`
	Storage string `arg:"" help:"Destination (waiting|answered|not_answered)."`
}

func (c *PrayerMoveCmd) Run(ctx *cli.Context) error {
	to, err := models.ParseStorage(c.Storage)
	if err != nil {
		return err
	}
	p, err := ctx.ResolvePrayer(c.ID)
	if err != nil {
		return err
	}
	moved, err := ctx.Prayers.Move(p.ID, to)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Moved %s to %s\n", moved.Title, models.StorageMeta(moved.Storage).Name)
	return nil
}

type PrayerFavoriteCmd struct {
	ID string `arg:"" help:"Prayer ID or prefix."`
}

func (c *PrayerFavoriteCmd) Run(ctx *cli.Context) error {
	p, err := ctx.ResolvePrayer(c.ID)
	if err != nil {
		return err
	}
	toggled, err := ctx.Prayers.ToggleFavorite(p.ID)
	if err != nil {
		return err
	}
	if toggled.IsFavorite {
		fmt.Fprintf(ctx.Out, "★ %s added to favorites\n", toggled.Title)
	} else {
		fmt.Fprintf(ctx.Out, "%s removed from favorites\n", toggled.Title)
	}
	return nil
}

type PrayerDeleteCmd struct {
	ID  string `arg:"" help:"Prayer ID or prefix."`
	Yes bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *PrayerDeleteCmd) Run(ctx *cli.Context) error {
	p, err := ctx.ResolvePrayer(c.ID)
	if err != nil {
		return fmt.Errorf("failed to find prayer with ID %s: %w", c.ID, err)
	}

	if !c.Yes {
		ok, err := ctx.Confirm(fmt.Sprintf("'%s' 기도를 삭제할까요? 첨부파일과 알림도 함께 삭제됩니다.", p.Title))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(ctx.Out, "Cancelled.")
			return nil
		}
	}

	if err := ctx.Prayers.Delete(p.ID); err != nil {
		return fmt.Errorf("failed to delete prayer: %w", err)
	}
	fmt.Fprintf(ctx.Out, "Deleted prayer: %s (ID: %s)\n", p.Title, p.ID)
	return nil
}
