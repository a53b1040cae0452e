package prayers

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/extraction"
)

// PrayerCleanupCmd tidies up the content of a saved prayer after confirmation.
type PrayerCleanupCmd struct {
	ID  string `arg:"" help:"Prayer ID or prefix."`
	Yes bool   `short:"y" help:"Save without asking."`
}

func (c *PrayerCleanupCmd) Run(ctx *cli.Context) error {
	p, err := ctx.ResolvePrayer(c.ID)
	if err != nil {
		return err
	}

	cleaned, err := ctx.Cleanup.Clean(context.Background(), p.Content)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, cleaned)

	if !c.Yes {
		ok, err := ctx.Confirm("정리된 내용으로 바꿀까요?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(ctx.Out, "Kept the original text.")
			return nil
		}
	}

	fields := fieldsOf(p)
	fields.Content = cleaned
	_, err = ctx.Prayers.Update(p.ID, fields)
	if err := ctx.ReportSync(err); err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, cli.SuccessStyle.Render("Prayer updated."))
	return nil
}

// DictateCmd records speech until Enter is pressed and prints the transcript.
type DictateCmd struct {
	Append  string `help:"Append the transcript to this prayer (ID or prefix)."`
	Cleanup bool   `help:"Tidy up the transcript with the language model."`
}

func (c *DictateCmd) Run(ctx *cli.Context) error {
	bg, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := ctx.Speech.Start(bg, func(partial string) {
		fmt.Fprintf(ctx.Out, "\r\033[K%s", partial)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, "Listening... press Enter to stop.")

	lineDone := make(chan struct{})
	go func() {
		_, _ = ctx.ReadLine()
		close(lineDone)
	}()
	select {
	case <-lineDone:
	case <-bg.Done():
	}

	text, err := ctx.Speech.Stop()
	fmt.Fprintln(ctx.Out)
	if err != nil {
		if text == "" {
			return err
		}
		fmt.Fprintln(ctx.Out, cli.WarningStyle.Render("⚠ "+err.Error()))
	}
	if text == "" {
		fmt.Fprintln(ctx.Out, "Nothing was recognized.")
		return nil
	}
	if c.Cleanup {
		text = cleanContent(context.Background(), ctx, text)
	}
	fmt.Fprintln(ctx.Out, text)

	if c.Append == "" {
		return nil
	}
	p, err := ctx.ResolvePrayer(c.Append)
	if err != nil {
		return err
	}
	fields := fieldsOf(p)
	fields.Content = extraction.Merge(p.Content, text)
	_, err = ctx.Prayers.Update(p.ID, fields)
	if err := ctx.ReportSync(err); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Appended to %s\n", p.Title)
	return nil
}
