package system

import (
	"fmt"
	"sort"

	"github.com/julianstephens/prayanswer/internal/cleanup"
	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/constants"
)

// MigrateLegacyCmd moves single legacy images into attachment lists. It is
// also run automatically on startup; --rerun clears the completion flag first.
type MigrateLegacyCmd struct {
	Rerun bool `help:"Run again even if the migration already completed."`
}

func (c *MigrateLegacyCmd) Run(ctx *cli.Context) error {
	if c.Rerun {
		if err := ctx.Store.SetSetting(constants.SettingAttachmentMigrationDone, "false"); err != nil {
			return fmt.Errorf("failed to reset migration flag: %w", err)
		}
	}

	result, err := ctx.LegacyMigrator().Run()
	if err != nil {
		return fmt.Errorf("legacy migration failed: %w", err)
	}
	if result.Skipped {
		fmt.Fprintln(ctx.Out, "Legacy images were already migrated.")
		return nil
	}
	fmt.Fprintf(ctx.Out, "Migrated %d legacy image(s), %d failed.\n", result.Migrated, result.Failed)
	return nil
}

type PermissionsListCmd struct{}

func (c *PermissionsListCmd) Run(ctx *cli.Context) error {
	keys := make([]string, 0, len(ctx.Gates))
	for key := range ctx.Gates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		status, err := ctx.Gates[key].Status()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		fmt.Fprintf(ctx.Out, "%-24s %s\n", key, status)
	}
	return nil
}

// PermissionsResetCmd forgets cached permission decisions so they are asked again.
type PermissionsResetCmd struct {
	Key string `arg:"" optional:"" help:"Permission to reset. All when omitted."`
}

func (c *PermissionsResetCmd) Run(ctx *cli.Context) error {
	if c.Key != "" {
		g, ok := ctx.Gates[c.Key]
		if !ok {
			return fmt.Errorf("unknown permission: %s", c.Key)
		}
		if err := g.Reset(); err != nil {
			return err
		}
		fmt.Fprintf(ctx.Out, "Reset %s\n", c.Key)
		return nil
	}
	for key, g := range ctx.Gates {
		if err := g.Reset(); err != nil {
			return fmt.Errorf("failed to reset %s: %w", key, err)
		}
	}
	fmt.Fprintln(ctx.Out, "All permissions reset.")
	return nil
}

type AIStatusCmd struct{}

func (c *AIStatusCmd) Run(ctx *cli.Context) error {
	capability := ctx.Cleanup.Capability()
	fmt.Fprintf(ctx.Out, "AI cleanup: %s", capability.Status)
	if capability.Reason != "" {
		fmt.Fprintf(ctx.Out, " (%s)", capability.Reason)
	}
	fmt.Fprintln(ctx.Out)
	return nil
}

type AIEnableCmd struct{}

func (c *AIEnableCmd) Run(ctx *cli.Context) error {
	if err := ctx.Cleanup.SetUserDisabled(false); err != nil {
		return err
	}
	return (&AIStatusCmd{}).Run(ctx)
}

type AIDisableCmd struct{}

func (c *AIDisableCmd) Run(ctx *cli.Context) error {
	if err := ctx.Cleanup.SetUserDisabled(true); err != nil {
		return err
	}
	return (&AIStatusCmd{}).Run(ctx)
}

// AISetKeyCmd stores the language model API key in the OS keyring.
type AISetKeyCmd struct {
	Key string `arg:"" help:"API key."`
}

func (c *AISetKeyCmd) Run(ctx *cli.Context) error {
	if err := cleanup.StoreAPIKey(c.Key); err != nil {
		return fmt.Errorf("failed to store API key in keyring: %w", err)
	}
	fmt.Fprintln(ctx.Out, "✓ API key stored in OS keyring")
	return nil
}

type AIDeleteKeyCmd struct{}

func (c *AIDeleteKeyCmd) Run(ctx *cli.Context) error {
	if err := cleanup.DeleteAPIKey(); err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}
	fmt.Fprintln(ctx.Out, "✓ API key removed from OS keyring")
	return nil
}
