package main

import (
	"github.com/alecthomas/kong"

	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/cli/prayers"
	"github.com/julianstephens/prayanswer/internal/cli/system"
	"github.com/julianstephens/prayanswer/internal/config"
	"github.com/julianstephens/prayanswer/internal/constants"
	apperrors "github.com/julianstephens/prayanswer/internal/errors"
	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/utils"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"string" default:"${config_path}"`
	Debug   bool   `help:"Log debug output to stderr."`

	Init      system.InitCmd            `cmd:"" help:"Initialize prayanswer storage."`
	Add       prayers.PrayerAddCmd      `cmd:"" help:"Write a new prayer."`
	Edit      prayers.PrayerEditCmd     `cmd:"" help:"Edit a prayer."`
	Move      prayers.PrayerMoveCmd     `cmd:"" help:"Move a prayer to another storage."`
	Favorite  prayers.PrayerFavoriteCmd `cmd:"" help:"Toggle the favorite flag of a prayer."`
	Delete    prayers.PrayerDeleteCmd   `cmd:"" help:"Delete a prayer with its attachments and reminders."`
	List      prayers.PrayerListCmd     `cmd:"" help:"List prayers." default:"1"`
	Show      prayers.PrayerShowCmd     `cmd:"" help:"Show a prayer."`
	Stats     prayers.StatsCmd          `cmd:"" help:"Show prayer statistics."`
	Targets   prayers.TargetsCmd        `cmd:"" help:"List everyone you have prayed for."`
	Attach    prayers.PrayerAttachCmd   `cmd:"" help:"Attach images or PDFs to a prayer."`
	Detach    prayers.PrayerDetachCmd   `cmd:"" help:"Remove an attachment from a prayer."`
	Reorder   prayers.PrayerReorderCmd  `cmd:"" help:"Reorder the attachments of a prayer."`
	OCR       prayers.PrayerOCRCmd      `cmd:"" name:"ocr" help:"Recognize text in the attachments of a prayer."`
	Cleanup   prayers.PrayerCleanupCmd  `cmd:"" help:"Tidy up a prayer with the language model."`
	Dictate   prayers.DictateCmd        `cmd:"" help:"Dictate a prayer with speech recognition."`
	Notify    system.NotifyCmd          `cmd:"" help:"Deliver due reminders to the tray app."`
	Reminders system.RemindersCmd       `cmd:"" help:"List pending reminders."`
	Widget    struct {
		Show    system.WidgetShowCmd    `cmd:"" help:"Show the published favorites snapshot." default:"1"`
		Refresh system.WidgetRefreshCmd `cmd:"" help:"Republish the favorites snapshot."`
		Watch   system.WidgetWatchCmd   `cmd:"" help:"Print the snapshot whenever it changes."`
	} `cmd:"" help:"Favorites widget snapshot."`
	MigrateLegacy system.MigrateLegacyCmd `cmd:"" help:"Move legacy single images into attachment lists."`
	Permissions   struct {
		List  system.PermissionsListCmd  `cmd:"" help:"Show cached permission decisions." default:"1"`
		Reset system.PermissionsResetCmd `cmd:"" help:"Forget permission decisions so they are asked again."`
	} `cmd:"" help:"Manage permissions."`
	AI struct {
		Status    system.AIStatusCmd    `cmd:"" help:"Show whether AI cleanup is available." default:"1"`
		Enable    system.AIEnableCmd    `cmd:"" help:"Allow AI cleanup."`
		Disable   system.AIDisableCmd   `cmd:"" help:"Turn AI cleanup off."`
		SetKey    system.AISetKeyCmd    `cmd:"" help:"Store the API key in the OS keyring."`
		DeleteKey system.AIDeleteKeyCmd `cmd:"" help:"Remove the API key from the OS keyring."`
	} `cmd:"" name:"ai" help:"Manage AI cleanup."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Prayer journal with D-Day reminders"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":     constants.Version,
			"config_path": constants.DefaultConfigPath,
		},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		apperrors.Fatal(err)
	}
	if CLI.Debug {
		cfg.Debug = true
	}
	if _, err := utils.ApplyTimezone(cfg.Timezone); err != nil {
		apperrors.Fatal(err)
	}
	err = logger.Init(logger.Config{
		Debug:      cfg.Debug,
		DataDir:    cfg.DataDir,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		apperrors.Fatal(err)
	}

	appCtx := cli.NewContext(cfg)

	// Init handles its own loading
	if ctx.Selected() != nil && ctx.Selected().Name != "init" {
		if err := appCtx.Open(); err != nil {
			apperrors.Fatal(err)
		}
	}

	err = ctx.Run(appCtx)
	appCtx.Close()
	if err != nil {
		apperrors.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		apperrors.Fatal(err)
	}
}
