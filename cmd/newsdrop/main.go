package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dev-tams/newsdrop/internal/app"
	"github.com/dev-tams/newsdrop/internal/config"
	"github.com/dev-tams/newsdrop/internal/errutil"
	"github.com/dev-tams/newsdrop/internal/source"
	"github.com/dev-tams/newsdrop/internal/storage"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "newsdrop",
		Usage: "deliver daily newspaper PDFs to a remote document folder",
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "fetch today's editions, upload new ones and apply retention",
				Flags: append(runFlags(),
					&cli.BoolFlag{Name: "dry-run", Usage: "report uploads and deletions without changing the remote folder"},
				),
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					return app.RunSync(c.Context, cfg, syncOptions(c, c.Bool("dry-run")))
				},
			},
			{
				Name:  "plan",
				Usage: "print the run plan without changing the remote folder",
				Flags: append(runFlags(),
					&cli.StringFlag{Name: "format", Value: app.FormatText, Usage: "report format: text, yaml or json"},
				),
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					opts := syncOptions(c, true)
					opts.Out = os.Stderr
					res, err := app.RunSyncWithResult(c.Context, cfg, opts)
					if err != nil {
						return err
					}
					return app.WriteReport(c.App.Writer, c.String("format"), app.NewReport(res))
				},
			},
			{
				Name:  "daemon",
				Usage: "run sync on the configured cron schedule",
				Flags: append(runFlags(),
					&cli.StringFlag{Name: "schedule", Usage: "cron expression overriding config schedule"},
					&cli.DurationFlag{Name: "run-timeout", Value: 30 * time.Minute, Usage: "abort a single run after this long (0 disables)"},
				),
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if c.IsSet("schedule") {
						cfg.Schedule = c.String("schedule")
					}
					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()
					return app.RunDaemon(ctx, cfg, syncOptions(c, false), c.Duration("run-timeout"))
				},
			},
			{
				Name:  "register",
				Usage: "register this device with the remote store",
				Flags: append(commonFlags(),
					&cli.StringFlag{Name: "register-device-token", Required: true, Usage: "one-time device registration code"},
				),
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					st, err := storage.FromConfig(c.Context, cfg.Store)
					if err != nil {
						return err
					}
					return app.EnsureAuthenticated(c.Context, st, cfg.Store.Rmapi.DeviceToken, c.App.Writer)
				},
			},
			{
				Name:  "sources",
				Usage: "list the known sources",
				Action: func(c *cli.Context) error {
					for _, k := range source.Kinds() {
						fmt.Fprintf(c.App.Writer, "%s\t%s\n", k, k.Prefix())
					}
					return nil
				},
			},
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to config yaml (optional)",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable debug logging",
		},
	}
}

func runFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.StringSliceFlag{Name: "sources", Usage: fmt.Sprintf("sources to fetch (%v)", source.Keys())},
		&cli.IntFlag{Name: "max-days", Usage: "dates to keep in the folder, -1 disables retention"},
		&cli.StringFlag{Name: "folder", Usage: "remote folder name"},
		&cli.BoolFlag{Name: "only-front", Usage: "only fetch the front page"},
		&cli.BoolFlag{Name: "skip-fetch", Usage: "skip fetching and uploading, still apply retention"},
		&cli.StringFlag{Name: "date", Usage: "edition date as YYYYMMDD (default today)"},
		&cli.StringFlag{Name: "register-device-token", Usage: "device registration code used when not authenticated"},
		&cli.BoolFlag{Name: "progress", Usage: "show download progress"},
	)
}

// loadConfig reads the optional config file, overlays secrets and explicitly
// set flags, then validates.
func loadConfig(c *cli.Context) (*config.Config, error) {
	errutil.SetupLogger(c.App.ErrWriter, c.Bool("verbose"))

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplySecrets(); err != nil {
		return nil, err
	}
	applyFlags(cfg, c)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides config values only for flags given on the command line.
func applyFlags(cfg *config.Config, c *cli.Context) {
	if c.IsSet("sources") {
		cfg.Sources = c.StringSlice("sources")
	}
	if c.IsSet("max-days") {
		cfg.MaxDays = c.Int("max-days")
	}
	if c.IsSet("folder") {
		cfg.Folder = c.String("folder")
	}
	if c.IsSet("only-front") {
		cfg.OnlyFront = c.Bool("only-front")
	}
	if c.IsSet("register-device-token") {
		cfg.Store.Rmapi.DeviceToken = c.String("register-device-token")
	}
}

func syncOptions(c *cli.Context, dryRun bool) app.SyncOptions {
	return app.SyncOptions{
		Date:      c.String("date"),
		DryRun:    dryRun,
		SkipFetch: c.Bool("skip-fetch"),
		Progress:  c.Bool("progress"),
		Out:       c.App.Writer,
	}
}
