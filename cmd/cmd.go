// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles configuration and session store initialization.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the configuration file and session store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles account and session operations.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Account and session operations",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in and persist the session",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Usage:    "Account username",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Account password (prompted when omitted)",
					},
				},
				Action: r.Login,
			},
			{
				Name:  "register",
				Usage: "Create an account and sign in",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Usage:    "Account username",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Account password (prompted when omitted)",
					},
				},
				Action: r.Register,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and forget the stored session",
				Action: r.Logout,
			},
			{
				Name:   "whoami",
				Usage:  "Show the signed-in account",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.Whoami,
			},
		},
	}
}

// musicCommand handles generation and the music library.
func musicCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "music",
		Aliases: []string{"m"},
		Usage:   "Generate music and browse your collection",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Submit a generation request and follow its progress",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Name of the music",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "description",
						Aliases:  []string{"d"},
						Usage:    "What the music should sound like",
						Required: true,
					},
					&cli.StringFlag{Name: "genre", Usage: "Musical genre"},
					&cli.StringFlag{Name: "rhythm", Usage: "Rhythm"},
					&cli.StringFlag{Name: "instruments", Usage: "Comma-separated instruments"},
					&cli.StringFlag{Name: "lyrics", Usage: "Lyrics, when not improvised"},
					&cli.StringFlag{Name: "voice-type", Usage: "Voice type"},
					&cli.StringFlag{Name: "studio-type", Usage: "Studio type"},
					&cli.StringFlag{Name: "voice-sample", Usage: "Path to a voice sample (mp3/wav/m4a/ogg/flac, up to 50MB)"},
					&cli.BoolFlag{Name: "watch", Usage: "Stay connected and print progress until a terminal event", Value: true},
				},
				Action: r.MusicGenerate,
			},
			{
				Name:  "list",
				Usage: "List your generated musics",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output"},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format: text, csv, markdown",
						Value: "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the export to a file instead of stdout",
					},
				},
				Action: r.MusicList,
			},
			{
				Name:  "download",
				Usage: "Save a generated track to disk",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Destination file (defaults to <name>.mp3)",
					},
				},
				Action: r.MusicDownload,
			},
			{
				Name:   "watch",
				Usage:  "Stream realtime studio events until interrupted",
				Action: r.MusicWatch,
			},
		},
	}
}

// notifyCommand handles the notification feed.
func notifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "notify",
		Aliases: []string{"n"},
		Usage:   "Notification feed operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Show the feed with unread counts",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.NotifyList,
			},
			{
				Name:  "history",
				Usage: "Show the generation audit trail",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
					&cli.IntFlag{Name: "limit", Usage: "Entries per page", Value: 20},
					&cli.IntFlag{Name: "skip", Usage: "Entries to skip"},
				},
				Action: r.NotifyHistory,
			},
			{
				Name:  "read",
				Usage: "Mark a notification as read",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.NotifyRead,
			},
		},
	}
}

// financeCommand handles the machine bookkeeping panel.
func financeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "finance",
		Aliases: []string{"fin"},
		Usage:   "Machine bookkeeping and profit split",
		Commands: []*cli.Command{
			{
				Name:   "summary",
				Usage:  "Per-machine totals and the 70/30 split",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.FinanceSummary,
			},
			{
				Name:  "add",
				Usage: "Add a machine",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Machine name",
						Required: true,
					},
					&cli.FloatFlag{Name: "labor", Usage: "Labor value"},
					&cli.StringSliceFlag{Name: "service", Usage: "Service as name=value, repeatable"},
					&cli.StringSliceFlag{Name: "expense", Usage: "Expense as name=value, repeatable"},
				},
				Action: r.FinanceAdd,
			},
			{
				Name:  "rm",
				Usage: "Remove a machine",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.FinanceRemove,
			},
		},
	}
}

// studioCommand launches the interactive TUI.
func studioCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "studio",
		Aliases: []string{"tui"},
		Usage:   "Open the interactive studio interface",
		Action:  r.Studio,
	}
}
