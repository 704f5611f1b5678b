package main

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

const defaultServer = "http://localhost:8080"

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tunedeck-cli",
		Usage: "Browse songs and manage playlists on a tunedeck server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Base URL of the tunedeck server",
				Value:   defaultServer,
				Sources: cli.EnvVars("TUNEDECK_SERVER"),
			},
			&cli.StringFlag{
				Name:    "session",
				Usage:   "Path to the session file (default ~/.tunedeck/session.toml)",
				Sources: cli.EnvVars("TUNEDECK_SESSION"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				r.logger.SetLevel(log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			registerCommand(r),
			loginCommand(r),
			logoutCommand(r),
			whoamiCommand(r),
			songsCommand(r),
			playlistsCommand(r),
		},
	}
}

func passwordFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "password",
		Aliases: []string{"p"},
		Usage:   "Password (read from stdin when omitted)",
		Sources: cli.EnvVars("TUNEDECK_PASSWORD"),
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output as JSON"}
}

func registerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "Create an account",
		ArgsUsage: "<username>",
		Flags:     []cli.Flag{passwordFlag()},
		Action:    r.Register,
	}
}

func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Log in and save the session",
		ArgsUsage: "<username>",
		Flags:     []cli.Flag{passwordFlag()},
		Action:    r.Login,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Remove the saved session",
		Action: r.Logout,
	}
}

func whoamiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the logged-in user",
		Action: r.Whoami,
	}
}

func songsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "songs",
		Usage: "Song catalog",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all songs",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.SongsList,
			},
			{
				Name:      "upload",
				Usage:     "Upload an audio file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Song title", Required: true},
					&cli.StringFlag{Name: "artist", Usage: "Artist", Required: true},
					&cli.StringFlag{Name: "genre", Usage: "Genre", Required: true},
					jsonFlag(),
				},
				Action: r.SongsUpload,
			},
		},
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Your playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List your playlists",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.PlaylistsList,
			},
			{
				Name:      "show",
				Usage:     "Show a playlist with its songs",
				ArgsUsage: "<playlist-id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.PlaylistsShow,
			},
			{
				Name:      "create",
				Usage:     "Create a playlist",
				ArgsUsage: "<name> [song-id...]",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.PlaylistsCreate,
			},
			{
				Name:      "add",
				Usage:     "Add songs to a playlist (songs already present are skipped)",
				ArgsUsage: "<playlist-id> <song-id>...",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.PlaylistsAdd,
			},
			{
				Name:      "delete",
				Usage:     "Delete a playlist",
				ArgsUsage: "<playlist-id>",
				Action:    r.PlaylistsDelete,
			},
		},
	}
}
