package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/hitoshi/tunedeck/internal/client"
)

// PlaylistsList はログインユーザーのプレイリストを表示する。
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	c, store, err := r.client(cmd)
	if err != nil {
		return err
	}
	playlists, err := c.ListPlaylists(ctx)
	if err != nil {
		return r.authFailed(store, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists)
	}
	if len(playlists) == 0 {
		return r.writePlain("No playlists yet.\n")
	}
	for _, p := range playlists {
		if err := r.writePlain("%s  %s (%d songs)\n", p.ID, p.Name, len(p.SongIDs)); err != nil {
			return err
		}
	}
	return nil
}

// PlaylistsShow はプレイリストと楽曲を表示する。
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errors.New("playlist id is required")
	}
	c, store, err := r.client(cmd)
	if err != nil {
		return err
	}
	p, err := c.GetPlaylist(ctx, id)
	if err != nil {
		return r.authFailed(store, err)
	}
	return r.writePlaylist(c, cmd, p)
}

// PlaylistsCreate はプレイリストを作成する。
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 || args[0] == "" {
		return errors.New("playlist name is required")
	}
	c, store, err := r.client(cmd)
	if err != nil {
		return err
	}
	p, err := c.CreatePlaylist(ctx, args[0], args[1:])
	if err != nil {
		return r.authFailed(store, err)
	}
	if !cmd.Bool("json") {
		if err := r.writePlain("✓ Created\n"); err != nil {
			return err
		}
	}
	return r.writePlaylist(c, cmd, p)
}

// PlaylistsAdd はプレイリストに楽曲を追加する。
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) < 2 {
		return errors.New("playlist id and at least one song id are required")
	}
	c, store, err := r.client(cmd)
	if err != nil {
		return err
	}
	p, err := c.AddSongs(ctx, args[0], args[1:])
	if err != nil {
		return r.authFailed(store, err)
	}
	return r.writePlaylist(c, cmd, p)
}

// PlaylistsDelete はプレイリストを削除する。
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errors.New("playlist id is required")
	}
	c, store, err := r.client(cmd)
	if err != nil {
		return err
	}
	if err := c.DeletePlaylist(ctx, id); err != nil {
		return r.authFailed(store, err)
	}
	return r.writePlain("✓ Deleted %s\n", id)
}

func (r *Runner) writePlaylist(c *client.Client, cmd *cli.Command, p *client.Playlist) error {
	if cmd.Bool("json") {
		return r.writeJSON(p)
	}
	if err := r.writePlain("%s  %s (%d songs)\n", p.ID, p.Name, len(p.SongIDs)); err != nil {
		return err
	}
	for _, s := range p.Songs {
		if err := r.writePlain("  - "); err != nil {
			return err
		}
		if err := r.writeSong(c, s); err != nil {
			return err
		}
	}
	// カタログに無い楽曲IDは詳細を表示できない
	if missing := len(p.SongIDs) - len(p.Songs); missing > 0 {
		return r.writePlain("  (%d song(s) no longer in the catalog)\n", missing)
	}
	return nil
}
