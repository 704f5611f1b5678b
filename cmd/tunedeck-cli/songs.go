package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/hitoshi/tunedeck/internal/client"
)

// SongsList は全楽曲を表示する。
func (r *Runner) SongsList(ctx context.Context, cmd *cli.Command) error {
	c, _, err := r.client(cmd)
	if err != nil {
		return err
	}
	songs, err := c.ListSongs(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(songs)
	}
	if len(songs) == 0 {
		return r.writePlain("No songs yet.\n")
	}
	for _, s := range songs {
		if err := r.writeSong(c, s); err != nil {
			return err
		}
	}
	return nil
}

// SongsUpload は音声ファイルをアップロードして楽曲を登録する。
func (r *Runner) SongsUpload(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("audio file path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	c, _, err := r.client(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("uploading", "file", path)
	song, err := c.UploadSong(ctx, client.SongUpload{
		Name:     cmd.String("name"),
		Artist:   cmd.String("artist"),
		Genre:    cmd.String("genre"),
		Filename: filepath.Base(path),
		Audio:    f,
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(song)
	}
	if err := r.writePlain("✓ Uploaded\n"); err != nil {
		return err
	}
	return r.writeSong(c, *song)
}

func (r *Runner) writeSong(c *client.Client, s client.Song) error {
	return r.writePlain("%s  %s - %s [%s]\n    %s\n", s.ID, s.Artist, s.Name, s.Genre, c.AssetURL(s.FilePath))
}
