package main

import (
	"context"
	"errors"
	"strings"

	"github.com/urfave/cli/v3"
)

// Register はアカウントを作成する。ログインは行わない。
func (r *Runner) Register(ctx context.Context, cmd *cli.Command) error {
	username := strings.TrimSpace(cmd.Args().First())
	if username == "" {
		return errors.New("username is required")
	}
	password, err := r.readPassword(cmd)
	if err != nil {
		return err
	}

	c, _, err := r.client(cmd)
	if err != nil {
		return err
	}
	if err := c.Register(ctx, username, password); err != nil {
		return err
	}

	r.logger.Debug("registered", "username", username)
	return r.writePlain("✓ Registered %s. Run `tunedeck-cli login %s` to sign in.\n", username, username)
}

// Login はログインしてセッションを保存する。
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	username := strings.TrimSpace(cmd.Args().First())
	if username == "" {
		return errors.New("username is required")
	}
	password, err := r.readPassword(cmd)
	if err != nil {
		return err
	}

	c, store, err := r.client(cmd)
	if err != nil {
		return err
	}
	session, err := c.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := store.Save(session); err != nil {
		return err
	}

	r.logger.Debug("session saved", "path", store.Path())
	if session.ExpiresAt.IsZero() {
		return r.writePlain("✓ Logged in as %s\n", username)
	}
	return r.writePlain("✓ Logged in as %s (until %s)\n", username, session.ExpiresAt.Local().Format("2006-01-02 15:04"))
}

// Logout は保存済みセッションを削除する。
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	store, err := r.store(cmd)
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

// Whoami はトークンが示すユーザーを表示する。
func (r *Runner) Whoami(ctx context.Context, cmd *cli.Command) error {
	c, store, err := r.client(cmd)
	if err != nil {
		return err
	}
	user, err := c.Me(ctx)
	if err != nil {
		return r.authFailed(store, err)
	}
	return r.writePlain("%s (%s)\n", user.Username, user.ID)
}
