package app

import (
	"fmt"
	"io"
	"strings"
)

// Command はtunedeckサーバーバイナリのサブコマンド。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck"
	CommandHelp        Command = "help"
)

// commands は使い方の表示順。
var commands = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "start the HTTP API (default)"},
	{CommandWorker, "sweep orphaned audio files and expose /health and /metrics"},
	{CommandMigrate, "apply pending database migrations and exit"},
	{CommandHealthcheck, "check http://localhost:$SERVER_PORT/health (for distroless images)"},
	{CommandHelp, "show this message"},
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 引数が無い場合はserve。-h/--helpはhelpとして扱う。
// 未知のサブコマンドは誤起動を避けるためエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	name := strings.TrimSpace(args[0])
	switch name {
	case "-h", "--help":
		return CommandHelp, nil
	}
	for _, c := range commands {
		if string(c.cmd) == name {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q (run `tunedeck help`)", name)
}

// writeUsage はサブコマンド一覧を書き出す。
func writeUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: tunedeck [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.cmd, c.desc)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "configuration is read from the environment and ./.env (DATABASE_URL and JWT_SECRET are required)")
}
