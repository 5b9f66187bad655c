package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/authn"
)

func authdCommand() *cli.Command {
	return &cli.Command{
		Name:   "authd",
		Usage:  "authenticating worker (started by serve)",
		Hidden: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "socket", Required: true, Usage: "unix socket path"},
			&cli.StringFlag{Name: "users", Required: true, Usage: "credentials file"},
		},
		Action: runAuthd,
	}
}

// runAuthd serves until stdin closes, which happens when the parent exits.
func runAuthd(c *cli.Context) error {
	logger, err := newLogger(false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("authd")

	store, err := authn.LoadFile(c.String("users"))
	if err != nil {
		return err
	}
	logger.Info("loaded credentials", zap.Int("users", store.Len()))

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	go func() {
		_, _ = io.Copy(io.Discard, os.Stdin)
		cancel()
	}()
	return authn.Serve(ctx, c.String("socket"), store, logger)
}

func hashpwCommand() *cli.Command {
	return &cli.Command{
		Name:      "hashpw",
		Usage:     "print a credentials file line",
		ArgsUsage: "<username> [password]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("username required", 2)
			}
			password := c.Args().Get(1)
			if password == "" {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				password = strings.TrimRight(string(b), "\r\n")
			}
			line, err := authn.FormatEntry(c.Args().First(), password)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, line)
			return nil
		},
	}
}
