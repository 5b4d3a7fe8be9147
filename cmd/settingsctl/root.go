package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-settings/internal/app"
	"github.com/goliatone/go-settings/internal/config"
	"github.com/goliatone/go-settings/internal/logging"
)

// cli holds the global flags and the application built for a command.
type cli struct {
	cfgFile  string
	driver   string
	path     string
	logLevel string

	app      *app.App
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(&cli{})
}

// newRootCmdFor builds the command tree around c. A failing RunE skips the
// post-run hook, so callers that outlive the command call c.teardown.
func newRootCmdFor(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "settingsctl",
		Short:         "Inspect and edit per-module game settings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.teardown()
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default: ./settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&c.driver, "storage", "", "storage driver: memory, file or sqlite")
	rootCmd.PersistentFlags().StringVar(&c.path, "path", "", "storage file or database path")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		getCmd(c),
		setCmd(c),
		listCmd(c),
		explainCmd(c),
		schemaCmd(c),
		serveCmd(c),
	)
	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	if c.driver != "" {
		cfg.Storage.Driver = c.driver
	}
	if c.path != "" {
		cfg.Storage.Path = c.path
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := logging.Setup(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c.closeLog = closeLog

	a, err := app.New(cfg, logger)
	if err != nil {
		closeLog()
		return err
	}
	c.app = a
	return nil
}

func (c *cli) teardown() error {
	var err error
	if c.app != nil {
		err = c.app.Close()
		c.app = nil
	}
	if c.closeLog != nil {
		c.closeLog()
		c.closeLog = nil
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}
