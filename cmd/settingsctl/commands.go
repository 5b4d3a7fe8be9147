package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	settings "github.com/goliatone/go-settings"
)

func getCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <module> <key> [default]",
		Short: "Print a setting, or the default when it is not stored",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			def := settings.Null()
			if len(args) == 3 {
				def = parseArg(args[2])
			}
			v := c.app.Manager.Get(cmd.Context(), args[0], args[1], def)
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
}

func setCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "set <module> <key> <json>",
		Short: "Store a setting",
		Long: `Store a setting. The value is parsed as JSON; anything that is not valid
JSON is stored as a string, so "set chat theme dark" works without quoting.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := parseArg(args[2])
			if err := c.app.Manager.Set(cmd.Context(), args[0], args[1], v); err != nil {
				var verr *settings.ValidationError
				if errors.As(err, &verr) && errors.Is(err, settings.ErrTypeMismatch) {
					return fmt.Errorf("%s.%s: %s is rejected: %v", args[0], args[1], v, verr.Err)
				}
				if errors.As(err, &verr) {
					return fmt.Errorf("%s.%s: %s is rejected by rule %q", args[0], args[1], v, verr.Rule)
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), c.app.Manager.GetAll(cmd.Context(), args[0]))
		},
	}
}

func listCmd(c *cli) *cobra.Command {
	var effective bool
	cmd := &cobra.Command{
		Use:   "list <module>",
		Short: "Print every stored setting of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if effective {
				return printJSON(cmd.OutOrStdout(), c.app.Manager.Effective(cmd.Context(), args[0]))
			}
			return printJSON(cmd.OutOrStdout(), c.app.Manager.GetAll(cmd.Context(), args[0]))
		},
	}
	cmd.Flags().BoolVar(&effective, "effective", false, "include registry defaults")
	return cmd
}

func explainCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <module> <key>",
		Short: "Show which layer supplies a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), c.app.Manager.Explain(cmd.Context(), args[0], args[1]))
		},
	}
}

func schemaCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [module]",
		Short: "Print the registered modules or the fields of one module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return printJSON(cmd.OutOrStdout(), c.app.Registry.Modules())
			}
			d, ok := c.app.Registry.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown module %q", args[0])
			}
			return printJSON(cmd.OutOrStdout(), d.Schema())
		},
	}
}

func serveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the webview bridge, relay and overlay toggle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Serve(cmd.Context())
		},
	}
}

// parseArg reads a JSON value, falling back to a plain string.
func parseArg(arg string) settings.Value {
	if v, err := settings.ParseValue([]byte(arg)); err == nil {
		return v
	}
	return settings.String(arg)
}
