package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/modoterra/cmdhub/internal/buildinfo"
	"github.com/modoterra/cmdhub/pkg/client"
	"github.com/modoterra/cmdhub/pkg/config"
	"github.com/modoterra/cmdhub/pkg/core"
	"github.com/modoterra/cmdhub/pkg/filter"
	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

var (
	controlAddr string
	configPath  string
	noColor     bool
	timeout     time.Duration
)

var (
	okColor   = color.New(color.FgGreen)
	idColor   = color.New(color.FgCyan)
	dimColor  = color.New(color.FgHiBlack)
	warnColor = color.New(color.FgYellow)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "cmdhub",
	Short:         "Query a running cmdhubd",
	Long:          "cmdhub talks to the hub's control endpoint: it reads the recorded Redis commands, registers instances and controls the hub.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		color.NoColor = noColor || !isTerminal(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&controlAddr, "control", "", "hub control endpoint (default from config, then "+config.DefaultControl+")")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to cmdhub.yaml or cmdhub.toml")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(lastCmd)
	rootCmd.AddCommand(allCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(versionCmd)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// controlEndpoint resolves --control, then the config file.
func controlEndpoint() (wire.Endpoint, error) {
	if controlAddr != "" {
		return wire.ParseEndpoint(controlAddr)
	}
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return wire.Endpoint{}, err
	}
	return wire.ParseEndpoint(cfg.Control)
}

func dialHub() (*client.Client, error) {
	ep, err := controlEndpoint()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	c, err := client.Dial(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to hub at %s: %w", ep, err)
	}
	return c, nil
}

// withHub dials the hub and runs fn with a request context.
func withHub(fn func(ctx context.Context, c *client.Client) error) error {
	c, err := dialHub()
	if err != nil {
		return err
	}
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx, c)
}

// --- Ping ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if the hub is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withHub(func(ctx context.Context, c *client.Client) error {
			start := time.Now()
			if err := c.Ping(ctx); err != nil {
				return err
			}
			okColor.Fprint(cmd.OutOrStdout(), "pong")
			dimColor.Fprintf(cmd.OutOrStdout(), " (%s)\n", time.Since(start).Round(time.Microsecond))
			return nil
		})
	},
}

// --- Last ---

var lastCmd = &cobra.Command{
	Use:   "last [instance]",
	Short: "Print the most recent command, overall or for one instance",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHub(func(ctx context.Context, c *client.Client) error {
			var (
				last string
				ok   bool
				err  error
			)
			if len(args) == 1 {
				last, ok, err = c.LastByInstance(ctx, core.InstanceID(args[0]))
			} else {
				last, ok, err = c.Last(ctx)
			}
			if err != nil {
				return err
			}
			if !ok {
				dimColor.Fprintln(cmd.OutOrStdout(), "no commands recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), last)
			return nil
		})
	},
}

// --- All ---

var (
	allFilter string
	allJSON   bool
)

var allCmd = &cobra.Command{
	Use:   "all [instance]",
	Short: "Print every recorded command, overall or for one instance",
	Long: `Print every recorded command in arrival order.

--filter takes an expression over instance, line, command and args, for
example: command in ["SET", "DEL"] && args[0] startsWith "session:".
instance is only set when an instance argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var f *filter.Filter
		if allFilter != "" {
			var err error
			if f, err = filter.Compile(allFilter); err != nil {
				return err
			}
		}
		return withHub(func(ctx context.Context, c *client.Client) error {
			var (
				id   core.InstanceID
				cmds []string
				err  error
			)
			if len(args) == 1 {
				id = core.InstanceID(args[0])
				cmds, err = c.AllByInstance(ctx, id)
			} else {
				cmds, err = c.All(ctx)
			}
			if err != nil {
				return err
			}

			recs := make([]core.Record, len(cmds))
			for i, body := range cmds {
				recs[i] = core.Record{Instance: id, Body: body}
			}
			if recs, err = f.Apply(recs); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if allJSON {
				bodies := make([]string, len(recs))
				for i, r := range recs {
					bodies[i] = r.Body
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(bodies)
			}
			if len(recs) == 0 {
				dimColor.Fprintln(out, "no commands recorded")
				return nil
			}
			for _, r := range recs {
				fmt.Fprintln(out, r.Body)
			}
			return nil
		})
	},
}

func init() {
	allCmd.Flags().StringVar(&allFilter, "filter", "", "filter expression")
	allCmd.Flags().BoolVar(&allJSON, "json", false, "output as JSON")
}

// --- Count ---

var countJSON bool

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of commands recorded per instance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withHub(func(ctx context.Context, c *client.Client) error {
			counts, err := c.CommandCounts(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if countJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(counts)
			}
			if len(counts) == 0 {
				dimColor.Fprintln(out, "no instances")
				return nil
			}
			ids := make([]core.InstanceID, 0, len(counts))
			for id := range counts {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

			fmt.Fprintf(out, "%-20s %s\n", "INSTANCE", "COMMANDS")
			for _, id := range ids {
				idColor.Fprintf(out, "%-20s", id)
				fmt.Fprintf(out, " %d\n", counts[id])
			}
			return nil
		})
	},
}

func init() {
	countCmd.Flags().BoolVar(&countJSON, "json", false, "output as JSON")
}

// --- Register ---

var registerCmd = &cobra.Command{
	Use:   "register <instance>",
	Short: "Register an instance id with the hub",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHub(func(ctx context.Context, c *client.Client) error {
			ok, err := c.Register(ctx, core.InstanceID(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				warnColor.Fprintf(cmd.OutOrStdout(), "%s is already registered\n", args[0])
				return nil
			}
			okColor.Fprintf(cmd.OutOrStdout(), "registered %s\n", args[0])
			return nil
		})
	},
}

// --- Reset ---

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear every recorded command and registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withHub(func(ctx context.Context, c *client.Client) error {
			if err := c.Reset(ctx); err != nil {
				return err
			}
			okColor.Fprintln(cmd.OutOrStdout(), "hub reset")
			return nil
		})
	},
}

// --- Shutdown ---

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop the hub and its watchers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withHub(func(ctx context.Context, c *client.Client) error {
			if err := c.Shutdown(ctx); err != nil {
				return err
			}
			okColor.Fprintln(cmd.OutOrStdout(), "hub stopped")
			return nil
		})
	},
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cmdhub %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}
