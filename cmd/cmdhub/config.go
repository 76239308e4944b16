package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modoterra/cmdhub/pkg/config"
	"github.com/modoterra/cmdhub/pkg/discover/compose"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage cmdhub.yaml",
}

var (
	configInitOutput  string
	configInitCompose string
	configInitForce   bool
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a cmdhub.yaml",
	Long:  "Writes the default configuration. With --compose, the published ports of redis services in the compose file become instances.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := os.Stat(configInitOutput); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configInitOutput)
		}

		cfg := config.DefaultConfig()
		if configInitCompose != "" {
			f, err := compose.Parse(configInitCompose)
			if err != nil {
				return err
			}
			for _, inst := range f.Instances() {
				cfg.Instances = append(cfg.Instances, config.Instance{ID: inst.ID, Addr: inst.Addr, Source: config.SourceRedis})
			}
		}
		if len(cfg.Instances) == 0 {
			cfg.Instances = cfg.WatchedInstances()
		}

		if err := config.Save(configInitOutput, &cfg); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Generated %s with %d instance(s)\n", configInitOutput, len(cfg.Instances))
		for _, inst := range cfg.Instances {
			idColor.Fprintf(out, "  %s", inst.ID)
			dimColor.Fprintf(out, " (%s)\n", inst.RedisAddr())
		}
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			if path = config.Discover(cwd); path == "" {
				return fmt.Errorf("no config file found")
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		format := "yaml"
		if isTOML(path) {
			format = "toml"
		}
		cfg, err := config.Parse(data, format)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		errs := config.Validate(cfg)
		if len(errs) == 0 {
			okColor.Fprintf(cmd.OutOrStdout(), "%s: valid (%d instances)\n", path, len(cfg.Instances))
			return nil
		}

		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "%s: %d error(s)\n", path, len(errs))
		for _, e := range errs {
			warnColor.Fprintf(errOut, "  • %s\n", e)
		}
		return fmt.Errorf("%s is invalid", path)
	},
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func init() {
	configInitCmd.Flags().StringVar(&configInitOutput, "output", "cmdhub.yaml", "output file path (.yaml or .toml)")
	configInitCmd.Flags().StringVar(&configInitCompose, "compose", "", "import redis services from a compose file")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}
