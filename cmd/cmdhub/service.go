package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modoterra/cmdhub/pkg/service"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the cmdhubd systemd user service",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install, enable and start the user service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		bin, err := service.BinaryPath()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 4*timeout)
		defer cancel()
		if err := service.Install(ctx, bin, configPath); err != nil {
			return err
		}
		path, _ := service.UnitPath()
		okColor.Fprintf(cmd.OutOrStdout(), "installed %s\n", path)
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop, disable and remove the user service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 4*timeout)
		defer cancel()
		if err := service.Uninstall(ctx); err != nil {
			return err
		}
		okColor.Fprintf(cmd.OutOrStdout(), "removed %s\n", service.UnitName)
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the hub and service status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ep, err := controlEndpoint()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		fmt.Fprintln(cmd.OutOrStdout(), service.Status(ctx, ep))
		return nil
	},
}

func init() {
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
}
