package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	tuimodel "github.com/modoterra/cmdhub/pkg/tui/model"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live view of recorded commands",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		c, err := dialHub()
		if err != nil {
			return err
		}
		defer c.Close()

		p := tea.NewProgram(tuimodel.New(c), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}
