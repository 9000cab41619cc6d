package main

import (
	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered chapter providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		var rows [][]string
		for _, p := range app.Providers.All(app.ProviderDeps()) {
			info := p.Info()
			rows = append(rows, []string{
				info.ID,
				info.Name,
				yesNo(p.SupportsSearch()),
				yesNo(info.UsesThreading),
				yesNo(p.CanWork() && p.IsWorking(chapterRequest())),
			})
		}
		printTable([]string{"ID", "Name", "Search", "Threaded", "Working"}, rows)
		return nil
	},
}

var saversCmd = &cobra.Command{
	Use:   "savers",
	Short: "List registered library savers",
	RunE: func(cmd *cobra.Command, args []string) error {
		var rows [][]string
		for _, sv := range app.Savers.All() {
			info := sv.Info()
			rows = append(rows, []string{info.ID, info.Name, yesNo(sv.CanWork())})
		}
		printTable([]string{"ID", "Name", "Available"}, rows)
		return nil
	},
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List discovered plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos := app.Plugins.Plugins()
		var rows [][]string
		for _, info := range infos {
			status := "loaded"
			if !info.Loaded {
				status = info.Error
			}
			rows = append(rows, []string{info.ID, info.Name, info.Version, info.Baseclass, status})
		}
		printTable([]string{"ID", "Name", "Version", "Baseclass", "Status"}, rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd, saversCmd, pluginsCmd)
}
