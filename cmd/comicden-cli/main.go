// comicden-cli drives the engine from a terminal: search, fetch, transfer
// and library management without the desktop UI.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pkathuria/comicden/internal/core"
	"github.com/pkathuria/comicden/internal/models"
)

var app *core.App

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "comicden",
	Short: "comicden fetches comic chapters from providers into local libraries",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		if !verbose {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		}
		var err error
		app, err = core.New()
		if err != nil {
			return fmt.Errorf("application setup failed: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug logging")
}

func printTable(headers []string, rows [][]string) {
	table := tablewriter.NewTable(os.Stdout)
	table.Header(headers)
	if err := table.Bulk(rows); err != nil {
		return
	}
	table.Render()
}

// progressLine renders in-place progress for long operations.
func progressLine(label string) models.ProgressFn {
	return func(pct int, message string) {
		fmt.Printf("\r%s %3d%%  %-50s", color.CyanString(label), pct, message)
		if pct >= 100 {
			fmt.Println()
		}
	}
}

func yesNo(b bool) string {
	if b {
		return color.GreenString("yes")
	}
	return color.RedString("no")
}
