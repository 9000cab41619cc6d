package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pkathuria/comicden/internal/provider"
	"github.com/pkathuria/comicden/internal/util"
)

var (
	fetchProvider string
	fetchTitle    string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <chapter>",
	Short: "Fetch one chapter into the cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chapter, err := util.ParseChapterNum(args[0])
		if err != nil {
			return fmt.Errorf("invalid chapter number %q: %w", args[0], err)
		}

		snap, err := app.Snapshot()
		if err != nil {
			return err
		}
		providerID := fetchProvider
		if providerID == "" {
			providerID = snap.ProviderID
		}
		title := fetchTitle
		if title == "" {
			title = snap.Title
		}

		p, err := app.Providers.Get(providerID, app.ProviderDeps())
		if err != nil {
			return err
		}
		folder, err := app.Cache.Folder(chapter)
		if err != nil {
			return err
		}

		req := provider.ChapterRequest{
			Title:       title,
			Chapter:     chapter,
			LibraryPath: snap.CurrentLibraryPath(),
		}
		label := fmt.Sprintf("ch %s", chapter.Canonical())
		if err := p.LoadChapter(cmd.Context(), req, folder, progressLine(label)); err != nil {
			app.Cache.MarkFailed(chapter)
			return err
		}
		app.Cache.MarkReady(chapter)
		app.Cache.EnforceCap(snap.MaxCachedChapters)

		fmt.Println(color.GreenString("cached"), folder)
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reset the chapter cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cache position and ready slot count",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("current chapter: %s\n", app.Cache.Current().Canonical())
		fmt.Printf("ready slots:     %d\n", app.Cache.ReadyCount())
		return nil
	},
}

var cacheResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every cached chapter",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Cache.ResetAll(); err != nil {
			return err
		}
		fmt.Println("cache cleared")
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchProvider, "provider", "p", "", "provider id (defaults to settings)")
	fetchCmd.Flags().StringVarP(&fetchTitle, "title", "t", "", "title (defaults to settings)")
	cacheCmd.AddCommand(cacheStatusCmd, cacheResetCmd)
	rootCmd.AddCommand(fetchCmd, cacheCmd)
}
