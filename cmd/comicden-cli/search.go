package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkathuria/comicden/internal/provider"
	"github.com/pkathuria/comicden/internal/search"
)

var searchProvider string

// chapterRequest builds the provider request from the current settings.
func chapterRequest() provider.ChapterRequest {
	snap, err := app.Snapshot()
	if err != nil {
		return provider.ChapterRequest{}
	}
	return provider.ChapterRequest{
		Title:       snap.Title,
		Chapter:     snap.Chapter,
		LibraryPath: snap.CurrentLibraryPath(),
	}
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search providers for a title",
	Long: `Search a single provider with --provider, or fan the query out over
every working provider (two hits each) when no provider is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		req := chapterRequest()
		var rows [][]string

		if searchProvider != "" {
			p, err := app.Providers.Get(searchProvider, app.ProviderDeps())
			if err != nil {
				return err
			}
			hits, err := p.Search(ctx, req, args[0])
			if err != nil {
				return err
			}
			for i, h := range hits {
				rows = append(rows, []string{strconv.Itoa(i + 1), h.Text})
			}
		} else {
			results := search.All(ctx, app.Providers.All(app.ProviderDeps()), req, args[0])
			for i, h := range results {
				rows = append(rows, []string{strconv.Itoa(i + 1), h.Text})
			}
		}

		if len(rows) == 0 {
			fmt.Println("no results")
			return nil
		}
		printTable([]string{"#", "Result"}, rows)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchProvider, "provider", "p", "", "search a single provider by id")
	rootCmd.AddCommand(searchCmd)
}
