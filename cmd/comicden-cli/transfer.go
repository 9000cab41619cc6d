package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pkathuria/comicden/internal/transfer"
	"github.com/pkathuria/comicden/internal/util"
)

var (
	transferProvider string
	transferSaver    string
	transferRestore  bool
)

var transferCmd = &cobra.Command{
	Use:   "transfer <from> <to>",
	Short: "Fetch a chapter range and store it in the active library",
	Long: `Transfer walks the chapter range at the title's chapter rate, loading
each chapter into the cache and saving it through the active library saver.
The first failing chapter aborts the rest of the range.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := util.ParseChapterNum(args[0])
		if err != nil {
			return fmt.Errorf("invalid chapter number %q: %w", args[0], err)
		}
		to, err := util.ParseChapterNum(args[1])
		if err != nil {
			return fmt.Errorf("invalid chapter number %q: %w", args[1], err)
		}

		snap, err := app.Snapshot()
		if err != nil {
			return err
		}
		providerID := transferProvider
		if providerID == "" {
			providerID = snap.ProviderID
		}
		saverID := transferSaver
		if saverID == "" {
			saverID = snap.LibraryManagerID
		}

		p, err := app.Providers.Get(providerID, app.ProviderDeps())
		if err != nil {
			return err
		}
		sv, err := app.Savers.Get(saverID)
		if err != nil {
			return err
		}

		opts := transfer.Options{
			Provider:       p,
			Saver:          sv,
			Cache:          app.Cache,
			Snapshot:       snap,
			From:           from,
			To:             to,
			Quality:        snap.QualityPreset,
			RestoreChapter: transferRestore,
		}
		if !transferRestore {
			opts.OnChapterDone = func(n util.ChapterNum) {
				app.Store.SetChapter(n)
			}
		}

		label := fmt.Sprintf("%s..%s", from.Canonical(), to.Canonical())
		if err := transfer.Run(cmd.Context(), opts, progressLine(label)); err != nil {
			return err
		}
		fmt.Println(color.GreenString("transfer complete"))
		return nil
	},
}

func init() {
	transferCmd.Flags().StringVarP(&transferProvider, "provider", "p", "", "provider id (defaults to settings)")
	transferCmd.Flags().StringVarP(&transferSaver, "saver", "s", "", "saver id (defaults to settings)")
	transferCmd.Flags().BoolVar(&transferRestore, "restore", false, "restore the reading position afterwards")
	rootCmd.AddCommand(transferCmd)
}
