package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pkathuria/comicden/internal/saver"
)

var librarySaver string

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Create and manage libraries",
}

var libraryCreateCmd = &cobra.Command{
	Use:   "create <path> <name>",
	Short: "Create a new library at path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sv, err := resolveSaver()
		if err != nil {
			return err
		}
		if err := sv.CreateLibrary(args[0], args[1]); err != nil {
			return err
		}
		if err := app.Store.AddLibrary(args[1], args[0]); err != nil {
			return err
		}
		fmt.Println(color.GreenString("created"), args[1], "at", args[0])
		return nil
	},
}

var libraryRenameCmd = &cobra.Command{
	Use:   "rename <path> <name>",
	Short: "Rename the library at path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sv, err := resolveSaver()
		if err != nil {
			return err
		}
		if err := sv.RenameLibrary(args[0], args[1]); err != nil {
			return err
		}
		fmt.Println(color.GreenString("renamed to"), args[1])
		return nil
	},
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured libraries",
	RunE: func(cmd *cobra.Command, args []string) error {
		libs, err := app.Store.Libraries()
		if err != nil {
			return err
		}
		var rows [][]string
		for _, l := range libs {
			rows = append(rows, []string{l.Name, l.Path})
		}
		printTable([]string{"Name", "Path"}, rows)
		return nil
	},
}

func resolveSaver() (saver.Saver, error) {
	id := librarySaver
	if id == "" {
		snap, err := app.Snapshot()
		if err != nil {
			return nil, err
		}
		id = snap.LibraryManagerID
	}
	return app.Savers.Get(id)
}

func init() {
	libraryCmd.PersistentFlags().StringVarP(&librarySaver, "saver", "s", "", "saver id (defaults to settings)")
	libraryCmd.AddCommand(libraryCreateCmd, libraryRenameCmd, libraryListCmd)
	rootCmd.AddCommand(libraryCmd)
}
