package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atomshelf/atomshelf-server/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Manage the full-text index",
}

var searchReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if !s.cfg.Search.Enabled {
			return fmt.Errorf("search index is disabled")
		}
		index, err := search.NewIndex(search.Options{
			DataPath: s.cfg.Search.Path,
			Logger:   s.log.WithComponent("search").Logger,
		})
		if err != nil {
			return err
		}
		defer index.Close()

		atoms := s.store.Atoms()
		if err := index.Reindex(ctx, atoms); err != nil {
			return err
		}
		fmt.Printf("indexed %d atoms\n", len(atoms))
		return nil
	},
}

func init() {
	searchCmd.AddCommand(searchReindexCmd)
	rootCmd.AddCommand(searchCmd)
}
