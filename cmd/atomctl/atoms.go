package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	"github.com/atomshelf/atomshelf-server/internal/filter"
	"github.com/atomshelf/atomshelf-server/internal/service"
)

var (
	listSearch     string
	listTypes      []string
	listCreators   []string
	listTags       []string
	listFavorites  bool
	listIdea       int64
	listHideHidden bool
)

var atomsCmd = &cobra.Command{
	Use:   "atoms",
	Short: "Work with atoms",
}

var atomsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List atoms matching the gallery filters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		p := filter.Predicates{
			Search:        listSearch,
			ContentTypes:  listTypes,
			Creators:      listCreators,
			FavoritesOnly: listFavorites,
			SelectedTags:  listTags,
			HideHidden:    listHideHidden,
		}
		if listIdea > 0 {
			p.IdeaID = &listIdea
		}

		// One page wide enough for the whole catalog.
		gallery := service.NewGalleryService(s.store, len(s.store.Atoms())+1, s.log.Logger)
		view, err := gallery.View(ctx, service.ViewRequest{Predicates: p})
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(view.Atoms)
		}
		rows := make([][]string, len(view.Atoms))
		for i, a := range view.Atoms {
			rows[i] = atomRow(a)
		}
		if err := printTable([]string{"ID", "TYPE", "TITLE", "TAGS", "HIDDEN"}, rows); err != nil {
			return err
		}
		if view.IdeaPending {
			fmt.Println("(idea children not loaded, idea filter skipped)")
		}
		fmt.Printf("%d atoms\n", view.Total)
		return nil
	},
}

func atomRow(a domain.Atom) []string {
	return []string{
		strconv.FormatInt(a.ID, 10),
		a.ContentType,
		a.Title,
		strings.Join(a.Tags, ","),
		strconv.FormatBool(a.Hidden),
	}
}

func init() {
	f := atomsListCmd.Flags()
	f.StringVar(&listSearch, "search", "", "Substring match on title, description, tags and creators")
	f.StringSliceVar(&listTypes, "type", nil, "Content types to include")
	f.StringSliceVar(&listCreators, "creator", nil, "Creator names to include")
	f.StringSliceVar(&listTags, "tag", nil, "Selected tags (flagged and no-tag are pseudo-tags)")
	f.BoolVar(&listFavorites, "favorites", false, "Only atoms by favorite creators")
	f.Int64Var(&listIdea, "idea", 0, "Scope to the children of this idea")
	f.BoolVar(&listHideHidden, "hide-hidden", false, "Exclude hidden atoms")

	atomsCmd.AddCommand(atomsListCmd)
	rootCmd.AddCommand(atomsCmd)
}
