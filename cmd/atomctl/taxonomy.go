package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/atomshelf/atomshelf-server/internal/service"
)

type mergeFunc func(svc *service.TaxonomyService, ctx context.Context, sourceID, targetID int64) (*service.MergeResult, error)

// mergeCmd builds "<kind> merge <source> <target>". No retry queue is
// attached, so a partially applied merge is reported as an error and can
// be re-run.
func mergeCmd(kind string, run mergeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <source-id> <target-id>",
		Short: fmt.Sprintf("Fold one %s into another", kind),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, targetID, err := parseIDPair(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			svc := service.NewTaxonomyService(s.store, nil, s.log.Logger)
			res, err := run(svc, ctx, sourceID, targetID)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(res)
			}
			fmt.Printf("merged %s %d into %d\n", kind, sourceID, targetID)
			return nil
		},
	}
}

func parseIDPair(args []string) (int64, int64, error) {
	a, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || a <= 0 {
		return 0, 0, fmt.Errorf("invalid source id %q", args[0])
	}
	b, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || b <= 0 {
		return 0, 0, fmt.Errorf("invalid target id %q", args[1])
	}
	return a, b, nil
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Work with tags",
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags with their usage counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		tags := s.store.Tags()
		if jsonOut {
			return printJSON(tags)
		}
		rows := make([][]string, len(tags))
		for i, t := range tags {
			rows[i] = []string{
				strconv.FormatInt(t.ID, 10),
				t.Name,
				strconv.Itoa(t.Count),
				strconv.FormatBool(t.IsPrivate),
			}
		}
		return printTable([]string{"ID", "NAME", "COUNT", "PRIVATE"}, rows)
	},
}

var tagsRecountCmd = &cobra.Command{
	Use:   "recount",
	Short: "Recompute every tag's usage count from the atoms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.store.RecountTags(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("recounted %d tags\n", len(s.store.Tags()))
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Work with categories",
}

var creatorsCmd = &cobra.Command{
	Use:   "creators",
	Short: "Work with creators",
}

func init() {
	tagsCmd.AddCommand(tagsListCmd, tagsRecountCmd,
		mergeCmd("tag", (*service.TaxonomyService).MergeTags))
	categoriesCmd.AddCommand(mergeCmd("category", (*service.TaxonomyService).MergeCategories))
	creatorsCmd.AddCommand(mergeCmd("creator", (*service.TaxonomyService).MergeCreators))

	rootCmd.AddCommand(tagsCmd, categoriesCmd, creatorsCmd)
}
