package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"refboard/internal/catalog"
	"refboard/internal/startup"
)

func newTagsCmd(a *app) *cobra.Command {
	tags := &cobra.Command{
		Use:   "tags",
		Short: "Manage tags",
		Long: `List, set, rename and delete tags.

Examples:
  refboard tags list
  refboard tags set <id> hands figure
  refboard tags set <id>            # clear all tags
  refboard tags rename figure figures
  refboard tags rm old-tag`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List tags with usage counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.opContext(cmd)
			defer cancel()
			counts, err := a.cat.ListTags(ctx)
			if err != nil {
				return err
			}
			if a.wantJSON() {
				if counts == nil {
					counts = []catalog.TagCount{}
				}
				return a.printJSON(counts)
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TAG\tIMAGES")
			for _, tc := range counts {
				fmt.Fprintf(w, "%s\t%d\n", tc.Name, tc.Count)
			}
			return w.Flush()
		},
	}

	set := &cobra.Command{
		Use:   "set <id> [tag...]",
		Short: "Replace an image's tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.opContext(cmd)
			defer cancel()
			if err := a.cat.SetImageTags(ctx, args[0], args[1:]); err != nil {
				return err
			}
			current, err := a.cat.GetImageTags(ctx, args[0])
			if err != nil {
				return err
			}
			if current == nil {
				current = []string{}
			}
			if a.wantJSON() {
				return a.printJSON(map[string]any{"id": args[0], "tags": current})
			}
			fmt.Fprintf(a.out, "%s: %v\n", args[0], current)
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a tag, merging into <new> if it exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.opContext(cmd)
			defer cancel()
			if err := a.cat.RenameTag(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "renamed %s to %s\n", args[0], args[1])
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "rm <tag>",
		Aliases: []string{"delete"},
		Short:   "Delete a tag from every image",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.opContext(cmd)
			defer cancel()
			return a.cat.DeleteTag(ctx, args[0])
		},
	}

	tags.AddCommand(list, set, rename, remove)
	return tags
}

func newOrderCmd(a *app) *cobra.Command {
	order := &cobra.Command{
		Use:   "order",
		Short: "Arrange the gallery",
		Long: `Arrange the gallery order.

  refboard order set <id>...        # these images first, in this order
  refboard order move <id> <over>   # drag <id> onto <over>'s position`,
	}

	set := &cobra.Command{
		Use:   "set <id>...",
		Short: "Give the listed images positions 0..n-1 and clear all others",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.opContext(cmd)
			defer cancel()
			return a.cat.SetGalleryOrder(ctx, args)
		},
	}

	move := &cobra.Command{
		Use:   "move <id> <over-id>",
		Short: "Move an image to another image's position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.opContext(cmd)
			defer cancel()
			return a.cat.MoveGalleryOrder(ctx, args[0], args[1])
		},
	}

	order.AddCommand(set, move)
	return order
}

func newVectorsCmd(a *app) *cobra.Command {
	vectors := &cobra.Command{
		Use:   "vectors",
		Short: "Manage image embeddings",
	}

	set := &cobra.Command{
		Use:   "set <id> <v1,v2,...>",
		Short: "Store an embedding computed elsewhere",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vec, err := parseVector(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := a.opContext(cmd)
			defer cancel()
			img, err := a.cat.GetImage(ctx, args[0])
			if err != nil {
				return err
			}
			if img == nil {
				return fmt.Errorf("image %s: %w", args[0], catalog.ErrNotFound)
			}
			return a.cat.SetImageVector(ctx, img.RowID, vec)
		},
	}

	backfill := &cobra.Command{
		Use:   "backfill",
		Short: "Embed every image that has no vector yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.newImporter().BackfillVectors(cmd.Context())
			if err != nil {
				return err
			}
			if a.wantJSON() {
				return a.printJSON(map[string]int{"embedded": res.Embedded, "failed": len(res.Failed)})
			}
			fmt.Fprintf(a.out, "embedded %d, failed %d\n", res.Embedded, len(res.Failed))
			return nil
		},
	}

	vectors.AddCommand(set, backfill)
	return vectors
}

func newStatsCmd(a *app) *cobra.Command {
	var vacuum bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.opContext(cmd)
			defer cancel()
			if vacuum {
				if err := a.cat.Database().Vacuum(ctx); err != nil {
					return err
				}
			}
			stats, err := a.cat.Stats(ctx)
			if err != nil {
				return err
			}
			if a.wantJSON() {
				return a.printJSON(stats)
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Images:\t%d\n", stats.TotalImages)
			fmt.Fprintf(w, "Ordered:\t%d\n", stats.OrderedImages)
			fmt.Fprintf(w, "Tags:\t%d\n", stats.TotalTags)
			fmt.Fprintf(w, "Vectors:\t%d\n", stats.TotalVectors)
			fmt.Fprintf(w, "Vector index:\t%v\n", stats.IndexReady)
			fmt.Fprintf(w, "Database:\t%s\n", a.cat.Database().Path())
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "Compact the database first")
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipCatalog": "true"},
		RunE: func(*cobra.Command, []string) error {
			info := startup.GetBuildInfo()
			if a.wantJSON() {
				return a.printJSON(info)
			}
			fmt.Fprintf(a.out, "refboard %s (%s) built %s with %s for %s/%s\n",
				info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
			return nil
		},
	}
}
