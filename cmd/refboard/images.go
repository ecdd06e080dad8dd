package main

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"refboard/internal/analysis"
	"refboard/internal/catalog"
	"refboard/internal/importer"
)

// filterFlags are shared by list and search.
type filterFlags struct {
	tags  []string
	tone  string
	color string
	limit int
	after string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringArrayVar(&f.tags, "tag", nil, "Only images carrying this tag (repeatable, all must match)")
	fs.StringVar(&f.tone, "tone", "", "Only images with this tone label, e.g. high-short")
	fs.StringVar(&f.color, "color", "", "Only images whose dominant color is close to this hex color")
	fs.IntVar(&f.limit, "limit", 0, "Page size (0 = configured default)")
	fs.StringVar(&f.after, "after", "", "Cursor from the previous page")
}

func (f *filterFlags) filter() catalog.Filter {
	var out catalog.Filter
	out.Tags = f.tags
	if f.tone != "" {
		out.Tone = &f.tone
	}
	if f.color != "" {
		out.Color = &f.color
	}
	return out
}

func newAddCmd(a *app) *cobra.Command {
	var (
		tags    []string
		pageURL string
		id      string
	)
	cmd := &cobra.Command{
		Use:   "add <file|dir>...",
		Short: "Import image files",
		Long: `Import image files into the catalog. Directories are searched
recursively for supported images. Each file is analyzed for its
dominant color and tone and, when an embedding service is configured,
embedded for similarity search. Files already in the catalog are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := importer.Collect(cmd.Context(), args)
			if err != nil {
				return err
			}
			if id != "" && len(files) != 1 {
				return errors.New("--id can only be used with a single file")
			}
			reqs := make([]importer.Request, 0, len(files))
			for _, p := range files {
				req := importer.Request{Path: p, ID: id, Tags: tags}
				if pageURL != "" {
					req.PageURL = &pageURL
				}
				reqs = append(reqs, req)
			}

			res, err := a.newImporter().Import(cmd.Context(), reqs)
			if err != nil {
				return err
			}

			if a.wantJSON() {
				type failure struct {
					Path  string `json:"path"`
					Error string `json:"error"`
				}
				out := struct {
					Imported []*catalog.Image `json:"imported"`
					Skipped  []string         `json:"skipped"`
					Failed   []failure        `json:"failed"`
				}{Imported: res.Imported, Skipped: res.Skipped, Failed: []failure{}}
				if out.Imported == nil {
					out.Imported = []*catalog.Image{}
				}
				if out.Skipped == nil {
					out.Skipped = []string{}
				}
				for _, f := range res.Failed {
					out.Failed = append(out.Failed, failure{Path: f.Path, Error: f.Err.Error()})
				}
				if err := a.printJSON(out); err != nil {
					return err
				}
			} else {
				rows := make([]catalog.Row, 0, len(res.Imported))
				for _, img := range res.Imported {
					rows = append(rows, catalog.Row{Image: *img})
				}
				if err := a.printRows(rows, ""); err != nil {
					return err
				}
				for _, s := range res.Skipped {
					fmt.Fprintf(a.errOut, "skipped (already in catalog): %s\n", s)
				}
				for _, f := range res.Failed {
					fmt.Fprintf(a.errOut, "failed: %v\n", f)
				}
			}

			if len(res.Failed) > 0 {
				return fmt.Errorf("%d of %d files failed to import", len(res.Failed), len(files))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Tag to attach (repeatable)")
	cmd.Flags().StringVar(&pageURL, "page-url", "", "Source page the image came from")
	cmd.Flags().StringVar(&id, "id", "", "Explicit image id (single file only)")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List images in gallery order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			after, err := decodeCursor[catalog.ListCursor](ff.after)
			if err != nil {
				return err
			}
			ctx, cancel := a.opContext(cmd)
			defer cancel()

			page, err := a.cat.ListImages(ctx, catalog.ListOptions{
				Filter: ff.filter(),
				Limit:  ff.limit,
				After:  after,
			})
			if err != nil {
				return err
			}
			return a.printRows(page.Items, encodeCursor(page.Next))
		},
	}
	ff.register(cmd.Flags())
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		ff        filterFlags
		vectorArg string
		imagePath string
	)
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search by filename text or by similarity",
		Long: `Search the catalog. With a text argument, matches filenames and paths.
With --vector or --image, returns the nearest images by embedding; --image
requires an embedding service (embed_url).

Examples:
  refboard search hands --tag figure
  refboard search --image ./pose.jpg --tone low-long
  refboard search --vector 0.1,0.3,... --limit 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if vectorArg != "" || imagePath != "" {
				if len(args) > 0 {
					return errors.New("text and similarity search cannot be combined")
				}
				vec, err := a.queryVector(cmd, vectorArg, imagePath)
				if err != nil {
					return err
				}
				after, err := decodeCursor[catalog.VectorCursor](ff.after)
				if err != nil {
					return err
				}
				ctx, cancel := a.opContext(cmd)
				defer cancel()
				page, err := a.cat.SearchVector(ctx, catalog.VectorSearchOptions{
					Filter: ff.filter(),
					Vector: vec,
					Limit:  ff.limit,
					After:  after,
				})
				if err != nil {
					return err
				}
				return a.printRows(page.Items, encodeCursor(page.Next))
			}

			if len(args) == 0 {
				return errors.New("give search text, --vector or --image")
			}
			after, err := decodeCursor[catalog.TextCursor](ff.after)
			if err != nil {
				return err
			}
			ctx, cancel := a.opContext(cmd)
			defer cancel()
			page, err := a.cat.SearchText(ctx, catalog.TextSearchOptions{
				Filter: ff.filter(),
				Query:  args[0],
				Limit:  ff.limit,
				After:  after,
			})
			if err != nil {
				return err
			}
			return a.printRows(page.Items, encodeCursor(page.Next))
		},
	}
	ff.register(cmd.Flags())
	cmd.Flags().StringVar(&vectorArg, "vector", "", "Comma separated query vector")
	cmd.Flags().StringVar(&imagePath, "image", "", "Embed this image file and search by it")
	return cmd
}

func (a *app) queryVector(cmd *cobra.Command, vectorArg, imagePath string) ([]float32, error) {
	if vectorArg != "" {
		return parseVector(vectorArg)
	}
	e := a.embedder()
	if e == nil {
		return nil, errors.New("--image needs embed_url to be configured")
	}
	img, err := analysis.Decode(cmd.Context(), imagePath)
	if err != nil {
		return nil, err
	}
	return e.Embed(cmd.Context(), img)
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>...",
		Short: "Show images by id, in the order given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.opContext(cmd)
			defer cancel()
			rows, err := a.cat.GetImagesByIDs(ctx, args)
			if err != nil {
				return err
			}
			return a.printRows(rows, "")
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		pageURL, colorHex, tone string
		relPath                 string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an image's page URL, color, tone or path",
		Long: `Change descriptive fields of an image. Passing an empty value clears
the field, e.g. --tone "".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			flags := cmd.Flags()
			optional := func(name, value string) catalog.Optional[string] {
				switch {
				case !flags.Changed(name):
					return catalog.Optional[string]{}
				case value == "":
					return catalog.Null[string]()
				default:
					return catalog.Some(value)
				}
			}
			patch := catalog.ImagePatch{
				PageURL:       optional("page-url", pageURL),
				DominantColor: optional("color", colorHex),
				Tone:          optional("tone", tone),
			}

			ctx, cancel := a.opContext(cmd)
			defer cancel()
			if patch.PageURL.Set || patch.DominantColor.Set || patch.Tone.Set {
				if err := a.cat.UpdateImage(ctx, id, patch); err != nil {
					return err
				}
			}
			if relPath != "" {
				if err := a.cat.RenameImage(ctx, id, path.Base(relPath), relPath); err != nil {
					return err
				}
			}

			img, err := a.cat.GetImage(ctx, id)
			if err != nil {
				return err
			}
			if img == nil {
				return fmt.Errorf("image %s: %w", id, catalog.ErrNotFound)
			}
			return a.printRows([]catalog.Row{{Image: *img}}, "")
		},
	}
	cmd.Flags().StringVar(&pageURL, "page-url", "", "Source page URL")
	cmd.Flags().StringVar(&colorHex, "color", "", "Dominant color as #rrggbb")
	cmd.Flags().StringVar(&tone, "tone", "", "Tone label")
	cmd.Flags().StringVar(&relPath, "path", "", "New relative path; the filename follows it")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Remove images from the catalog",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.opContext(cmd)
			defer cancel()
			var errs []error
			for _, id := range args {
				if err := a.cat.DeleteImage(ctx, id); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(a.errOut, "removed %s\n", id)
			}
			return errors.Join(errs...)
		},
	}
}
