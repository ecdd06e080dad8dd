package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"refboard/internal/catalog"
	"refboard/internal/importer"
	"refboard/internal/logging"
	"refboard/internal/memory"
	"refboard/internal/metrics"
	"refboard/internal/startup"
)

// app carries state shared by every subcommand.
type app struct {
	v          *viper.Viper
	out        io.Writer
	errOut     io.Writer
	configFile string
	jsonOut    bool
	logLevel   string
	metricsAt  string

	cfg       *startup.Config
	cat       *catalog.Catalog
	collector *metrics.Collector
	server    *http.Server
	monitor   *memory.Monitor
}

// execute runs the command line in args and always releases the catalog.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{v: startup.NewViper(), out: out, errOut: errOut}
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.teardown())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "refboard",
		Short: "Catalog and search a library of reference images",
		Long: `refboard keeps a catalog of reference images with tags, dominant colors,
tone labels and embeddings, and searches it by text, tag, color or similarity.

Examples:
  refboard add ~/refs/*.jpg --tag portrait
  refboard list --tag portrait --color "#d04020"
  refboard search "hands" --limit 20
  refboard search --image ./pose.jpg --tone high-short
  refboard order move <id> <over-id>`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Config file (default ./refboard.{yaml,toml,json})")
	pf.String("data-dir", "", "Directory holding the catalog database")
	pf.String("library-dir", "", "Directory image files are stored under")
	pf.Int("embedding-dim", 0, "Embedding vector dimension")
	pf.String("embed-url", "", "Embedding service endpoint")
	pf.Int("import-workers", 0, "Import worker count (0 = auto)")
	pf.BoolVar(&a.jsonOut, "json", false, "Always print JSON")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.metricsAt, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	for key, flag := range map[string]string{
		"data_dir":       "data-dir",
		"library_dir":    "library-dir",
		"embedding_dim":  "embedding-dim",
		"embed_url":      "embed-url",
		"import_workers": "import-workers",
	} {
		if err := a.v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		newAddCmd(a),
		newListCmd(a),
		newSearchCmd(a),
		newShowCmd(a),
		newUpdateCmd(a),
		newRemoveCmd(a),
		newTagsCmd(a),
		newOrderCmd(a),
		newVectorsCmd(a),
		newStatsCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.logLevel != "" {
		logging.SetLevel(logging.ParseLevel(a.logLevel))
	}
	if cmd.Annotations["skipCatalog"] == "true" {
		return nil
	}

	if err := startup.ReadConfigFile(a.v, a.configFile); err != nil {
		return err
	}
	cfg, err := startup.LoadFrom(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if logging.IsDebugEnabled() {
		startup.LogConfig(cfg)
	}
	if err := startup.EnsureDataDir(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.OpTimeout)
	defer cancel()
	a.cat, err = catalog.New(ctx, cfg)
	if err != nil {
		return err
	}

	if a.metricsAt != "" {
		a.startMetrics()
	}
	return nil
}

func (a *app) startMetrics() {
	metrics.InitializeMetrics()
	a.collector = metrics.NewCollector(a.cat, a.cfg.DatabasePath(), a.cfg.MetricsInterval)
	a.collector.Start()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.server = &http.Server{Addr: a.metricsAt, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warn("Metrics server error: %v", err)
		}
	}()
	logging.Info("Serving metrics on %s/metrics", a.metricsAt)
}

func (a *app) teardown() error {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(ctx)
	}
	if a.collector != nil {
		a.collector.Stop()
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.cat == nil {
		return nil
	}
	err := a.cat.Close()
	a.cat = nil
	return err
}

// opContext bounds a single catalog call by the configured timeout.
func (a *app) opContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.cfg.OpTimeout)
}

// newImporter builds an importer with the configured embedder and memory
// backpressure.
func (a *app) newImporter() *importer.Importer {
	if a.monitor == nil {
		a.monitor = memory.NewMonitor(memory.DefaultConfig())
		a.monitor.Start()
	}
	opts := []importer.Option{importer.WithMemoryMonitor(a.monitor)}
	if e := a.embedder(); e != nil {
		opts = append(opts, importer.WithEmbedder(e))
	}
	return importer.New(a.cat, opts...)
}

func (a *app) embedder() importer.Embedder {
	if a.cfg.EmbedURL == "" {
		return nil
	}
	return importer.NewHTTPEmbedder(a.cfg.EmbedURL, importer.WithHTTPTimeout(a.cfg.EmbedTimeout))
}

// wantJSON reports whether output should be JSON: forced by --json, or
// whenever stdout is not a terminal.
func (a *app) wantJSON() bool {
	if a.jsonOut {
		return true
	}
	f, ok := a.out.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRows writes rows as an aligned table, or as {"items", "next"} JSON.
func (a *app) printRows(rows []catalog.Row, next string) error {
	if a.wantJSON() {
		if rows == nil {
			rows = []catalog.Row{}
		}
		return a.printJSON(struct {
			Items []catalog.Row `json:"items"`
			Next  string        `json:"next,omitempty"`
		}{rows, next})
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPATH\tCOLOR\tTONE\tORDER\tSCORE\tTAGS")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.RelativePath, deref(r.DominantColor), deref(r.Tone),
			orderString(r.GalleryOrder), scoreString(r.Score), strings.Join(r.Tags, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if next != "" {
		fmt.Fprintf(a.out, "\nnext page: --after %s\n", next)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func orderString(p *int64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}

func scoreString(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *s)
}

// encodeCursor renders a page cursor as an opaque token.
func encodeCursor[C any](c *C) string {
	if c == nil {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor[C any](token string) (*C, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var c C
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	return &c, nil
}
