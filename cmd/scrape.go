package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalogue-crawler/internal/api"
	"github.com/JakeFAU/catalogue-crawler/internal/pipeline"
)

// newScrapeCmd creates the 'scrape' subcommand.
func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the catalogue and export it",
		Long: `Walks up to --pages listing pages starting at catalogue.base_url, enriches
every item from its detail page using --workers concurrent fetchers, and
writes the merged rows to --output.`,
		RunE: runScrapeCommand,
	}
	addScrapeFlags(cmd)
	return cmd
}

// scrapeFlags maps CLI flags onto config keys.
var scrapeFlags = []struct {
	name string
	key  string
}{
	{"pages", "catalogue.max_pages"},
	{"workers", "enricher.workers"},
	{"output", "output.file"},
	{"metrics-addr", "metrics.listen_addr"},
}

func addScrapeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Int("pages", 1, "number of listing pages to scrape")
	flags.Int("workers", 5, "number of concurrent detail-page workers")
	flags.String("output", "books_enhanced.csv", "output file; a bare name is written under output.dir")
	flags.String("metrics-addr", "", "serve /metrics, /healthz and /readyz on this address while scraping")
}

// bindScrapeFlags binds the flags of the command being run. A flag only
// overrides config files and env vars when it was set explicitly.
func bindScrapeFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, f := range scrapeFlags {
		flag := flags.Lookup(f.name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(f.key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", f.name, err)
		}
	}
	return nil
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	// PostRun is skipped when RunE fails.
	defer rt.close()
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if addr := rt.cfg.Metrics.ListenAddr; addr != "" {
		stopServer, err := startMetricsServer(ctx, addr, rt.logger.Named("api"))
		if err != nil {
			return err
		}
		defer stopServer()
	}

	sum, err := rt.app.Pipeline().Run(ctx, rt.app.Params())
	switch {
	case errors.Is(err, pipeline.ErrNoData):
		fmt.Fprintln(cmd.OutOrStdout(), "No data to save.")
		return nil
	case err != nil:
		return fmt.Errorf("run scrape: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d items to %s\n", sum.RowsWritten, sum.URI)
	rt.logger.Info("Scrape command finished.",
		zap.String("run_id", sum.RunID),
		zap.Int("pages", sum.PagesVisited),
		zap.Int("fallbacks", sum.Fallbacks),
	)
	return nil
}

// startMetricsServer serves the operator endpoints until the returned stop
// function is called.
func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := api.NewServer(logger)
	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Run(srvCtx, ln); err != nil {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	srv.SetReady(true)
	return func() {
		cancel()
		<-done
	}, nil
}
