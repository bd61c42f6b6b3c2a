package cli

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/constracktor/concretor/internal/server"
	"github.com/constracktor/concretor/pkg/cache"
	"github.com/constracktor/concretor/pkg/recipe"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	repo  string
	addr  string // listen address
	redis string // redis address for the shared plan cache, empty for in-process
}

func newServeCmd() *cobra.Command {
	opts := serveOpts{addr: ":8080"}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the resolver as an HTTP service",
		Long: `Serve loads the recipe repository once and answers resolve requests over
HTTP. With --redis, resolved plans are cached in Redis and shared between
instances; otherwise each instance keeps a local file cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.repo, "repo", "r", defaultRepoDir(), "recipe repository directory")
	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringVar(&opts.redis, "redis", os.Getenv("CONCRETOR_REDIS_ADDR"), "redis address for the shared plan cache (host:port)")
	return cmd
}

func runServe(ctx context.Context, opts *serveOpts) error {
	logger := loggerFromContext(ctx)

	ix, err := recipe.Load(opts.repo)
	if err != nil {
		return err
	}
	logger.Info("loaded recipe repository", "dir", opts.repo, "recipes", ix.Len(), "digest", ix.Digest())

	var plans cache.Cache
	if opts.redis != "" {
		plans, err = cache.NewRedisCache(ctx, opts.redis)
		if err != nil {
			return err
		}
		logger.Info("plan cache backed by redis", "addr", opts.redis)
	} else {
		plans = openPlanCache(logger, false, defaultCacheDir())
	}
	defer plans.Close()

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           server.New(ix, plans, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
