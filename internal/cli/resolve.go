package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/constracktor/concretor/pkg/cache"
	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/plan"
	"github.com/constracktor/concretor/pkg/recipe"
	"github.com/constracktor/concretor/pkg/solver"
	"github.com/constracktor/concretor/pkg/spec"
)

const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

// resolveOpts holds the command-line flags for the resolve command.
type resolveOpts struct {
	repo     string // recipe repository directory
	format   string // output format: json, yaml, table
	output   string // output file path, "-" for stdout
	noCache  bool   // bypass the plan cache
	cacheDir string // plan cache directory
}

func newResolveCmd() *cobra.Command {
	opts := resolveOpts{format: formatTable, output: "-"}

	cmd := &cobra.Command{
		Use:   "resolve [spec]...",
		Short: "Resolve specs into a concrete install plan",
		Long: `Resolve computes a complete dependency graph for the given specs: every
transitively required package is fixed to an exact version, a full variant
assignment, and a compiler. Identical requests against an unchanged
repository are served from the plan cache.`,
		Example: `  concretor resolve hpxsc
  concretor resolve "hpxsc@0.1.0: +cuda simd_extension=AVX" --format json
  concretor resolve hpx kokkos --repo ./recipes -o plan.yaml --format yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), args, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.repo, "repo", "r", defaultRepoDir(), "recipe repository directory")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: json, yaml, table")
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "output file, - for stdout")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the plan cache")
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", defaultCacheDir(), "plan cache directory")
	return cmd
}

func runResolve(ctx context.Context, args []string, opts *resolveOpts) error {
	p, err := resolvePlan(ctx, args, opts.repo, opts.noCache, opts.cacheDir)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	defer closeOut()

	switch opts.format {
	case formatJSON:
		return p.EncodeJSON(out)
	case formatYAML:
		return p.EncodeYAML(out)
	case formatTable:
		writeTable(out, p)
		return nil
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want json, yaml, or table)", opts.format)
	}
}

// resolvePlan parses the request, loads the repository, and computes (or
// fetches from cache) the install plan. Shared by resolve and export.
func resolvePlan(ctx context.Context, args []string, repo string, noCache bool, cacheDir string) (*plan.Plan, error) {
	logger := loggerFromContext(ctx)

	roots := make([]*spec.Spec, 0, len(args))
	canonical := make([]string, 0, len(args))
	for _, raw := range args {
		sp, err := spec.Parse(raw)
		if err != nil {
			return nil, err
		}
		roots = append(roots, sp)
		canonical = append(canonical, sp.String())
	}
	sort.Strings(canonical)

	ix, err := recipe.Load(repo)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded recipe repository", "dir", repo, "recipes", ix.Len())

	plans := openPlanCache(logger, noCache, cacheDir)
	defer plans.Close()

	key := cache.PlanKey(ix.Digest(), canonical)
	if data, hit, err := plans.Get(ctx, key); err == nil && hit {
		var p plan.Plan
		if json.Unmarshal(data, &p) == nil {
			logger.Debug("plan served from cache", "key", key)
			return &p, nil
		}
	}

	prog := newProgress(logger)
	sv := solver.New(ix, solver.Options{Logf: logger.Debugf})
	g, err := sv.Solve(ctx, roots)
	if err != nil {
		return nil, err
	}
	p, err := plan.FromGraph(g)
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Resolved %d packages", len(p.Nodes)))

	if data, err := json.Marshal(p); err == nil {
		if err := plans.Set(ctx, key, data, 24*time.Hour); err != nil {
			logger.Warn("plan cache write failed", "err", err)
		}
	}
	return p, nil
}

// writeTable prints the plan in build order, one package per line.
func writeTable(w io.Writer, p *plan.Plan) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PACKAGE\tVERSION\tCOMPILER\tVARIANTS")
	for _, name := range p.Order {
		n, ok := p.Node(name)
		if !ok {
			continue
		}
		vars := make([]string, 0, len(n.Variants))
		for _, k := range sortedKeys(n.Variants) {
			vars = append(vars, k+"="+n.Variants[k])
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.Name, n.Version, n.Compiler, joinOrDash(vars))
	}
	tw.Flush()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinOrDash(parts []string) string {
	if len(parts) == 0 {
		return "-"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}

// openPlanCache opens the file-backed plan cache, falling back to a null
// cache when disabled or unavailable.
func openPlanCache(logger *charmlog.Logger, noCache bool, dir string) cache.Cache {
	if noCache || dir == "" {
		return cache.NewNullCache()
	}
	c, err := cache.NewFileCache(dir)
	if err != nil {
		logger.Warn("plan cache unavailable", "dir", dir, "err", err)
		return cache.NewNullCache()
	}
	return c
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeIO, err, "create output file %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}

func defaultRepoDir() string {
	if dir := os.Getenv("CONCRETOR_REPO"); dir != "" {
		return dir
	}
	return "recipes"
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "concretor")
}
