package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/plan"
)

const (
	formatDOT = "dot"
	formatSVG = "svg"
	formatPNG = "png"
)

// exportOpts holds the command-line flags for the export command.
type exportOpts struct {
	repo     string
	format   string // dot, svg, png
	output   string
	detailed bool // full specs in node labels
	noCache  bool
	cacheDir string
}

func newExportCmd() *cobra.Command {
	opts := exportOpts{format: formatDOT, output: "-"}

	cmd := &cobra.Command{
		Use:   "export [spec]...",
		Short: "Render a resolved graph as DOT, SVG, or PNG",
		Example: `  concretor export hpxsc > plan.dot
  concretor export "hpxsc +cuda" --format svg -o plan.svg
  concretor export hpxsc --format png --detailed -o plan.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), args, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.repo, "repo", "r", defaultRepoDir(), "recipe repository directory")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot, svg, png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "output file, - for stdout")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show full specs in node labels")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the plan cache")
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", defaultCacheDir(), "plan cache directory")
	return cmd
}

func runExport(ctx context.Context, args []string, opts *exportOpts) error {
	p, err := resolvePlan(ctx, args, opts.repo, opts.noCache, opts.cacheDir)
	if err != nil {
		return err
	}

	dot := plan.ToDOT(p, plan.DOTOptions{Detailed: opts.detailed})

	var data []byte
	switch opts.format {
	case formatDOT:
		data = []byte(dot)
	case formatSVG:
		data, err = plan.RenderSVG(ctx, dot)
	case formatPNG:
		data, err = plan.RenderPNG(ctx, dot)
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want dot, svg, or png)", opts.format)
	}
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	defer closeOut()

	if _, err := out.Write(data); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write output")
	}
	return nil
}
