package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/recipe"
)

func newRecipesCmd() *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "Inspect the recipe repository",
	}
	cmd.PersistentFlags().StringVarP(&repo, "repo", "r", defaultRepoDir(), "recipe repository directory")

	list := &cobra.Command{
		Use:   "list",
		Short: "List all recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := recipe.Load(repo)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PACKAGE\tVERSIONS\tVARIANTS\tDEPENDS")
			for _, name := range ix.Names() {
				r, _ := ix.Get(name)
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", name, len(r.Versions), len(r.Variants), len(r.Dependencies))
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show [package]",
		Short: "Show one recipe in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := recipe.Load(repo)
			if err != nil {
				return err
			}
			r, ok := ix.Get(args[0])
			if !ok {
				return errors.New(errors.ErrCodeUnknownPackage, "no recipe for package %s", args[0])
			}
			printRecipe(r)
			return nil
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the recipe repository",
		Long: `Validate loads every recipe file and checks the repository as a whole:
syntax, duplicate packages, variant defaults, dependency targets, and
guard references. Exits non-zero on the first problem found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := recipe.Load(repo)
			if err != nil {
				return err
			}
			loggerFromContext(cmd.Context()).Info("repository is valid",
				"recipes", ix.Len(), "digest", ix.Digest())
			return nil
		},
	}

	cmd.AddCommand(list, show, validate)
	return cmd
}

func printRecipe(r *recipe.Recipe) {
	fmt.Printf("package: %s\n", r.Name)

	fmt.Println("versions:")
	for _, d := range r.Versions {
		mark := ""
		if d.Preferred {
			mark = " (preferred)"
		}
		fmt.Printf("  %s%s\n", d.Version, mark)
	}

	if len(r.Variants) > 0 {
		fmt.Println("variants:")
		for _, v := range r.Variants {
			line := fmt.Sprintf("  %s default=%s", v.Name, v.Default)
			if !v.IsBool() {
				line += fmt.Sprintf(" values=%v", v.Values)
			}
			if v.When != nil {
				line += fmt.Sprintf(" when=%q", v.When)
			}
			fmt.Println(line)
			if v.Description != "" {
				fmt.Printf("    %s\n", v.Description)
			}
		}
	}

	if len(r.Dependencies) > 0 {
		fmt.Println("depends:")
		for _, d := range r.Dependencies {
			line := "  " + d.Spec.String()
			if d.When != nil {
				line += fmt.Sprintf(" when=%q", d.When)
			}
			fmt.Println(line)
		}
	}

	if len(r.Conflicts) > 0 {
		fmt.Println("conflicts:")
		for _, c := range r.Conflicts {
			line := "  " + c.Spec.String()
			if c.When != nil {
				line += fmt.Sprintf(" when=%q", c.When)
			}
			if c.Message != "" {
				line += " # " + c.Message
			}
			fmt.Println(line)
		}
	}
}
