package recipe

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/spec"
	"github.com/constracktor/concretor/pkg/version"
)

// Format identifies a recipe file encoding.
type Format string

// Supported recipe file formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatForPath returns the format implied by a file extension.
func FormatForPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, true
	case ".yaml", ".yml":
		return FormatYAML, true
	default:
		return "", false
	}
}

// compilersBasename is the reserved repository file declaring available
// compilers; it is not a recipe.
const compilersBasename = "compilers"

// recipeFile is the on-disk schema, shared between TOML and YAML.
type recipeFile struct {
	Package  string        `toml:"package" yaml:"package"`
	Versions []versionFile `toml:"versions" yaml:"versions"`
	Variants []variantFile `toml:"variants" yaml:"variants"`
	Depends  []dependsFile `toml:"depends" yaml:"depends"`
	Conflict []conflictRow `toml:"conflicts" yaml:"conflicts"`
}

type versionFile struct {
	Version   string `toml:"version" yaml:"version"`
	Preferred bool   `toml:"preferred" yaml:"preferred"`
}

type variantFile struct {
	Name        string   `toml:"name" yaml:"name"`
	Values      []string `toml:"values" yaml:"values"`
	Default     any      `toml:"default" yaml:"default"`
	When        string   `toml:"when" yaml:"when"`
	Description string   `toml:"description" yaml:"description"`
}

type dependsFile struct {
	Spec string `toml:"spec" yaml:"spec"`
	When string `toml:"when" yaml:"when"`
}

type conflictRow struct {
	Spec    string `toml:"spec" yaml:"spec"`
	When    string `toml:"when" yaml:"when"`
	Message string `toml:"message" yaml:"message"`
}

type compilersFile struct {
	Compilers []string `toml:"compilers" yaml:"compilers"`
}

// DecodeRecipe parses one recipe document.
func DecodeRecipe(data []byte, format Format) (*Recipe, error) {
	var rf recipeFile
	if err := decode(data, format, &rf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRecipe, err, "malformed recipe file")
	}
	return buildRecipe(&rf)
}

func decode(data []byte, format Format, out any) error {
	switch format {
	case FormatTOML:
		return toml.Unmarshal(data, out)
	case FormatYAML:
		return yaml.Unmarshal(data, out)
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unsupported recipe format %q", format)
	}
}

func buildRecipe(rf *recipeFile) (*Recipe, error) {
	r := &Recipe{Name: rf.Package}

	for _, vd := range rf.Versions {
		v, err := version.Parse(vd.Version)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidRecipe, err, "package %s", rf.Package)
		}
		r.Versions = append(r.Versions, VersionDecl{Version: v, Preferred: vd.Preferred})
	}

	for _, vf := range rf.Variants {
		v := &Variant{Name: vf.Name, Description: vf.Description}
		for _, val := range vf.Values {
			v.Values = append(v.Values, spec.Value(val))
		}
		def, err := coerceValue(vf.Default)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidRecipe, err,
				"package %s: variant %s default", rf.Package, vf.Name)
		}
		v.Default = def
		if v.When, err = parseGuard(vf.When); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidRecipe, err,
				"package %s: variant %s", rf.Package, vf.Name)
		}
		r.Variants = append(r.Variants, v)
	}

	for _, df := range rf.Depends {
		target, err := spec.Parse(df.Spec)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidRecipe, err, "package %s: dependency %q", rf.Package, df.Spec)
		}
		when, err := parseGuard(df.When)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidRecipe, err, "package %s: dependency %q", rf.Package, df.Spec)
		}
		r.Dependencies = append(r.Dependencies, Dependency{Spec: target, When: when})
	}

	for _, cf := range rf.Conflict {
		matcher, err := parseGuard(cf.Spec)
		if err != nil || matcher == nil {
			return nil, errors.New(errors.ErrCodeInvalidRecipe, "package %s: conflict needs a matcher spec", rf.Package)
		}
		when, err := parseGuard(cf.When)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidRecipe, err, "package %s: conflict %q", rf.Package, cf.Spec)
		}
		r.Conflicts = append(r.Conflicts, Conflict{Spec: matcher, When: when, Message: cf.Message})
	}

	return r, nil
}

// parseGuard parses a when-clause; the empty string means unguarded (nil).
func parseGuard(s string) (*spec.Spec, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return spec.Parse(s)
}

// coerceValue converts a decoded default (bool in TOML/YAML, or a string)
// into a variant value.
func coerceValue(v any) (spec.Value, error) {
	switch t := v.(type) {
	case bool:
		return spec.BoolValue(t), nil
	case string:
		if t == "" {
			return "", errors.New(errors.ErrCodeInvalidRecipe, "default cannot be empty")
		}
		return spec.Value(t), nil
	case nil:
		return "", errors.New(errors.ErrCodeInvalidRecipe, "default is required")
	default:
		return "", errors.New(errors.ErrCodeInvalidRecipe, "default must be a bool or string, got %T", v)
	}
}

// Load reads every recipe file in dir (non-recursive) and builds an Index.
// Files are decoded by extension (.toml, .yaml, .yml); other files are
// ignored, but a hidden file with a recipe extension is an error. A file
// named "compilers.toml" (or .yaml) declares the available compilers
// instead of a recipe.
func Load(dir string) (*Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "reading recipe directory %s", dir)
	}

	var (
		recipes   []*Recipe
		opts      []Option
		fileNames []string
	)
	for _, e := range entries {
		if !e.IsDir() {
			fileNames = append(fileNames, e.Name())
		}
	}
	sort.Strings(fileNames)

	for _, name := range fileNames {
		format, ok := FormatForPath(name)
		if !ok {
			continue
		}
		if err := errors.ValidateRecipeFilename(name); err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "loading %s", name)
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeIO, err, "reading %s", name)
		}

		if strings.TrimSuffix(name, filepath.Ext(name)) == compilersBasename {
			var cf compilersFile
			if err := decode(data, format, &cf); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidRecipe, err, "parsing %s", name)
			}
			cs := make([]spec.Compiler, 0, len(cf.Compilers))
			for _, raw := range cf.Compilers {
				c, err := spec.ParseCompiler(raw)
				if err != nil {
					return nil, errors.Wrap(errors.ErrCodeInvalidRecipe, err, "parsing %s", name)
				}
				cs = append(cs, c)
			}
			opts = append(opts, WithCompilers(cs...))
			continue
		}

		r, err := DecodeRecipe(data, format)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "loading %s", name)
		}
		recipes = append(recipes, r)
	}

	return NewIndex(recipes, opts...)
}
