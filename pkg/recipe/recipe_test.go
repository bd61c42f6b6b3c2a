package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/spec"
	"github.com/constracktor/concretor/pkg/version"
)

func boolVariant(name string, def bool) *Variant {
	return &Variant{Name: name, Default: spec.BoolValue(def)}
}

func versions(vs ...string) []VersionDecl {
	out := make([]VersionDecl, len(vs))
	for i, v := range vs {
		out[i] = VersionDecl{Version: version.MustParse(v)}
	}
	return out
}

func TestOrderedVersions(t *testing.T) {
	r := &Recipe{
		Name: "hpx",
		Versions: []VersionDecl{
			{Version: version.MustParse("1.8.0")},
			{Version: version.MustParse("master")},
			{Version: version.MustParse("1.9.1"), Preferred: true},
			{Version: version.MustParse("1.10.0")},
		},
	}

	got := r.OrderedVersions()
	want := []string{"1.9.1", "1.10.0", "1.8.0", "master"}
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.Equal(t, w, got[i].String(), "position %d", i)
	}
}

func TestVariantDomain(t *testing.T) {
	b := boolVariant("cuda", false)
	assert.True(t, b.IsBool())
	assert.Equal(t, []spec.Value{spec.ValueTrue, spec.ValueFalse}, b.Domain())
	assert.True(t, b.InDomain(spec.ValueTrue))
	assert.False(t, b.InDomain("AVX"))

	e := &Variant{Name: "simd_extension", Values: []spec.Value{"DISCOVER", "AVX"}, Default: "DISCOVER"}
	assert.False(t, e.IsBool())
	assert.True(t, e.InDomain("AVX"))
	assert.False(t, e.InDomain(spec.ValueTrue))
}

func TestValidateSpec(t *testing.T) {
	r := &Recipe{
		Name:     "hpx",
		Versions: versions("1.9.1"),
		Variants: []*Variant{
			boolVariant("cuda", false),
			{Name: "simd_extension", Values: []spec.Value{"DISCOVER", "AVX"}, Default: "DISCOVER"},
		},
	}
	_, err := NewIndex([]*Recipe{r})
	require.NoError(t, err)

	assert.NoError(t, r.ValidateSpec(spec.MustParse("hpx +cuda simd_extension=AVX")))

	err = r.ValidateSpec(spec.MustParse("hpx +sycl"))
	assert.Equal(t, errors.ErrCodeUnknownVariant, errors.GetCode(err))

	err = r.ValidateSpec(spec.MustParse("hpx simd_extension=SVE"))
	assert.Equal(t, errors.ErrCodeInvalidVariantValue, errors.GetCode(err))

	err = r.ValidateSpec(spec.MustParse("kokkos +cuda"))
	assert.Equal(t, errors.ErrCodeInvalidSpec, errors.GetCode(err))
}

func TestDependencyActive(t *testing.T) {
	node := &spec.Concrete{
		Name:     "hpxsc",
		Version:  version.MustParse("0.1.0"),
		Variants: map[string]spec.Value{"cuda": spec.ValueTrue, "kokkos": spec.ValueFalse},
		Compiler: spec.Compiler{Name: "gcc", Version: version.MustParse("13.2.0")},
	}

	always := Dependency{Spec: spec.MustParse("cppuddle@0.2.1:")}
	assert.True(t, always.Active(node))

	onCuda := Dependency{Spec: spec.MustParse("hpx +cuda"), When: spec.MustParse("+cuda")}
	assert.True(t, onCuda.Active(node))

	onKokkos := Dependency{Spec: spec.MustParse("kokkos@3.6:"), When: spec.MustParse("+kokkos")}
	assert.False(t, onKokkos.Active(node))
}

func TestConflictForbids(t *testing.T) {
	c := Conflict{
		Spec:    spec.MustParse("+cuda"),
		When:    spec.MustParse("+rocm"),
		Message: "CUDA and ROCm are not compatible",
	}

	both := &spec.Concrete{
		Name:     "hpxsc",
		Version:  version.MustParse("0.1.0"),
		Variants: map[string]spec.Value{"cuda": spec.ValueTrue, "rocm": spec.ValueTrue},
	}
	assert.True(t, c.Forbids(both))

	cudaOnly := &spec.Concrete{
		Name:     "hpxsc",
		Version:  version.MustParse("0.1.0"),
		Variants: map[string]spec.Value{"cuda": spec.ValueTrue, "rocm": spec.ValueFalse},
	}
	assert.False(t, c.Forbids(cudaOnly))
}

func TestNewIndexValidation(t *testing.T) {
	base := func() *Recipe {
		return &Recipe{Name: "hpx", Versions: versions("1.9.1"), Variants: []*Variant{boolVariant("cuda", false)}}
	}

	t.Run("duplicate package", func(t *testing.T) {
		_, err := NewIndex([]*Recipe{base(), base()})
		assert.Equal(t, errors.ErrCodeDuplicatePackage, errors.GetCode(err))
	})

	t.Run("no versions", func(t *testing.T) {
		_, err := NewIndex([]*Recipe{{Name: "hpx"}})
		assert.Equal(t, errors.ErrCodeInvalidRecipe, errors.GetCode(err))
	})

	t.Run("default out of domain", func(t *testing.T) {
		r := base()
		r.Variants = append(r.Variants, &Variant{Name: "simd_library", Values: []spec.Value{"KOKKOS", "STD"}, Default: "SIMD"})
		_, err := NewIndex([]*Recipe{r})
		assert.Equal(t, errors.ErrCodeInvalidRecipe, errors.GetCode(err))
	})

	t.Run("unknown dependency target", func(t *testing.T) {
		r := base()
		r.Dependencies = []Dependency{{Spec: spec.MustParse("asio@1.21:")}}
		_, err := NewIndex([]*Recipe{r})
		assert.Equal(t, errors.ErrCodeUnknownPackage, errors.GetCode(err))
	})

	t.Run("dependency constrains unknown variant", func(t *testing.T) {
		dep := &Recipe{Name: "kokkos", Versions: versions("4.1.0")}
		r := base()
		r.Dependencies = []Dependency{{Spec: spec.MustParse("kokkos +serial")}}
		_, err := NewIndex([]*Recipe{r, dep})
		assert.Equal(t, errors.ErrCodeUnknownVariant, errors.GetCode(err))
	})

	t.Run("guard references unknown variant", func(t *testing.T) {
		dep := &Recipe{Name: "kokkos", Versions: versions("4.1.0")}
		r := base()
		r.Dependencies = []Dependency{{Spec: spec.MustParse("kokkos"), When: spec.MustParse("+sycl")}}
		_, err := NewIndex([]*Recipe{r, dep})
		assert.Equal(t, errors.ErrCodeUnknownVariant, errors.GetCode(err))
	})

	t.Run("variant guard may only look backwards", func(t *testing.T) {
		r := base()
		r.Variants = []*Variant{
			{Name: "kokkos_hpx_kernels", Default: spec.ValueFalse, When: spec.MustParse("+kokkos")},
			boolVariant("kokkos", false),
		}
		_, err := NewIndex([]*Recipe{r})
		assert.Equal(t, errors.ErrCodeInvalidRecipe, errors.GetCode(err))
	})

	t.Run("variant guard on earlier variant is fine", func(t *testing.T) {
		r := base()
		r.Variants = []*Variant{
			boolVariant("kokkos", false),
			{Name: "kokkos_hpx_kernels", Default: spec.ValueFalse, When: spec.MustParse("+kokkos")},
		}
		_, err := NewIndex([]*Recipe{r})
		assert.NoError(t, err)
	})
}

func TestIndexAccessors(t *testing.T) {
	a := &Recipe{Name: "kokkos", Versions: versions("4.1.0")}
	b := &Recipe{Name: "hpx", Versions: versions("1.9.1")}

	ix, err := NewIndex([]*Recipe{a, b})
	require.NoError(t, err)

	assert.Equal(t, []string{"hpx", "kokkos"}, ix.Names())
	assert.Equal(t, 2, ix.Len())

	r, ok := ix.Get("hpx")
	require.True(t, ok)
	assert.Equal(t, "hpx", r.Name)

	_, ok = ix.Get("asio")
	assert.False(t, ok)

	require.Len(t, ix.Compilers(), 1)
	assert.Equal(t, DefaultCompiler.Name, ix.Compilers()[0].Name)
}

func TestIndexDigest(t *testing.T) {
	build := func(ver string) *Index {
		ix, err := NewIndex([]*Recipe{{Name: "hpx", Versions: versions(ver)}})
		require.NoError(t, err)
		return ix
	}

	assert.Equal(t, build("1.9.1").Digest(), build("1.9.1").Digest())
	assert.NotEqual(t, build("1.9.1").Digest(), build("1.10.0").Digest())
}
