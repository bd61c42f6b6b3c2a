package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/recipe"
	"github.com/constracktor/concretor/pkg/spec"
	"github.com/constracktor/concretor/pkg/version"
)

func drainQueue(q *candidateQueue) []*spec.Concrete {
	var out []*spec.Concrete
	for c := q.current(); c != nil; c = q.current() {
		out = append(out, c)
		q.advance(errors.New(errors.ErrCodeUnsatisfiable, "rejected"))
	}
	return out
}

func candidateKey(c *spec.Concrete) string {
	key := c.Version.String()
	if cuda, ok := c.Variants["cuda"]; ok {
		key += " cuda=" + string(cuda)
	}
	if backend, ok := c.Variants["backend"]; ok {
		key += " backend=" + string(backend)
	}
	return key + " %" + c.Compiler.Name
}

// The backend variant only exists on cuda builds, so flipping cuda while
// walking the assignments must grow and shrink the active variant set.
func TestCandidateQueueOrder(t *testing.T) {
	ix := mustIndex(t, &recipe.Recipe{
		Name:     "lib",
		Versions: versions("2.0.0", "1.0.0"),
		Variants: []*recipe.Variant{
			boolVariant("cuda", false),
			{
				Name:    "backend",
				Values:  []spec.Value{"mpi", "lci"},
				Default: "mpi",
				When:    spec.MustParse("+cuda"),
			},
		},
	})
	r, ok := ix.Get("lib")
	require.True(t, ok)

	gcc := spec.Compiler{Name: "gcc", Version: version.MustParse("13.2.0")}
	clang := spec.Compiler{Name: "clang", Version: version.MustParse("17.0.6")}

	q := newCandidateQueue(r, newDomain(r), []spec.Compiler{gcc, clang})
	got := drainQueue(q)

	want := []string{
		// Defaults first, compilers varying fastest, then the odometer
		// bumps the rightmost variant with values left.
		"2.0.0 cuda=false %gcc",
		"2.0.0 cuda=false %clang",
		"2.0.0 cuda=true backend=mpi %gcc",
		"2.0.0 cuda=true backend=mpi %clang",
		"2.0.0 cuda=true backend=lci %gcc",
		"2.0.0 cuda=true backend=lci %clang",
		"1.0.0 cuda=false %gcc",
		"1.0.0 cuda=false %clang",
		"1.0.0 cuda=true backend=mpi %gcc",
		"1.0.0 cuda=true backend=mpi %clang",
		"1.0.0 cuda=true backend=lci %gcc",
		"1.0.0 cuda=true backend=lci %clang",
	}
	require.Len(t, got, len(want))
	for i, c := range got {
		assert.Equal(t, want[i], candidateKey(c), "candidate %d", i)
	}
	assert.Len(t, q.fails, len(want), "every drained candidate is recorded")
}

// Producing the head of the queue must not walk the rest of the product:
// the second version would blow the assignment count well past what a
// single current call may touch.
func TestCandidateQueueProducesOnDemand(t *testing.T) {
	variants := []*recipe.Variant{boolVariant("a", false)}
	for _, name := range []string{"b", "c", "d", "e", "f"} {
		variants = append(variants, boolVariant(name, false))
	}
	ix := mustIndex(t, &recipe.Recipe{
		Name:     "wide",
		Versions: versions("2.0.0", "1.0.0"),
		Variants: variants,
	})
	r, _ := ix.Get("wide")

	q := newCandidateQueue(r, newDomain(r), []spec.Compiler{recipe.DefaultCompiler})

	first := q.current()
	require.NotNil(t, first)
	assert.Equal(t, "2.0.0", first.Version.String())
	for _, v := range variants {
		assert.Equal(t, spec.ValueFalse, first.Variants[v.Name])
	}
	assert.Same(t, first, q.current(), "head persists until advance")
	assert.Equal(t, 0, q.vi, "later versions untouched")
	assert.Empty(t, q.fails)

	q.advance(errors.New(errors.ErrCodeUnsatisfiable, "rejected"))
	second := q.current()
	require.NotNil(t, second)
	assert.Equal(t, "2.0.0", second.Version.String())
	assert.Equal(t, spec.ValueTrue, second.Variants["f"], "rightmost variant bumps first")
}

// A pinned variant that is inactive at a version eliminates all of that
// version's assignments without offering them.
func TestCandidateQueueSkipsInactivePin(t *testing.T) {
	ix := mustIndex(t, &recipe.Recipe{
		Name:     "lib",
		Versions: versions("2.0.0", "1.0.0"),
		Variants: []*recipe.Variant{
			{Name: "newopt", Default: spec.ValueFalse, When: spec.MustParse("@2:")},
		},
	})
	r, _ := ix.Get("lib")

	d := newDomain(r)
	require.NoError(t, d.addRequirement(requirement{dep: spec.MustParse("lib +newopt")}))

	q := newCandidateQueue(r, d, []spec.Compiler{recipe.DefaultCompiler})
	got := drainQueue(q)

	require.Len(t, got, 1)
	assert.Equal(t, "2.0.0", got[0].Version.String())
	assert.Equal(t, spec.ValueTrue, got[0].Variants["newopt"])

	// 1.0.0 never carried newopt, so it shows up only as a recorded
	// failure with the pin's requirement in the reason.
	exh := q.exhausted()
	require.Len(t, exh.fails, 2)
	assert.Equal(t, errors.ErrCodeUnsatisfiable, errors.GetCode(exh.fails[1].reason))
	assert.Contains(t, exh.fails[1].reason.Error(), "newopt")
}
