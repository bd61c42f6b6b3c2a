package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constracktor/concretor/pkg/cache"
	"github.com/constracktor/concretor/pkg/plan"
	"github.com/constracktor/concretor/pkg/recipe"
	"github.com/constracktor/concretor/pkg/spec"
	"github.com/constracktor/concretor/pkg/version"
)

func testServer(t *testing.T, plans cache.Cache) *Server {
	t.Helper()

	vs := func(raw ...string) []recipe.VersionDecl {
		out := make([]recipe.VersionDecl, len(raw))
		for i, r := range raw {
			out[i] = recipe.VersionDecl{Version: version.MustParse(r)}
		}
		return out
	}

	ix, err := recipe.NewIndex([]*recipe.Recipe{
		{Name: "zlib", Versions: vs("1.3.1")},
		{
			Name:     "hpx",
			Versions: vs("1.10.0", "1.9.1"),
			Variants: []*recipe.Variant{
				{Name: "cuda", Default: spec.ValueFalse},
			},
			Dependencies: []recipe.Dependency{
				{Spec: spec.MustParse("zlib")},
			},
		},
	})
	require.NoError(t, err)
	return New(ix, plans, nil)
}

func postResolve(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestResolveEndpoint(t *testing.T) {
	h := testServer(t, nil).Router()

	w := postResolve(t, h, `{"specs": ["hpx +cuda"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp struct {
		Plan   *plan.Plan `json:"plan"`
		Digest string     `json:"digest"`
		Cached bool       `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Plan)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.Digest)
	assert.Equal(t, []string{"zlib", "hpx"}, resp.Plan.Order)

	hpx, ok := resp.Plan.Node("hpx")
	require.True(t, ok)
	assert.Equal(t, "1.10.0", hpx.Version)
	assert.Equal(t, "true", hpx.Variants["cuda"])
}

func TestResolveEndpointCaches(t *testing.T) {
	plans, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	h := testServer(t, plans).Router()

	w := postResolve(t, h, `{"specs": ["hpx"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = postResolve(t, h, `{"specs": ["hpx"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Cached bool `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cached, "second identical request served from cache")
}

func TestResolveEndpointErrors(t *testing.T) {
	h := testServer(t, nil).Router()

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty request", `{"specs": []}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad json", `{`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown package", `{"specs": ["nope"]}`, http.StatusNotFound, "UNKNOWN_PACKAGE"},
		{"unknown variant", `{"specs": ["hpx +missing"]}`, http.StatusBadRequest, "UNKNOWN_VARIANT"},
		{"unsatisfiable", `{"specs": ["hpx@99:"]}`, http.StatusConflict, "UNSATISFIABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postResolve(t, h, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestRecipeEndpoints(t *testing.T) {
	h := testServer(t, nil).Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/recipes", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Digest  string `json:"digest"`
		Recipes []struct {
			Name string `json:"name"`
		} `json:"recipes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.NotEmpty(t, list.Digest)
	require.Len(t, list.Recipes, 2)
	assert.Equal(t, "hpx", list.Recipes[0].Name)

	req = httptest.NewRequest(http.MethodGet, "/v1/recipes/hpx", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"1.10.0"`)

	req = httptest.NewRequest(http.MethodGet, "/v1/recipes/nope", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h := testServer(t, nil).Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status": "ok"`)
}

func TestRequestIDPropagation(t *testing.T) {
	h := testServer(t, nil).Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Header().Get("X-Request-ID"))
}
