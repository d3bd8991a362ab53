package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pomflow/backend/pkg/models"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *HTTPBackendClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPBackendClient(srv.URL+"/", 5*time.Second)
}

func TestHTTPBackendClient_ListCollections(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/api/projects/p1/elements":
			w.Write([]byte(`[{"id":"e1","name":"login","type":"button","selector":"#login","selector_type":"css","properties":{"text":"Log in","attributes":{"id":"login"},"is_visible":true}}]`))
		case "/api/projects/p1/poms":
			w.Write([]byte(`null`))
		case "/api/projects/p1/tests":
			w.Write([]byte(`[]`))
		case "/api/projects/p1/executions":
			w.Write([]byte(`[{"id":"x1","status":"FAILURE","result":{"return_code":1,"tests":[{"name":"t","status":"FAILED"}],"log":""}}]`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	elements, err := client.ListElements(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "#login", elements[0].Selector)
	assert.True(t, elements[0].Properties.IsVisible)

	poms, err := client.ListPoms(ctx, "p1")
	require.NoError(t, err)
	assert.NotNil(t, poms, "null is normalised to an empty slice")
	assert.Empty(t, poms)

	tests, err := client.ListTests(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, tests)

	executions, err := client.ListExecutions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionFailure, executions[0].Status)
	assert.Equal(t, models.TestFailed, executions[0].Result.Tests[0].Status)
}

func TestHTTPBackendClient_EscapesProjectID(t *testing.T) {
	var gotPath string
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`[]`))
	})

	_, err := client.ListElements(context.Background(), "a b/c")
	require.NoError(t, err)
	assert.Equal(t, "/api/projects/a%20b%2Fc/elements", gotPath)

	_, err = client.ListElements(context.Background(), "")
	assert.Error(t, err)
}

func TestHTTPBackendClient_StatusErrors(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Project not found"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"db locked"}`))
	})

	_, err := client.GetProject(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = client.ListPoms(context.Background(), "p1")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "db locked", statusErr.Message)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestHTTPBackendClient_Triggers(t *testing.T) {
	type call struct {
		method, path, contentType, body string
	}
	var calls []call
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.Path, r.Header.Get("Content-Type"), string(body)})
		switch {
		case strings.HasSuffix(r.URL.Path, "/scan"):
			w.Write([]byte(`{"success":true,"elements_count":7}`))
		case strings.HasSuffix(r.URL.Path, "/execute"):
			w.Write([]byte(`{"success":true,"execution_id":"x9","status":"SUCCESS"}`))
		default:
			w.Write([]byte(`{"success":true}`))
		}
	})
	ctx := context.Background()

	resp, err := client.TriggerScan(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, resp.ElementsCount)
	assert.Equal(t, 7, *resp.ElementsCount)

	_, err = client.TriggerPom(ctx, "p1")
	require.NoError(t, err)

	_, err = client.TriggerTests(ctx, "p1", "pom-1")
	require.NoError(t, err)

	resp, err = client.TriggerExecution(ctx, "p1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "x9", resp.ExecutionID)
	assert.Equal(t, models.ExecutionSuccess, resp.Status)

	require.Len(t, calls, 4)
	assert.Equal(t, call{"POST", "/api/projects/p1/scan", "", ""}, calls[0])
	assert.Equal(t, "/api/projects/p1/pom", calls[1].path)
	assert.Equal(t, "application/json", calls[2].contentType)
	assert.JSONEq(t, `{"pom_id":"pom-1"}`, calls[2].body)
	assert.Equal(t, "/api/projects/p1/tests/t1/execute", calls[3].path)
}

func TestHTTPBackendClient_CreateProjectMultipart(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "shop", r.FormValue("name"))
		assert.Equal(t, "storefront", r.FormValue("description"))
		files := r.MultipartForm.File["file"]
		require.Len(t, files, 2)
		assert.Equal(t, "index.html", files[0].Filename)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Project{ID: "p-new", Name: "shop", SourceFile: "multiple_files"})
	})

	project, err := client.CreateProject(context.Background(), "shop", "storefront", []UploadFile{
		{Name: "index.html", Content: strings.NewReader("<button id=go>Go</button>")},
		{Name: "form.html", Content: strings.NewReader("<input name=q>")},
	})
	require.NoError(t, err)
	assert.Equal(t, "p-new", project.ID)

	_, err = client.CreateProject(context.Background(), "shop", "", nil)
	assert.Error(t, err)
}

func TestHTTPBackendClient_GetTestCode(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tests/t1/code", r.URL.Path)
		w.Write([]byte(`{"code":"def test_login(): pass"}`))
	})

	code, err := client.GetTestCode(context.Background(), "t1")
	require.NoError(t, err)
	assert.Contains(t, code.Code, "test_login")
}
