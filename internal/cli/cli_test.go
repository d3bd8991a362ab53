package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"pomflow/backend/internal/pipeline"
)

type cliBackend struct {
	mu       sync.Mutex
	executed bool
	uploaded []string
}

func (b *cliBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/projects":
		_, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		reader := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := reader.NextPart()
			if err != nil {
				break
			}
			if part.FormName() == "file" {
				b.uploaded = append(b.uploaded, part.FileName())
			}
		}
		w.Write([]byte(`{"id":"p9","name":"Shop"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/api/projects/p1/scan":
		w.Write([]byte(`{"success":true,"message":"Scan complete","elements_count":3}`))
	case r.Method == http.MethodPost && r.URL.Path == "/api/projects/p1/tests/t1/execute":
		b.executed = true
		w.Write([]byte(`{"success":true,"execution_id":"x1"}`))
	case r.URL.Path == "/api/tests/t1/code":
		w.Write([]byte(`{"code":"await page.click('#submit');"}`))
	case r.URL.Path == "/api/tests/missing/code":
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Test not found"}`))
	case r.URL.Path == "/api/projects":
		w.Write([]byte(`[{"id":"p1","name":"Demo"}]`))
	case r.URL.Path == "/api/projects/p1/elements":
		w.Write([]byte(`[{"id":"e1"},{"id":"e2"},{"id":"e3"}]`))
	case r.URL.Path == "/api/projects/p1/executions":
		if b.executed {
			w.Write([]byte(`[{"id":"x1","status":"FAILURE","result":{"tests":[{"name":"login works","status":"FAILED"}]}}]`))
			return
		}
		w.Write([]byte(`[]`))
	default:
		w.Write([]byte(`[]`))
	}
}

func run(t *testing.T, backend *cliBackend, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--backend", srv.URL}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestStatusCommand(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, err := run(t, &cliBackend{}, "status", "p1", "--section", "elements")
		require.NoError(t, err)
		assert.Contains(t, out, "Scan UI Elements")
		assert.Contains(t, out, "Workflow · p1")
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, &cliBackend{}, "status", "p1", "-s", "elements", "-o", "json")
		require.NoError(t, err)
		var status statusOutput
		require.NoError(t, json.Unmarshal([]byte(out), &status))
		assert.Equal(t, pipeline.StageScan, status.State.ActiveStage)
		assert.Equal(t, pipeline.StatusSucceeded, status.State.Result(pipeline.StageScan).Status)
		assert.Equal(t, pipeline.StatusFailed, status.State.Result(pipeline.StageGeneratePom).Status)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := run(t, &cliBackend{}, "status", "p1", "-o", "yaml")
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
		state := doc["state"].(map[string]any)
		assert.Equal(t, "p1", state["project_id"])
		assert.Equal(t, "upload", state["active_stage"])
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := run(t, &cliBackend{}, "status", "p1", "-o", "xml")
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestProjectsCommand(t *testing.T) {
	out, err := run(t, &cliBackend{}, "projects")
	require.NoError(t, err)
	assert.Contains(t, out, "Demo")
}

func TestCreateCommand(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "app.zip")
	require.NoError(t, os.WriteFile(source, []byte("PK"), 0o644))

	backend := &cliBackend{}
	out, err := run(t, backend, "create", "Shop", source, "-d", "storefront")
	require.NoError(t, err)
	assert.Contains(t, out, "Created project Shop (p9)")
	assert.Equal(t, []string{"app.zip"}, backend.uploaded)
}

func TestScanCommand(t *testing.T) {
	out, err := run(t, &cliBackend{}, "scan", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Scan complete")
	assert.Contains(t, out, "Elements: 3")

	_, err = run(t, &cliBackend{}, "scan")
	assert.Error(t, err, "project argument is required")
}

func TestExecuteCommand_Wait(t *testing.T) {
	t.Setenv("POMFLOW_PIPELINE_POLL_INTERVAL", "10ms")

	out, err := run(t, &cliBackend{}, "execute", "p1", "t1", "--wait")
	assert.ErrorContains(t, err, "finished with status FAILURE")
	assert.Contains(t, out, "Execution x1: FAILURE")
	assert.Contains(t, out, "login works")
}

func TestCodeCommand(t *testing.T) {
	out, err := run(t, &cliBackend{}, "code", "t1")
	require.NoError(t, err)
	assert.Equal(t, "await page.click('#submit');\n", out)

	out, err = run(t, &cliBackend{}, "code", "t1", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"await page.click('#submit');"}`, out)

	_, err = run(t, &cliBackend{}, "code", "missing")
	assert.ErrorContains(t, err, "failed to get test code")
}
