package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/config"
	"github.com/verdano/sdgscope/internal/ingest"
	"github.com/verdano/sdgscope/internal/model"
	"github.com/verdano/sdgscope/internal/pipeline"
	"github.com/verdano/sdgscope/internal/worker"
)

type stubPipeline struct {
	mu     sync.Mutex
	calls  []string
	block  chan struct{} // when non-nil, Run waits for a close
	err    error
	result *pipeline.Result
}

func (s *stubPipeline) Run(ctx context.Context, projectID string, mode model.Mode, progress pipeline.Progress) (*pipeline.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, projectID)
	block := s.block
	s.mu.Unlock()

	progress("classify", "running rule inference")
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &pipeline.Result{
		ProjectID: projectID,
		Mode:      mode,
		Assessments: []model.Assessment{
			{ProjectID: projectID, SDG: "SDG_1_No_Poverty", FinalScore0100: 42.5},
		},
		Aggregate: model.AggregateResult{
			Overall: model.BandSummary{AverageScore: 42.5, Rating: "5+", NumContributions: 1},
		},
	}, nil
}

type stubIngestor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubIngestor) DownloadProject(ctx context.Context, registry ingest.Registry, id, destDir string) (int, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return 3, s.err
}

func newTestServer(t *testing.T, p PipelineRunner, ing Ingestor) (*httptest.Server, *Server) {
	t.Helper()
	cfg := &config.Config{DataDir: t.TempDir()}
	pool := worker.NewPool(2, 4, zap.NewNop())
	pool.Start()
	t.Cleanup(pool.Shutdown)

	s := NewServer(cfg, p, ing, pool, zap.NewNop())
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts, s
}

func postRun(t *testing.T, ts *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/run", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func waitForStatus(t *testing.T, ts *httptest.Server, jobID string, want model.JobStatus) model.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/jobs/" + jobID)
		require.NoError(t, err)
		var job model.Job
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
		resp.Body.Close()
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return model.Job{}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, &stubPipeline{}, &stubIngestor{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRun_CompletesJob(t *testing.T) {
	p := &stubPipeline{}
	ing := &stubIngestor{}
	ts, _ := newTestServer(t, p, ing)

	resp, body := postRun(t, ts, `{"registry":"verra","id":"1566"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "VCS_1566", body["project_id"])
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)

	job := waitForStatus(t, ts, jobID, model.JobCompleted)
	assert.Equal(t, "VCS_1566", job.ProjectID)
	assert.Contains(t, job.Assessments, "SDG_1_No_Poverty")
	assert.InDelta(t, 42.5, job.Assessments["SDG_1_No_Poverty"].FinalScore0100, 1e-9)
	assert.Contains(t, job.Stats, "aggregate")

	// No PDFs on disk, so the ingestor must have been asked first.
	ing.mu.Lock()
	defer ing.mu.Unlock()
	assert.Equal(t, 1, ing.calls)
}

func TestRun_BadRequests(t *testing.T) {
	ts, _ := newTestServer(t, &stubPipeline{}, &stubIngestor{})

	resp, _ := postRun(t, ts, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := postRun(t, ts, `{"registry":"cdm","id":"1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "unknown registry")

	resp, body = postRun(t, ts, `{"registry":"verra","id":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "id is required", body["error"])
}

func TestRun_BusyProjectConflicts(t *testing.T) {
	p := &stubPipeline{block: make(chan struct{})}
	ts, _ := newTestServer(t, p, &stubIngestor{})

	resp, body := postRun(t, ts, `{"registry":"gs","id":"1795"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID := body["job_id"].(string)

	waitForStatus(t, ts, jobID, model.JobRunning)

	resp, body = postRun(t, ts, `{"registry":"gs","id":"1795"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "GS_1795")

	// A different project is not blocked.
	resp, _ = postRun(t, ts, `{"registry":"gs","id":"2000"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	close(p.block)
	waitForStatus(t, ts, jobID, model.JobCompleted)

	// Once released the project accepts new runs.
	resp, _ = postRun(t, ts, `{"registry":"gs","id":"1795"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestRun_IngestFailureFailsJob(t *testing.T) {
	ing := &stubIngestor{err: assert.AnError}
	ts, _ := newTestServer(t, &stubPipeline{}, ing)

	resp, body := postRun(t, ts, `{"registry":"verra","id":"99"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	job := waitForStatus(t, ts, body["job_id"].(string), model.JobFailed)
	assert.Contains(t, job.Error, assert.AnError.Error())
}

func TestRun_NilIngestorFailsJobWithoutPDFs(t *testing.T) {
	ts, _ := newTestServer(t, &stubPipeline{}, nil)

	resp, body := postRun(t, ts, `{"registry":"verra","id":"77"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	job := waitForStatus(t, ts, body["job_id"].(string), model.JobFailed)
	assert.Contains(t, job.Error, "ingestion is disabled")
}

func TestJob_NotFound(t *testing.T) {
	ts, _ := newTestServer(t, &stubPipeline{}, &stubIngestor{})

	resp, err := http.Get(ts.URL + "/jobs/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
