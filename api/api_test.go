package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/api"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/ext"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/orchestrator"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
	"github.com/Safi643133/ai-immigration-services-sub003/store/memory"
	"github.com/Safi643133/ai-immigration-services-sub003/stream"
)

const workerSecret = "test-worker-secret"

type fakeSolver struct {
	result challenge.SolveResult
	err    error
}

func (f *fakeSolver) Solve(_ context.Context, challengeID id.ChallengeID, _ string) (challenge.SolveResult, error) {
	if f.err != nil {
		return challenge.SolveResult{}, f.err
	}
	res := f.result
	res.ChallengeID = challengeID
	return res, nil
}

type fixture struct {
	store  *memory.Store
	pub    *progress.Publisher
	broker *stream.Broker
	svc    *orchestrator.Service
	solver *fakeSolver
	h      http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	pub := progress.NewPublisher(st, logger)
	broker := stream.NewBroker(logger)

	extensions := ext.NewRegistry(logger)
	extensions.Register(broker)
	pub.SetEmitter(extensions)

	solver := &fakeSolver{result: challenge.SolveResult{Solved: true}}
	svc := orchestrator.NewService(st, pub, extensions, logger, orchestrator.WithSolver(solver))
	srv := api.NewServer(svc, broker, logger, api.WithWorkerSecret(workerSecret))

	return &fixture{
		store:  st,
		pub:    pub,
		broker: broker,
		svc:    svc,
		solver: solver,
		h:      srv.Handler(),
	}
}

func (fx *fixture) do(t *testing.T, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if owner != "" {
		req.Header.Set(api.HeaderOwnerID, owner)
	}
	w := httptest.NewRecorder()
	fx.h.ServeHTTP(w, req)
	return w
}

func (fx *fixture) submit(t *testing.T, owner, submissionRef string) id.JobID {
	t.Helper()

	w := fx.do(t, http.MethodPost, "/v1/jobs", owner, map[string]any{
		"submission_ref": submissionRef,
		"embassy":        "LONDON",
		"field_map":      map[string]string{"personal.surname": "SHARMA"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal submit response: %v", err)
	}
	jobID, err := id.ParseJobID(resp.JobID)
	if err != nil {
		t.Fatalf("ParseJobID(%q): %v", resp.JobID, err)
	}
	return jobID
}

func TestCreateJob(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	w := fx.do(t, http.MethodPost, "/v1/jobs", "owner-1", map[string]any{
		"submission_ref": "sub-1",
		"field_map":      map[string]string{"personal.surname": "SHARMA"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.HasPrefix(resp.JobID, "job_") {
		t.Errorf("job_id = %q", resp.JobID)
	}
	if resp.Status != string(job.StatusQueued) {
		t.Errorf("status = %q, want queued", resp.Status)
	}
}

func TestCreateJobRejectsBadInput(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	// Missing owner header.
	w := fx.do(t, http.MethodPost, "/v1/jobs", "", map[string]any{
		"submission_ref": "sub-1",
		"field_map":      map[string]string{"a": "b"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing owner: status = %d", w.Code)
	}

	// Empty field map.
	w = fx.do(t, http.MethodPost, "/v1/jobs", "owner-1", map[string]any{
		"submission_ref": "sub-1",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty field map: status = %d", w.Code)
	}

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader("{nope"))
	req.Header.Set(api.HeaderOwnerID, "owner-1")
	rec := httptest.NewRecorder()
	fx.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", rec.Code)
	}
}

func TestGetJobEnforcesOwnership(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	jobID := fx.submit(t, "owner-1", "sub-1")

	w := fx.do(t, http.MethodGet, "/v1/jobs/"+jobID.String(), "owner-2", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("foreign owner: status = %d", w.Code)
	}

	w = fx.do(t, http.MethodGet, "/v1/jobs/"+jobID.String(), "owner-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var snap orchestrator.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.Job == nil || snap.Job.ID != jobID {
		t.Errorf("snapshot job = %+v", snap.Job)
	}
	if len(snap.Updates) == 0 || snap.Updates[0].Kind != progress.KindJobCreated {
		t.Errorf("snapshot updates = %v", snap.Updates)
	}
}

func TestGetJobUnknownID(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	w := fx.do(t, http.MethodGet, "/v1/jobs/"+id.NewJobID().String(), "owner-1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d", w.Code)
	}
	w = fx.do(t, http.MethodGet, "/v1/jobs/not-an-id", "owner-1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("malformed id: status = %d", w.Code)
	}
}

func TestListJobs(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	fx.submit(t, "owner-1", "sub-1")
	fx.submit(t, "owner-1", "sub-2")
	fx.submit(t, "owner-2", "sub-3")

	w := fx.do(t, http.MethodGet, "/v1/jobs", "owner-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var jobs []*job.Job
	if err := json.Unmarshal(w.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("len(jobs) = %d, want 2", len(jobs))
	}

	w = fx.do(t, http.MethodGet, "/v1/jobs?status=completed", "owner-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	jobs = nil
	if err := json.Unmarshal(w.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("completed filter returned %d jobs", len(jobs))
	}

	if w := fx.do(t, http.MethodGet, "/v1/jobs", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing owner: status = %d", w.Code)
	}
}

func TestCancelJob(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	jobID := fx.submit(t, "owner-1", "sub-1")

	w := fx.do(t, http.MethodPost, "/v1/jobs/"+jobID.String()+"/cancel", "owner-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var res orchestrator.CancelResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Job.Status != job.StatusCancelled {
		t.Errorf("status = %s, want cancelled", res.Job.Status)
	}

	// Cancelling a terminal job conflicts.
	w = fx.do(t, http.MethodPost, "/v1/jobs/"+jobID.String()+"/cancel", "owner-1", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second cancel: status = %d", w.Code)
	}

	w = fx.do(t, http.MethodPost, "/v1/jobs/"+id.NewJobID().String()+"/cancel", "owner-1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown job: status = %d", w.Code)
	}
}

func TestWorkerUpdate(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	jobID := fx.submit(t, "owner-1", "sub-1")
	path := "/v1/jobs/" + jobID.String() + "/worker-update"

	// No secret.
	w := fx.do(t, http.MethodPost, path, "", map[string]any{
		"metadata": map[string]string{"application_id": "AA00BB11CC"},
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing secret: status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, path,
		strings.NewReader(`{"metadata":{"application_id":"AA00BB11CC"}}`))
	req.Header.Set(api.HeaderWorkerSecret, workerSecret)
	rec := httptest.NewRecorder()
	fx.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	stored, err := fx.store.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Metadata["application_id"] != "AA00BB11CC" {
		t.Errorf("metadata = %v", stored.Metadata)
	}
}

func TestProgressPull(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	jobID := fx.submit(t, "owner-1", "sub-1")

	u := progress.NewUpdate(jobID, progress.KindStepProgress)
	u.StepName = "TRAVEL"
	u.Percent = 17
	if err := fx.pub.Publish(context.Background(), u); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	w := fx.do(t, http.MethodGet, "/v1/jobs/"+jobID.String()+"/progress", "owner-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var updates []*progress.Update
	if err := json.Unmarshal(w.Body.Bytes(), &updates); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("len(updates) = %d, want 2", len(updates))
	}

	// Pull only what follows the first sequence.
	w = fx.do(t, http.MethodGet, "/v1/jobs/"+jobID.String()+"/progress?after=1", "owner-1", nil)
	updates = nil
	if err := json.Unmarshal(w.Body.Bytes(), &updates); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(updates) != 1 || updates[0].StepName != "TRAVEL" {
		t.Errorf("tail = %v", updates)
	}

	if w := fx.do(t, http.MethodGet, "/v1/jobs/"+jobID.String()+"/progress?after=x", "owner-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad after: status = %d", w.Code)
	}
}

func TestChallengeEndpoints(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	jobID := fx.submit(t, "owner-1", "sub-1")
	path := "/v1/jobs/" + jobID.String() + "/challenge"

	// No active challenge reads as null, not an error.
	w := fx.do(t, http.MethodGet, path, "owner-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "null" {
		t.Errorf("body = %q, want null", got)
	}

	// Solving with no active challenge is a 404.
	w = fx.do(t, http.MethodPost, path+"/solution", "owner-1", map[string]string{"solution": "X7K2M"})
	if w.Code != http.StatusNotFound {
		t.Errorf("no challenge: status = %d", w.Code)
	}

	ch := challenge.New(jobID, "PERSONAL_1", time.Minute)
	if err := fx.store.CreateChallenge(context.Background(), ch); err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	w = fx.do(t, http.MethodGet, path, "owner-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got challenge.Challenge
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != ch.ID || got.StepName != "PERSONAL_1" {
		t.Errorf("challenge = %+v", got)
	}

	// Empty solution.
	w = fx.do(t, http.MethodPost, path+"/solution", "owner-1", map[string]string{"solution": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty solution: status = %d", w.Code)
	}

	// A rejected solution is still a 200.
	fx.solver.result = challenge.SolveResult{Solved: false, Message: "verification failed, try the new image"}
	w = fx.do(t, http.MethodPost, path+"/solution", "owner-1", map[string]string{"solution": "WRONG"})
	if w.Code != http.StatusOK {
		t.Fatalf("rejected solution: status = %d, body %s", w.Code, w.Body.String())
	}
	var res challenge.SolveResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Solved || res.ChallengeID != ch.ID {
		t.Errorf("result = %+v", res)
	}
}

func TestSolveChallengeBounds(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	jobID := fx.submit(t, "owner-1", "sub-1")
	path := "/v1/jobs/" + jobID.String() + "/challenge/solution"

	ch := challenge.New(jobID, "PERSONAL_1", time.Minute)
	if err := fx.store.CreateChallenge(context.Background(), ch); err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	// Too short and absurdly long both bounce at the edge, before the
	// solver is ever consulted.
	w := fx.do(t, http.MethodPost, path, "owner-1", map[string]string{"solution": "ab"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("short solution: status = %d, want 400", w.Code)
	}
	w = fx.do(t, http.MethodPost, path, "owner-1", map[string]string{"solution": strings.Repeat("k", 10<<10)})
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized solution: status = %d, want 400", w.Code)
	}
}

func TestSolveExpiredChallengeConflicts(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	jobID := fx.submit(t, "owner-1", "sub-1")
	path := "/v1/jobs/" + jobID.String() + "/challenge/solution"

	ch := challenge.New(jobID, "PERSONAL_1", time.Minute)
	ch.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	if err := fx.store.CreateChallenge(context.Background(), ch); err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	fx.solver.err = formauto.ErrChallengeExpired

	w := fx.do(t, http.MethodPost, path, "owner-1", map[string]string{"solution": "X7K2M"})
	if w.Code != http.StatusConflict {
		t.Errorf("expired challenge: status = %d, want 409", w.Code)
	}
}

func TestProgressStreamReplaysFeed(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	jobID := fx.submit(t, "owner-1", "sub-1")

	step := progress.NewUpdate(jobID, progress.KindStepProgress)
	step.StepName = "TRAVEL"
	step.Percent = 17
	if err := fx.pub.Publish(context.Background(), step); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	done := progress.NewUpdate(jobID, progress.KindJobCompleted)
	done.Percent = 100
	if err := fx.pub.Publish(context.Background(), done); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// The feed ends with a terminal update, so the handler replays and
	// returns without blocking on live events.
	w := fx.do(t, http.MethodGet, "/v1/jobs/"+jobID.String()+"/progress/stream", "owner-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{
		"event: job_created",
		"event: step_progress",
		"event: job_completed",
		`"step_name":"TRAVEL"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}

	// Resume after the first sequence: job_created is skipped.
	w = fx.do(t, http.MethodGet, "/v1/jobs/"+jobID.String()+"/progress/stream?after=1", "owner-1", nil)
	if strings.Contains(w.Body.String(), "event: job_created") {
		t.Error("resumed stream replayed already-seen update")
	}

	if w := fx.do(t, http.MethodGet, "/v1/jobs/"+jobID.String()+"/progress/stream", "owner-2", nil); w.Code != http.StatusNotFound {
		t.Errorf("foreign owner: status = %d", w.Code)
	}
}
