package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mqas/internal/api"
	"mqas/internal/httpapi"
	"mqas/internal/queue"
	"mqas/internal/registry"
	"mqas/internal/testsupport"
)

func newTestServer(t *testing.T, opts ...httpapi.Option) (*httptest.Server, *queue.Queue) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	q := testsupport.MustNewQueue(t, cfg, store, registry.New())
	srv, err := httpapi.New(cfg.API.Bind, api.NewJobService(q), opts...)
	if err != nil {
		t.Fatalf("httpapi.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, q
}

func do(t *testing.T, method, url, body string, headers map[string]string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if _, set := headers["Content-Type"]; !set && body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestEnqueueAndDescribe(t *testing.T) {
	ts, q := newTestServer(t)

	var created api.EnqueueResponse
	code := do(t, http.MethodPost, ts.URL+"/v1/jobs",
		`{"function_name":"reports.build","args":[1,"x"],"priority":3,"tenant":"acme"}`, nil, &created)
	if code != http.StatusCreated || created.ID == "" {
		t.Fatalf("POST /v1/jobs = %d %#v", code, created)
	}

	var got api.JobResponse
	if code := do(t, http.MethodGet, ts.URL+"/v1/jobs/"+created.ID, "", nil, &got); code != http.StatusOK {
		t.Fatalf("GET job = %d", code)
	}
	if got.Item.FunctionName != "reports.build" || got.Item.Priority != 3 || got.Item.Status != string(queue.StatusPending) {
		t.Fatalf("unexpected job %#v", got.Item)
	}
	if got.Item.Kwargs["tenant"] != "acme" {
		t.Fatalf("unknown key should become a kwarg, got %#v", got.Item.Kwargs)
	}

	job := testsupport.MustDequeue(t, q, queue.DequeueOptions{})
	if job.ID() != created.ID {
		t.Fatalf("dequeued %s, want %s", job.ID(), created.ID)
	}
}

func TestEnqueueRejectsBadInput(t *testing.T) {
	ts, _ := newTestServer(t)
	cases := map[string]string{
		"not json":      `{`,
		"no function":   `{"args":[]}`,
		"bad attempts":  `{"function_name":"a.b","max_attempts":0}`,
		"bad kwargs":    `{"function_name":"a.b","kwargs":[1]}`,
		"bad duration":  `{"function_name":"a.b","ttl":"soon"}`,
		"array payload": `[1,2]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var resp api.ErrorResponse
			if code := do(t, http.MethodPost, ts.URL+"/v1/jobs", body, nil, &resp); code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", code, resp.Error)
			}
			if resp.Error == "" {
				t.Fatal("expected error message")
			}
		})
	}
}

func TestEnqueueRequiresJSONContentType(t *testing.T) {
	ts, _ := newTestServer(t)
	body := `{"function_name":"builtin.exec","args":["touch","/tmp/x"]}`

	crossSite := map[string]string{"Content-Type": "text/plain", "Origin": "https://elsewhere.example"}
	if code := do(t, http.MethodPost, ts.URL+"/v1/jobs", body, crossSite, nil); code != http.StatusUnsupportedMediaType {
		t.Fatalf("text/plain enqueue = %d, want 415", code)
	}
	form := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	if code := do(t, http.MethodPost, ts.URL+"/v1/jobs", body, form, nil); code != http.StatusUnsupportedMediaType {
		t.Fatalf("form enqueue = %d, want 415", code)
	}

	var list api.JobListResponse
	do(t, http.MethodGet, ts.URL+"/v1/jobs", "", nil, &list)
	if len(list.Items) != 0 {
		t.Fatalf("rejected requests enqueued %d jobs", len(list.Items))
	}

	withCharset := map[string]string{"Content-Type": "application/json; charset=utf-8"}
	if code := do(t, http.MethodPost, ts.URL+"/v1/jobs", `{"function_name":"a.b"}`, withCharset, nil); code != http.StatusCreated {
		t.Fatalf("json with charset = %d, want 201", code)
	}
}

func TestEnqueueDuplicateID(t *testing.T) {
	ts, _ := newTestServer(t)
	body := `{"function_name":"a.b","job_id":"fixed"}`
	if code := do(t, http.MethodPost, ts.URL+"/v1/jobs", body, nil, nil); code != http.StatusCreated {
		t.Fatalf("first enqueue = %d", code)
	}
	if code := do(t, http.MethodPost, ts.URL+"/v1/jobs", body, nil, nil); code != http.StatusConflict {
		t.Fatalf("duplicate enqueue = %d, want 409", code)
	}
}

func TestListFiltersAndStats(t *testing.T) {
	ts, q := newTestServer(t)
	ctx := context.Background()
	testsupport.MustEnqueue(t, q, "a.run", queue.EnqueueOptions{Channel: "alpha"})
	testsupport.MustEnqueue(t, q, "b.run", queue.EnqueueOptions{Channel: "beta"})
	testsupport.MustEnqueue(t, q, "c.run", queue.EnqueueOptions{Channel: "beta"})
	job := testsupport.MustDequeue(t, q, queue.DequeueOptions{Channel: "alpha"})
	if err := job.Complete(ctx, "ok"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var list api.JobListResponse
	do(t, http.MethodGet, ts.URL+"/v1/jobs?channel=beta&limit=1", "", nil, &list)
	if len(list.Items) != 1 || list.Items[0].FunctionName != "b.run" {
		t.Fatalf("unexpected beta list %#v", list.Items)
	}
	do(t, http.MethodGet, ts.URL+"/v1/jobs?status=done", "", nil, &list)
	if len(list.Items) != 1 || list.Items[0].Result != "ok" {
		t.Fatalf("unexpected done list %#v", list.Items)
	}
	if code := do(t, http.MethodGet, ts.URL+"/v1/jobs?status=sleeping", "", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("unknown status = %d", code)
	}
	if code := do(t, http.MethodGet, ts.URL+"/v1/jobs?limit=-1", "", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("negative limit = %d", code)
	}

	var stats api.StatsResponse
	do(t, http.MethodGet, ts.URL+"/v1/stats", "", nil, &stats)
	if stats.Total != 3 || stats.Counts["pending"] != 2 || stats.Counts["done"] != 1 || stats.Channels["beta"] != 2 {
		t.Fatalf("unexpected stats %#v", stats)
	}
}

func TestReleaseAndNotFound(t *testing.T) {
	ts, q := newTestServer(t)
	ctx := context.Background()
	id := testsupport.MustEnqueue(t, q, "a.run", queue.EnqueueOptions{})
	job := testsupport.MustDequeue(t, q, queue.DequeueOptions{})
	if err := job.Error(ctx, "boom"); err != nil {
		t.Fatalf("Error: %v", err)
	}

	var released api.JobResponse
	if code := do(t, http.MethodPost, ts.URL+"/v1/jobs/"+id+"/release", "", nil, &released); code != http.StatusOK {
		t.Fatalf("release = %d", code)
	}
	if released.Item.Status != string(queue.StatusPending) || released.Item.Attempts != 0 {
		t.Fatalf("unexpected released job %#v", released.Item)
	}

	if code := do(t, http.MethodGet, ts.URL+"/v1/jobs/missing", "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing job = %d", code)
	}
	if code := do(t, http.MethodPost, ts.URL+"/v1/jobs/missing/release", "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing release = %d", code)
	}
}

func TestBearerToken(t *testing.T) {
	ts, _ := newTestServer(t, httpapi.WithToken("s3cret"))

	if code := do(t, http.MethodGet, ts.URL+"/v1/stats", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("missing token = %d", code)
	}
	bad := map[string]string{"Authorization": "Bearer nope"}
	if code := do(t, http.MethodGet, ts.URL+"/v1/stats", "", bad, nil); code != http.StatusUnauthorized {
		t.Fatalf("wrong token = %d", code)
	}
	good := map[string]string{"Authorization": "Bearer s3cret"}
	if code := do(t, http.MethodGet, ts.URL+"/v1/stats", "", good, nil); code != http.StatusOK {
		t.Fatalf("valid token = %d", code)
	}
	if code := do(t, http.MethodGet, ts.URL+"/healthz", "", nil, nil); code != http.StatusOK {
		t.Fatalf("healthz should not require a token, got %d", code)
	}
}

func TestStartServesOnBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	q := testsupport.MustNewQueue(t, cfg, store, registry.New())
	srv, err := httpapi.New("127.0.0.1:0", api.NewJobService(q))
	if err != nil {
		t.Fatalf("httpapi.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Shutdown()

	if code := do(t, http.MethodGet, "http://"+srv.Addr()+"/healthz", "", nil, nil); code != http.StatusOK {
		t.Fatalf("healthz = %d", code)
	}
}

func TestNewRequiresService(t *testing.T) {
	if _, err := httpapi.New("127.0.0.1:0", nil); err == nil {
		t.Fatal("expected error without a service")
	}
}

func TestNewRefusesPublicBindWithoutToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(testsupport.MustNewQueue(t, cfg, store, registry.New()))

	for _, bind := range []string{"0.0.0.0:7480", ":7480", "192.0.2.10:7480", "[::]:7480"} {
		if _, err := httpapi.New(bind, svc); err == nil {
			t.Fatalf("New(%q) without token should fail", bind)
		}
		if _, err := httpapi.New(bind, svc, httpapi.WithToken("s3cret")); err != nil {
			t.Fatalf("New(%q) with token: %v", bind, err)
		}
	}
	for _, bind := range []string{"127.0.0.1:0", "localhost:7480", "[::1]:7480"} {
		if _, err := httpapi.New(bind, svc); err != nil {
			t.Fatalf("New(%q): %v", bind, err)
		}
	}
}
