package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/bolworks/api/internal/client"
	"github.com/bolworks/api/internal/engine"
	"github.com/bolworks/api/internal/model"
	"github.com/bolworks/api/internal/storage"
	"github.com/bolworks/api/pkg/response"
)

func newTestApp(t *testing.T) (*fiber.App, *engine.Engine) {
	t.Helper()

	eng := engine.New(engine.Config{
		Workers:     1,
		PollTimeout: 20 * time.Millisecond,
	}, client.NewMockConverter(), storage.NewMemoryStore(), nil)
	eng.Start()
	t.Cleanup(func() { eng.Shutdown(2 * time.Second) })

	h := NewConvertHandler(eng, validator.New(), 100)
	sys := NewSystemHandler(eng)

	app := fiber.New()
	app.Get("/metrics", sys.Metrics)
	api := app.Group("/api/convert")
	api.Post("/submit", h.Submit)
	api.Get("/status/:jobId", h.Status)
	api.Get("/result/:jobId", h.Result)
	return app, eng
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		writer.WriteField(name, value)
	}
	for field, nameAndContent := range files {
		part, err := writer.CreateFormFile(field, nameAndContent[0])
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write([]byte(nameAndContent[1]))
	}
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func submitJob(t *testing.T, app *fiber.App, priority string) model.SubmitResponse {
	t.Helper()

	fields := map[string]string{}
	if priority != "" {
		fields["priority"] = priority
	}
	body, contentType := multipartBody(t, fields, map[string][2]string{
		"pdf": {"bol.pdf", "%PDF-1.4 test document"},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/convert/submit", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("submit status %d: %s", resp.StatusCode, raw)
	}

	var submitted model.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	return submitted
}

func pollUntil(t *testing.T, app *fiber.App, jobID string, want model.JobStatus) model.JobStatusView {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	var view model.JobStatusView
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/convert/status/"+jobID, nil)
		resp, err := app.Test(req, 5000)
		if err != nil {
			t.Fatalf("status request: %v", err)
		}
		err = json.NewDecoder(resp.Body).Decode(&view)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if view.Status == want {
			return view
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s (last: %s)", jobID, want, view.Status)
	return view
}

func TestSubmitStatusResultRoundTrip(t *testing.T) {
	app, _ := newTestApp(t)

	submitted := submitJob(t, app, "high")
	if submitted.JobID == "" {
		t.Fatal("empty job id")
	}
	if submitted.Status != model.JobStatusQueued {
		t.Fatalf("expected queued, got %s", submitted.Status)
	}
	if submitted.StatusURL != "/api/convert/status/"+submitted.JobID {
		t.Fatalf("unexpected status URL %s", submitted.StatusURL)
	}

	view := pollUntil(t, app, submitted.JobID, model.JobStatusCompleted)
	if view.Priority != "high" {
		t.Fatalf("expected priority high, got %s", view.Priority)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/convert/result/"+submitted.JobID, nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("result request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("result status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type %s", ct)
	}
	wantDisposition := fmt.Sprintf(`attachment; filename="bol_result_%s.csv"`, submitted.JobID)
	if cd := resp.Header.Get("Content-Disposition"); cd != wantDisposition {
		t.Fatalf("unexpected disposition %s", cd)
	}

	data, _ := io.ReadAll(resp.Body)
	want := "source,filename,bytes\ndocument,bol.pdf,22\n"
	if string(data) != want {
		t.Fatalf("unexpected result body %q, want %q", data, want)
	}
}

func TestSubmitWithReferenceFile(t *testing.T) {
	app, _ := newTestApp(t)

	body, contentType := multipartBody(t, nil, map[string][2]string{
		"pdf": {"bol.pdf", "%PDF-1.4"},
		"csv": {"ref.csv", "a,b\n1,2\n"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/convert/submit", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status %d", resp.StatusCode)
	}

	var submitted model.SubmitResponse
	json.NewDecoder(resp.Body).Decode(&submitted)
	pollUntil(t, app, submitted.JobID, model.JobStatusCompleted)

	result := httptest.NewRequest(http.MethodGet, "/api/convert/result/"+submitted.JobID, nil)
	resultResp, err := app.Test(result, 5000)
	if err != nil {
		t.Fatalf("result request: %v", err)
	}
	defer resultResp.Body.Close()
	data, _ := io.ReadAll(resultResp.Body)
	want := "source,filename,bytes\ndocument,bol.pdf,8\nreference,ref.csv,8\n"
	if string(data) != want {
		t.Fatalf("unexpected result body %q, want %q", data, want)
	}
}

func TestSubmitRejectsMissingPDF(t *testing.T) {
	app, _ := newTestApp(t)

	body, contentType := multipartBody(t, map[string]string{"priority": "normal"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/convert/submit", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var errResp response.ErrorResponse
	json.NewDecoder(resp.Body).Decode(&errResp)
	if errResp.Error.Code != response.CodeValidationError {
		t.Fatalf("unexpected error code %s", errResp.Error.Code)
	}
}

func TestSubmitRejectsNonPDF(t *testing.T) {
	app, _ := newTestApp(t)

	body, contentType := multipartBody(t, nil, map[string][2]string{
		"pdf": {"bol.txt", "plain text"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/convert/submit", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSubmitRejectsUnknownPriority(t *testing.T) {
	app, _ := newTestApp(t)

	body, contentType := multipartBody(t, map[string]string{"priority": "blocker"}, map[string][2]string{
		"pdf": {"bol.pdf", "%PDF-1.4"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/convert/submit", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/convert/status/no-such-job", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var errResp response.ErrorResponse
	json.NewDecoder(resp.Body).Decode(&errResp)
	if errResp.Error.Code != response.CodeNotFound {
		t.Fatalf("unexpected error code %s", errResp.Error.Code)
	}
}

func TestResultUnknownJob(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/convert/result/no-such-job", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("result request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	submitted := submitJob(t, app, "")
	pollUntil(t, app, submitted.JobID, model.JobStatusCompleted)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", resp.StatusCode)
	}

	var status model.SystemStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if status.Workers.Total != 1 {
		t.Fatalf("expected 1 worker, got %d", status.Workers.Total)
	}
	if status.Metrics.JobsProcessed != 1 {
		t.Fatalf("expected 1 processed job, got %d", status.Metrics.JobsProcessed)
	}
	if status.Queue.StatusBreakdown[model.JobStatusCompleted] != 1 {
		t.Fatalf("unexpected breakdown: %+v", status.Queue.StatusBreakdown)
	}
}
