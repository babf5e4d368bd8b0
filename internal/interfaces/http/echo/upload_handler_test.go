package echo_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/givemetry/advancement/internal/application/ingest"
	"github.com/givemetry/advancement/internal/domain/donor"
	httpecho "github.com/givemetry/advancement/internal/interfaces/http/echo"
)

type fakeStartUpload struct {
	output ingest.StartUploadOutput
	err    error
	gotIn  ingest.StartUploadInput
}

func (f *fakeStartUpload) Execute(_ context.Context, in ingest.StartUploadInput) (ingest.StartUploadOutput, error) {
	f.gotIn = in
	if f.err != nil {
		return ingest.StartUploadOutput{}, f.err
	}
	return f.output, nil
}

type fakeGetUpload struct {
	output ingest.GetUploadOutput
	err    error
}

func (f *fakeGetUpload) Execute(context.Context, ingest.GetUploadInput) (ingest.GetUploadOutput, error) {
	if f.err != nil {
		return ingest.GetUploadOutput{}, f.err
	}
	return f.output, nil
}

type fakeCalculator struct {
	prediction donor.Prediction
	err        error
}

func (f *fakeCalculator) CalculateConstituentLapseRisk(context.Context, string, string) (donor.Prediction, error) {
	if f.err != nil {
		return donor.Prediction{}, f.err
	}
	return f.prediction, nil
}

func newServer(start *fakeStartUpload, get *fakeGetUpload, calc *fakeCalculator) *echo.Echo {
	e := echo.New()
	httpecho.RegisterRoutes(e,
		httpecho.NewUploadHandler(start, get),
		httpecho.NewConstituentHandler(calc),
	)
	return e
}

func TestStartUploadAccepted(t *testing.T) {
	t.Parallel()

	start := &fakeStartUpload{output: ingest.StartUploadOutput{JobID: "job-1", Status: "queued"}}
	e := newServer(start, &fakeGetUpload{}, &fakeCalculator{})

	body := []byte(`{"organization_id":"org-1","storage_path":"uploads/alumni.csv","data_type":"constituents"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected json: %v", err)
	}
	data, ok := got["data"].(map[string]any)
	if !ok {
		t.Fatalf("unexpected data payload: %#v", got["data"])
	}
	if data["job_id"] != "job-1" {
		t.Fatalf("unexpected job_id: %#v", data["job_id"])
	}
	if data["status"] != "queued" {
		t.Fatalf("unexpected status: %#v", data["status"])
	}
	if start.gotIn.OrganizationID != "org-1" {
		t.Fatalf("unexpected organization id: %q", start.gotIn.OrganizationID)
	}
}

func TestStartUploadBadJSON(t *testing.T) {
	t.Parallel()

	e := newServer(&fakeStartUpload{}, &fakeGetUpload{}, &fakeCalculator{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", bytes.NewReader([]byte(`{"storage_path":`)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStartUploadInvalidSource(t *testing.T) {
	t.Parallel()

	e := newServer(&fakeStartUpload{err: ingest.ErrInvalidUploadSource}, &fakeGetUpload{}, &fakeCalculator{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", bytes.NewReader([]byte(`{"storage_path":"notes.txt","data_type":"gifts"}`)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected json: %v", err)
	}
	errBody, ok := got["error"].(map[string]any)
	if !ok {
		t.Fatalf("unexpected error payload: %#v", got["error"])
	}
	if errBody["code"] != "invalid_source" {
		t.Fatalf("unexpected error code: %#v", errBody["code"])
	}
}

func TestStartUploadInvalidDataType(t *testing.T) {
	t.Parallel()

	e := newServer(&fakeStartUpload{err: ingest.ErrInvalidDataType}, &fakeGetUpload{}, &fakeCalculator{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", bytes.NewReader([]byte(`{"storage_path":"data.csv","data_type":"pledges"}`)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStartUploadInternalError(t *testing.T) {
	t.Parallel()

	e := newServer(&fakeStartUpload{err: errors.New("db down")}, &fakeGetUpload{}, &fakeCalculator{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", bytes.NewReader([]byte(`{"storage_path":"data.csv","data_type":"gifts"}`)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestGetUploadFound(t *testing.T) {
	t.Parallel()

	get := &fakeGetUpload{output: ingest.GetUploadOutput{
		JobID:          "job-1",
		Filename:       "alumni.csv",
		Status:         "completed_with_errors",
		DataType:       "constituents",
		RowCount:       3,
		ProcessedCount: 2,
		ErrorCount:     1,
		Progress:       100,
		Errors:         []ingest.UploadRowError{{Row: 2, Field: "constituent_id", Message: "missing external id"}},
	}}
	e := newServer(&fakeStartUpload{}, get, &fakeCalculator{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/job-1", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected json: %v", err)
	}
	data, ok := got["data"].(map[string]any)
	if !ok {
		t.Fatalf("unexpected data payload: %#v", got["data"])
	}
	if data["status"] != "completed_with_errors" {
		t.Fatalf("unexpected status: %#v", data["status"])
	}
	if data["error_count"] != float64(1) {
		t.Fatalf("unexpected error_count: %#v", data["error_count"])
	}
	errs, ok := data["errors"].([]any)
	if !ok || len(errs) != 1 {
		t.Fatalf("unexpected errors payload: %#v", data["errors"])
	}
}

func TestGetUploadNotFound(t *testing.T) {
	t.Parallel()

	e := newServer(&fakeStartUpload{}, &fakeGetUpload{err: donor.ErrUploadJobNotFound}, &fakeCalculator{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/nope", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetLapseRisk(t *testing.T) {
	t.Parallel()

	calc := &fakeCalculator{prediction: donor.Prediction{
		Score: 0.6312,
		Factors: []donor.Factor{
			{Name: "gift_recency", Contribution: 0.25, RawValue: 520},
		},
	}}
	e := newServer(&fakeStartUpload{}, &fakeGetUpload{}, calc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/organizations/org-1/constituents/c-1/lapse-risk", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected json: %v", err)
	}
	data, ok := got["data"].(map[string]any)
	if !ok {
		t.Fatalf("unexpected data payload: %#v", got["data"])
	}
	if data["constituent_id"] != "c-1" {
		t.Fatalf("unexpected constituent_id: %#v", data["constituent_id"])
	}
	if data["score"] != 0.6312 {
		t.Fatalf("unexpected score: %#v", data["score"])
	}
}

func TestGetLapseRiskNotFound(t *testing.T) {
	t.Parallel()

	e := newServer(&fakeStartUpload{}, &fakeGetUpload{}, &fakeCalculator{err: donor.ErrConstituentNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/organizations/org-1/constituents/missing/lapse-risk", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
