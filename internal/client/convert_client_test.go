package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bolworks/api/internal/config"
)

func newTestClient(url string) *ConvertClient {
	return NewConvertClient(&config.ConverterConfig{
		ServiceURL: url,
		Timeout:    5,
	})
}

func TestConvertClient_Convert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}

		pdf, header, err := r.FormFile("pdf")
		if err != nil {
			t.Fatalf("pdf field missing: %v", err)
		}
		defer pdf.Close()
		if header.Filename != "bol.pdf" {
			t.Errorf("unexpected filename %s", header.Filename)
		}
		pdfBytes, _ := io.ReadAll(pdf)
		if string(pdfBytes) != "%PDF-1.4" {
			t.Errorf("unexpected pdf content %q", pdfBytes)
		}

		csvFile, csvHeader, err := r.FormFile("csv")
		if err != nil {
			t.Fatalf("csv field missing: %v", err)
		}
		defer csvFile.Close()
		if csvHeader.Filename != "ref.csv" {
			t.Errorf("unexpected reference filename %s", csvHeader.Filename)
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("a,b\n1,2\n"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	out, err := c.Convert(context.Background(), []byte("%PDF-1.4"), "bol.pdf", []byte("x,y\n"), "ref.csv")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if string(out) != "a,b\n1,2\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestConvertClient_OmitsEmptyReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("csv"); err == nil {
			t.Error("csv field sent despite empty reference")
		}
		w.Write([]byte("ok\n"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.Convert(context.Background(), []byte("%PDF-1.4"), "bol.pdf", nil, ""); err != nil {
		t.Fatalf("convert: %v", err)
	}
}

func TestConvertClient_ServiceErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": "no tables found in document"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Convert(context.Background(), []byte("%PDF-1.4"), "bol.pdf", nil, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "no tables found in document") {
		t.Fatalf("error reason not propagated: %v", err)
	}
}

func TestConvertClient_ServiceErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Convert(context.Background(), []byte("%PDF-1.4"), "bol.pdf", nil, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("status code not reported: %v", err)
	}
}

func TestConvertClient_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check: %v", err)
	}
}

func TestConvertClient_IsConfigured(t *testing.T) {
	if newTestClient("").IsConfigured() {
		t.Error("empty URL reported as configured")
	}
	if !newTestClient("http://converter:8084").IsConfigured() {
		t.Error("set URL reported as unconfigured")
	}
}
