package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/bolworks/api/internal/config"
)

// Converter defines the document-conversion collaborator: given a primary
// document and an optional reference tabular file, it produces the combined
// tabular output. Implementations must not retain the input buffers.
type Converter interface {
	Convert(ctx context.Context, document []byte, documentName string, reference []byte, referenceName string) ([]byte, error)
}

// ConvertClient implements Converter against the conversion microservice.
type ConvertClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewConvertClient creates a new conversion service client.
func NewConvertClient(cfg *config.ConverterConfig) *ConvertClient {
	return &ConvertClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// Convert posts the files to the conversion service and returns the CSV
// output. Service failures carry the reason string from the error body.
func (c *ConvertClient) Convert(ctx context.Context, document []byte, documentName string, reference []byte, referenceName string) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("pdf", documentName)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := part.Write(document); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if len(reference) > 0 {
		part, err := writer.CreateFormFile("csv", referenceName)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		if _, err := part.Write(reference); err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("conversion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("conversion failed: %s", errResp.Error)
		}
		return nil, fmt.Errorf("conversion service error (status %d)", resp.StatusCode)
	}

	return respBody, nil
}

// HealthCheck checks if the conversion service is available.
func (c *ConvertClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("conversion service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// IsConfigured returns true if the client has valid configuration.
func (c *ConvertClient) IsConfigured() bool {
	return c.baseURL != ""
}
