package vad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// SidecarClient implements the Model interface against an HTTP service
// hosting the pyannote voice-activity-detection pipeline.
type SidecarClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// SidecarConfig holds configuration for the sidecar client.
type SidecarConfig struct {
	BaseURL    string // e.g. "http://localhost:8001"
	Token      string // Hugging Face token forwarded to the pipeline
	HTTPClient *http.Client
}

// NewSidecarClient creates a new VAD sidecar client.
func NewSidecarClient(cfg SidecarConfig) *SidecarClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &SidecarClient{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: httpClient,
	}
}

// Annotate uploads the file at path and decodes the returned annotation.
func (c *SidecarClient) Annotate(ctx context.Context, path string) (*Annotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to copy audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/voice-activity", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("VAD API error: %s - %s", resp.Status, string(respBody))
	}

	var ann Annotation
	if err := json.NewDecoder(resp.Body).Decode(&ann); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &ann, nil
}
