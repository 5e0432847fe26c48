// Package client is a small HTTP client for the docchat API, used by
// the upload CLI command. It also hosts the document status poller.
package client

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
	"strings"
	"time"

	"github.com/seenlim/docchat/internal/model"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type apiEnvelope struct {
	Code    uint32          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request %s %s failed: %s: %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("api error %d: %s", envelope.Code, envelope.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

// UploadDocument posts a local file as multipart form data and returns
// the created document, which starts in pending status.
func (c *Client) UploadDocument(ctx context.Context, path string) (*model.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	var doc model.Document
	if err := c.do(ctx, http.MethodPost, "/api/v1/documents/upload", &buf, writer.FormDataContentType(), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) DocumentStatus(ctx context.Context, documentID int64) (*model.DocumentStatus, error) {
	var status model.DocumentStatus
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/documents/%d/status", documentID), nil, "", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WaitForDocument polls the document's status until it turns terminal
// or ctx ends.
func (c *Client) WaitForDocument(ctx context.Context, documentID int64, interval time.Duration) (*model.DocumentStatus, error) {
	poller := StartStatusPoller(documentID, c.DocumentStatus, nil, nil, interval)
	return poller.Wait(ctx)
}
