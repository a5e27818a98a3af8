// Package api talks to the mod web API: health checks, destruction webhooks
// and session file uploads.
package api

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

	"github.com/dynencounters/npc-engine/pkg/core"
)

// Client handles communication with the mod web API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the mod API is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// DestructionPayload is the webhook body for a destroyed construct.
type DestructionPayload struct {
	ConstructID uint64     `json:"constructId"`
	PrefabName  string     `json:"prefab"`
	Position    [3]float64 `json:"position"`
	DestroyedAt time.Time  `json:"destroyedAt"`
	TargetID    *uint64    `json:"targetId,omitempty"`
	PlayerIDs   []uint64   `json:"playerIds"`
}

func newDestructionPayload(e core.DestructionEvent) DestructionPayload {
	p := DestructionPayload{
		ConstructID: uint64(e.ConstructID),
		PrefabName:  e.PrefabName,
		Position:    [3]float64(e.Position),
		DestroyedAt: e.DestroyedAt,
		PlayerIDs:   make([]uint64, 0, len(e.PlayerIDs)),
	}
	if e.TargetID != nil {
		id := uint64(*e.TargetID)
		p.TargetID = &id
	}
	for _, pid := range e.PlayerIDs {
		p.PlayerIDs = append(p.PlayerIDs, uint64(pid))
	}
	return p
}

// ConstructDestroyed posts the destruction to the webhook endpoint.
func (c *Client) ConstructDestroyed(ctx context.Context, e core.DestructionEvent) error {
	body, err := json.Marshal(newDestructionPayload(e))
	if err != nil {
		return fmt.Errorf("failed to encode destruction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/constructs/destroyed", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("destruction webhook failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("destruction webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// UploadMetadata describes an uploaded session file.
type UploadMetadata struct {
	SessionID   string
	SessionName string
	StartedAt   time.Time
	Duration    time.Duration
}

// Upload sends an exported session file to the mod API.
func (c *Client) Upload(ctx context.Context, filePath string, meta UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// Create multipart form
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// Write form fields and file in goroutine
	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		_ = writer.WriteField("secret", c.apiKey)
		_ = writer.WriteField("filename", filepath.Base(filePath))
		_ = writer.WriteField("sessionId", meta.SessionID)
		_ = writer.WriteField("sessionName", meta.SessionName)
		_ = writer.WriteField("startedAt", meta.StartedAt.UTC().Format(time.RFC3339))
		_ = writer.WriteField("duration", fmt.Sprintf("%f", meta.Duration.Seconds()))

		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			errCh <- fmt.Errorf("failed to create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			errCh <- fmt.Errorf("failed to copy file: %w", err)
			return
		}
		errCh <- nil
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/sessions/add", pr)
	if err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		<-errCh
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	// Check goroutine error
	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	return nil
}
