package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/pkg/models"
)

// Compile-time check to ensure SupabaseStore implements ObjectStore
var _ ObjectStore = (*SupabaseStore)(nil)

// SupabaseStore talks to the Supabase Storage REST API.
type SupabaseStore struct {
	baseURL string
	apiKey  string
	bucket  string
	client  *http.Client
	logger  *zap.Logger
}

func NewSupabaseStore(baseURL, serviceRoleKey, bucket string, logger *zap.Logger) *SupabaseStore {
	return &SupabaseStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  serviceRoleKey,
		bucket:  bucket,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type listRequest struct {
	Prefix string     `json:"prefix"`
	Limit  int        `json:"limit"`
	SortBy listSortBy `json:"sortBy"`
}

type listSortBy struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

type listEntry struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// List returns the objects under prefix, names joined back onto the prefix.
func (s *SupabaseStore) List(ctx context.Context, prefix string) ([]models.SourceArtifact, error) {
	url := fmt.Sprintf("%s/storage/v1/object/list/%s", s.baseURL, s.bucket)

	body, err := json.Marshal(listRequest{
		Prefix: prefix,
		Limit:  1000,
		SortBy: listSortBy{Column: "created_at", Order: "asc"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	s.auth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage list failed: HTTP %d", resp.StatusCode)
	}

	var entries []listEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("storage list decode: %w", err)
	}

	artifacts := make([]models.SourceArtifact, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		ts := e.UpdatedAt
		if ts == "" {
			ts = e.CreatedAt
		}
		modified, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			s.logger.Debug("Unparseable object timestamp", zap.String("name", e.Name), zap.String("ts", ts))
		}
		artifacts = append(artifacts, models.SourceArtifact{
			Name:       path.Join(prefix, e.Name),
			ModifiedAt: modified,
		})
	}
	return artifacts, nil
}

func (s *SupabaseStore) Download(ctx context.Context, objectPath string) ([]byte, error) {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	s.auth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage download %s: HTTP %d", objectPath, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Upload writes an object, replacing any existing one at the same path.
func (s *SupabaseStore) Upload(ctx context.Context, objectPath string, content []byte) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", path.Base(objectPath))
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	s.auth(req)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("storage upload %s: HTTP %d - %s", objectPath, resp.StatusCode, string(body))
	}
	return nil
}

func (s *SupabaseStore) Delete(ctx context.Context, objectPath string) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	s.auth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("storage delete %s: HTTP %d", objectPath, resp.StatusCode)
	}
	return nil
}

func (s *SupabaseStore) auth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("apikey", s.apiKey)
}
