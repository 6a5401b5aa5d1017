package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/delivery"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/tracker"
	"github.com/FAbreu6/TP3-IS/pkg/models"
)

// MockEventSink records published lifecycle events.
type MockEventSink struct {
	Mu     sync.Mutex
	Events []tracker.Event
}

func (m *MockEventSink) Publish(ctx context.Context, ev tracker.Event) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Events = append(m.Events, ev)
}

func (m *MockEventSink) Kinds() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]string, len(m.Events))
	for i, ev := range m.Events {
		out[i] = ev.Kind
	}
	return out
}

type MockClock struct {
	Mu          sync.Mutex
	CurrentTime time.Time
	Slept       []time.Duration
}

func (m *MockClock) Now() time.Time {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.CurrentTime
}

func (m *MockClock) Sleep(d time.Duration) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.CurrentTime = m.CurrentTime.Add(d)
	m.Slept = append(m.Slept, d)
}

func (m *MockClock) Advance(d time.Duration) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.CurrentTime = m.CurrentTime.Add(d)
}

// MockObjectStore simulates the storage backend in memory.
type MockObjectStore struct {
	Mu        sync.Mutex
	Objects   map[string][]byte
	Artifacts []models.SourceArtifact
	Deleted   []string
	Uploaded  []string
	ListErr   error
}

func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{Objects: make(map[string][]byte)}
}

func (m *MockObjectStore) List(ctx context.Context, prefix string) ([]models.SourceArtifact, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []models.SourceArtifact
	for _, a := range m.Artifacts {
		if prefix == "" || hasPrefix(a.Name, prefix+"/") {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockObjectStore) Download(ctx context.Context, path string) ([]byte, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	content, ok := m.Objects[path]
	if !ok {
		return nil, errors.New("object not found: " + path)
	}
	return content, nil
}

func (m *MockObjectStore) Upload(ctx context.Context, path string, content []byte) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Objects[path] = content
	m.Uploaded = append(m.Uploaded, path)
	return nil
}

func (m *MockObjectStore) Delete(ctx context.Context, path string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	delete(m.Objects, path)
	m.Deleted = append(m.Deleted, path)
	for i, a := range m.Artifacts {
		if a.Name == path {
			m.Artifacts = append(m.Artifacts[:i], m.Artifacts[i+1:]...)
			break
		}
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// MockTransport scripts delivery outcomes and records requests.
type MockTransport struct {
	Mu       sync.Mutex
	Requests []delivery.Request
	Result   delivery.Result
	Err      error
}

func (m *MockTransport) Deliver(ctx context.Context, req delivery.Request) (delivery.Result, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Requests = append(m.Requests, req)
	return m.Result, m.Err
}

// MockPendingStore keeps pending deliveries in memory.
type MockPendingStore struct {
	Mu      sync.Mutex
	Entries map[string]models.PendingDelivery
	SaveErr error
}

func NewMockPendingStore() *MockPendingStore {
	return &MockPendingStore{Entries: make(map[string]models.PendingDelivery)}
}

func (m *MockPendingStore) Save(ctx context.Context, pd models.PendingDelivery) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Entries[pd.CorrelationID] = pd
	return nil
}

func (m *MockPendingStore) Remove(ctx context.Context, correlationID string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	delete(m.Entries, correlationID)
	return nil
}

func (m *MockPendingStore) LoadAll(ctx context.Context) ([]models.PendingDelivery, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]models.PendingDelivery, 0, len(m.Entries))
	for _, pd := range m.Entries {
		out = append(out, pd)
	}
	return out, nil
}

// MockEnricher returns a fixed enrichment map, defaulting unknown symbols.
type MockEnricher struct {
	Mu      sync.Mutex
	ByValue map[string]models.Enrichment
	Calls   [][]string
}

func (m *MockEnricher) Enrich(ctx context.Context, symbols []string) map[string]models.Enrichment {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls = append(m.Calls, symbols)
	out := make(map[string]models.Enrichment)
	for _, s := range symbols {
		if enr, ok := m.ByValue[s]; ok {
			out[s] = enr
		}
	}
	return out
}

// MockCursorStore keeps the cursor in memory.
type MockCursorStore struct {
	Mu     sync.Mutex
	Cursor models.ProcessorCursor
	Saves  int
}

func (m *MockCursorStore) Load(ctx context.Context) (models.ProcessorCursor, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Cursor, nil
}

func (m *MockCursorStore) Save(ctx context.Context, cursor models.ProcessorCursor) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Cursor = cursor
	m.Saves++
	return nil
}

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }
