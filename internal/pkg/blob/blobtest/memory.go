// Package blobtest provides an in-memory blob.Store for tests.
package blobtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"novelistan/internal/pkg/blob"
)

type object struct {
	data        []byte
	contentType string
}

// MemoryStore keeps blobs in a map. Set FailPut or FailGet to inject errors.
type MemoryStore struct {
	BaseURL string
	FailPut error
	FailGet error

	mu      sync.Mutex
	objects map[string]object
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{BaseURL: baseURL, objects: map[string]object{}}
}

func (m *MemoryStore) Put(_ context.Context, key string, body io.ReadSeeker, _ int64, contentType string) error {
	if m.FailPut != nil {
		return m.FailPut
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = object{data: data, contentType: contentType}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*blob.Object, error) {
	if m.FailGet != nil {
		return nil, m.FailGet
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return &blob.Object{
		Body:        io.NopCloser(bytes.NewReader(o.data)),
		ContentType: o.contentType,
		Size:        int64(len(o.data)),
	}, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) URL(key string) string {
	return m.BaseURL + "/" + key
}

// Has reports whether key is stored.
func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var _ blob.Store = (*MemoryStore)(nil)

// ErrInjected is a convenient failure for FailPut/FailGet.
var ErrInjected = errors.New("injected blob failure")
