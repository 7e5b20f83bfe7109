package engine

import (
	"context"
	"io"
	"testing"
)

type mockEngine struct {
	isRunning bool
}

func (m *mockEngine) Chat(_ context.Context, _ string, _ []Message, _ *Schema) (string, error) {
	return "", nil
}
func (m *mockEngine) Embed(_ context.Context, _ string, _ string) ([]float32, error) {
	return nil, nil
}
func (m *mockEngine) IsRunning(_ context.Context) bool { return m.isRunning }

type mockManagedEngine struct {
	mockEngine
	models map[string]bool
	pulled []string
}

func (m *mockManagedEngine) ListModels(_ context.Context) ([]string, error) {
	var names []string
	for n := range m.models {
		names = append(names, n)
	}
	return names, nil
}
func (m *mockManagedEngine) HasModel(_ context.Context, name string) bool { return m.models[name] }
func (m *mockManagedEngine) PullModel(_ context.Context, name string, cb func(PullProgress)) error {
	m.pulled = append(m.pulled, name)
	if cb != nil {
		cb(PullProgress{Status: "success"})
	}
	return nil
}

func TestEnsureReady_AllModelsPresent(t *testing.T) {
	m := &mockManagedEngine{
		mockEngine: mockEngine{isRunning: true},
		models:     map[string]bool{"llama3": true, "bge-m3": true},
	}
	if err := EnsureReady(context.Background(), m, "llama3", "bge-m3", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 0 {
		t.Errorf("expected no pulls, got %v", m.pulled)
	}
}

func TestEnsureReady_PullsMissing(t *testing.T) {
	m := &mockManagedEngine{
		mockEngine: mockEngine{isRunning: true},
		models:     map[string]bool{"llama3": true},
	}
	if err := EnsureReady(context.Background(), m, "llama3", "bge-m3", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "bge-m3" {
		t.Errorf("expected pull of bge-m3, got %v", m.pulled)
	}
}

func TestEnsureReady_HostedSkipsPull(t *testing.T) {
	m := &mockEngine{isRunning: true}
	if err := EnsureReady(context.Background(), m, "gpt-4o-mini", "text-embedding-3-small", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
}

func TestEnsureReady_EngineDown(t *testing.T) {
	m := &mockEngine{isRunning: false}
	if err := EnsureReady(context.Background(), m, "gpt-4o-mini", "", io.Discard); err == nil {
		t.Fatal("expected error when engine is down")
	}
}
