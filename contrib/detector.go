// Package contrib — detector.go
//
// Plugin interface for custom inference engines.
//
// falldetect's vision stack is pluggable at the InferenceEngine seam
// (internal/detection.InferenceEngine): the capture loop never knows
// whether frames are scored by a local ONNX runtime binding, a remote
// model server, or — in tests — a deterministic fake. Engines register
// themselves in an init() function using RegisterEngine(). The agent
// selects the active engine via config:
//
//   detection:
//     engine: "mock"  # default, for local dev / CI
//     # engine: "grpc-model-server"
//
//   Built-in engines: "mock" (reference implementation below).
//   Community engines: registered via contrib.RegisterEngine().
//
// Plugin contract:
//   - Infer() must be goroutine-safe (the built-in conductor calls it
//     from a single capture loop, but an engine instance may be shared).
//   - Infer() must not panic (use recover() internally if needed).
//   - Infer() must not block longer than the caller's context allows —
//     honor ctx.Done().
//   - Name() must return a stable, unique string (used as config key).
//
// Example plugin (contrib/engines/onnx/onnx.go):
//
//   package onnx
//
//   import "github.com/kionce57/falldetect/contrib"
//
//   func init() {
//     contrib.RegisterEngine("onnx", func(cfg contrib.EngineConfig) (contrib.InferenceEngine, error) {
//       return newONNXEngine(cfg.ModelPath)
//     })
//   }
package contrib

import (
	"context"
	"fmt"
	"sync"

	"github.com/kionce57/falldetect/internal/detection"
)

// InferenceEngine re-exports detection.InferenceEngine so that plugin
// packages need not import the internal package directly.
type InferenceEngine = detection.InferenceEngine

// EngineConfig is the configuration handed to an EngineFactory. Fields
// are populated from the agent's detection config section; an engine
// that does not need a given field simply ignores it.
type EngineConfig struct {
	ModelPath  string
	Endpoint   string
	Parameters map[string]string
}

// EngineFactory constructs an InferenceEngine from configuration.
type EngineFactory func(cfg EngineConfig) (InferenceEngine, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]EngineFactory)
)

// RegisterEngine registers a named inference engine factory.
// Panics if an engine with the same name is already registered.
// Call from init() functions in plugin packages.
func RegisterEngine(name string, factory EngineFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("contrib: engine %q already registered", name))
	}
	registry[name] = factory
}

// BuildEngine constructs the named engine with the given config.
// Returns an error if no engine with that name is registered.
func BuildEngine(name string, cfg EngineConfig) (InferenceEngine, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("contrib: engine %q not registered (available: %v)", name, ListEngines())
	}
	return factory(cfg)
}

// ListEngines returns the names of all registered engine factories.
func ListEngines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	return names
}

// ─── Reference engine: mock ───────────────────────────────────────────────────
// Provided as a reference implementation in the contrib package itself, and
// as the default for local development and CI. Community engines should live
// in contrib/engines/<name>/<name>.go.

func init() {
	RegisterEngine("mock", func(cfg EngineConfig) (InferenceEngine, error) {
		return &mockEngine{}, nil
	})
}

// mockEngine always reports no detections. It exists so that the full
// pipeline can be exercised (config, buffer, escalation, recording, store)
// without a real model dependency.
type mockEngine struct{}

func (m *mockEngine) Infer(ctx context.Context, image []byte, width, height int) ([]detection.RawResult, error) {
	return nil, nil
}
