// Package testutil provides fakes for testing the pipeline without real
// provider credentials.
package testutil

import (
	"context"
	"log"
	"sync"

	"github.com/reelforge/reelforge/pkg/handler"
)

// FakeHandler is a handler.Handler whose behaviour is injected per test via
// InvokeFunc, with call tracking for assertions.
type FakeHandler struct {
	InvokeFunc    func(handler.ProviderJobContext) (handler.ProduceResult, error)
	WarmStartFunc func(ctx context.Context, logger *log.Logger) error
	Environments  []string

	mu          sync.Mutex
	InvokeCalls []handler.ProviderJobContext
	WarmStarted bool
}

func (f *FakeHandler) WarmStart(ctx context.Context, logger *log.Logger) error {
	f.mu.Lock()
	f.WarmStarted = true
	f.mu.Unlock()
	if f.WarmStartFunc != nil {
		return f.WarmStartFunc(ctx, logger)
	}
	return nil
}

func (f *FakeHandler) Invoke(jobCtx handler.ProviderJobContext) (handler.ProduceResult, error) {
	f.mu.Lock()
	f.InvokeCalls = append(f.InvokeCalls, jobCtx)
	f.mu.Unlock()

	if f.InvokeFunc != nil {
		return f.InvokeFunc(jobCtx)
	}
	return handler.ProduceResult{
		Artifacts: []handler.ArtifactOutput{
			{ArtifactID: jobCtx.Planner.ArtifactName, Succeeded: true, IsBlob: false, Inline: []byte(`"ok"`)},
		},
	}, nil
}

func (f *FakeHandler) SupportedEnvironments() []string { return f.Environments }

// CallCount returns how many times Invoke has been called.
func (f *FakeHandler) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.InvokeCalls)
}

var _ handler.Handler = (*FakeHandler)(nil)
