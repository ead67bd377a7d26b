package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/plankit/runtime/model"
)

type fakeClient struct {
	completeErr   error
	completeCalls int
}

func (f *fakeClient) Complete(_ context.Context, _ model.Request) (model.Response, error) {
	f.completeCalls++
	return model.Response{Text: "ok"}, f.completeErr
}

func testRequest() model.Request {
	return model.Request{
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "hello"},
		},
		MaxTokens: 10,
	}
}

func TestBackoffOnRateLimited(t *testing.T) {
	limiter := newAdaptiveRateLimiter(60000, 60000)
	initialTPM := limiter.currentTPM

	client := &fakeClient{completeErr: model.ErrRateLimited}
	wrapped := limiter.Middleware()(client)

	_, err := wrapped.Complete(context.Background(), testRequest())
	require.ErrorIs(t, err, model.ErrRateLimited)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	require.Less(t, limiter.currentTPM, initialTPM)
}

func TestProbeOnSuccess(t *testing.T) {
	limiter := newAdaptiveRateLimiter(60000, 120000)

	limiter.mu.Lock()
	initialTPM := limiter.currentTPM
	limiter.recoveryRate = 1000
	limiter.mu.Unlock()

	client := &fakeClient{}
	wrapped := limiter.Middleware()(client)

	resp, err := wrapped.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Text)
	require.Equal(t, 1, client.completeCalls)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	require.Greater(t, limiter.currentTPM, initialTPM)
}

func TestBackoffFloor(t *testing.T) {
	limiter := newAdaptiveRateLimiter(1000, 1000)

	client := &fakeClient{completeErr: model.ErrRateLimited}
	wrapped := limiter.Middleware()(client)

	for i := 0; i < 20; i++ {
		_, _ = wrapped.Complete(context.Background(), testRequest())
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	require.GreaterOrEqual(t, limiter.currentTPM, limiter.minTPM)
}

func TestNonRateLimitErrorsLeaveBudgetAlone(t *testing.T) {
	limiter := newAdaptiveRateLimiter(60000, 120000)
	initialTPM := limiter.currentTPM

	client := &fakeClient{completeErr: context.DeadlineExceeded}
	wrapped := limiter.Middleware()(client)

	_, err := wrapped.Complete(context.Background(), testRequest())
	require.Error(t, err)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	require.Equal(t, initialTPM, limiter.currentTPM)
}

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 500, estimateTokens(model.Request{}))

	req := model.Request{
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "abcdef"},
		},
	}
	require.Equal(t, 502, estimateTokens(req))
}
