package anthropic

import (
	"context"
	"net/http"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"goa.design/plankit/runtime/model"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func TestCompleteTextOnly(t *testing.T) {
	stub := &stubMessagesClient{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "world"},
			},
			StopReason: sdk.StopReasonEndTurn,
			Usage: sdk.Usage{
				InputTokens:  10,
				OutputTokens: 5,
			},
		},
	}
	cl, err := New(stub, Options{DefaultModel: "claude-sonnet-4-5", MaxTokens: 128})
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: "be brief"},
			{Role: model.RoleUser, Content: "hello"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "world", resp.Text)
	require.Equal(t, string(sdk.StopReasonEndTurn), resp.StopReason)
	require.Equal(t, 10, resp.Usage.InputTokens)
	require.Equal(t, 5, resp.Usage.OutputTokens)
	require.Equal(t, 15, resp.Usage.TotalTokens())

	require.Equal(t, sdk.Model("claude-sonnet-4-5"), stub.lastParams.Model)
	require.EqualValues(t, 128, stub.lastParams.MaxTokens)
	require.Len(t, stub.lastParams.System, 1)
	require.Equal(t, "be brief", stub.lastParams.System[0].Text)
	require.Len(t, stub.lastParams.Messages, 1)
}

func TestCompleteRequestOverrides(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{}}
	cl, err := New(stub, Options{DefaultModel: "claude-sonnet-4-5", Temperature: 0.2})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), model.Request{
		Model:       "claude-haiku-4",
		MaxTokens:   64,
		Temperature: 0.9,
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, sdk.Model("claude-haiku-4"), stub.lastParams.Model)
	require.EqualValues(t, 64, stub.lastParams.MaxTokens)
	require.InDelta(t, 0.9, stub.lastParams.Temperature.Value, 1e-6)
}

func TestCompleteRateLimited(t *testing.T) {
	stub := &stubMessagesClient{
		err: &sdk.Error{StatusCode: http.StatusTooManyRequests},
	}
	cl, err := New(stub, Options{DefaultModel: "claude-sonnet-4-5"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.ErrorIs(t, err, model.ErrRateLimited)
}

func TestCompleteValidation(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{}}
	cl, err := New(stub, Options{DefaultModel: "claude-sonnet-4-5"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), model.Request{})
	require.Error(t, err)

	_, err = cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleSystem, Content: "only system"}},
	})
	require.Error(t, err)

	_, err = cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "tool", Content: "x"}},
	})
	require.Error(t, err)

	_, err = New(nil, Options{DefaultModel: "m"})
	require.Error(t, err)
	_, err = New(stub, Options{})
	require.Error(t, err)
}
