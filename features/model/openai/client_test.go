package openai

import (
	"context"
	"net/http"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"

	"goa.design/plankit/runtime/model"
)

type stubCompletionsClient struct {
	lastParams sdk.ChatCompletionNewParams
	resp       *sdk.ChatCompletion
	err        error
}

func (s *stubCompletionsClient) New(_ context.Context, body sdk.ChatCompletionNewParams, _ ...option.RequestOption) (*sdk.ChatCompletion, error) {
	s.lastParams = body
	return s.resp, s.err
}

func TestComplete(t *testing.T) {
	stub := &stubCompletionsClient{
		resp: &sdk.ChatCompletion{
			Choices: []sdk.ChatCompletionChoice{
				{
					Message:      sdk.ChatCompletionMessage{Content: "world"},
					FinishReason: "stop",
				},
			},
			Usage: sdk.CompletionUsage{
				PromptTokens:     10,
				CompletionTokens: 5,
			},
		},
	}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o", MaxTokens: 128})
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: "be brief"},
			{Role: model.RoleUser, Content: "hello"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "world", resp.Text)
	require.Equal(t, "stop", resp.StopReason)
	require.Equal(t, 15, resp.Usage.TotalTokens())

	require.Equal(t, sdk.ChatModel("gpt-4o"), stub.lastParams.Model)
	require.EqualValues(t, 128, stub.lastParams.MaxTokens.Value)
	require.Len(t, stub.lastParams.Messages, 2)
}

func TestCompleteModelOverride(t *testing.T) {
	stub := &stubCompletionsClient{
		resp: &sdk.ChatCompletion{
			Choices: []sdk.ChatCompletionChoice{{Message: sdk.ChatCompletionMessage{Content: "ok"}}},
		},
	}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), model.Request{
		Model:       "gpt-4o-mini",
		Temperature: 0.4,
		Messages:    []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, sdk.ChatModel("gpt-4o-mini"), stub.lastParams.Model)
	require.InDelta(t, 0.4, stub.lastParams.Temperature.Value, 1e-6)
}

func TestCompleteRateLimited(t *testing.T) {
	stub := &stubCompletionsClient{
		err: &sdk.Error{StatusCode: http.StatusTooManyRequests},
	}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.ErrorIs(t, err, model.ErrRateLimited)
}

func TestCompleteValidation(t *testing.T) {
	stub := &stubCompletionsClient{resp: &sdk.ChatCompletion{}}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), model.Request{})
	require.Error(t, err)

	_, err = cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "tool", Content: "x"}},
	})
	require.Error(t, err)

	_, err = cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.Error(t, err) // empty choices

	_, err = New(nil, Options{DefaultModel: "m"})
	require.Error(t, err)
	_, err = New(stub, Options{})
	require.Error(t, err)
}
