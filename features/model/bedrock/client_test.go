package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"goa.design/plankit/runtime/model"
)

type stubRuntime struct {
	lastInput *bedrockruntime.ConverseInput
	output    *bedrockruntime.ConverseOutput
	err       error
}

func (s *stubRuntime) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.lastInput = params
	return s.output, s.err
}

func TestComplete(t *testing.T) {
	stub := &stubRuntime{
		output: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: "world"},
				},
			}},
			StopReason: brtypes.StopReasonEndTurn,
			Usage: &brtypes.TokenUsage{
				InputTokens:  aws.Int32(10),
				OutputTokens: aws.Int32(5),
			},
		},
	}
	cl, err := New(stub, Options{DefaultModel: "anthropic.claude-sonnet-4", MaxTokens: 128})
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: "be brief"},
			{Role: model.RoleUser, Content: "hello"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "world", resp.Text)
	require.Equal(t, "end_turn", resp.StopReason)
	require.Equal(t, 15, resp.Usage.TotalTokens())

	require.Equal(t, "anthropic.claude-sonnet-4", aws.ToString(stub.lastInput.ModelId))
	require.Len(t, stub.lastInput.System, 1)
	require.Len(t, stub.lastInput.Messages, 1)
	require.NotNil(t, stub.lastInput.InferenceConfig)
	require.EqualValues(t, 128, aws.ToInt32(stub.lastInput.InferenceConfig.MaxTokens))
}

func TestCompleteThrottled(t *testing.T) {
	stub := &stubRuntime{
		err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"},
	}
	cl, err := New(stub, Options{DefaultModel: "anthropic.claude-sonnet-4"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.ErrorIs(t, err, model.ErrRateLimited)
}

func TestCompleteValidation(t *testing.T) {
	stub := &stubRuntime{output: &bedrockruntime.ConverseOutput{}}
	cl, err := New(stub, Options{DefaultModel: "anthropic.claude-sonnet-4"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), model.Request{})
	require.Error(t, err)

	_, err = cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "tool", Content: "x"}},
	})
	require.Error(t, err)

	// Output without a message member.
	_, err = cl.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	_, err = New(nil, Options{DefaultModel: "m"})
	require.Error(t, err)
	_, err = New(stub, Options{})
	require.Error(t, err)
}
