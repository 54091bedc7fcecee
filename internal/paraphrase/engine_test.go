package paraphrase

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockChatClient is a mock implementing the ChatClient interface.
type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func (m *MockChatClient) ListModels(ctx context.Context) (openai.ModelsList, error) {
	args := m.Called(ctx)
	return args.Get(0).(openai.ModelsList), args.Error(1)
}

func testParams(models ...string) Params {
	return Params{
		Models:             models,
		Temperature:        0.65,
		TopP:               0.9,
		MaxTokens:          512,
		FrequencyPenalty:   0.2,
		PresencePenalty:    0.1,
		SystemPrompt:       "rewrite carefully",
		UserPromptTemplate: "Paraphrase this text:",
	}
}

func successResponse(text string, tokens int) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: text}},
		},
		Usage: openai.Usage{TotalTokens: tokens},
	}
}

func TestRewrite_EmptyTextShortCircuits(t *testing.T) {
	client := new(MockChatClient)
	engine := New(client, testParams("model-a"), rand.New(rand.NewSource(1)))

	for _, text := range []string{"", "   ", "\n\t "} {
		res := engine.Rewrite(context.Background(), text)

		assert.False(t, res.Failed())
		assert.Equal(t, text, res.Text)
		assert.Equal(t, "no_text", res.ModelName)
		assert.Equal(t, 0, res.TokensUsed)
	}

	// No remote call may be issued for empty input.
	client.AssertNotCalled(t, "CreateChatCompletion", mock.Anything, mock.Anything)
}

func TestRewrite_FirstUsableResponseWins(t *testing.T) {
	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(successResponse("  rewritten text  ", 77), nil).Once()

	engine := New(client, testParams("model-a", "model-b", "model-c"), rand.New(rand.NewSource(1)))
	res := engine.Rewrite(context.Background(), "original text")

	assert.False(t, res.Failed())
	assert.Equal(t, "rewritten text", res.Text)
	assert.Equal(t, 77, res.TokensUsed)
	assert.Contains(t, []string{"model-a", "model-b", "model-c"}, res.ModelName)
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 1)
}

func TestRewrite_FallbackAfterFailures(t *testing.T) {
	client := new(MockChatClient)
	// First two models fail, third succeeds.
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("rate limited")).Twice()
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(successResponse("better text", 15), nil).Once()

	engine := New(client, testParams("model-a", "model-b", "model-c"), rand.New(rand.NewSource(7)))
	res := engine.Rewrite(context.Background(), "original text")

	assert.False(t, res.Failed())
	assert.Equal(t, "better text", res.Text)
	assert.Equal(t, 15, res.TokensUsed)
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 3)
}

func TestRewrite_ExhaustionReturnsFailure(t *testing.T) {
	client := new(MockChatClient)
	var attempted []string
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(openai.ChatCompletionRequest)
			attempted = append(attempted, req.Model)
		}).
		Return(openai.ChatCompletionResponse{}, errors.New("unavailable"))

	engine := New(client, testParams("model-a", "model-b", "model-c"), rand.New(rand.NewSource(3)))
	res := engine.Rewrite(context.Background(), "original text")

	assert.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, ErrAllModelsFailed)
	assert.Equal(t, "failed", res.ModelName)
	assert.Equal(t, 0, res.TokensUsed)
	assert.Equal(t, "original text", res.Text)

	// Every model attempted exactly once.
	assert.ElementsMatch(t, []string{"model-a", "model-b", "model-c"}, attempted)
}

func TestRewrite_EmptyContentTreatedAsFailure(t *testing.T) {
	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(successResponse("   ", 10), nil)

	engine := New(client, testParams("model-a"), rand.New(rand.NewSource(1)))
	res := engine.Rewrite(context.Background(), "original text")

	assert.True(t, res.Failed())
	assert.Equal(t, "failed", res.ModelName)
}

func TestRewrite_ShuffleIsReproducible(t *testing.T) {
	order := func(seed int64) []string {
		client := new(MockChatClient)
		var attempted []string
		client.On("CreateChatCompletion", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				req := args.Get(1).(openai.ChatCompletionRequest)
				attempted = append(attempted, req.Model)
			}).
			Return(openai.ChatCompletionResponse{}, errors.New("down"))

		engine := New(client, testParams("model-a", "model-b", "model-c", "model-d"), rand.New(rand.NewSource(seed)))
		engine.Rewrite(context.Background(), "text")
		return attempted
	}

	assert.Equal(t, order(42), order(42))
}

func TestRewrite_RequestCarriesParams(t *testing.T) {
	client := new(MockChatClient)
	var req openai.ChatCompletionRequest
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			req = args.Get(1).(openai.ChatCompletionRequest)
		}).
		Return(successResponse("ok", 1), nil)

	params := testParams("model-a")
	engine := New(client, params, rand.New(rand.NewSource(1)))
	engine.Rewrite(context.Background(), "source text")

	assert.Equal(t, params.Temperature, req.Temperature)
	assert.Equal(t, params.TopP, req.TopP)
	assert.Equal(t, params.MaxTokens, req.MaxTokens)
	assert.Equal(t, params.FrequencyPenalty, req.FrequencyPenalty)
	assert.Equal(t, params.PresencePenalty, req.PresencePenalty)
	assert.Equal(t, params.SystemPrompt, req.Messages[0].Content)
	assert.Equal(t, "Paraphrase this text:\n\nsource text", req.Messages[1].Content)
}

func TestHealthCheck(t *testing.T) {
	client := new(MockChatClient)
	client.On("ListModels", mock.Anything).Return(openai.ModelsList{}, nil).Once()

	engine := New(client, testParams("model-a"), rand.New(rand.NewSource(1)))
	assert.NoError(t, engine.HealthCheck(context.Background()))

	failing := new(MockChatClient)
	failing.On("ListModels", mock.Anything).Return(openai.ModelsList{}, errors.New("bad key"))

	engine = New(failing, testParams("model-a"), rand.New(rand.NewSource(1)))
	assert.Error(t, engine.HealthCheck(context.Background()))
}
