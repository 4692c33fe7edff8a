package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockChatAPI is a mock for the chat completion API
type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) CreateCompletion(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}

func TestVerdictClient_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("passes the grading system message through", func(t *testing.T) {
		mockAPI := new(MockChatAPI)
		client := NewVerdictClientWithAPI(mockAPI)

		mockAPI.On("CreateCompletion", ctx, verdictSystemMessage, "grade this step").
			Return(`{"score": 85}`, nil)

		raw, err := client.Complete(ctx, "grade this step")

		require.NoError(t, err)
		assert.Equal(t, `{"score": 85}`, raw)
		mockAPI.AssertExpectations(t)
	})

	t.Run("rejects an empty prompt", func(t *testing.T) {
		client := NewVerdictClientWithAPI(new(MockChatAPI))

		_, err := client.Complete(ctx, "")

		assert.Equal(t, ErrEmptyText, err)
	})

	t.Run("propagates API errors without retry", func(t *testing.T) {
		mockAPI := new(MockChatAPI)
		client := NewVerdictClientWithAPI(mockAPI)

		mockAPI.On("CreateCompletion", ctx, mock.Anything, mock.Anything).
			Return("", errors.New("server overloaded"))

		_, err := client.Complete(ctx, "grade this step")

		require.Error(t, err)
		mockAPI.AssertNumberOfCalls(t, "CreateCompletion", 1)
	})
}
