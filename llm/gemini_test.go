package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"travel-package-scraper/models"
)

func TestNewGeminiClient_EmptyKey(t *testing.T) {
	client, err := NewGeminiClient(context.Background(), "  ", "gemini-2.5-flash-lite")
	require.Error(t, err)
	assert.Nil(t, client)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"googleapi 429", &googleapi.Error{Code: 429}, true},
		{"googleapi 500", &googleapi.Error{Code: 500, Message: "backend"}, false},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "slow down"), true},
		{"wrapped quota text", fmt.Errorf("call: %w", errors.New("Quota exceeded for metric")), true},
		{"plain failure", errors.New("invalid argument"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimit(tt.err))
		})
	}
}
