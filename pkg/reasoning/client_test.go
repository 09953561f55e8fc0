package reasoning

import (
	"net/http"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customs-ai/hs-classify/internal/resilience"
)

func providerError(t *testing.T, status int) *sdk.Error {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	require.NoError(t, err)
	return &sdk.Error{
		StatusCode: status,
		Request:    req,
		Response:   &http.Response{StatusCode: status},
	}
}

func TestWrapAPIErrorRetryableStatuses(t *testing.T) {
	for _, status := range []int{408, 429, 500, 502, 503, 504} {
		err := wrapAPIError(providerError(t, status), "reasoning: create message")
		require.Error(t, err)
		assert.True(t, resilience.IsTransient(err), status)
	}
}

func TestWrapAPIErrorClientFaultsNotRetried(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 422} {
		err := wrapAPIError(providerError(t, status), "reasoning: create message")
		require.Error(t, err)
		assert.False(t, resilience.IsTransient(err), status)
	}
}

func TestWrapAPIErrorNonProviderError(t *testing.T) {
	err := wrapAPIError(eris.New("marshal request"), "reasoning: create message")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}
