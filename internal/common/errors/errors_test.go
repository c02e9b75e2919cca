package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	plain := stderrors.New("boom")
	n := Normalize(plain)
	require.NotNil(t, n)
	assert.Equal(t, ErrCodeInternal, n.Code)
	assert.True(t, stderrors.Is(n, plain))

	wrapped := fmt.Errorf("loading: %w", NewCatalogEmptyError("sheets"))
	assert.Equal(t, ErrCodeCatalogEmpty, Normalize(wrapped).Code)
	assert.Equal(t, ErrCodeCatalogEmpty, CodeOf(wrapped))
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeCatalogSchemaInvalid, "DATA"},
		{ErrCodeIntentAPITimeout, "CLASSIFICATION"},
		{ErrCodeCompositionFailed, "COMPOSITION"},
		{ErrCodeLLMTimeout, "COMPOSITION"},
		{ErrCodeTurnInFlight, "SESSION"},
		{ErrCodePersonaInvalid, "SESSION"},
		{ErrCodeInternal, "OTHER"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCategory(tt.code))
		})
	}
}

func TestRetryability(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeCatalogLoadFailed))
	assert.True(t, IsRetryableErrorCode(ErrCodeLLMTimeout))
	assert.False(t, IsRetryableErrorCode(ErrCodeSessionNotFound))
	assert.False(t, IsRetryableErrorCode(ErrCodeCatalogSchemaInvalid))
}

func TestToErrorVariables(t *testing.T) {
	e := NewCatalogSchemaInvalidError([]string{"ServingSize(g)"})
	vars := e.ToErrorVariables()

	assert.Equal(t, "CATALOG_SCHEMA_INVALID", vars["errorCode"])
	assert.Equal(t, "DATA", vars["errorCategory"])
	assert.Equal(t, false, vars["retryable"])
	assert.Equal(t, []string{"ServingSize(g)"}, vars["missingColumns"])
	assert.Contains(t, e.Details, "ServingSize(g)")
}
