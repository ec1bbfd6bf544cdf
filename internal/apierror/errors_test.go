package apierror

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus_Classification(t *testing.T) {
	testCases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusBadRequest, KindValidation},
		{http.StatusConflict, KindValidation},
		{http.StatusUnprocessableEntity, KindValidation},
		{http.StatusNotFound, KindServer},
		{http.StatusInternalServerError, KindServer},
		{http.StatusBadGateway, KindServer},
		{http.StatusForbidden, KindServer},
	}

	for _, tc := range testCases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			err := FromStatus(tc.status, "")
			assert.Equal(t, tc.kind, err.Kind)
			assert.Equal(t, tc.status, err.StatusCode)
			assert.Equal(t, http.StatusText(tc.status), err.Message)
		})
	}
}

func TestKindOf_WrappedErrors(t *testing.T) {
	authErr := FromStatus(http.StatusUnauthorized, "session expired")
	wrapped := fmt.Errorf("list items: %w", authErr)

	assert.Equal(t, KindAuth, KindOf(wrapped))
	assert.True(t, IsAuth(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, "session expired", MessageOf(wrapped))
}

func TestKindOf_UntaggedIsNetwork(t *testing.T) {
	assert.Equal(t, KindNetwork, KindOf(context.DeadlineExceeded))
	assert.False(t, IsAuth(nil))
	assert.Equal(t, "", MessageOf(nil))
}

func TestError_UnwrapAndMessage(t *testing.T) {
	err := Network("request failed", context.Canceled)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "network: request failed: context canceled", err.Error())
	assert.Equal(t, "validation: name is required", Validation("name is required").Error())
}
