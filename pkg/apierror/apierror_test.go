package apierror_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jimyag/jvsan/pkg/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		testFunc func(*testing.T)
	}{
		{
			name: "Error_Error",
			testFunc: func(t *testing.T) {
				t.Parallel()
				err := apierror.NewError("TestError", "test message")
				assert.Equal(t, "[TestError] test message", err.Error())
			},
		},
		{
			name: "Error_Error_WithRawError",
			testFunc: func(t *testing.T) {
				t.Parallel()
				err := apierror.WrapError(apierror.ErrInternalError, "test message", fmt.Errorf("raw error"))
				assert.Equal(t, "[InternalError] test message (RawError: raw error)", err.Error())
			},
		},
		{
			name: "Error_Is_SameCode",
			testFunc: func(t *testing.T) {
				t.Parallel()
				err := apierror.WrapError(apierror.ErrClusterNotFound, "cluster jvsan-1 not found", nil)
				assert.True(t, errors.Is(err, apierror.ErrClusterNotFound))
				assert.False(t, errors.Is(err, apierror.ErrDeploymentNotFound))
			},
		},
		{
			name: "Error_Is_Wrapped",
			testFunc: func(t *testing.T) {
				t.Parallel()
				err := fmt.Errorf("create cluster: %w", apierror.WrapError(apierror.ErrBootTimeout, "node timeout", nil))
				assert.True(t, errors.Is(err, apierror.ErrBootTimeout))

				var apiErr *apierror.Error
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, http.StatusGatewayTimeout, apiErr.Status())
			},
		},
		{
			name: "Error_Unwrap",
			testFunc: func(t *testing.T) {
				t.Parallel()
				rawErr := fmt.Errorf("raw error")
				assert.Nil(t, errors.Unwrap(apierror.NewError("TestError", "test message")))
				assert.Equal(t, rawErr, errors.Unwrap(apierror.WrapError(apierror.ErrInternalError, "m", rawErr)))
			},
		},
		{
			name: "Error_Status_Default",
			testFunc: func(t *testing.T) {
				t.Parallel()
				assert.Equal(t, http.StatusInternalServerError, (&apierror.Error{Code: "X"}).Status())
				assert.Equal(t, http.StatusBadRequest, apierror.NewErrorWithStatus("X", "m", http.StatusBadRequest).Status())
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, tt.testFunc)
	}
}

func TestErrorResponse_JSON(t *testing.T) {
	t.Parallel()

	resp := apierror.NewErrorResponse("req-1",
		apierror.WrapError(apierror.ErrUnsupportedTopology, "disperse 2 is not supported for 3 nodes", fmt.Errorf("secret")),
	)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"errors": [{"code": "UnsupportedTopology", "message": "disperse 2 is not supported for 3 nodes"}],
		"requestID": "req-1"
	}`, string(data))
	assert.Contains(t, resp.Error(), "RequestID: req-1")
}
