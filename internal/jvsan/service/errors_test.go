package service

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jimyag/jvsan/internal/jvsan/metadata"
	"github.com/jimyag/jvsan/internal/jvsan/repository"
	"github.com/jimyag/jvsan/pkg/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteCommandError(t *testing.T) {
	t.Parallel()

	err := &RemoteCommandError{
		Address:    "172.31.100.101",
		Command:    "gluster volume start xosan",
		ExitStatus: 1,
		Stderr:     "volume start: xosan: failed: Volume xosan already started\n",
	}
	assert.Equal(t,
		`command "gluster volume start xosan" on 172.31.100.101 exited with status 1: volume start: xosan: failed: Volume xosan already started`,
		err.Error())
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name         string
		err          error
		expectCode   string
		expectStatus int
	}{
		{name: "remote", err: fmt.Errorf("step: %w", &RemoteCommandError{Command: "gluster peer probe x", ExitStatus: 1}), expectCode: "RemoteCommandFailure", expectStatus: http.StatusBadGateway},
		{name: "boot timeout", err: fmt.Errorf("prepare: %w", ErrBootTimeout), expectCode: "BootTimeout", expectStatus: http.StatusGatewayTimeout},
		{name: "unsupported", err: ErrUnsupportedTopology, expectCode: "UnsupportedTopology", expectStatus: http.StatusBadRequest},
		{name: "prerequisite", err: ErrPrerequisiteMissing, expectCode: "PrerequisiteMissing", expectStatus: http.StatusPreconditionFailed},
		{name: "address pool", err: ErrAddressPoolExhausted, expectCode: "AddressPoolExhausted", expectStatus: http.StatusConflict},
		{name: "unknown node", err: ErrUnknownNode, expectCode: "InvalidParameter", expectStatus: http.StatusBadRequest},
		{name: "lock timeout", err: fmt.Errorf("acquire lock: %w", metadata.ErrLockTimeout), expectCode: "ClusterBusy", expectStatus: http.StatusConflict},
		{name: "cluster not found", err: repository.ErrClusterNotFound, expectCode: "ClusterNotFound", expectStatus: http.StatusNotFound},
		{name: "cluster exists", err: repository.ErrClusterExists, expectCode: "ClusterAlreadyExists", expectStatus: http.StatusConflict},
		{name: "deployment not found", err: repository.ErrDeploymentNotFound, expectCode: "DeploymentNotFound", expectStatus: http.StatusNotFound},
		{name: "other", err: errors.New("boom"), expectCode: "InternalError", expectStatus: http.StatusInternalServerError},
		{name: "already api error", err: apierror.WrapError(apierror.ErrInvalidParameter, "bad", nil), expectCode: "InvalidParameter", expectStatus: http.StatusBadRequest},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := toAPIError(tc.err, "operation failed")
			var apiErr *apierror.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.expectCode, apiErr.Code)
			assert.Equal(t, tc.expectStatus, apiErr.Status())
			assert.True(t, errors.Is(err, tc.err))
		})
	}

	assert.NoError(t, toAPIError(nil, "noop"))
}
