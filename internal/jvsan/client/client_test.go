package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/jimyag/jvsan/pkg/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL+"/", 0)
}

func TestClient_ComputeTopologies(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/compute-topologies", r.URL.Path)

		var req entity.ComputeTopologiesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"kvm1/default", "kvm2/default"}, req.StorageResourceIDs)

		_ = json.NewEncoder(w).Encode(entity.ComputeTopologiesResponse{
			BrickSize: 100,
			Options: []entity.TopologyOption{
				{Topology: entity.Topology{Layout: entity.LayoutReplica, Redundancy: 2, CapacityMultiplier: 1}, AvailableSpace: 100},
			},
		})
	})

	resp, err := c.ComputeTopologies(context.Background(), &entity.ComputeTopologiesRequest{
		StorageResourceIDs: []string{"kvm1/default", "kvm2/default"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), resp.BrickSize)
	require.Len(t, resp.Options, 1)
	assert.Equal(t, entity.LayoutReplica, resp.Options[0].Layout)
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name         string
		status       int
		body         string
		expectAPIErr *apierror.Error
	}{
		{
			name:         "api error",
			status:       http.StatusPreconditionFailed,
			body:         `{"errors":[{"code":"PrerequisiteMissing","message":"Prerequisite check failed"}],"requestID":"req-1"}`,
			expectAPIErr: apierror.ErrPrerequisiteMissing,
		},
		{
			name:   "plain text",
			status: http.StatusBadGateway,
			body:   "bad gateway",
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := c.CreateCluster(context.Background(), &entity.CreateClusterRequest{})
			require.Error(t, err)

			var errResp *apierror.ErrorResponse
			if tc.expectAPIErr == nil {
				assert.False(t, errors.As(err, &errResp))
				assert.Contains(t, err.Error(), tc.body)
				return
			}
			require.True(t, errors.As(err, &errResp))
			assert.Equal(t, "req-1", errResp.RequestID)
			assert.Equal(t, tc.expectAPIErr.Code, errResp.Errors[0].Code)
			assert.Equal(t, tc.status, errResp.Errors[0].Status())
		})
	}
}
