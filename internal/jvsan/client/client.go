// Package client jvsan API 的 HTTP 客户端
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/jimyag/jvsan/pkg/apierror"
)

// Client 调用 /api 下的接口
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New 创建客户端
// 部署集群可能持续数分钟，timeout 为 0 时不限制单次请求时间
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) ComputeTopologies(ctx context.Context, req *entity.ComputeTopologiesRequest) (*entity.ComputeTopologiesResponse, error) {
	resp := &entity.ComputeTopologiesResponse{}
	return resp, c.call(ctx, "compute-topologies", req, resp)
}

func (c *Client) CreateCluster(ctx context.Context, req *entity.CreateClusterRequest) (*entity.CreateClusterResponse, error) {
	resp := &entity.CreateClusterResponse{}
	return resp, c.call(ctx, "create-cluster", req, resp)
}

func (c *Client) DescribeClusters(ctx context.Context, req *entity.DescribeClustersRequest) (*entity.DescribeClustersResponse, error) {
	resp := &entity.DescribeClustersResponse{}
	return resp, c.call(ctx, "describe-clusters", req, resp)
}

func (c *Client) DescribeVolume(ctx context.Context, req *entity.DescribeVolumeRequest) (*entity.VolumeInfo, error) {
	resp := &entity.VolumeInfo{}
	return resp, c.call(ctx, "describe-volume", req, resp)
}

func (c *Client) ListPeers(ctx context.Context, req *entity.ListPeersRequest) (*entity.ListPeersResponse, error) {
	resp := &entity.ListPeersResponse{}
	return resp, c.call(ctx, "list-peers", req, resp)
}

func (c *Client) DescribeDeployment(ctx context.Context, req *entity.DescribeDeploymentRequest) (*entity.Deployment, error) {
	resp := &entity.Deployment{}
	return resp, c.call(ctx, "describe-deployment", req, resp)
}

// call 以 POST 调用 /api/<action>
// 服务端返回的错误以 *apierror.ErrorResponse 返回，状态码写入每个错误
func (c *Client) call(ctx context.Context, action string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+action, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", action, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", action, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		errResp := &apierror.ErrorResponse{}
		if err := json.Unmarshal(data, errResp); err != nil || len(errResp.Errors) == 0 {
			return fmt.Errorf("call %s: status %d: %s", action, resp.StatusCode, strings.TrimSpace(string(data)))
		}
		for i := range errResp.Errors {
			errResp.Errors[i].HTTPStatus = resp.StatusCode
		}
		return errResp
	}

	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	return nil
}
