package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/jimyag/jvsan/pkg/ginx"
	"github.com/rs/zerolog"
)

// ProvisionServiceInterface 定义集群部署服务的接口
type ProvisionServiceInterface interface {
	ComputeTopologies(ctx context.Context, req *entity.ComputeTopologiesRequest) (*entity.ComputeTopologiesResponse, error)
	CreateCluster(ctx context.Context, req *entity.CreateClusterRequest) (*entity.CreateClusterResponse, error)
	DescribeClusters(ctx context.Context, req *entity.DescribeClustersRequest) (*entity.DescribeClustersResponse, error)
	DescribeVolume(ctx context.Context, req *entity.DescribeVolumeRequest) (*entity.VolumeInfo, error)
	ListPeers(ctx context.Context, req *entity.ListPeersRequest) (*entity.ListPeersResponse, error)
	DescribeDeployment(ctx context.Context, req *entity.DescribeDeploymentRequest) (*entity.Deployment, error)
}

type Cluster struct {
	provisionService ProvisionServiceInterface
}

func NewCluster(provisionService ProvisionServiceInterface) *Cluster {
	return &Cluster{
		provisionService: provisionService,
	}
}

func (c *Cluster) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/compute-topologies", ginx.Adapt5(c.ComputeTopologies))
	router.POST("/create-cluster", ginx.Adapt5(c.CreateCluster))
	router.POST("/describe-clusters", ginx.Adapt5(c.DescribeClusters))
	router.POST("/describe-volume", ginx.Adapt5(c.DescribeVolume))
	router.POST("/list-peers", ginx.Adapt5(c.ListPeers))
	router.POST("/describe-deployment", ginx.Adapt5(c.DescribeDeployment))
}

func (c *Cluster) ComputeTopologies(ctx *gin.Context, req *entity.ComputeTopologiesRequest) (*entity.ComputeTopologiesResponse, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Strs("storageResourceIDs", req.StorageResourceIDs).
		Msg("ComputeTopologies called")

	resp, err := c.provisionService.ComputeTopologies(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to compute topologies")
		return nil, err
	}

	logger.Info().
		Uint64("brickSize", resp.BrickSize).
		Int("options", len(resp.Options)).
		Msg("Topologies computed successfully")
	return resp, nil
}

func (c *Cluster) CreateCluster(ctx *gin.Context, req *entity.CreateClusterRequest) (*entity.CreateClusterResponse, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Interface("request", req).
		Msg("CreateCluster called")

	resp, err := c.provisionService.CreateCluster(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to create cluster")
		return nil, err
	}

	logger.Info().
		Str("backend", resp.Cluster.Backend).
		Str("deploymentID", resp.DeploymentID).
		Msg("Cluster created successfully")
	return resp, nil
}

func (c *Cluster) DescribeClusters(ctx *gin.Context, req *entity.DescribeClustersRequest) (*entity.DescribeClustersResponse, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Strs("backends", req.Backends).
		Msg("DescribeClusters called")

	resp, err := c.provisionService.DescribeClusters(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to describe clusters")
		return nil, err
	}
	return resp, nil
}

func (c *Cluster) DescribeVolume(ctx *gin.Context, req *entity.DescribeVolumeRequest) (*entity.VolumeInfo, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("backend", req.Backend).
		Msg("DescribeVolume called")

	info, err := c.provisionService.DescribeVolume(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to describe volume")
		return nil, err
	}

	logger.Info().
		Int("bricks", len(info.Bricks)).
		Int("peers", len(info.Peers)).
		Msg("Volume described successfully")
	return info, nil
}

func (c *Cluster) ListPeers(ctx *gin.Context, req *entity.ListPeersRequest) (*entity.ListPeersResponse, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("backend", req.Backend).
		Str("address", req.Address).
		Msg("ListPeers called")

	resp, err := c.provisionService.ListPeers(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to list peers")
		return nil, err
	}
	return resp, nil
}

func (c *Cluster) DescribeDeployment(ctx *gin.Context, req *entity.DescribeDeploymentRequest) (*entity.Deployment, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("deploymentID", req.DeploymentID).
		Msg("DescribeDeployment called")

	deployment, err := c.provisionService.DescribeDeployment(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to describe deployment")
		return nil, err
	}
	return deployment, nil
}
