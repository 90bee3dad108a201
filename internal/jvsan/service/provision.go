package service

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/jimyag/jvsan/internal/jvsan/config"
	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/jimyag/jvsan/internal/jvsan/metadata"
	"github.com/jimyag/jvsan/internal/jvsan/metrics"
	"github.com/jimyag/jvsan/internal/jvsan/planner"
	"github.com/jimyag/jvsan/internal/jvsan/repository"
	"github.com/jimyag/jvsan/pkg/apierror"
	"github.com/jimyag/jvsan/pkg/idgen"
	"github.com/jimyag/jvsan/pkg/libvirt"
	"github.com/jimyag/jvsan/pkg/neigh"
	"github.com/jimyag/jvsan/pkg/qemuimg"
	"github.com/jimyag/jvsan/pkg/sshexec"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	maxVLAN = 4094
	// networkLockID 存储网络地址分配的全局锁
	networkLockID = "network"
)

// ProvisionService 存储集群的部署与查询入口
type ProvisionService struct {
	cfg         *config.Config
	hypervisor  libvirt.Hypervisor
	planner     *planner.Planner
	network     *NetworkProvisioner
	nodes       *NodeProvisioner
	assembler   *ClusterAssembler
	inspector   *VolumeInspector
	clusters    repository.ClusterRepository
	deployments repository.DeploymentRepository
	idGen       *idgen.Generator
	// authorizedKey 写入每个节点的服务公钥
	authorizedKey string
}

// Dependencies ProvisionService 依赖的外部组件
type Dependencies struct {
	Hypervisor    libvirt.Hypervisor
	Images        qemuimg.Inspector
	Executor      sshexec.Executor
	Neighbors     neigh.Table
	Clusters      repository.ClusterRepository
	Deployments   repository.DeploymentRepository
	AuthorizedKey string
}

// NewProvisionService 创建部署服务
func NewProvisionService(cfg *config.Config, deps Dependencies) *ProvisionService {
	p := planner.New(planner.DefaultTable(), cfg.Planner)

	return &ProvisionService{
		cfg:        cfg,
		hypervisor: deps.Hypervisor,
		planner:    p,
		network:    NewNetworkProvisioner(deps.Hypervisor, cfg.Network),
		nodes: NewNodeProvisioner(deps.Hypervisor, deps.Images, p, NodeProvisionerOptions{
			Template:     cfg.Template,
			MTU:          cfg.Network.MTU,
			BootTimeout:  cfg.Timeouts.Boot,
			PollInterval: cfg.Timeouts.PollInterval,
			Concurrency:  cfg.NodeConcurrency,
		}),
		assembler: NewClusterAssembler(deps.Hypervisor, deps.Executor, deps.Clusters, AssemblerOptions{
			Gluster:        cfg.Gluster,
			LockDir:        cfg.LockDir(),
			LockTimeout:    cfg.Timeouts.Lock,
			CommandTimeout: cfg.Timeouts.Command,
		}),
		inspector:     NewVolumeInspector(deps.Clusters, deps.Executor, deps.Neighbors, cfg.Timeouts.Command),
		clusters:      deps.Clusters,
		deployments:   deps.Deployments,
		idGen:         idgen.New(),
		authorizedKey: deps.AuthorizedKey,
	}
}

// ComputeTopologies 计算存储资源可选的拓扑
// 节点数不在规划表中时返回空列表
func (s *ProvisionService) ComputeTopologies(ctx context.Context, req *entity.ComputeTopologiesRequest) (*entity.ComputeTopologiesResponse, error) {
	resources, err := s.resolveResources(ctx, req.StorageResourceIDs)
	if err != nil {
		return nil, err
	}

	return &entity.ComputeTopologiesResponse{
		BrickSize: s.planner.BrickSize(resources),
		Options:   s.planner.Options(resources),
	}, nil
}

// resolveResources 读取存储资源的当前容量，保持请求中的顺序
func (s *ProvisionService) resolveResources(ctx context.Context, ids []string) ([]entity.StorageResource, error) {
	if len(ids) == 0 {
		return nil, apierror.WrapError(apierror.ErrInvalidParameter, "storageResourceIDs is required", nil)
	}
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return nil, apierror.WrapError(apierror.ErrInvalidParameter,
			fmt.Sprintf("Duplicate storage resources: %s", strings.Join(dup, ", ")), nil)
	}

	hosts := s.hypervisor.Hosts()
	resources := make([]entity.StorageResource, 0, len(ids))
	for _, id := range ids {
		host, pool, ok := entity.ParseStorageResourceID(id)
		if !ok {
			return nil, apierror.WrapError(apierror.ErrInvalidParameter,
				fmt.Sprintf("Invalid storage resource ID %q, expected <host>/<pool>", id), nil)
		}
		if !lo.Contains(hosts, host) {
			return nil, apierror.WrapError(apierror.ErrInvalidParameter,
				fmt.Sprintf("Host %s is not configured", host), nil)
		}

		info, err := s.hypervisor.GetStoragePool(ctx, host, pool)
		if err != nil {
			return nil, toAPIError(fmt.Errorf("%w: storage pool %s: %v", ErrPrerequisiteMissing, id, err),
				"Failed to read storage resource")
		}
		resources = append(resources, entity.StorageResource{
			ID:         id,
			Host:       host,
			Pool:       pool,
			Capacity:   info.CapacityB,
			Allocation: info.AllocationB,
			Available:  info.AvailableB,
		})
	}
	return resources, nil
}

// CreateCluster 在存储资源上部署集群
//
// 参数和前置条件在产生任何副作用之前检查。部署过程中的每一步都记录在部署记录中，
// 失败时不回滚，已创建的网络、虚拟机和部分组建的卷需要根据部署记录人工清理。
func (s *ProvisionService) CreateCluster(ctx context.Context, req *entity.CreateClusterRequest) (*entity.CreateClusterResponse, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Strs("storage_resource_ids", req.StorageResourceIDs).
		Str("layout", string(req.Layout)).
		Int("redundancy", req.Redundancy).
		Msg("Creating storage cluster")

	if req.VLAN < 0 || req.VLAN > maxVLAN {
		return nil, apierror.WrapError(apierror.ErrInvalidParameter, fmt.Sprintf("Invalid VLAN %d", req.VLAN), nil)
	}

	resources, err := s.resolveResources(ctx, req.StorageResourceIDs)
	if err != nil {
		return nil, err
	}

	topology, ok := s.planner.Lookup(len(resources), req.Layout, req.Redundancy)
	if !ok {
		return nil, toAPIError(fmt.Errorf("%w: %s with redundancy %d on %d nodes",
			ErrUnsupportedTopology, req.Layout, req.Redundancy, len(resources)), "Unsupported topology")
	}
	if s.planner.BrickSize(resources) == 0 {
		return nil, apierror.WrapError(apierror.ErrInvalidParameter,
			"Storage resources do not have enough free space for a node", nil)
	}

	if err := s.checkPrerequisites(ctx, resources); err != nil {
		return nil, toAPIError(err, "Prerequisite check failed")
	}

	backend, err := s.idGen.GenerateBackendID()
	if err != nil {
		return nil, apierror.WrapError(apierror.ErrInternalError, "Failed to generate backend ID", err)
	}
	deploymentID, err := s.idGen.GenerateDeploymentID()
	if err != nil {
		return nil, apierror.WrapError(apierror.ErrInternalError, "Failed to generate deployment ID", err)
	}
	if err := s.deployments.Create(ctx, deploymentID, backend); err != nil {
		return nil, apierror.WrapError(apierror.ErrInternalError, "Failed to create deployment record", err)
	}

	ctx = logger.With().Str("backend", backend).Str("deployment_id", deploymentID).Logger().WithContext(ctx)
	zerolog.Ctx(ctx).Info().Msg("Deployment started")

	var cfg *entity.ClusterConfig
	lockIDs := lo.Map(req.StorageResourceIDs, func(id string, _ int) string {
		return "pool-" + strings.ReplaceAll(id, "/", "_")
	})
	sort.Strings(lockIDs)
	err = s.withLocks(ctx, lockIDs, func() error {
		var err error
		cfg, err = s.provision(ctx, deploymentID, backend, resources, topology, req.VLAN)
		return err
	})

	if finishErr := s.deployments.Finish(ctx, deploymentID, err); finishErr != nil {
		zerolog.Ctx(ctx).Warn().Err(finishErr).Msg("Failed to record deployment result")
	}
	metrics.ObserveCluster(string(topology.Layout), err)

	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Deployment failed, provisioned resources are left in place")
		return nil, toAPIError(err, fmt.Sprintf("Failed to create cluster %s, see deployment %s", backend, deploymentID))
	}

	zerolog.Ctx(ctx).Info().Msg("Storage cluster created")
	return &entity.CreateClusterResponse{Cluster: cfg, DeploymentID: deploymentID}, nil
}

// checkPrerequisites 检查宿主机连接和黄金模板
func (s *ProvisionService) checkPrerequisites(ctx context.Context, resources []entity.StorageResource) error {
	for _, host := range lo.Uniq(lo.Map(resources, func(r entity.StorageResource, _ int) string { return r.Host })) {
		if err := s.hypervisor.Ping(ctx, host); err != nil {
			return fmt.Errorf("%w: host %s is not reachable: %v", ErrPrerequisiteMissing, host, err)
		}
	}
	if s.authorizedKey == "" {
		return fmt.Errorf("%w: service key is not loaded", ErrPrerequisiteMissing)
	}
	_, err := s.nodes.templateImage(ctx)
	return err
}

// withLocks 依次获取 ids 对应的文件锁后执行 fn，ids 需要预先排序
func (s *ProvisionService) withLocks(ctx context.Context, ids []string, fn func() error) error {
	if len(ids) == 0 {
		return fn()
	}
	return metadata.WithLock(ctx, s.cfg.LockDir(), ids[0], s.cfg.Timeouts.Lock, func() error {
		return s.withLocks(ctx, ids[1:], fn)
	})
}

func (s *ProvisionService) provision(
	ctx context.Context,
	deploymentID string,
	backend string,
	resources []entity.StorageResource,
	topology entity.Topology,
	vlan int,
) (*entity.ClusterConfig, error) {
	pool, addrs, err := s.allocateAddresses(ctx, deploymentID, backend, resources)
	if err != nil {
		return nil, err
	}
	steps := newDeploymentSteps(s.deployments, deploymentID)

	var network *NetworkResult
	hosts := lo.Map(resources, func(r entity.StorageResource, _ int) string { return r.Host })
	if err := steps.Run(ctx, StepNetwork, func(ctx context.Context) error {
		var err error
		network, err = s.network.Provision(ctx, pool, hosts, vlan)
		return err
	}); err != nil {
		return nil, err
	}

	var nodes []entity.Node
	if err := steps.Run(ctx, StepNodes, func(ctx context.Context) error {
		var err error
		nodes, err = s.nodes.Provision(ctx, &NodeRequest{
			Backend:       backend,
			Resources:     resources,
			Network:       network.Name,
			Addresses:     lo.Map(addrs, func(a netip.Addr, _ int) netip.Prefix { return pool.WithBits(a) }),
			AuthorizedKey: s.authorizedKey,
		})
		return err
	}); err != nil {
		return nil, err
	}

	return s.assembler.Assemble(ctx, steps, &AssembleRequest{
		Backend:  backend,
		Nodes:    nodes,
		Network:  network.Name,
		Topology: topology,
	})
}

// allocateAddresses 在全局网络锁内为节点分配地址，释放锁之前写入部署记录
func (s *ProvisionService) allocateAddresses(
	ctx context.Context,
	deploymentID string,
	backend string,
	resources []entity.StorageResource,
) (*AddressPool, []netip.Addr, error) {
	var (
		pool  *AddressPool
		addrs []netip.Addr
	)
	err := metadata.WithLock(ctx, s.cfg.LockDir(), networkLockID, s.cfg.Timeouts.Lock, func() error {
		var err error
		pool, err = s.addressPool(ctx)
		if err != nil {
			return err
		}
		addrs, err = pool.Allocate(s.cfg.Network.NodeOffset, len(resources))
		if err != nil {
			return err
		}

		addresses := lo.Map(addrs, func(a netip.Addr, _ int) string { return a.String() })
		vms := lo.Map(resources, func(r entity.StorageResource, _ int) string { return NodeName(backend, r) })
		if err := s.deployments.SetResources(ctx, deploymentID, addresses, vms); err != nil {
			return fmt.Errorf("record allocated addresses: %w", err)
		}
		zerolog.Ctx(ctx).Info().Strs("addresses", addresses).Strs("vms", vms).Msg("Node addresses allocated")
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return pool, addrs, nil
}

// addressPool 创建存储网络地址池
// 宿主机网桥地址、已有集群节点的地址以及运行中和失败的部署占用的地址被预留
func (s *ProvisionService) addressPool(ctx context.Context) (*AddressPool, error) {
	pool, err := NewAddressPool(s.cfg.Network.Prefix())
	if err != nil {
		return nil, err
	}

	for index := range s.hypervisor.Hosts() {
		if addr, err := pool.Nth(s.cfg.Network.HostOffset + index); err == nil {
			pool.Reserve(addr)
		}
	}

	existing, err := s.clusters.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list existing clusters: %w", err)
	}
	for _, cluster := range existing {
		for _, node := range cluster.Nodes {
			if addr, err := netip.ParseAddr(node.Address()); err == nil {
				pool.Reserve(addr)
			}
		}
	}

	reserved, err := s.deployments.ReservedAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reserved addresses: %w", err)
	}
	for _, address := range reserved {
		if addr, err := netip.ParseAddr(address); err == nil {
			pool.Reserve(addr)
		}
	}
	return pool, nil
}

// DescribeClusters 查询集群配置
func (s *ProvisionService) DescribeClusters(ctx context.Context, req *entity.DescribeClustersRequest) (*entity.DescribeClustersResponse, error) {
	clusters, err := s.clusters.List(ctx, req.Backends)
	if err != nil {
		return nil, toAPIError(err, "Failed to list clusters")
	}
	return &entity.DescribeClustersResponse{Clusters: clusters}, nil
}

// DescribeVolume 查询集群的卷信息
func (s *ProvisionService) DescribeVolume(ctx context.Context, req *entity.DescribeVolumeRequest) (*entity.VolumeInfo, error) {
	info, err := s.inspector.Inspect(ctx, req.Backend)
	if err != nil {
		return nil, toAPIError(err, fmt.Sprintf("Failed to describe volume of %s", req.Backend))
	}
	return info, nil
}

// ListPeers 查询集群的存储池成员
func (s *ProvisionService) ListPeers(ctx context.Context, req *entity.ListPeersRequest) (*entity.ListPeersResponse, error) {
	peers, err := s.inspector.ListPeers(ctx, req.Backend, req.Address)
	if err != nil {
		return nil, toAPIError(err, fmt.Sprintf("Failed to list peers of %s", req.Backend))
	}
	return &entity.ListPeersResponse{Peers: peers}, nil
}

// DescribeDeployment 查询部署进度
func (s *ProvisionService) DescribeDeployment(ctx context.Context, req *entity.DescribeDeploymentRequest) (*entity.Deployment, error) {
	deployment, err := s.deployments.Get(ctx, req.DeploymentID)
	if err != nil {
		return nil, toAPIError(err, fmt.Sprintf("Failed to describe deployment %s", req.DeploymentID))
	}
	return deployment, nil
}
