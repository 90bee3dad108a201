package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"testing"

	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/jimyag/jvsan/internal/jvsan/repository"
	"github.com/jimyag/jvsan/pkg/apierror"
	"github.com/jimyag/jvsan/pkg/libvirt"
	"github.com/jimyag/jvsan/pkg/neigh"
	"github.com/jimyag/jvsan/pkg/qemuimg"
	"github.com/jimyag/jvsan/pkg/sshexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testAuthorizedKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIB6NKuBnO5y1V5Dv6vjPdHmbMeTSUzGTyd2zBJ0LyImh jvsan"

type provisionFixture struct {
	service     *ProvisionService
	hv          *libvirt.MockClient
	images      *qemuimg.MockClient
	executor    *sshexec.MockExecutor
	clusters    repository.ClusterRepository
	deployments repository.DeploymentRepository
}

func setupProvision(t *testing.T) *provisionFixture {
	t.Helper()

	cfg := testConfig(t)
	clusters, deployments := setupTestRepository(t)
	f := &provisionFixture{
		hv:          new(libvirt.MockClient),
		images:      new(qemuimg.MockClient),
		executor:    new(sshexec.MockExecutor),
		clusters:    clusters,
		deployments: deployments,
	}
	f.hv.On("Hosts").Return([]string{"kvm1", "kvm2", "kvm3"})
	f.service = NewProvisionService(cfg, Dependencies{
		Hypervisor:    f.hv,
		Images:        f.images,
		Executor:      f.executor,
		Neighbors:     neigh.Static{},
		Clusters:      clusters,
		Deployments:   deployments,
		AuthorizedKey: testAuthorizedKey,
	})
	return f
}

// expectPools 每个存储资源在解析时读取一次容量
func (f *provisionFixture) expectPools(hosts ...string) {
	for _, host := range hosts {
		f.hv.On("GetStoragePool", mock.Anything, host, "default").
			Return(&libvirt.StoragePoolInfo{Host: host, Name: "default", CapacityB: 100 * gib, AvailableB: 100 * gib}, nil).Once()
	}
}

func assertAPIError(t *testing.T, err error, code string, status int) {
	t.Helper()

	var apiErr *apierror.Error
	require.True(t, errors.As(err, &apiErr), "%v", err)
	assert.Equal(t, code, apiErr.Code)
	assert.Equal(t, status, apiErr.Status())
}

func TestProvisionService_ComputeTopologies(t *testing.T) {
	t.Parallel()

	f := setupProvision(t)
	f.expectPools("kvm1", "kvm2", "kvm3")

	resp, err := f.service.ComputeTopologies(context.Background(), &entity.ComputeTopologiesRequest{
		StorageResourceIDs: []string{"kvm1/default", "kvm2/default", "kvm3/default"},
	})
	require.NoError(t, err)

	usable := float64(90 * gib)
	brickSize := uint64(usable * 0.99)
	assert.Equal(t, brickSize, resp.BrickSize)
	assert.Equal(t, []entity.TopologyOption{
		{Topology: entity.Topology{Layout: entity.LayoutDisperse, Redundancy: 1, CapacityMultiplier: 2}, AvailableSpace: 2 * brickSize},
		{Topology: entity.Topology{Layout: entity.LayoutReplica, Redundancy: 3, CapacityMultiplier: 1}, AvailableSpace: brickSize},
	}, resp.Options)
}

func TestProvisionService_ResolveResourcesInvalid(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name string
		ids  []string
	}{
		{name: "empty", ids: nil},
		{name: "duplicate", ids: []string{"kvm1/default", "kvm1/default"}},
		{name: "bad format", ids: []string{"kvm1"}},
		{name: "unknown host", ids: []string{"kvm9/default"}},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := setupProvision(t)
			_, err := f.service.ComputeTopologies(context.Background(), &entity.ComputeTopologiesRequest{StorageResourceIDs: tc.ids})
			assertAPIError(t, err, "InvalidParameter", http.StatusBadRequest)
			f.hv.AssertNotCalled(t, "GetStoragePool", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestProvisionService_CreateClusterRejected(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name         string
		req          *entity.CreateClusterRequest
		setup        func(f *provisionFixture)
		expectCode   string
		expectStatus int
	}{
		{
			name: "unsupported redundancy",
			req: &entity.CreateClusterRequest{
				StorageResourceIDs: []string{"kvm1/default", "kvm2/default", "kvm3/default"},
				Layout:             entity.LayoutReplica,
				Redundancy:         2,
			},
			setup:        func(f *provisionFixture) { f.expectPools("kvm1", "kvm2", "kvm3") },
			expectCode:   "UnsupportedTopology",
			expectStatus: http.StatusBadRequest,
		},
		{
			name: "single node",
			req: &entity.CreateClusterRequest{
				StorageResourceIDs: []string{"kvm1/default"},
				Layout:             entity.LayoutReplica,
				Redundancy:         1,
			},
			setup:        func(f *provisionFixture) { f.expectPools("kvm1") },
			expectCode:   "UnsupportedTopology",
			expectStatus: http.StatusBadRequest,
		},
		{
			name: "invalid vlan",
			req: &entity.CreateClusterRequest{
				StorageResourceIDs: []string{"kvm1/default", "kvm2/default"},
				Layout:             entity.LayoutReplica,
				Redundancy:         2,
				VLAN:               5000,
			},
			expectCode:   "InvalidParameter",
			expectStatus: http.StatusBadRequest,
		},
		{
			name: "host unreachable",
			req: &entity.CreateClusterRequest{
				StorageResourceIDs: []string{"kvm1/default", "kvm2/default"},
				Layout:             entity.LayoutReplica,
				Redundancy:         2,
			},
			setup: func(f *provisionFixture) {
				f.expectPools("kvm1", "kvm2")
				f.hv.On("Ping", mock.Anything, "kvm1").Return(nil)
				f.hv.On("Ping", mock.Anything, "kvm2").Return(errors.New("connection refused"))
			},
			expectCode:   "PrerequisiteMissing",
			expectStatus: http.StatusPreconditionFailed,
		},
		{
			name: "template missing",
			req: &entity.CreateClusterRequest{
				StorageResourceIDs: []string{"kvm1/default", "kvm2/default"},
				Layout:             entity.LayoutReplica,
				Redundancy:         2,
			},
			setup: func(f *provisionFixture) {
				f.expectPools("kvm1", "kvm2")
				f.hv.On("Ping", mock.Anything, mock.Anything).Return(nil)
				f.images.On("Info", mock.Anything, mock.Anything).Return(nil, errors.New("no such file or directory"))
			},
			expectCode:   "PrerequisiteMissing",
			expectStatus: http.StatusPreconditionFailed,
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := setupProvision(t)
			if tc.setup != nil {
				tc.setup(f)
			}

			_, err := f.service.CreateCluster(context.Background(), tc.req)
			assertAPIError(t, err, tc.expectCode, tc.expectStatus)

			// 拒绝的请求没有任何副作用
			f.hv.AssertNotCalled(t, "CreateHostInterface", mock.Anything, mock.Anything, mock.Anything)
			f.hv.AssertNotCalled(t, "ImportVM", mock.Anything, mock.Anything)
			f.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// expectDeployment 前置检查、网络和存储池的调用
func (f *provisionFixture) expectDeployment(hosts ...string) {
	f.expectPools(hosts...)
	f.hv.On("Ping", mock.Anything, mock.Anything).Return(nil)
	expectTemplateImage(f.images, f.service.cfg.Template.ImagePath)
	f.hv.On("CreateHostInterface", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.hv.On("CreateNetwork", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.hv.On("CreateGlusterPool", mock.Anything, mock.Anything).Return(nil)
}

func TestProvisionService_CreateCluster(t *testing.T) {
	t.Parallel()

	f := setupProvision(t)
	hosts := []string{"kvm1", "kvm2", "kvm3"}
	f.expectDeployment(hosts...)
	f.executor.On("Execute", mock.Anything, "172.31.100.101", mock.Anything).Return(sshexec.OK(""), nil)

	// 后端名称在调用前未知，节点相关的期望按名称前缀匹配
	f.hv.On("ImportVM", mock.Anything, mock.AnythingOfType("*libvirt.ImportSpec")).
		Return(&libvirt.VM{Host: "kvm1", Pool: "default", Name: "tmp-0", UUID: "uuid-1"}, nil)
	f.hv.On("CloneVM", mock.Anything, mock.MatchedBy(func(s *libvirt.CloneSpec) bool { return s.Host == "kvm2" })).
		Return(&libvirt.VM{Host: "kvm2", Pool: "default", Name: "tmp-1", UUID: "uuid-2"}, nil)
	f.hv.On("CloneVM", mock.Anything, mock.MatchedBy(func(s *libvirt.CloneSpec) bool { return s.Host == "kvm3" })).
		Return(&libvirt.VM{Host: "kvm3", Pool: "default", Name: "tmp-2", UUID: "uuid-3"}, nil)
	for i, host := range hosts {
		host := host
		tmpName := fmt.Sprintf("tmp-%d", i)
		address := fmt.Sprintf("172.31.100.%d", 101+i)
		final := mock.MatchedBy(func(vm *libvirt.VM) bool { return vm.Host == host && strings.HasPrefix(vm.Name, "jvsan-") })

		f.hv.On("GetVMInterface", mock.Anything, vmNamed(tmpName)).
			Return(&libvirt.NetworkInterface{MAC: fmt.Sprintf("52:54:00:00:00:%02x", i+1), Network: "jvsan-storage"}, nil)
		f.hv.On("RenameVM", mock.Anything, vmNamed(tmpName), mock.AnythingOfType("string"), mock.AnythingOfType("string")).
			Return(&libvirt.VM{Host: host, Pool: "default", Name: "jvsan-x-default-" + host, UUID: fmt.Sprintf("uuid-%d", i+1)}, nil)
		f.hv.On("AttachCloudInit", mock.Anything, final, mock.Anything).Return(nil)
		f.hv.On("GetStoragePool", mock.Anything, host, "default").
			Return(&libvirt.StoragePoolInfo{Host: host, Name: "default", AvailableB: 80 * gib}, nil)
		f.hv.On("GetDataDiskSize", mock.Anything, final).Return(gib, nil)
		f.hv.On("ResizeDataDisk", mock.Anything, final, mock.AnythingOfType("uint64")).Return(nil)
		f.hv.On("StartVM", mock.Anything, final).Return(nil)
		f.hv.On("GuestAddresses", mock.Anything, final).Return([]string{address}, nil)
	}

	resp, err := f.service.CreateCluster(context.Background(), &entity.CreateClusterRequest{
		StorageResourceIDs: []string{"kvm1/default", "kvm2/default", "kvm3/default"},
		Layout:             entity.LayoutDisperse,
		Redundancy:         1,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Cluster.Backend, "jvsan-"))
	assert.True(t, strings.HasPrefix(resp.DeploymentID, "dep-"))
	assert.Equal(t, entity.Topology{Layout: entity.LayoutDisperse, Redundancy: 1, CapacityMultiplier: 2}, resp.Cluster.Topology)
	require.Len(t, resp.Cluster.Nodes, 3)
	assert.Equal(t, "172.31.100.101", resp.Cluster.Nodes[0].VM.IP)
	assert.Equal(t, "uuid-3", resp.Cluster.Nodes[2].VM.ID)
	f.hv.AssertNotCalled(t, "SetVMNetwork", mock.Anything, mock.Anything, mock.Anything)

	stored, err := f.service.DescribeClusters(context.Background(), &entity.DescribeClustersRequest{})
	require.NoError(t, err)
	require.Len(t, stored.Clusters, 1)
	assert.Equal(t, resp.Cluster.Backend, stored.Clusters[0].Backend)

	deployment, err := f.service.DescribeDeployment(context.Background(), &entity.DescribeDeploymentRequest{DeploymentID: resp.DeploymentID})
	require.NoError(t, err)
	assert.Equal(t, entity.DeploymentSucceeded, deployment.State)
	names := make([]string, 0, len(deployment.Steps))
	for _, step := range deployment.Steps {
		names = append(names, step.Name)
	}
	assert.Equal(t, []string{StepNetwork, StepNodes, StepPeerProbe, StepVolumeCreate, StepVolumeTuning, StepVolumeStart, StepStoragePool, StepPersist}, names)

	// 第二次部署时已有节点的地址被预留
	pool, err := f.service.addressPool(context.Background())
	require.NoError(t, err)
	addrs, err := pool.Allocate(101, 1)
	require.NoError(t, err)
	assert.Equal(t, "172.31.100.104", addrs[0].String())
}

func TestProvisionService_CreateClusterRemoteFailure(t *testing.T) {
	t.Parallel()

	f := setupProvision(t)
	f.expectDeployment("kvm1", "kvm2")
	resources := testResources("kvm1", "kvm2")

	f.hv.On("ImportVM", mock.Anything, mock.Anything).Return(&libvirt.VM{Host: "kvm1", Pool: "default", Name: "tmp-0", UUID: "uuid-1"}, nil)
	f.hv.On("CloneVM", mock.Anything, mock.Anything).Return(&libvirt.VM{Host: "kvm2", Pool: "default", Name: "tmp-1", UUID: "uuid-2"}, nil)
	for i, resource := range resources {
		tmpName := []string{"tmp-0", "tmp-1"}[i]
		address := []string{"172.31.100.101", "172.31.100.102"}[i]
		host := resource.Host
		final := mock.MatchedBy(func(vm *libvirt.VM) bool { return vm.Host == host && vm.Name != tmpName })

		f.hv.On("GetVMInterface", mock.Anything, vmNamed(tmpName)).Return(&libvirt.NetworkInterface{Network: "jvsan-storage"}, nil)
		f.hv.On("RenameVM", mock.Anything, vmNamed(tmpName), mock.Anything, mock.Anything).
			Return(&libvirt.VM{Host: host, Pool: "default", Name: "final-" + host}, nil)
		f.hv.On("AttachCloudInit", mock.Anything, final, mock.Anything).Return(nil)
		f.hv.On("GetStoragePool", mock.Anything, host, "default").Return(&libvirt.StoragePoolInfo{AvailableB: 80 * gib}, nil)
		f.hv.On("GetDataDiskSize", mock.Anything, final).Return(gib, nil)
		f.hv.On("ResizeDataDisk", mock.Anything, final, mock.Anything).Return(nil)
		f.hv.On("StartVM", mock.Anything, final).Return(nil)
		f.hv.On("GuestAddresses", mock.Anything, final).Return([]string{address}, nil)
	}

	f.executor.On("Execute", mock.Anything, "172.31.100.101", "gluster peer probe 172.31.100.102").Return(sshexec.OK(""), nil)
	f.executor.On("Execute", mock.Anything, "172.31.100.101", mock.MatchedBy(func(cmd string) bool {
		return strings.HasPrefix(cmd, "gluster volume create")
	})).Return(sshexec.Failed(1, "volume create: xosan: failed: /bricks/xosan/xosandir is already part of a volume\n"), nil)

	_, err := f.service.CreateCluster(context.Background(), &entity.CreateClusterRequest{
		StorageResourceIDs: []string{"kvm1/default", "kvm2/default"},
		Layout:             entity.LayoutReplica,
		Redundancy:         2,
	})
	assertAPIError(t, err, "RemoteCommandFailure", http.StatusBadGateway)
	assert.Contains(t, err.Error(), "is already part of a volume")
	assert.Contains(t, err.Error(), "see deployment dep-")
	deploymentID := regexp.MustCompile(`dep-\d+`).FindString(err.Error())
	require.NotEmpty(t, deploymentID)

	var remoteErr *RemoteCommandError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, 1, remoteErr.ExitStatus)

	clusters, err := f.clusters.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, clusters)
	f.hv.AssertNotCalled(t, "CreateGlusterPool", mock.Anything, mock.Anything)

	deployment, err := f.deployments.Get(context.Background(), deploymentID)
	require.NoError(t, err)
	assert.Equal(t, entity.DeploymentFailed, deployment.State)
	assert.Equal(t, []string{"172.31.100.101", "172.31.100.102"}, deployment.Addresses)
	require.Len(t, deployment.VMs, 2)
	assert.True(t, strings.HasSuffix(deployment.VMs[0], "-default-kvm1"))

	// 失败的部署不回滚，节点仍然持有地址
	pool, err := f.service.addressPool(context.Background())
	require.NoError(t, err)
	addrs, err := pool.Allocate(101, 1)
	require.NoError(t, err)
	assert.Equal(t, "172.31.100.103", addrs[0].String())
}

func TestProvisionService_AddressPool(t *testing.T) {
	t.Parallel()

	f := setupProvision(t)
	ctx := context.Background()

	require.NoError(t, f.deployments.Create(ctx, "dep-1", "jvsan-1"))
	require.NoError(t, f.deployments.SetResources(ctx, "dep-1",
		[]string{"172.31.100.101", "172.31.100.102"},
		[]string{"jvsan-1-default-kvm1", "jvsan-1-default-kvm2"}))
	require.NoError(t, f.deployments.Create(ctx, "dep-2", "jvsan-2"))
	require.NoError(t, f.deployments.SetResources(ctx, "dep-2", []string{"172.31.100.103"}, []string{"jvsan-2-default-kvm3"}))
	require.NoError(t, f.deployments.Finish(ctx, "dep-2", nil))

	pool, err := f.service.addressPool(ctx)
	require.NoError(t, err)

	// 运行中的部署已经分配的地址被预留，成功的部署由集群记录负责
	addrs, err := pool.Allocate(101, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"172.31.100.103", "172.31.100.104"}, []string{addrs[0].String(), addrs[1].String()})

	// 所有宿主机的网桥地址都被预留
	addrs, err = pool.Allocate(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "172.31.100.4", addrs[0].String())
}

func TestProvisionService_AllocateAddresses(t *testing.T) {
	t.Parallel()

	f := setupProvision(t)
	ctx := context.Background()
	resources := testResources("kvm1", "kvm2")

	require.NoError(t, f.deployments.Create(ctx, "dep-1", "jvsan-1"))
	require.NoError(t, f.deployments.Create(ctx, "dep-2", "jvsan-2"))

	_, first, err := f.service.allocateAddresses(ctx, "dep-1", "jvsan-1", resources)
	require.NoError(t, err)
	_, second, err := f.service.allocateAddresses(ctx, "dep-2", "jvsan-2", resources[:1])
	require.NoError(t, err)

	assert.Equal(t, "172.31.100.101", first[0].String())
	assert.Equal(t, "172.31.100.102", first[1].String())
	assert.Equal(t, "172.31.100.103", second[0].String())

	deployment, err := f.deployments.Get(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"172.31.100.101", "172.31.100.102"}, deployment.Addresses)
	assert.Equal(t, []string{"jvsan-1-default-kvm1", "jvsan-1-default-kvm2"}, deployment.VMs)
}
