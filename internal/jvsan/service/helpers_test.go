package service

import (
	"net"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/jimyag/jvsan/internal/jvsan/config"
	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/jimyag/jvsan/internal/jvsan/planner"
	"github.com/jimyag/jvsan/internal/jvsan/repository"
	"github.com/stretchr/testify/require"
)

const gib = uint64(1) << 30

func setupTestRepository(t *testing.T) (repository.ClusterRepository, repository.DeploymentRepository) {
	t.Helper()

	repo, err := repository.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repository.NewClusterRepository(repo.DB()), repository.NewDeploymentRepository(repo.DB())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	_, cidr, err := net.ParseCIDR("172.31.100.0/24")
	require.NoError(t, err)

	dataDir := t.TempDir()
	return &config.Config{
		DataDir: dataDir,
		Hosts: map[string]string{
			"kvm1": "qemu+ssh://root@kvm1/system",
			"kvm2": "qemu+ssh://root@kvm2/system",
			"kvm3": "qemu+ssh://root@kvm3/system",
		},
		Template: config.TemplateConfig{
			ImagePath:    filepath.Join(dataDir, "xosan.qcow2"),
			Network:      "default",
			MemoryMiB:    2048,
			VCPUs:        2,
			DataDiskSize: gib,
		},
		Network: config.NetworkConfig{
			Name:       "jvsan-storage",
			Bridge:     "jvsanbr0",
			Parent:     "eth0",
			VLAN:       100,
			MTU:        9000,
			CIDR:       *cidr,
			HostOffset: 1,
			NodeOffset: 101,
		},
		Gluster: config.GlusterConfig{VolumeName: "xosan"},
		Timeouts: config.TimeoutConfig{
			Boot:         time.Second,
			PollInterval: 10 * time.Millisecond,
			Lock:         time.Second,
			Command:      time.Second,
		},
		Planner: planner.DefaultParams(),
	}
}

func testResources(hosts ...string) []entity.StorageResource {
	resources := make([]entity.StorageResource, 0, len(hosts))
	for _, host := range hosts {
		resources = append(resources, entity.StorageResource{
			ID:        entity.StorageResourceID(host, "default"),
			Host:      host,
			Pool:      "default",
			Capacity:  100 * gib,
			Available: 100 * gib,
		})
	}
	return resources
}

func testNodes() []entity.Node {
	return []entity.Node{
		{Host: "kvm1", Pool: "default", VM: entity.VMRef{ID: "uuid-1", Name: "jvsan-1-default-kvm1", IP: "172.31.100.101"}},
		{Host: "kvm2", Pool: "default", VM: entity.VMRef{ID: "uuid-2", Name: "jvsan-1-default-kvm2", IP: "172.31.100.102"}},
		{Host: "kvm3", Pool: "default", VM: entity.VMRef{ID: "uuid-3", Name: "jvsan-1-default-kvm3", IP: "172.31.100.103"}},
	}
}

func mustPrefix(s string) netip.Prefix {
	return netip.MustParsePrefix(s)
}
