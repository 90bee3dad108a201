package libvirt

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libvirt.org/go/libvirtxml"
)

func testImportSpec() *ImportSpec {
	return &ImportSpec{
		Host:         "host1",
		Pool:         "default",
		Name:         "jvsan-template",
		Image:        Image{Path: "/var/lib/jvsan/template.qcow2", Format: "qcow2", VirtualSize: 10 << 30},
		DataDiskSize: 1 << 30,
		MemoryMiB:    2048,
		VCPUs:        2,
		Network:      "default",
	}
}

func TestBuildDomainXML(t *testing.T) {
	t.Parallel()

	out, err := buildDomainXML(testImportSpec())
	require.NoError(t, err)

	domain := &libvirtxml.Domain{}
	require.NoError(t, domain.Unmarshal(out))
	assert.Equal(t, "jvsan-template", domain.Name)
	assert.Equal(t, uint(2048), domain.Memory.Value)
	assert.Equal(t, "MiB", domain.Memory.Unit)
	assert.Equal(t, uint(2), domain.VCPU.Value)

	require.Len(t, domain.Devices.Disks, 2)
	assert.Equal(t, SystemDiskDev, domain.Devices.Disks[0].Target.Dev)
	assert.Equal(t, "jvsan-template-system", domain.Devices.Disks[0].Source.Volume.Volume)
	assert.Equal(t, DataDiskDev, domain.Devices.Disks[1].Target.Dev)
	assert.Equal(t, "jvsan-template-data", domain.Devices.Disks[1].Source.Volume.Volume)

	require.Len(t, domain.Devices.Interfaces, 1)
	assert.Equal(t, "default", domain.Devices.Interfaces[0].Source.Network.Network)
}

func TestBuildDomainXML_Invalid(t *testing.T) {
	t.Parallel()

	spec := testImportSpec()
	spec.Pool = ""
	_, err := buildDomainXML(spec)
	assert.Error(t, err)
}

func TestCloneDomainXML(t *testing.T) {
	t.Parallel()

	src, err := buildDomainXML(testImportSpec())
	require.NoError(t, err)
	src, err = setCloudInitDisk(src, "default", "jvsan-template-cloudinit.iso")
	require.NoError(t, err)

	domain := &libvirtxml.Domain{}
	require.NoError(t, domain.Unmarshal(src))
	domain.UUID = "0b2c4f8e-9a11-4e33-8f0d-4b1c2d3e4f50"
	domain.Devices.Interfaces[0].MAC = &libvirtxml.DomainInterfaceMAC{Address: "52:54:00:ab:cd:ef"}
	src, err = domain.Marshal()
	require.NoError(t, err)

	out, err := cloneDomainXML(src, "jvsan-clone", "ssd")
	require.NoError(t, err)

	clone := &libvirtxml.Domain{}
	require.NoError(t, clone.Unmarshal(out))
	assert.Equal(t, "jvsan-clone", clone.Name)
	assert.Empty(t, clone.UUID)
	require.Len(t, clone.Devices.Disks, 2)
	assert.Equal(t, "ssd", clone.Devices.Disks[0].Source.Volume.Pool)
	assert.Equal(t, "jvsan-clone-system", clone.Devices.Disks[0].Source.Volume.Volume)
	assert.Equal(t, "jvsan-clone-data", clone.Devices.Disks[1].Source.Volume.Volume)
	assert.Nil(t, clone.Devices.Interfaces[0].MAC)
}

func TestDomainInterfaceAndNetwork(t *testing.T) {
	t.Parallel()

	src, err := buildDomainXML(testImportSpec())
	require.NoError(t, err)

	domain := &libvirtxml.Domain{}
	require.NoError(t, domain.Unmarshal(src))
	domain.Devices.Interfaces[0].MAC = &libvirtxml.DomainInterfaceMAC{Address: "52:54:00:AB:CD:EF"}
	src, err = domain.Marshal()
	require.NoError(t, err)

	iface, err := domainInterface(src)
	require.NoError(t, err)
	assert.Equal(t, &NetworkInterface{MAC: "52:54:00:ab:cd:ef", Network: "default"}, iface)

	moved, err := setInterfaceNetwork(src, "jvsan-storage")
	require.NoError(t, err)
	iface, err = domainInterface(moved)
	require.NoError(t, err)
	assert.Equal(t, "jvsan-storage", iface.Network)
	assert.Equal(t, "52:54:00:ab:cd:ef", iface.MAC)
}

func TestSetCloudInitDisk_Idempotent(t *testing.T) {
	t.Parallel()

	src, err := buildDomainXML(testImportSpec())
	require.NoError(t, err)

	once, err := setCloudInitDisk(src, "default", "a.iso")
	require.NoError(t, err)
	twice, err := setCloudInitDisk(once, "default", "b.iso")
	require.NoError(t, err)

	pool, volume, err := diskVolume(twice, CloudInitDev)
	require.NoError(t, err)
	assert.Equal(t, "default", pool)
	assert.Equal(t, "b.iso", volume)

	domain := &libvirtxml.Domain{}
	require.NoError(t, domain.Unmarshal(twice))
	assert.Len(t, domain.Devices.Disks, 3)
}

func TestDiskVolume_Missing(t *testing.T) {
	t.Parallel()

	src, err := buildDomainXML(testImportSpec())
	require.NoError(t, err)

	_, _, err = diskVolume(src, "vdz")
	assert.Error(t, err)
}

func TestBuildHostInterfaceXML(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name      string
		spec      HostInterfaceSpec
		contains  []string
		absent    []string
		expectErr bool
	}{
		{
			name: "vlan",
			spec: HostInterfaceSpec{
				Bridge:  "jvsanbr0",
				Parent:  "eth0",
				VLAN:    100,
				MTU:     9000,
				Address: netip.MustParsePrefix("172.31.100.1/24"),
			},
			contains: []string{
				`<interface type="bridge" name="jvsanbr0">`,
				`<mtu size="9000"></mtu>`,
				`<ip address="172.31.100.1" prefix="24"></ip>`,
				`<interface type="vlan" name="eth0.100">`,
				`<vlan tag="100">`,
				`<interface name="eth0"></interface>`,
			},
		},
		{
			name: "untagged",
			spec: HostInterfaceSpec{Bridge: "jvsanbr0", Parent: "eth1"},
			contains: []string{
				`<interface type="ethernet" name="eth1">`,
			},
			absent: []string{"<vlan", "<mtu", "<protocol"},
		},
		{name: "no parent", spec: HostInterfaceSpec{Bridge: "jvsanbr0"}, expectErr: true},
		{name: "bad vlan", spec: HostInterfaceSpec{Bridge: "b", Parent: "eth0", VLAN: 4095}, expectErr: true},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out, err := buildHostInterfaceXML(&tc.spec)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, s := range tc.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tc.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestBuildNetworkXML(t *testing.T) {
	t.Parallel()

	out, err := buildNetworkXML(&NetworkSpec{Name: "jvsan-storage", Bridge: "jvsanbr0"})
	require.NoError(t, err)

	network := &libvirtxml.Network{}
	require.NoError(t, network.Unmarshal(out))
	assert.Equal(t, "jvsan-storage", network.Name)
	assert.Equal(t, "bridge", network.Forward.Mode)
	assert.Equal(t, "jvsanbr0", network.Bridge.Name)

	_, err = buildNetworkXML(&NetworkSpec{Name: "x"})
	assert.Error(t, err)
}

func TestBuildGlusterPoolXML(t *testing.T) {
	t.Parallel()

	out, err := buildGlusterPoolXML(&GlusterPoolSpec{Name: "jvsan-1", Server: "172.31.100.101", Volume: "xosan"})
	require.NoError(t, err)

	pool := &libvirtxml.StoragePool{}
	require.NoError(t, pool.Unmarshal(out))
	assert.Equal(t, "gluster", pool.Type)
	assert.Equal(t, "xosan", pool.Source.Name)
	require.Len(t, pool.Source.Host, 1)
	assert.Equal(t, "172.31.100.101", pool.Source.Host[0].Name)
}

func TestVolumeXMLAndFormat(t *testing.T) {
	t.Parallel()

	out, err := buildVolumeXML("vm-data", "", 1<<30)
	require.NoError(t, err)
	assert.Equal(t, "qcow2", volumeFormat(out))

	out, err = buildVolumeXML("vm.iso", "raw", 2048)
	require.NoError(t, err)
	assert.Equal(t, "raw", volumeFormat(out))

	assert.Equal(t, "raw", volumeFormat("<volume><name>x</name></volume>"))
}
