package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jimyag/jvsan/pkg/libvirt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNetworkProvisioner_Provision(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name         string
		hosts        []string
		vlan         int
		expectVLAN   int
		expectByHost map[string]string
	}{
		{
			name:         "config vlan",
			hosts:        []string{"kvm1", "kvm2", "kvm3"},
			expectVLAN:   100,
			expectByHost: map[string]string{"kvm1": "172.31.100.1/24", "kvm2": "172.31.100.2/24", "kvm3": "172.31.100.3/24"},
		},
		{
			name:         "request vlan and repeated host",
			hosts:        []string{"kvm3", "kvm1", "kvm3"},
			vlan:         200,
			expectVLAN:   200,
			expectByHost: map[string]string{"kvm1": "172.31.100.1/24", "kvm3": "172.31.100.3/24"},
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig(t)
			hv := new(libvirt.MockClient)
			hv.On("Hosts").Return([]string{"kvm1", "kvm2", "kvm3"})
			for host, address := range tc.expectByHost {
				hv.On("CreateHostInterface", mock.Anything, host, &libvirt.HostInterfaceSpec{
					Bridge:  "jvsanbr0",
					Parent:  "eth0",
					VLAN:    tc.expectVLAN,
					MTU:     9000,
					Address: mustPrefix(address),
				}).Return(nil).Once()
				hv.On("CreateNetwork", mock.Anything, host, &libvirt.NetworkSpec{Name: "jvsan-storage", Bridge: "jvsanbr0"}).
					Return(nil).Once()
			}

			pool, err := NewAddressPool(cfg.Network.Prefix())
			require.NoError(t, err)

			result, err := NewNetworkProvisioner(hv, cfg.Network).Provision(context.Background(), pool, tc.hosts, tc.vlan)
			require.NoError(t, err)

			assert.Equal(t, "jvsan-storage", result.Name)
			got := make(map[string]string, len(result.HostAddresses))
			for host, address := range result.HostAddresses {
				got[host] = address.String()
			}
			assert.Equal(t, tc.expectByHost, got)
			hv.AssertExpectations(t)

			// 宿主机地址不会再分配给节点
			addrs, err := pool.Allocate(1, 1)
			require.NoError(t, err)
			for _, address := range got {
				assert.NotEqual(t, address, pool.WithBits(addrs[0]).String())
			}
		})
	}
}

func TestNetworkProvisioner_ProvisionFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	hv := new(libvirt.MockClient)
	hv.On("Hosts").Return([]string{"kvm1", "kvm2"})
	hv.On("CreateHostInterface", mock.Anything, "kvm1", mock.Anything).Return(nil)
	hv.On("CreateNetwork", mock.Anything, "kvm1", mock.Anything).Return(nil)
	hv.On("CreateHostInterface", mock.Anything, "kvm2", mock.Anything).Return(errors.New("interface eth0 not found"))

	pool, err := NewAddressPool(cfg.Network.Prefix())
	require.NoError(t, err)

	_, err = NewNetworkProvisioner(hv, cfg.Network).Provision(context.Background(), pool, []string{"kvm1", "kvm2"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kvm2")
	hv.AssertNotCalled(t, "CreateNetwork", mock.Anything, "kvm2", mock.Anything)
}

func TestNetworkProvisioner_UnknownHost(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	hv := new(libvirt.MockClient)
	hv.On("Hosts").Return([]string{"kvm1"})

	pool, err := NewAddressPool(cfg.Network.Prefix())
	require.NoError(t, err)

	_, err = NewNetworkProvisioner(hv, cfg.Network).Provision(context.Background(), pool, []string{"kvm9"}, 0)
	assert.Error(t, err)
	hv.AssertNotCalled(t, "CreateHostInterface", mock.Anything, mock.Anything, mock.Anything)
}

func TestNetworkProvisioner_Untagged(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Network.VLAN = 0
	hv := new(libvirt.MockClient)
	hv.On("Hosts").Return([]string{"kvm1"})

	pool, err := NewAddressPool(cfg.Network.Prefix())
	require.NoError(t, err)

	_, err = NewNetworkProvisioner(hv, cfg.Network).Provision(context.Background(), pool, []string{"kvm1"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VLAN")
	hv.AssertNotCalled(t, "CreateHostInterface", mock.Anything, mock.Anything, mock.Anything)
}
