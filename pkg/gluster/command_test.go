package gluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeCreate(t *testing.T) {
	t.Parallel()

	addresses := []string{"172.31.100.101", "172.31.100.102", "172.31.100.103"}

	testcases := []struct {
		name       string
		layout     Layout
		redundancy int
		addresses  []string
		expect     string
		expectErr  bool
	}{
		{
			name:       "disperse",
			layout:     LayoutDisperse,
			redundancy: 1,
			addresses:  addresses,
			expect: "gluster volume create xosan disperse 3 redundancy 1 " +
				"172.31.100.101:/bricks/xosan/xosandir 172.31.100.102:/bricks/xosan/xosandir 172.31.100.103:/bricks/xosan/xosandir force",
		},
		{
			name:       "replica",
			layout:     LayoutReplica,
			redundancy: 3,
			addresses:  addresses,
			expect: "gluster volume create xosan replica 3 " +
				"172.31.100.101:/bricks/xosan/xosandir 172.31.100.102:/bricks/xosan/xosandir 172.31.100.103:/bricks/xosan/xosandir force",
		},
		{name: "no address", layout: LayoutReplica, redundancy: 2, expectErr: true},
		{name: "unknown layout", layout: "stripe", redundancy: 1, addresses: addresses, expectErr: true},
		{name: "zero redundancy", layout: LayoutDisperse, redundancy: 0, addresses: addresses, expectErr: true},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cmd, err := VolumeCreate("xosan", tc.layout, tc.redundancy, tc.addresses, "")
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expect, cmd)
		})
	}
}

func TestDefaultTuning(t *testing.T) {
	t.Parallel()

	disperse := DefaultTuning(LayoutDisperse)
	replica := DefaultTuning(LayoutReplica)

	require.Len(t, replica, len(disperse)+1)
	assert.Equal(t, Option{Key: "network.remote-dio", Value: "enable"}, disperse[0])
	assert.Equal(t, Option{Key: "cluster.data-self-heal", Value: "on"}, replica[len(replica)-1])
	assert.Equal(t, disperse, replica[:len(disperse)])
}

func TestWithLayoutTuning(t *testing.T) {
	t.Parallel()

	shard := Option{Key: "features.shard", Value: "on"}
	selfHeal := Option{Key: "cluster.data-self-heal", Value: "on"}

	testcases := []struct {
		name    string
		options []Option
		layout  Layout
		expect  []Option
	}{
		{name: "disperse unchanged", options: []Option{shard}, layout: LayoutDisperse, expect: []Option{shard}},
		{name: "replica appends self heal", options: []Option{shard}, layout: LayoutReplica, expect: []Option{shard, selfHeal}},
		{
			name:    "replica keeps configured value",
			options: []Option{{Key: "cluster.data-self-heal", Value: "off"}},
			layout:  LayoutReplica,
			expect:  []Option{{Key: "cluster.data-self-heal", Value: "off"}},
		},
		{name: "empty replica", layout: LayoutReplica, expect: []Option{selfHeal}},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			options := append([]Option(nil), tc.options...)
			assert.Equal(t, tc.expect, WithLayoutTuning(options, tc.layout))
			assert.Equal(t, tc.options, options)
		})
	}
}

func TestSimpleCommands(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gluster peer probe 172.31.100.102", PeerProbe("172.31.100.102"))
	assert.Equal(t, "gluster volume set xosan features.shard on", VolumeSet("xosan", Option{Key: "features.shard", Value: "on"}))
	assert.Equal(t, "gluster volume start xosan", VolumeStart("xosan"))
	assert.Equal(t, "gluster volume info xosan", VolumeInfo("xosan"))
	assert.Equal(t, "gluster pool list", PoolList())
}
