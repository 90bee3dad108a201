package libvirt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGuestAddresses(t *testing.T) {
	t.Parallel()

	reply := `{"return":[
		{"name":"lo","hardware-address":"00:00:00:00:00:00","ip-addresses":[
			{"ip-address-type":"ipv4","ip-address":"127.0.0.1","prefix":8},
			{"ip-address-type":"ipv6","ip-address":"::1","prefix":128}]},
		{"name":"storage0","hardware-address":"52:54:00:ab:cd:ef","ip-addresses":[
			{"ip-address-type":"ipv4","ip-address":"172.31.100.102","prefix":24},
			{"ip-address-type":"ipv6","ip-address":"fe80::5054:ff:feab:cdef","prefix":64}]},
		{"name":"eth1","hardware-address":"52:54:00:00:00:01","ip-addresses":[
			{"ip-address-type":"ipv4","ip-address":"10.0.0.5","prefix":24}]},
		{"name":"eth2","hardware-address":"52:54:00:00:00:02"}
	]}`

	addresses, err := parseGuestAddresses(reply)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.5", "172.31.100.102"}, addresses)
}

func TestParseGuestAddresses_Invalid(t *testing.T) {
	t.Parallel()

	_, err := parseGuestAddresses("not json")
	assert.Error(t, err)

	addresses, err := parseGuestAddresses(`{"return":[]}`)
	require.NoError(t, err)
	assert.Empty(t, addresses)
}
