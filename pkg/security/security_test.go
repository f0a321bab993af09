package security_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oatfabric/shmdf/pkg/security"
)

func TestValidateAddressAcceptsPlainTokens(t *testing.T) {
	for _, addr := range []string{"camera-0", "viewer_1", "pipeline/stage.1", "a"} {
		require.NoError(t, security.ValidateAddress(addr), addr)
	}
}

func TestValidateAddressRejectsTraversalAndEmpty(t *testing.T) {
	for _, addr := range []string{"", "..", ".", "../escape", "a/../b", "bad char!", "has space"} {
		require.Error(t, security.ValidateAddress(addr), addr)
	}
}

func TestValidateDescriptorRejectsNonPositiveAndOversized(t *testing.T) {
	require.Error(t, security.ValidateDescriptor(0))
	require.Error(t, security.ValidateDescriptor(-1))
	require.Error(t, security.ValidateDescriptor(512<<20))
	require.NoError(t, security.ValidateDescriptor(1))
	require.NoError(t, security.ValidateDescriptor(4096))
}

func TestSecureChannelIsAnExplicitNoOp(t *testing.T) {
	require.NoError(t, security.SecureChannel("any-peer"))
}
