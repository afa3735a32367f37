//go:build !opencl

package opencl_test

import (
	"testing"

	"github.com/gomlx/clvec/compute"
	"github.com/gomlx/clvec/compute/opencl"
	"github.com/stretchr/testify/require"
)

func TestNotRegisteredWithoutTag(t *testing.T) {
	_, err := compute.GetPlatform(opencl.PlatformName)
	require.True(t, compute.IsStatus(err, compute.PlatformNotFoundKHR))
}
