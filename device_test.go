package kgs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevices(t *testing.T) {
	devs := Devices()
	require.Len(t, devs, 1)

	dev := devs[0]
	assert.Equal(t, 0, dev.ID)
	assert.Contains(t, dev.Name, "CPU")
	assert.Greater(t, dev.NumCores, 0)
	assert.Greater(t, dev.GlobalMem, uint64(0))
	assert.Equal(t, 1024, dev.MaxWorkGroupSize)
}

func TestDeviceByID(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		dev, err := deviceByID("NewContext", 0)
		require.NoError(t, err)
		assert.Equal(t, 0, dev.ID)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		_, err := deviceByID("NewContext", 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDeviceNotFound)
		assert.Contains(t, err.Error(), "device ID 3")
	})

	t.Run("Negative", func(t *testing.T) {
		_, err := deviceByID("NewContext", -1)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	})
}
