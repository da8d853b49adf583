package ec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestECSysOpenFailsWithoutWriteSupportParam(t *testing.T) {
	// The test sandbox has no /sys/module/ec_sys/parameters/write_support,
	// so ecSysWriteSupportEnabled must report false and Open must refuse
	// rather than silently opening a write-dead backend.
	assert.False(t, ecSysWriteSupportEnabled())

	e := NewECSys()
	err := e.Open()
	assert.Error(t, err)
}
