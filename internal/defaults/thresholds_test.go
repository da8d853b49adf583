package defaults

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForSelectsModernByDefault(t *testing.T) {
	assert.Equal(t, Modern, For(false))
}

func TestForSelectsLegacyWhenRequested(t *testing.T) {
	assert.Equal(t, Legacy, For(true))
}
