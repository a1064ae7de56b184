package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	_ "github.com/staffora/staffora/internal/testing/guard"
)

func TestInTestMode(t *testing.T) {
	assert.True(t, InTestMode(), "guard import enables test mode")

	t.Cleanup(RefreshTestMode)
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
