//go:build unix

package privilege

import (
	"os"
	"os/user"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DropEmpty(t *testing.T) {
	assert.NoError(t, Drop(""))
}

func Test_DropNonRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root")
	}

	assert.NoError(t, Drop("nobody-that-does-not-exist"))
}

func Test_DropUnknownUser(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("needs root")
	}

	assert.Error(t, Drop("nobody-that-does-not-exist"))
}

func Test_IDs(t *testing.T) {
	uid, gid, err := ids(&user.User{Uid: "65534", Gid: "65533"})
	require.NoError(t, err)
	assert.Equal(t, 65534, uid)
	assert.Equal(t, 65533, gid)

	_, _, err = ids(&user.User{Uid: "x", Gid: "1"})
	assert.Error(t, err)

	_, _, err = ids(&user.User{Uid: "1", Gid: "y"})
	assert.Error(t, err)
}
