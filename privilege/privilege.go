//go:build unix

// Package privilege gives up root once the sockets are bound.
package privilege

import (
	"fmt"
	"os"
	"os/user"
	"strconv"

	"github.com/semihalev/zlog/v2"
	"golang.org/x/sys/unix"
)

// Drop switches the process to username. It does nothing for an empty
// name or when not running as root.
func Drop(username string) error {
	if username == "" || os.Geteuid() != 0 {
		return nil
	}

	u, err := user.Lookup(username)
	if err != nil {
		return fmt.Errorf("lookup user %q: %w", username, err)
	}

	uid, gid, err := ids(u)
	if err != nil {
		return err
	}

	// group first, setgid is not permitted once uid is gone
	if err := unix.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("setgroups: %w", err)
	}

	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("setgid %d: %w", gid, err)
	}

	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("setuid %d: %w", uid, err)
	}

	zlog.Info("Dropped privileges", "user", username, "uid", uid, "gid", gid)

	return nil
}

func ids(u *user.User) (uid, gid int, err error) {
	if uid, err = strconv.Atoi(u.Uid); err != nil {
		return 0, 0, fmt.Errorf("uid %q: %w", u.Uid, err)
	}

	if gid, err = strconv.Atoi(u.Gid); err != nil {
		return 0, 0, fmt.Errorf("gid %q: %w", u.Gid, err)
	}

	return uid, gid, nil
}
