package app

import (
	"os"
	"os/user"
)

// DefaultStorageRoot is where objects live when init is not told
// otherwise: inside the repository's own state directory.
const DefaultStorageRoot = ".dvs/objects"

// DefaultActor resolves who to record on sidecars and reflog entries.
// DVS_ACTOR overrides; otherwise the OS username is used.
func DefaultActor() string {
	if actor := os.Getenv("DVS_ACTOR"); actor != "" {
		return actor
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}
