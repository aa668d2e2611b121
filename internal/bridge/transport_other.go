//go:build !windows

package bridge

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// dialEndpoint connects to the backend's unix socket. A bare endpoint
// name resolves under the runtime directory; anything that looks like a
// path is used as-is.
func dialEndpoint(endpoint string, quick bool) (net.Conn, error) {
	timeout := 2 * time.Second
	if quick {
		timeout = 500 * time.Millisecond
	}
	return net.DialTimeout("unix", socketPath(endpoint), timeout)
}

func socketPath(endpoint string) string {
	if filepath.IsAbs(endpoint) || strings.ContainsRune(endpoint, os.PathSeparator) {
		return endpoint
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, endpoint+".sock")
}
