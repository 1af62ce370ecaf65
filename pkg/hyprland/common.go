package hyprland

import (
	"errors"
	"fmt"
	"github.com/adrg/xdg"
	"net"
	"os"
	"path/filepath"
)

var ErrNotRunning = errors.New("hyprland might not be running")

const controlSocket = ".socket.sock"

func connect(socketPath string) (net.Conn, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return conn, nil
}

// controlSocketPath finds the hyprctl socket. Hyprland moved it from /tmp/hypr
// to $XDG_RUNTIME_DIR/hypr in 0.40; the runtime dir is tried first.
func controlSocketPath() (string, error) {
	signature := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if signature == "" {
		return "", fmt.Errorf("HYPRLAND_INSTANCE_SIGNATURE is not set, %w", ErrNotRunning)
	}

	candidates := []string{
		filepath.Join(xdg.RuntimeDir, "hypr", signature, controlSocket),
		filepath.Join("/tmp/hypr", signature, controlSocket),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no control socket for instance %s, %w", signature, ErrNotRunning)
}
