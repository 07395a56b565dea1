package bus

import (
	"fmt"
	"net"
	"os"
)

// Dial connects to the hub daemon's socket.
func Dial(socketPath string) (net.Conn, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dialing hub socket %s: %w", socketPath, err)
	}
	return conn, nil
}

// Listen binds the hub daemon's socket, replacing a stale one left behind
// by a previous run.
func Listen(socketPath string) (net.Listener, error) {
	_ = os.Remove(socketPath)

	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on hub socket %s: %w", socketPath, err)
	}
	return l, nil
}
