package service

import (
	"net"
	"sync"

	"github.com/sharedesk/contenthub/internal/protocol"
)

// peerConn wraps one application connection. peerID is empty until the
// application registers its handler.
type peerConn struct {
	conn  net.Conn
	codec *protocol.Codec

	mu     sync.Mutex
	peerID string
}

func newPeerConn(conn net.Conn) *peerConn {
	return &peerConn{
		conn:  conn,
		codec: protocol.NewCodec(),
	}
}

func (c *peerConn) send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codec.Encode(c.conn, msg)
}

func (c *peerConn) setPeerID(id string) {
	c.mu.Lock()
	c.peerID = id
	c.mu.Unlock()
}

func (c *peerConn) getPeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

func (c *peerConn) remoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *peerConn) close() error {
	return c.conn.Close()
}
