// Package service implements the hub daemon: the process-wide broker
// that owns the peer directory, creates transfers, and routes handshake
// notifications between application peers.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sharedesk/contenthub/internal/bus"
	"github.com/sharedesk/contenthub/internal/protocol"
	"github.com/sharedesk/contenthub/internal/store"
	"github.com/sharedesk/contenthub/internal/transfer"
	"github.com/sirupsen/logrus"
)

type Config struct {
	SocketPath string
	Logger     *logrus.Logger
	Peers      *store.PeerStore
	Transfers  *store.TransferStore
}

type Service struct {
	config    Config
	logger    *logrus.Logger
	listener  net.Listener
	peers     *store.PeerStore
	transfers *store.TransferStore

	mu     sync.Mutex
	conns  map[string]*peerConn          // registered peer id -> live connection
	active map[string]*transfer.Transfer // authoritative transfer instances
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Peers == nil || cfg.Transfers == nil {
		return nil, errors.New("service: peer and transfer stores are required")
	}

	l, err := bus.Listen(cfg.SocketPath)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	return &Service{
		config:    cfg,
		logger:    logger,
		listener:  l,
		peers:     cfg.Peers,
		transfers: cfg.Transfers,
		conns:     make(map[string]*peerConn),
		active:    make(map[string]*transfer.Transfer),
	}, nil
}

func (s *Service) Addr() string {
	return s.listener.Addr().String()
}

func (s *Service) Shutdown() error {
	s.logger.Info("Shutting down hub service")
	err := s.listener.Close()

	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.close()
	}
	s.conns = make(map[string]*peerConn)
	s.mu.Unlock()

	return err
}

func (s *Service) Start(ctx context.Context) error {
	s.logger.Infof("Hub service started on %s", s.Addr())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			conn, err := s.listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warnf("Failed to accept connection: %v", err)
				continue
			}

			go s.handleConn(ctx, newPeerConn(conn))
		}
	}
}

func (s *Service) handleConn(ctx context.Context, c *peerConn) {
	s.logger.Infof("Accepted a new socket connection from %s", c.remoteAddr())
	defer func() {
		s.unregisterConn(c)
		_ = c.close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := c.codec.Decode(c.conn)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Debugf("Connection %s closed: %v", c.remoteAddr(), err)
				}
				return
			}
			s.handleMessage(ctx, c, msg)
		}
	}
}

func (s *Service) handleMessage(ctx context.Context, c *peerConn, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Ping:
		if err := c.send(&protocol.Pong{}); err != nil {
			s.logger.Warnf("Failed to send Pong: %v", err)
		}
	case *protocol.Register:
		s.handleRegister(ctx, c, m)
	case *protocol.CreateTransfer:
		s.handleCreateTransfer(ctx, c, m)
	case *protocol.StateChanged:
		s.handleStateChanged(ctx, c, m)
	case *protocol.KnownPeersRequest:
		s.handleKnownPeers(ctx, c, m)
	case *protocol.DefaultPeerRequest:
		s.handleDefaultPeer(ctx, c, m)
	default:
		s.logger.Warnf("Unhandled message type %s from %s", msg.Type(), c.remoteAddr())
		_ = c.send(&protocol.Error{
			Code:    protocol.ErrInvalidMsg,
			Message: fmt.Sprintf("unexpected message type %s", msg.Type()),
		})
	}
}

// unregisterConn removes the live-handler binding for a closed
// connection. In-flight transfers stay non-terminal; a stalled transfer
// is an external monitoring concern.
func (s *Service) unregisterConn(c *peerConn) {
	id := c.getPeerID()
	if id == "" {
		return
	}

	s.mu.Lock()
	if s.conns[id] == c {
		delete(s.conns, id)
		s.logger.Infof("Handler for peer %s unregistered", id)
	}
	s.mu.Unlock()
}

// liveConn returns the registered connection for a peer, or nil.
func (s *Service) liveConn(peerID string) *peerConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[peerID]
}
