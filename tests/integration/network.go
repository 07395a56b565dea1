package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sharedesk/contenthub/internal/content"
	"github.com/sharedesk/contenthub/internal/hub"
	"github.com/sharedesk/contenthub/internal/service"
	"github.com/sharedesk/contenthub/internal/store"
	"github.com/sharedesk/contenthub/internal/transfer"
	"github.com/sirupsen/logrus"
)

// Network is a hub daemon plus the application peers connected to it,
// all inside one test process.
type Network struct {
	service *service.Service
	socket  string
	hubs    []*hub.Hub
	cancel  context.CancelFunc
	ctx     context.Context
	t       *testing.T
}

func NewNetwork(t *testing.T) *Network {
	t.Helper()

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	socket := filepath.Join(t.TempDir(), "hub.sock")
	svc, err := service.NewService(service.Config{
		SocketPath: socket,
		Logger:     log,
		Peers:      store.NewPeerStore(db),
		Transfers:  store.NewTransferStore(db),
	})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	go func() {
		_ = svc.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	return &Network{
		service: svc,
		socket:  socket,
		cancel:  cancel,
		ctx:     ctx,
		t:       t,
	}
}

// NewPeer connects and registers one application peer.
func (n *Network) NewPeer(peerID string, handler hub.Handler, types ...content.ContentType) *hub.Hub {
	n.t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	h, err := hub.New(hub.Options{
		SocketPath:   n.socket,
		PeerID:       peerID,
		Name:         peerID,
		Roles:        content.RoleSource | content.RoleDestination | content.RoleShare,
		ContentTypes: types,
		Handler:      handler,
		Logger:       log,
	})
	if err != nil {
		n.t.Fatalf("Failed to create peer %s: %v", peerID, err)
	}
	if err := h.Register(n.ctx); err != nil {
		n.t.Fatalf("Failed to register peer %s: %v", peerID, err)
	}

	n.hubs = append(n.hubs, h)
	return h
}

func (n *Network) Context() context.Context {
	return n.ctx
}

func (n *Network) Close() {
	n.cancel()
	for _, h := range n.hubs {
		h.Close()
	}
	_ = n.service.Shutdown()
}

// waitFor blocks until the transfer reaches the wanted state, reporting
// false on abort or timeout.
func waitFor(tr *transfer.Transfer, want transfer.State, timeout time.Duration) bool {
	events := make(chan transfer.Event, 8)
	tr.Subscribe(func(ev transfer.Event) {
		select {
		case events <- ev:
		default:
		}
	})

	if s := tr.State(); s == transfer.Aborted {
		return false
	} else if s >= want {
		return true
	}

	deadline := time.After(timeout)
	for {
		select {
		case ev := <-events:
			if ev.State == transfer.Aborted {
				return false
			}
			if ev.State >= want {
				return true
			}
		case <-deadline:
			return false
		}
	}
}
