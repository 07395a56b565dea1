package service

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/sharedesk/contenthub/internal/content"
	"github.com/sharedesk/contenthub/internal/protocol"
	"github.com/sharedesk/contenthub/internal/store"
	"github.com/sharedesk/contenthub/internal/transfer"
	"github.com/sirupsen/logrus"
)

func setupService(t *testing.T) string {
	t.Helper()

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	socket := filepath.Join(t.TempDir(), "hub.sock")
	svc, err := NewService(Config{
		SocketPath: socket,
		Logger:     logger,
		Peers:      store.NewPeerStore(db),
		Transfers:  store.NewTransferStore(db),
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = svc.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = svc.Shutdown()
	})
	return socket
}

type testClient struct {
	t     *testing.T
	conn  net.Conn
	codec *protocol.Codec
}

func dialClient(t *testing.T, socket string) *testClient {
	t.Helper()

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dialing service: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, codec: protocol.NewCodec()}
}

func (c *testClient) send(msg protocol.Message) {
	c.t.Helper()
	if err := c.codec.Encode(c.conn, msg); err != nil {
		c.t.Fatalf("sending %s: %v", msg.Type(), err)
	}
}

func (c *testClient) recv() protocol.Message {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := c.codec.Decode(c.conn)
	if err != nil {
		c.t.Fatalf("receiving: %v", err)
	}
	return msg
}

// recvNothing asserts that no message arrives within a short window.
func (c *testClient) recvNothing() {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if msg, err := c.codec.Decode(c.conn); err == nil {
		c.t.Fatalf("expected no message, got %s", msg.Type())
	}
}

// register announces the client and reads messages up to the ack,
// returning it. Pending replays delivered before the ack are dropped.
func (c *testClient) register(peerID string, roles content.Role, types ...content.ContentType) *protocol.RegisterAck {
	c.t.Helper()
	c.send(&protocol.Register{PeerID: peerID, Name: peerID, Roles: roles, ContentTypes: types})

	for i := 0; i < 10; i++ {
		if ack, ok := c.recv().(*protocol.RegisterAck); ok {
			return ack
		}
	}
	c.t.Fatal("no RegisterAck received")
	return nil
}

func TestServicePing(t *testing.T) {
	socket := setupService(t)
	c := dialClient(t, socket)

	c.send(&protocol.Ping{})
	if _, ok := c.recv().(*protocol.Pong); !ok {
		t.Error("expected Pong")
	}
}

func TestServiceRegisterAck(t *testing.T) {
	socket := setupService(t)
	c := dialClient(t, socket)

	ack := c.register("app.gallery", content.RoleDestination, content.TypePictures)
	if ack.PeerID != "app.gallery" {
		t.Errorf("unexpected peer id %q", ack.PeerID)
	}
	if len(ack.Pending) != 0 {
		t.Errorf("expected no pending transfers, got %d", len(ack.Pending))
	}
}

func TestServiceCreateRequiresRegistration(t *testing.T) {
	socket := setupService(t)
	c := dialClient(t, socket)

	c.send(&protocol.CreateTransfer{RequestID: "r-1", Direction: transfer.Import, PeerID: "app.gallery"})

	e, ok := c.recv().(*protocol.Error)
	if !ok {
		t.Fatal("expected Error")
	}
	if e.Code != protocol.ErrNotRegistered || e.RequestID != "r-1" {
		t.Errorf("unexpected error: %+v", e)
	}
}

func TestServiceCreateUnknownPeer(t *testing.T) {
	socket := setupService(t)
	c := dialClient(t, socket)
	c.register("app.camera", content.RoleSource, content.TypePictures)

	c.send(&protocol.CreateTransfer{RequestID: "r-1", Direction: transfer.Import, PeerID: "app.nowhere"})

	e, ok := c.recv().(*protocol.Error)
	if !ok {
		t.Fatal("expected Error")
	}
	if e.Code != protocol.ErrPeerNotFound {
		t.Errorf("expected PEER_NOT_FOUND, got %s", e.Code)
	}
}

func TestServiceCreateNotifiesTarget(t *testing.T) {
	socket := setupService(t)

	target := dialClient(t, socket)
	target.register("app.gallery", content.RoleDestination, content.TypePictures)
	creator := dialClient(t, socket)
	creator.register("app.camera", content.RoleSource, content.TypePictures)

	creator.send(&protocol.CreateTransfer{
		RequestID:   "r-1",
		Direction:   transfer.Import,
		PeerID:      "app.gallery",
		ContentType: content.TypePictures,
		Selection:   transfer.Multiple,
	})

	created, ok := creator.recv().(*protocol.TransferCreated)
	if !ok {
		t.Fatal("expected TransferCreated")
	}
	rec := created.Transfer
	if rec.State != transfer.Initiated {
		t.Errorf("expected Initiated, got %s", rec.State)
	}
	if rec.Source != "app.camera" || rec.Destination != "app.gallery" {
		t.Errorf("unexpected endpoints: %s -> %s", rec.Source, rec.Destination)
	}

	notif, ok := target.recv().(*protocol.HandleImport)
	if !ok {
		t.Fatal("expected HandleImport at the target")
	}
	if notif.Transfer.ID != rec.ID {
		t.Errorf("target saw transfer %s, expected %s", notif.Transfer.ID, rec.ID)
	}
	if len(notif.Transfer.Items) != 0 {
		t.Errorf("items leaked before charge: %+v", notif.Transfer.Items)
	}
}

func TestServiceExportEndpointsReversed(t *testing.T) {
	socket := setupService(t)

	producer := dialClient(t, socket)
	producer.register("app.gallery", content.RoleSource, content.TypePictures)
	creator := dialClient(t, socket)
	creator.register("app.editor", content.RoleDestination, content.TypePictures)

	creator.send(&protocol.CreateTransfer{
		RequestID:   "r-1",
		Direction:   transfer.Export,
		PeerID:      "app.gallery",
		ContentType: content.TypePictures,
	})

	created, ok := creator.recv().(*protocol.TransferCreated)
	if !ok {
		t.Fatal("expected TransferCreated")
	}
	// For an export the target produces: it is the source.
	if created.Transfer.Source != "app.gallery" || created.Transfer.Destination != "app.editor" {
		t.Errorf("unexpected endpoints: %s -> %s", created.Transfer.Source, created.Transfer.Destination)
	}

	if _, ok := producer.recv().(*protocol.HandleExport); !ok {
		t.Error("expected HandleExport at the producer")
	}
}

func TestServiceDefaultPeerWhenUnspecified(t *testing.T) {
	socket := setupService(t)

	target := dialClient(t, socket)
	target.register("app.gallery", content.RoleDestination, content.TypePictures)
	creator := dialClient(t, socket)
	creator.register("app.camera", content.RoleSource, content.TypePictures)

	creator.send(&protocol.CreateTransfer{
		RequestID:   "r-1",
		Direction:   transfer.Import,
		ContentType: content.TypePictures,
	})

	created, ok := creator.recv().(*protocol.TransferCreated)
	if !ok {
		t.Fatal("expected TransferCreated")
	}
	if created.Transfer.Destination != "app.gallery" {
		t.Errorf("expected the default peer, got %q", created.Transfer.Destination)
	}
}

func TestServiceChargedRelayAndEcho(t *testing.T) {
	socket := setupService(t)

	target := dialClient(t, socket)
	target.register("app.gallery", content.RoleDestination, content.TypePictures)
	creator := dialClient(t, socket)
	creator.register("app.camera", content.RoleSource, content.TypePictures)

	creator.send(&protocol.CreateTransfer{
		RequestID:   "r-1",
		Direction:   transfer.Import,
		PeerID:      "app.gallery",
		ContentType: content.TypePictures,
	})
	created := creator.recv().(*protocol.TransferCreated)
	target.recv() // the HandleImport creation notification

	items := []content.Item{{URI: "file:///pics/a.jpg", Name: "a.jpg"}}
	creator.send(&protocol.StateChanged{TransferID: created.Transfer.ID, State: transfer.Charged, Items: items})

	relay, ok := target.recv().(*protocol.StateChanged)
	if !ok {
		t.Fatal("expected StateChanged relay at the target")
	}
	if relay.State != transfer.Charged || len(relay.Items) != 1 {
		t.Errorf("unexpected relay: %+v", relay)
	}

	echo, ok := target.recv().(*protocol.HandleImport)
	if !ok {
		t.Fatal("expected HandleImport echo after charge")
	}
	if echo.Transfer.State != transfer.Charged || len(echo.Transfer.Items) != 1 {
		t.Errorf("unexpected echo: %+v", echo.Transfer)
	}

	// The creator is the sender and must not hear itself.
	creator.recvNothing()
}

func TestServiceDuplicateStateChangeAbsorbed(t *testing.T) {
	socket := setupService(t)

	target := dialClient(t, socket)
	target.register("app.gallery", content.RoleDestination, content.TypePictures)
	creator := dialClient(t, socket)
	creator.register("app.camera", content.RoleSource, content.TypePictures)

	creator.send(&protocol.CreateTransfer{
		RequestID: "r-1", Direction: transfer.Import, PeerID: "app.gallery", ContentType: content.TypePictures,
	})
	created := creator.recv().(*protocol.TransferCreated)
	target.recv()

	notif := &protocol.StateChanged{TransferID: created.Transfer.ID, State: transfer.Charged,
		Items: []content.Item{{URI: "file:///pics/a.jpg"}}}
	creator.send(notif)
	creator.send(notif)

	target.recv() // relay
	target.recv() // echo
	target.recvNothing()
}

func TestServicePendingReplayOnRegister(t *testing.T) {
	socket := setupService(t)

	// The target registers once so the directory knows it, then goes away.
	target := dialClient(t, socket)
	target.register("app.gallery", content.RoleDestination, content.TypePictures)
	_ = target.conn.Close()

	creator := dialClient(t, socket)
	creator.register("app.camera", content.RoleSource, content.TypePictures)
	creator.send(&protocol.CreateTransfer{
		RequestID: "r-1", Direction: transfer.Import, PeerID: "app.gallery", ContentType: content.TypePictures,
	})
	created := creator.recv().(*protocol.TransferCreated)

	// The target comes back: the creation notification is replayed before
	// the ack, and the ack lists it as pending.
	revived := dialClient(t, socket)
	revived.send(&protocol.Register{PeerID: "app.gallery", Name: "Gallery",
		Roles: content.RoleDestination, ContentTypes: []content.ContentType{content.TypePictures}})

	notif, ok := revived.recv().(*protocol.HandleImport)
	if !ok {
		t.Fatal("expected replayed HandleImport")
	}
	if notif.Transfer.ID != created.Transfer.ID {
		t.Errorf("replayed %s, expected %s", notif.Transfer.ID, created.Transfer.ID)
	}

	ack, ok := revived.recv().(*protocol.RegisterAck)
	if !ok {
		t.Fatal("expected RegisterAck after replay")
	}
	if len(ack.Pending) != 1 {
		t.Errorf("expected 1 pending transfer, got %d", len(ack.Pending))
	}
}

func TestServiceUnknownTransferStateChangeReportsError(t *testing.T) {
	socket := setupService(t)

	c := dialClient(t, socket)
	c.register("app.camera", content.RoleSource, content.TypePictures)

	c.send(&protocol.StateChanged{TransferID: "t-nowhere", State: transfer.Initiated})

	e, ok := c.recv().(*protocol.Error)
	if !ok {
		t.Fatal("expected Error for an unknown transfer id")
	}
	if e.Code != protocol.ErrTransferNotFound {
		t.Errorf("expected TRANSFER_NOT_FOUND, got %s", e.Code)
	}

	// The id is tracked best-effort after the report, so a redelivery is
	// absorbed silently instead of flagged again.
	c.send(&protocol.StateChanged{TransferID: "t-nowhere", State: transfer.Initiated})
	c.recvNothing()
}

func TestServiceKnownAndDefaultPeerQueries(t *testing.T) {
	socket := setupService(t)

	gallery := dialClient(t, socket)
	gallery.register("app.gallery", content.RoleDestination, content.TypePictures)

	c := dialClient(t, socket)
	c.send(&protocol.KnownPeersRequest{RequestID: "r-1", ContentType: content.TypePictures})

	peers, ok := c.recv().(*protocol.KnownPeersResponse)
	if !ok {
		t.Fatal("expected KnownPeersResponse")
	}
	if len(peers.Peers) != 1 || peers.Peers[0].ID != "app.gallery" {
		t.Errorf("unexpected peer list: %+v", peers.Peers)
	}

	c.send(&protocol.DefaultPeerRequest{RequestID: "r-2", ContentType: content.TypePictures})
	def, ok := c.recv().(*protocol.DefaultPeerResponse)
	if !ok {
		t.Fatal("expected DefaultPeerResponse")
	}
	if def.PeerID != "app.gallery" {
		t.Errorf("unexpected default %q", def.PeerID)
	}

	c.send(&protocol.DefaultPeerRequest{RequestID: "r-3", ContentType: content.TypeMusic})
	def, _ = c.recv().(*protocol.DefaultPeerResponse)
	if def == nil || def.PeerID != "" {
		t.Errorf("expected no recommendation for music, got %+v", def)
	}
}
