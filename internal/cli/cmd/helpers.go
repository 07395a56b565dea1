package cmd

import (
	"errors"
	"path"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sharedesk/contenthub/internal/content"
	"github.com/sharedesk/contenthub/internal/hub"
	"github.com/sharedesk/contenthub/internal/transfer"
	"github.com/sirupsen/logrus"
)

// handshakeTimeout bounds how long a command waits for the remote side
// of a transfer to act.
const handshakeTimeout = 2 * time.Minute

func connect(log *logrus.Logger, handler hub.Handler, types []content.ContentType) (*hub.Hub, error) {
	return hub.New(hub.Options{
		SocketPath:   socketPath,
		PeerID:       peerID,
		Name:         peerName,
		Roles:        content.RoleSource | content.RoleDestination | content.RoleShare,
		ContentTypes: types,
		Handler:      handler,
		Logger:       log,
	})
}

func itemsFromURIs(uris []string) []content.Item {
	items := make([]content.Item, 0, len(uris))
	for _, uri := range uris {
		items = append(items, content.Item{URI: uri, Name: path.Base(uri)})
	}
	return items
}

// awaitState blocks until the transfer reaches the wanted state, showing
// a spinner while the remote side works.
func awaitState(t *transfer.Transfer, want transfer.State, label string) error {
	events := make(chan transfer.Event, 8)
	t.Subscribe(func(ev transfer.Event) {
		select {
		case events <- ev:
		default:
		}
	})

	if s := t.State(); s == transfer.Aborted {
		return errors.New("transfer aborted")
	} else if s >= want {
		return nil
	}

	bar := progressbar.Default(-1, label)
	defer func() { _ = bar.Finish() }()

	spin := time.NewTicker(100 * time.Millisecond)
	defer spin.Stop()
	deadline := time.After(handshakeTimeout)

	for {
		select {
		case ev := <-events:
			if ev.State == transfer.Aborted {
				return errors.New("transfer aborted")
			}
			if ev.State >= want {
				return nil
			}
		case <-spin.C:
			_ = bar.Add(1)
		case <-deadline:
			return errors.New("timed out waiting for the remote peer")
		}
	}
}
