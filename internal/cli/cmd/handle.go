package cmd

import (
	"context"
	"fmt"

	"github.com/sharedesk/contenthub/internal/content"
	"github.com/sharedesk/contenthub/internal/logger"
	"github.com/sharedesk/contenthub/internal/transfer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var handleOffers []string

var handleCmd = &cobra.Command{
	Use:   "handle content-type...",
	Short: "run a handler answering transfer requests",
	Long: `registers this process as the handler for its peer id and the given
content types, then serves requests until interrupted: incoming items
are collected and printed, export requests are answered with the URIs
given via --offer`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.NewLogger()

		types := make([]content.ContentType, 0, len(args))
		for _, arg := range args {
			ct, err := content.ParseContentType(arg)
			if err != nil {
				log.Fatal(err)
				return
			}
			types = append(types, ct)
		}

		handler := &cliHandler{log: log, offers: itemsFromURIs(handleOffers)}
		h, err := connect(log, handler, types)
		if err != nil {
			log.Fatal(err)
			return
		}
		defer h.Close()

		if err := h.Register(context.Background()); err != nil {
			log.Fatal(err)
			return
		}

		log.Infof("Handling %d content types as %s, interrupt to stop", len(types), peerID)
		<-h.Done()
	},
}

func init() {
	handleCmd.Flags().StringSliceVar(&handleOffers, "offer", nil, "item URIs produced for export requests")
}

// cliHandler answers transfer requests on behalf of the handle command.
type cliHandler struct {
	log    *logrus.Logger
	offers []content.Item
}

// collect waits for the producing side to charge, then collects and
// finalizes.
func (c *cliHandler) collect(t *transfer.Transfer) {
	if err := awaitState(t, transfer.Charged, "waiting for items"); err != nil {
		c.log.Warnf("Transfer %s: %v", t.ID(), err)
		return
	}

	items := t.Collect()
	for _, item := range items {
		fmt.Println(item.URI)
	}
	if err := t.SetState(transfer.Finalized); err != nil {
		c.log.Warnf("Failed to finalize transfer %s: %v", t.ID(), err)
		return
	}
	c.log.Infof("Collected %d items from transfer %s", len(items), t.ID())
}

func (c *cliHandler) HandleImport(t *transfer.Transfer) {
	c.log.Infof("Import requested by %s", t.Source().ID())
	c.collect(t)
}

func (c *cliHandler) HandleShare(t *transfer.Transfer) {
	c.log.Infof("Share requested by %s", t.Source().ID())
	c.collect(t)
}

// HandleExport produces the configured offers for the requesting peer.
func (c *cliHandler) HandleExport(t *transfer.Transfer) {
	c.log.Infof("Export requested by %s", t.Destination().ID())

	if len(c.offers) == 0 {
		c.log.Warnf("No items to offer, aborting transfer %s", t.ID())
		t.Abort()
		return
	}

	if err := t.SetState(transfer.InProgress); err != nil {
		c.log.Warnf("Transfer %s: %v", t.ID(), err)
		return
	}
	t.SetItems(c.offers)
	if err := t.Charge(nil); err != nil {
		c.log.Warnf("Failed to charge transfer %s: %v", t.ID(), err)
		return
	}
	c.log.Infof("Charged transfer %s with %d items", t.ID(), len(t.Items()))
}
