package cmd

import (
	"context"
	"fmt"

	"github.com/sharedesk/contenthub/internal/content"
	"github.com/sharedesk/contenthub/internal/logger"
	"github.com/sharedesk/contenthub/internal/transfer"
	"github.com/spf13/cobra"
)

var shareCmd = &cobra.Command{
	Use:   "share peer-id content-type uri...",
	Short: "share items with another peer",
	Long: `creates a share transfer offering the given item URIs to peer-id and
waits until the peer collects them. Pass "-" as peer-id to use the
daemon's default peer for the type`,
	Args: cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.NewLogger()

		target := args[0]
		if target == "-" {
			target = ""
		}
		ct, err := content.ParseContentType(args[1])
		if err != nil {
			log.Fatal(err)
			return
		}

		h, err := connect(log, nil, []content.ContentType{ct})
		if err != nil {
			log.Fatal(err)
			return
		}
		defer h.Close()

		ctx := context.Background()
		if err := h.Register(ctx); err != nil {
			log.Fatal(err)
			return
		}

		t, err := h.CreateShareTransfer(ctx, target, ct, transfer.Multiple)
		if err != nil {
			log.Fatal(err)
			return
		}

		t.SetItems(itemsFromURIs(args[2:]))
		if err := t.Charge(nil); err != nil {
			log.Fatal(err)
			return
		}

		if err := awaitState(t, transfer.Finalized, "waiting for the peer to collect"); err != nil {
			log.Fatal(err)
			return
		}
		fmt.Printf("transfer %s finalized\n", t.ID())
	},
}
