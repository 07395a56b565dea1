package cmd

import (
	"context"
	"fmt"

	"github.com/sharedesk/contenthub/internal/content"
	"github.com/sharedesk/contenthub/internal/logger"
	"github.com/sharedesk/contenthub/internal/transfer"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import peer-id content-type uri...",
	Short: "send items to another peer",
	Long: `creates an import transfer addressed to peer-id, charges it with the
given item URIs, and waits until the peer collects them. Pass "-" as
peer-id to let the daemon pick the default peer for the type`,
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

		t, err := h.CreateImportTransfer(ctx, target, ct, transfer.Multiple)
		if err != nil {
			log.Fatal(err)
			return
		}

		t.SetItems(itemsFromURIs(args[2:]))
		if err := t.Charge(nil); err != nil {
			log.Fatal(err)
			return
		}
		log.Infof("Charged transfer %s with %d items", t.ID(), len(t.Items()))

		if err := awaitState(t, transfer.Finalized, "waiting for the peer to collect"); err != nil {
			log.Fatal(err)
			return
		}
		fmt.Printf("transfer %s finalized\n", t.ID())
	},
}
