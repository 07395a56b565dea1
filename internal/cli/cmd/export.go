package cmd

import (
	"context"
	"fmt"

	"github.com/sharedesk/contenthub/internal/content"
	"github.com/sharedesk/contenthub/internal/logger"
	"github.com/sharedesk/contenthub/internal/transfer"
	"github.com/spf13/cobra"
)

var exportSingle bool

var exportCmd = &cobra.Command{
	Use:   "export peer-id content-type",
	Short: "request items from another peer",
	Long: `creates an export transfer asking peer-id to produce items of the
given type, waits for the peer to charge, and prints the collected item
URIs. Pass "-" as peer-id to use the daemon's default peer`,
	Args: cobra.ExactArgs(2),
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

		sel := transfer.Multiple
		if exportSingle {
			sel = transfer.Single
		}
		t, err := h.CreateExportTransfer(ctx, target, ct, sel)
		if err != nil {
			log.Fatal(err)
			return
		}

		if err := awaitState(t, transfer.Charged, "waiting for the peer to produce items"); err != nil {
			log.Fatal(err)
			return
		}

		items := t.Collect()
		for _, item := range items {
			fmt.Println(item.URI)
		}
		if err := t.SetState(transfer.Finalized); err != nil {
			log.Fatal(err)
			return
		}
		log.Infof("Collected %d items from transfer %s", len(items), t.ID())
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportSingle, "single", false, "request a single item instead of a list")
}
