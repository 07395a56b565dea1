package cmd

import (
	"context"
	"fmt"

	"github.com/sharedesk/contenthub/internal/content"
	"github.com/sharedesk/contenthub/internal/logger"
	"github.com/spf13/cobra"
)

var peersCmd = &cobra.Command{
	Use:   "peers content-type",
	Short: "list the peers registered for a content type",
	Long:  `lists every peer registered for a content type and the daemon's default pick, e.g. content-cli peers pictures`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.NewLogger()

		ct, err := content.ParseContentType(args[0])
		if err != nil {
			log.Fatal(err)
			return
		}

		h, err := connect(log, nil, nil)
		if err != nil {
			log.Fatal(err)
			return
		}
		defer h.Close()

		ctx := context.Background()
		peers, err := h.KnownPeersForType(ctx, ct)
		if err != nil {
			log.Fatal(err)
			return
		}
		def, err := h.DefaultPeerForType(ctx, ct)
		if err != nil {
			log.Fatal(err)
			return
		}

		if len(peers) == 0 {
			fmt.Printf("no peers registered for %s\n", ct)
			return
		}
		for _, p := range peers {
			marker := " "
			if p.ID == def {
				marker = "*"
			}
			fmt.Printf("%s %s\t%s\t%s\n", marker, p.ID, p.Name, p.Roles)
		}
	},
}
