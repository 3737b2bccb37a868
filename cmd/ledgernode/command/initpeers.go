package command

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/spf13/cobra"

	"github.com/ledgernode/ledgernode/src/peers"
)

// NewInitPeersCmd returns the command that writes a default peer set file
// covering a 5-node cluster on localhost.
func NewInitPeersCmd() *cobra.Command {
	var out string
	var count int
	var basePort int

	cmd := &cobra.Command{
		Use:   "init-peers",
		Short: "write a default peers.json for a local cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writePeersFile(out, count, basePort)
		},
	}

	cmd.Flags().StringVar(&out, "out", "peers.json", "Output path for the generated peer set")
	cmd.Flags().IntVar(&count, "count", 5, "Number of peers to generate")
	cmd.Flags().IntVar(&basePort, "base-port", 1337, "First port; peer N binds 127.0.0.1:<base-port+N-1>")

	return cmd
}

func writePeersFile(out string, count, basePort int) error {
	list := make([]peers.Peer, count)
	for i := 0; i < count; i++ {
		list[i] = peers.Peer{
			NodeID: i + 1,
			Addr:   fmt.Sprintf("127.0.0.1:%d", basePort+i),
		}
	}

	buf, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}

	return ioutil.WriteFile(out, buf, 0644)
}
