// Package command implements the ledgernode CLI's cobra command tree.
package command

import (
	"github.com/spf13/cobra"
)

// RootCmd is the root command for ledgernode.
var RootCmd = &cobra.Command{
	Use:              "ledgernode",
	Short:            "replicated money-transfer ledger over classic Paxos",
	TraverseChildren: true,
}

func init() {
	RootCmd.AddCommand(NewRunCmd())
	RootCmd.AddCommand(NewInitPeersCmd())
}
