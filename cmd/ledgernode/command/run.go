package command

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgernode/ledgernode/src/console"
	"github.com/ledgernode/ledgernode/src/engine"
	"github.com/ledgernode/ledgernode/src/node"
)

var config = node.NewDefaultConfig()

// NewRunCmd returns the command that starts a ledgernode replica.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "run a ledger replica",
		PreRunE: loadConfig,
		RunE:    runNode,
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("id", config.NodeID, "This node's id within the peer set")
	cmd.Flags().String("datadir", config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("peers", config.PeersFile, "Path to the static peer configuration file")
	cmd.Flags().String("log", config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().StringP("listen", "l", config.BindAddr, "Listen IP:Port for Paxos and catch-up traffic")
	cmd.Flags().Bool("no-service", config.NoService, "Disable the HTTP introspection service")
	cmd.Flags().StringP("service-listen", "s", config.ServiceAddr, "Listen IP:Port for the HTTP introspection service")
	cmd.Flags().Duration("net-delay", config.NetDelay, "Artificial one-way transport latency")
	cmd.Flags().Duration("proposal-timeout", config.ProposalTimeout, "Proposer retry timeout")
	cmd.Flags().Duration("catchup-window", config.CatchupWindow, "Catch-up response collection window")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	viper.SetConfigName("ledgernode")
	viper.AddConfigPath(viper.GetString("datadir"))

	readErr := viper.ReadInConfig()
	if _, ok := readErr.(viper.ConfigFileNotFoundError); readErr != nil && !ok {
		return readErr
	}

	if err := viper.Unmarshal(config); err != nil {
		return err
	}
	if readErr == nil {
		config.Logger().Debugf("using config file: %s", viper.ConfigFileUsed())
	}

	config.Logger().WithFields(logrus.Fields{
		"id":               config.NodeID,
		"datadir":          config.DataDir,
		"peers":            config.PeersFile,
		"listen":           config.BindAddr,
		"service-listen":   config.ServiceAddr,
		"net-delay":        config.NetDelay,
		"proposal-timeout": config.ProposalTimeout,
		"catchup-window":   config.CatchupWindow,
	}).Debug("run")

	return nil
}

func runNode(cmd *cobra.Command, args []string) error {
	eng, err := engine.New(config)
	if err != nil {
		config.Logger().WithError(err).Error("failed to initialize engine")
		return err
	}

	go eng.Run()

	c := console.New(eng.Node, cmd.InOrStdin(), cmd.OutOrStdout())
	c.Run()

	eng.Shutdown()
	return nil
}
