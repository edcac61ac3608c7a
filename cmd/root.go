// Package cmd implements the operator-facing shell described in spec.md
// section 6: a cobra command that starts a single node (either creating a
// new ring or joining an existing one) and then drops into an interactive
// line-oriented shell exposing put/get/state/fingers/hash/quit.
package cmd

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"chordring/admin"
	"chordring/node"
	"chordring/ring"
)

var (
	flagPort      uint16
	flagJoin      string
	flagAdminAddr string

	flagEnableIDVerification   bool
	flagEnableSubnetDiversity  bool
	flagEnableRateLimiting     bool
	flagEnableLookupValidation bool
	flagEnablePeerAge          bool
	flagEnableHoneypot         bool
)

var rootCmd = &cobra.Command{
	Use:   "chordring",
	Short: "A Chord distributed hash table node",
	Long:  `chordring starts a single Chord ring node and drops into an interactive shell for put/get/state/fingers/hash/quit.`,
	RunE:  runNode,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Uint16Var(&flagPort, "port", 8468, "TCP port this node listens on")
	rootCmd.Flags().StringVar(&flagJoin, "join", "", "ip:port of an existing ring member to join through; omit to create a new ring")
	rootCmd.Flags().StringVar(&flagAdminAddr, "admin", "", "optional ip:port to serve a websocket state/metrics stream on")

	rootCmd.Flags().BoolVar(&flagEnableIDVerification, "enable-id-verification", false, "reject peers whose claimed id doesn't match hash(address)")
	rootCmd.Flags().BoolVar(&flagEnableSubnetDiversity, "enable-subnet-diversity", false, "cap admitted peers per /24 subnet")
	rootCmd.Flags().BoolVar(&flagEnableRateLimiting, "enable-rate-limiting", false, "token-bucket rate limit inbound messages per source")
	rootCmd.Flags().BoolVar(&flagEnableLookupValidation, "enable-lookup-validation", false, "cross-check find_successor answers against alternative peers")
	rootCmd.Flags().BoolVar(&flagEnablePeerAge, "enable-peer-age", false, "track how long each peer has been known (advisory; never rejects a peer)")
	rootCmd.Flags().BoolVar(&flagEnableHoneypot, "enable-honeypot", false, "place sentinel keys and monitor for tampering")
}

func runNode(cmd *cobra.Command, args []string) error {
	config := node.DefaultConfig("0.0.0.0", flagPort)
	config.EnableIDVerification = flagEnableIDVerification
	config.EnableSubnetDiversity = flagEnableSubnetDiversity
	config.EnableRateLimiting = flagEnableRateLimiting
	config.EnableLookupValidation = flagEnableLookupValidation
	config.EnablePeerAge = flagEnablePeerAge
	config.EnableHoneypot = flagEnableHoneypot

	n := node.New(config)

	if flagJoin != "" {
		seed, err := parseAddress(flagJoin)
		if err != nil {
			return fmt.Errorf("cmd: --join: %w", err)
		}
		if err := n.Join(seed); err != nil {
			return fmt.Errorf("cmd: join failed: %w", err)
		}
		fmt.Printf("joined ring via %s as node %d\n", seed, n.Self().ID)
	} else {
		if err := n.Create(); err != nil {
			return fmt.Errorf("cmd: create failed: %w", err)
		}
		fmt.Printf("created new ring as node %d\n", n.Self().ID)
	}

	if flagAdminAddr != "" {
		adminServer := admin.NewServer(flagAdminAddr, nodeView(n), time.Second)
		if err := adminServer.Start(); err != nil {
			return fmt.Errorf("cmd: admin server failed: %w", err)
		}
		defer adminServer.Stop()
	}

	runShell(n)
	return nil
}

func nodeView(n *node.Node) admin.NodeView {
	return func() admin.Snapshot {
		snap := admin.Snapshot{
			SelfID:      n.Self().ID,
			SelfAddress: n.Self().Address.String(),
			Successor:   n.GetSuccessor().ID,
			StoreSize:   n.StoreSize(),
			Metrics:     n.DumpMetrics(),
		}
		if pred := n.GetPredecessor(); pred != nil {
			id := pred.ID
			snap.Predecessor = &id
		}
		return snap
	}
}

func parseAddress(s string) (ring.NodeAddress, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return ring.NodeAddress{}, fmt.Errorf("expected ip:port, got %q: %w", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return ring.NodeAddress{}, fmt.Errorf("invalid port in %q: %w", s, err)
	}
	return ring.NodeAddress{Host: host, Port: uint16(port)}, nil
}
