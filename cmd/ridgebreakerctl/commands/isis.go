package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// isisAdjacency mirrors internal/control's isisSnapshot JSON shape.
type isisAdjacency struct {
	Interface    string `json:"interface"`
	Level        string `json:"level"`
	P2P          bool   `json:"p2p"`
	State        string `json:"state"`
	PseudoNodeID uint32 `json:"pseudo_node_id,omitempty"`
	AdjacencySID uint32 `json:"adjacency_sid,omitempty"`
}

func isisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "isis",
		Short: "Manage IS-IS adjacencies",
	}
	cmd.AddCommand(isisAdjacenciesCmd())
	cmd.AddCommand(isisUpCmd())
	cmd.AddCommand(isisDownCmd())
	return cmd
}

func isisAdjacenciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adjacencies",
		Short: "List all IS-IS adjacencies",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var adjs []isisAdjacency
			if err := controlGet("/isis/adjacencies", &adjs); err != nil {
				return err
			}
			return printISISAdjacencies(adjs)
		},
	}
}

func printISISAdjacencies(adjs []isisAdjacency) error {
	if outputFormat == formatJSON {
		return printJSON(adjs)
	}

	tw := tabwriter.NewWriter(stdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "INTERFACE\tLEVEL\tP2P\tSTATE\tPSEUDO-NODE\tADJ-SID")
	for _, a := range adjs {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%d\t%d\n",
			a.Interface, a.Level, a.P2P, a.State, a.PseudoNodeID, a.AdjacencySID)
	}
	return tw.Flush()
}

func isisUpCmd() *cobra.Command {
	var iface string
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Bring an IS-IS interface's adjacencies up",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return controlPost("/isis/up", ifaceRequest{Interface: iface})
		},
	}
	cmd.Flags().StringVar(&iface, "interface", "", "interface name (required)")
	return cmd
}

func isisDownCmd() *cobra.Command {
	var iface, reason string
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Bring an IS-IS interface's adjacencies down",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return controlPost("/isis/down", ifaceRequest{Interface: iface, Reason: reason})
		},
	}
	cmd.Flags().StringVar(&iface, "interface", "", "interface name (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "operator-supplied reason, logged by the daemon")
	return cmd
}
