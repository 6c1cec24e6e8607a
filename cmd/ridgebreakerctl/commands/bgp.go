package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// bgpSession mirrors internal/control's bgpSnapshot JSON shape.
type bgpSession struct {
	ID           uint64 `json:"id"`
	LocalAddress string `json:"local_address"`
	PeerAddress  string `json:"peer_address"`
	LocalAS      uint32 `json:"local_as"`
	PeerAS       uint32 `json:"peer_as"`
	State        string `json:"state"`
	ErrorCode    uint8  `json:"error_code,omitempty"`
	ErrorSubcode uint8  `json:"error_subcode,omitempty"`
}

func bgpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bgp",
		Short: "Manage BGP sessions",
	}
	cmd.AddCommand(bgpSessionsCmd())
	cmd.AddCommand(bgpTeardownCmd())
	cmd.AddCommand(bgpTeardownAllCmd())
	cmd.AddCommand(bgpDisconnectCmd())
	cmd.AddCommand(bgpRawUpdateCmd())
	cmd.AddCommand(bgpRawUpdateListCmd())
	return cmd
}

func bgpSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List all BGP sessions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var sessions []bgpSession
			if err := controlGet("/bgp/sessions", &sessions); err != nil {
				return err
			}
			return printBGPSessions(sessions)
		},
	}
}

func printBGPSessions(sessions []bgpSession) error {
	if outputFormat == formatJSON {
		return printJSON(sessions)
	}

	tw := tabwriter.NewWriter(stdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLOCAL\tPEER\tLOCAL-AS\tPEER-AS\tSTATE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
			s.ID, s.LocalAddress, s.PeerAddress, s.LocalAS, s.PeerAS, s.State)
	}
	return tw.Flush()
}

func bgpTeardownCmd() *cobra.Command {
	var id uint64
	cmd := &cobra.Command{
		Use:   "teardown",
		Short: "Initiate a graceful close of a BGP session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return controlPost("/bgp/teardown", idRequest{ID: id})
		},
	}
	cmd.Flags().Uint64Var(&id, "id", 0, "session id (required)")
	return cmd
}

func bgpDisconnectCmd() *cobra.Command {
	var id uint64
	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Force-close a BGP session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return controlPost("/bgp/disconnect", idRequest{ID: id})
		},
	}
	cmd.Flags().Uint64Var(&id, "id", 0, "session id (required)")
	return cmd
}

func bgpTeardownAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teardown-all",
		Short: "Initiate a graceful close of every BGP session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return controlPost("/bgp/teardown-all", nil)
		},
	}
}

func bgpRawUpdateCmd() *cobra.Command {
	var req rawUpdateRequest
	cmd := &cobra.Command{
		Use:   "raw-update",
		Short: "Attach a raw-update file to a BGP session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return controlPost("/bgp/raw-update", req)
		},
	}
	bindRawUpdateFlags(cmd, &req)
	return cmd
}

func bgpRawUpdateListCmd() *cobra.Command {
	var req rawUpdateListRequest
	cmd := &cobra.Command{
		Use:   "raw-update-list",
		Short: "Attach a raw-update file to every BGP session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return controlPost("/bgp/raw-update-list", req)
		},
	}
	bindRawUpdateListFlags(cmd, &req)
	return cmd
}
