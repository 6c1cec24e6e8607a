package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ldpSession mirrors internal/control's ldpSnapshot JSON shape.
type ldpSession struct {
	ID           uint64 `json:"id"`
	LocalAddress string `json:"local_address"`
	PeerAddress  string `json:"peer_address"`
	Active       bool   `json:"active"`
	State        string `json:"state"`
}

func ldpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ldp",
		Short: "Manage LDP sessions",
	}
	cmd.AddCommand(ldpSessionsCmd())
	cmd.AddCommand(ldpTeardownCmd())
	cmd.AddCommand(ldpTeardownAllCmd())
	cmd.AddCommand(ldpDisconnectCmd())
	cmd.AddCommand(ldpRawUpdateCmd())
	cmd.AddCommand(ldpRawUpdateListCmd())
	return cmd
}

func ldpSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List all LDP sessions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var sessions []ldpSession
			if err := controlGet("/ldp/sessions", &sessions); err != nil {
				return err
			}
			return printLDPSessions(sessions)
		},
	}
}

func printLDPSessions(sessions []ldpSession) error {
	if outputFormat == formatJSON {
		return printJSON(sessions)
	}

	tw := tabwriter.NewWriter(stdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLOCAL\tPEER\tACTIVE\tSTATE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n",
			s.ID, s.LocalAddress, s.PeerAddress, s.Active, s.State)
	}
	return tw.Flush()
}

func ldpTeardownCmd() *cobra.Command {
	var id uint64
	cmd := &cobra.Command{
		Use:   "teardown",
		Short: "Initiate a graceful close of an LDP session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return controlPost("/ldp/teardown", idRequest{ID: id})
		},
	}
	cmd.Flags().Uint64Var(&id, "id", 0, "session id (required)")
	return cmd
}

func ldpDisconnectCmd() *cobra.Command {
	var id uint64
	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Force-close an LDP session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return controlPost("/ldp/disconnect", idRequest{ID: id})
		},
	}
	cmd.Flags().Uint64Var(&id, "id", 0, "session id (required)")
	return cmd
}

func ldpTeardownAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teardown-all",
		Short: "Initiate a graceful close of every LDP session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return controlPost("/ldp/teardown-all", nil)
		},
	}
}

func ldpRawUpdateCmd() *cobra.Command {
	var req rawUpdateRequest
	cmd := &cobra.Command{
		Use:   "raw-update",
		Short: "Attach a raw-update file to an LDP session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return controlPost("/ldp/raw-update", req)
		},
	}
	bindRawUpdateFlags(cmd, &req)
	return cmd
}

func ldpRawUpdateListCmd() *cobra.Command {
	var req rawUpdateListRequest
	cmd := &cobra.Command{
		Use:   "raw-update-list",
		Short: "Attach a raw-update file to every LDP session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return controlPost("/ldp/raw-update-list", req)
		},
	}
	bindRawUpdateListFlags(cmd, &req)
	return cmd
}
