package commands

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const formatJSON = "json"

// idRequest mirrors internal/control's idRequest body for teardown and
// disconnect commands.
type idRequest struct {
	ID uint64 `json:"id"`
}

// rawUpdateRequest mirrors internal/control's rawUpdateRequest body.
type rawUpdateRequest struct {
	ID       uint64 `json:"id"`
	File     string `json:"file"`
	Messages uint32 `json:"messages"`
	PDUs     uint32 `json:"pdus"`
}

// ifaceRequest mirrors internal/control's ifaceRequest body.
type ifaceRequest struct {
	Interface string `json:"interface"`
	Reason    string `json:"reason,omitempty"`
}

// rawUpdateListRequest mirrors internal/control's rawUpdateListRequest body.
type rawUpdateListRequest struct {
	File     string `json:"file"`
	Messages uint32 `json:"messages"`
	PDUs     uint32 `json:"pdus"`
}

// bindRawUpdateFlags registers the flags shared by the bgp/ldp raw-update
// subcommands onto req.
func bindRawUpdateFlags(cmd *cobra.Command, req *rawUpdateRequest) {
	cmd.Flags().Uint64Var(&req.ID, "id", 0, "session id (required)")
	cmd.Flags().StringVar(&req.File, "file", "", "path to the raw-update file, resolved on the daemon host (required)")
	cmd.Flags().Uint32Var(&req.Messages, "messages", 0, "precomputed message count for statistics")
	cmd.Flags().Uint32Var(&req.PDUs, "pdus", 0, "precomputed PDU count for statistics")
}

// bindRawUpdateListFlags registers the flags shared by the bgp/ldp
// raw-update-list subcommands onto req.
func bindRawUpdateListFlags(cmd *cobra.Command, req *rawUpdateListRequest) {
	cmd.Flags().StringVar(&req.File, "file", "", "path to the raw-update file, resolved on the daemon host (required)")
	cmd.Flags().Uint32Var(&req.Messages, "messages", 0, "precomputed message count for statistics")
	cmd.Flags().Uint32Var(&req.PDUs, "pdus", 0, "precomputed PDU count for statistics")
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(stdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stdout is indirected so tests could substitute a buffer; production
// callers always get os.Stdout.
func stdout() io.Writer { return os.Stdout }
