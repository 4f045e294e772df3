package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/folio/pkg/folio"
)

const modulePath = "github.com/mesh-intelligence/folio"

type versionInfo struct {
	Version   string `json:"version"`
	Module    string `json:"module"`
	GoVersion string `json:"go_version"`
}

func newVersionCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the folio version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{Version: folio.Version, Module: modulePath, GoVersion: runtime.Version()}
			return flags.emit(cmd, info, func(w io.Writer) {
				fmt.Fprintf(w, "folio v%s\nmodule: %s\ngo:     %s\n", info.Version, info.Module, info.GoVersion)
			})
		},
	}
}
