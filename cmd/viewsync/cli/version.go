package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

type VersionInfo struct {
	Version string
	Commit  string
}

func (info VersionInfo) String() string {
	return fmt.Sprintf("%s.%s", info.Version, info.Commit)
}

func NewVersionCommand(info VersionInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("viewsync %s (%s, %s/%s)\n", info, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
