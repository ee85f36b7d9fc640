package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/onewordstudios/sweetspace-sub002/internal/protocol"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Println(version)
				return
			}
			fmt.Printf("Version:     %s\n", version)
			fmt.Printf("Commit:      %s\n", commit)
			fmt.Printf("Wire API:    %d\n", protocol.APIVersion)
			fmt.Printf("Go version:  %s\n", runtime.Version())
			fmt.Printf("OS/Arch:     %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}
