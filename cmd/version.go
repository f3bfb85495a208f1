package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mailproxy version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mailproxy version %s\n", version)
		},
	}
}
