package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contexor/contexor/cmd/service"
)

func main() {
	root := &cobra.Command{
		Use:   "contexor",
		Short: "contexor",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("empty command")
		},
	}

	root.AddCommand(
		service.NewCommand(),
		service.NewProcessCommand(),
		service.NewInstallCommand(),
		service.NewUsageCommand(),
		service.NewBudgetCommand(),
		service.NewLimitCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
