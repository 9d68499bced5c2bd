package main

import (
	"github.com/spf13/cobra"

	"mediavault/internal/service"
)

var countCmd = &cobra.Command{
	Use:   "count <account>",
	Short: "Print the number of images stored for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.db.Close()

		n, err := service.NewQueryService(e.db, nil, e.options()).Count(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cmd.Println(n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
}
