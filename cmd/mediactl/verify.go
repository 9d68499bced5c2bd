package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediavault/internal/bootstrap"
	"mediavault/internal/service"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <account> <identifier>",
	Short: "Recompute the checksum of a stored blob and compare it to its record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.db.Close()

		blobs, err := bootstrap.OpenStorage(cmd.Context(), e.cfg.Storage)
		if err != nil {
			return err
		}

		rec, data, err := service.NewImageService(e.db, blobs, e.options()).Load(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if sum := service.Checksum(data); sum != rec.Checksum {
			return fmt.Errorf("checksum mismatch: record %s, blob %s", rec.Checksum, sum)
		}
		cmd.Printf("ok %s %d bytes\n", rec.Checksum, len(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
