package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mvtan/jigsaw/internal/repository/db"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [store-location]",
	Short: "List registered encode sessions for a fragment store",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dynamoDb, err := registryDatabase(cmd.Context())
		if err != nil {
			fmt.Printf("Error connecting to the session registry: %v\n", err)
			return
		}
		sessionRepo := db.NewSessionRepository(dynamoDb.Client, cfg.SessionsTable)

		records, err := sessionRepo.ListSessionsByDirectory(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error listing sessions: %v\n", err)
			return
		}
		if len(records) == 0 {
			fmt.Println("No sessions registered for this store")
			return
		}

		for _, r := range records {
			fmt.Printf("%s  %s  key=%s  fragments=%d  bytes=%d  sha256=%s\n",
				r.EncodedAt, r.FileName, r.KeyFileName, r.Fragments, r.TotalBytes, r.SHA256)
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
