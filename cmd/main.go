package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mvtan/jigsaw/internal/config"
	"github.com/mvtan/jigsaw/internal/logging"
	"github.com/mvtan/jigsaw/internal/repository/db"
	"github.com/mvtan/jigsaw/internal/repository/fragmentstore"
)

var (
	cfg        *config.Config
	configPath string
	factory    *fragmentstore.Factory
)

var rootCmd = &cobra.Command{
	Use:   "jigsaw",
	Short: "Fragment files into puzzle pieces and reassemble them",
	Long: "A CLI application that slices a file into randomly named fragments " +
		"spread across one or more stores, records them in a key file, and " +
		"reassembles the original from the key file with full fidelity checks",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().String("slicer", "even", "Slicing mode: even or uneven")
	rootCmd.PersistentFlags().Int64("blocksize", 32768, "Block size in bytes (uneven mode uses it as the lower bound)")
	rootCmd.PersistentFlags().Int("filenamelength", 30, "Length of generated fragment names")
	rootCmd.PersistentFlags().Int("hashlength", 16, "Hex length of per-fragment digests")
	rootCmd.PersistentFlags().IntP("verbose", "v", 2, "Verbosity: 1 prints every manifest line")
	rootCmd.PersistentFlags().Int("parity", 0, "Number of Reed-Solomon parity fragments to add")
	rootCmd.PersistentFlags().Bool("strict", false, "Abort decoding on the first fragment digest mismatch")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress progress bars")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize and migrate the session registry",
	Run: func(cmd *cobra.Command, args []string) {
		dynamoDb, err := registryDatabase(cmd.Context())
		if err != nil {
			fmt.Printf("Failed to connect to the session registry: %v\n", err)
			return
		}

		if err := dynamoDb.MigrateDb(cmd.Context()); err != nil {
			fmt.Printf("Failed to migrate the session registry: %v\n", err)
			return
		}
		fmt.Println("Session registry initialized and migrated successfully")

		if tables, err := dynamoDb.RegistryTables(cmd.Context()); err == nil {
			for _, arn := range tables {
				fmt.Printf("Registry table: %s\n", arn)
			}
		}
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back session registry migrations",
	Run: func(cmd *cobra.Command, args []string) {
		dynamoDb, err := registryDatabase(cmd.Context())
		if err != nil {
			fmt.Printf("Failed to connect to the session registry: %v\n", err)
			return
		}

		if err := dynamoDb.MigrateDown(cmd.Context()); err != nil {
			fmt.Printf("Failed to roll back migrations: %v\n", err)
			return
		}

		fmt.Println("Session registry migrations rolled back successfully")
	},
}

func initConfig() {
	var err error
	cfg, err = config.LoadConfig(configPath, rootCmd)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logging.InitLogger(cfg)

	factory = fragmentstore.NewFactory()
}

// registryDatabase builds the DynamoDB clients behind the encode session
// registry. Only registry commands call it, so local-only use never needs
// AWS credentials.
func registryDatabase(ctx context.Context) (*db.DynamoDb, error) {
	awsCfg, err := config.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return db.NewDatabase(awsCfg)
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(downCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
