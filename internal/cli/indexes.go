package cli

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/config"
	"storefront/internal/database"
)

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create the MongoDB indexes",
	Long:  "Creates every index the stores rely on, including the unique default-address guard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, disconnect, err := openDatabase(ctx, config.AppEnv)
		if err != nil {
			return err
		}
		defer disconnect()

		if err := database.EnsureIndexes(ctx, db); err != nil {
			return err
		}
		log.Println("[CLI] [INFO] indexes ready on", db.Name())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexesCmd)
}

func openDatabase(ctx context.Context, cfg config.Config) (*mongo.Database, func(), error) {
	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	disconnect := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Println("[CLI] [WARN] mongo disconnect:", err)
		}
	}
	return client.Database(cfg.DBName), disconnect, nil
}
