package cli

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load catalog data and the admin account",
	Long:  "Inserts categories and products from a YAML file or a generated catalog, and optionally upserts an admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		generate, _ := cmd.Flags().GetInt("generate")
		seed, _ := cmd.Flags().GetInt64("seed")
		adminEmail, _ := cmd.Flags().GetString("admin-email")
		adminPassword, _ := cmd.Flags().GetString("admin-password")
		adminName, _ := cmd.Flags().GetString("admin-name")

		if file == "" && generate <= 0 && adminEmail == "" {
			return errors.New("nothing to seed: pass --file, --generate or --admin-email")
		}
		if adminEmail != "" && len(adminPassword) < 8 {
			return errors.New("--admin-password must be at least 8 characters")
		}

		ctx := cmd.Context()
		db, disconnect, err := openDatabase(ctx, config.AppEnv)
		if err != nil {
			return err
		}
		defer disconnect()

		var (
			products   []models.Product
			categories []string
		)
		if file != "" {
			parsed, err := catalog.LoadSeedFile(file)
			if err != nil {
				return err
			}
			products = append(products, parsed.ToProducts()...)
			categories = append(categories, parsed.CategoryNames()...)
		}
		if generate > 0 {
			products = append(products, catalog.Generate(generate, seed)...)
			categories = append(categories, catalog.GeneratedCategories()...)
		}

		if len(categories) > 0 {
			if err := store.NewCategories(db).EnsureNames(ctx, categories); err != nil {
				return err
			}
			log.Printf("[SEED] [INFO] %d categories ensured", len(models.NormalizeList(categories)))
		}
		if len(products) > 0 {
			inserted, err := store.NewProducts(db).InsertMany(ctx, products)
			if err != nil {
				return err
			}
			log.Printf("[SEED] [INFO] %d products inserted", inserted)
		}

		if adminEmail != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			if err := store.NewUsers(db).UpsertAdmin(ctx, adminEmail, adminName, string(hash)); err != nil {
				return err
			}
			log.Println("[SEED] [INFO] admin account ready:", adminEmail)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().String("file", "", "YAML seed file with categories and products")
	seedCmd.Flags().Int("generate", 0, "number of random products to generate")
	seedCmd.Flags().Int64("seed", 1, "random seed for --generate")
	seedCmd.Flags().String("admin-email", "", "email of the admin account to create or promote")
	seedCmd.Flags().String("admin-password", "", "password for the admin account")
	seedCmd.Flags().String("admin-name", "Admin", "display name for a new admin account")
	rootCmd.AddCommand(seedCmd)
}
