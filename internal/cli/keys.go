package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/crateintel/internal/config"
	"github.com/matzehuels/crateintel/pkg/auth"
)

// keyCollection is the mongo collection holding API keys.
const keyCollection = "api_keys"

// newKeysCmd creates the keys command for API key management.
// Key management needs durable storage, so every subcommand requires a
// mongo-backed store in the config file.
func newKeysCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Issue, list, and revoke API keys",
	}

	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to TOML config file")

	cmd.AddCommand(newKeysIssueCmd(&cfgPath))
	cmd.AddCommand(newKeysListCmd(&cfgPath))
	cmd.AddCommand(newKeysRevokeCmd(&cfgPath))

	return cmd
}

// newKeysIssueCmd creates the "keys issue" subcommand.
func newKeysIssueCmd(cfgPath *string) *cobra.Command {
	var (
		caller string
		tier   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, cleanup, err := openKeyStore(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer cleanup()

			svc := auth.NewService(keys, nil)
			key, err := svc.IssueKey(cmd.Context(), caller, auth.Tier(tier), ttl)
			if err != nil {
				return err
			}

			printSuccess("Issued %s key for %s", key.Tier, key.CallerID)
			printNewline()
			printKeyValue("Key", StyleNumber.Render(key.Key))
			printKeyValue("Rate limit", fmt.Sprintf("%d req/min", key.RateLimit))
			printKeyValue("Quota", fmt.Sprintf("%d calls/month", key.MonthlyQuota))
			if !key.ExpiresAt.IsZero() {
				printKeyValue("Expires", key.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "caller identifier the key belongs to")
	cmd.Flags().StringVar(&tier, "tier", string(auth.TierFree), "key tier: free, pro, or enterprise")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "key lifetime (0 means no expiry)")
	_ = cmd.MarkFlagRequired("caller")

	return cmd
}

// newKeysListCmd creates the "keys list" subcommand.
func newKeysListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, cleanup, err := openKeyStore(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer cleanup()

			recs, err := keys.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				printInfo("No keys found")
				return nil
			}

			for _, rec := range recs {
				status := "active"
				if !rec.Active {
					status = "revoked"
				} else if rec.Expired() {
					status = "expired"
				}
				fmt.Println(StyleValue.Render(rec.Key))
				printDetail("%s · %s · %s · %d/%d calls this month",
					rec.CallerID, rec.Tier, status, rec.Usage, rec.MonthlyQuota)
			}
			return nil
		},
	}
}

// newKeysRevokeCmd creates the "keys revoke" subcommand.
func newKeysRevokeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key>",
		Short: "Deactivate an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, cleanup, err := openKeyStore(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer cleanup()

			rec, ok, err := keys.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("key %q not found", args[0])
			}

			rec.Active = false
			if err := keys.Put(cmd.Context(), rec); err != nil {
				return err
			}
			printSuccess("Revoked key for %s", rec.CallerID)
			return nil
		},
	}
}

// openKeyStore connects to the configured mongo database and opens the
// key collection. The returned cleanup disconnects the client.
func openKeyStore(ctx context.Context, cfgPath string) (auth.KeyStore, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Backend != "mongo" || cfg.Store.MongoURI == "" {
		return nil, nil, fmt.Errorf("key management requires a mongo-backed store; set [store] backend = \"mongo\" in the config file")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Store.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	}

	dbName := cfg.Store.MongoDatabase
	if dbName == "" {
		dbName = appName
	}
	keys, err := auth.NewMongoKeyStore(ctx, client.Database(dbName), keyCollection)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return keys, cleanup, nil
}
