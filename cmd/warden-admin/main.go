// Package main provides the Warden administrative CLI. It works directly
// against the database for bootstrap tasks and mints admin bearer tokens for
// the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iteksmart/warden/internal/auth"
	"github.com/iteksmart/warden/internal/db"
	"github.com/iteksmart/warden/internal/license"
	"github.com/iteksmart/warden/internal/models"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "warden-admin",
		Short:        "Warden administrative tasks",
		Long:         "Bootstrap organizations, licenses and API keys, and mint admin tokens for the Warden server.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newTokenCmd(),
		newOrgCmd(),
		newLicenseCmd(),
		newAPIKeyCmd(),
		newDBCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Warden Admin %s\n", Version)
			fmt.Printf("  Commit:     %s\n", Commit)
			fmt.Printf("  Built:      %s\n", BuildDate)
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		subject  string
		role     string
		ttlHours int
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token",
		Long:  "Mint a signed admin token for the administrative HTTP endpoints. The signing secret is read from ADMIN_TOKEN_SECRET.",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("ADMIN_TOKEN_SECRET")
			if secret == "" {
				return fmt.Errorf("ADMIN_TOKEN_SECRET environment variable is required")
			}

			tokens := auth.NewTokenManager(secret, time.Duration(ttlHours)*time.Hour)
			token, err := tokens.Issue(subject, role)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}

			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Token subject, usually the operator's name (required)")
	cmd.Flags().StringVar(&role, "role", "admin", "Token role")
	cmd.Flags().IntVar(&ttlHours, "ttl", 12, "Token lifetime in hours")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newOrgCmd() *cobra.Command {
	orgCmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}

	var (
		name   string
		domain string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(time.Minute, func(ctx context.Context, database *db.DB) error {
				existing, err := database.GetOrganizationByDomain(ctx, domain)
				if err != nil {
					return fmt.Errorf("check domain: %w", err)
				}
				if existing != nil {
					return fmt.Errorf("domain %s already registered to %s", domain, existing.ID)
				}

				org := models.NewOrganization(name, domain)
				if err := database.CreateOrganization(ctx, org); err != nil {
					return fmt.Errorf("create organization: %w", err)
				}

				fmt.Printf("Organization created\n  ID:     %s\n  Name:   %s\n  Domain: %s\n", org.ID, org.Name, org.Domain)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "Organization name (required)")
	createCmd.Flags().StringVar(&domain, "domain", "", "Organization domain (required)")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("domain")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(time.Minute, func(ctx context.Context, database *db.DB) error {
				orgs, err := database.ListOrganizations(ctx)
				if err != nil {
					return fmt.Errorf("list organizations: %w", err)
				}
				for _, org := range orgs {
					fmt.Printf("%s  %-30s %s\n", org.ID, org.Name, org.Domain)
				}
				return nil
			})
		},
	}

	orgCmd.AddCommand(createCmd, listCmd)
	return orgCmd
}

func newLicenseCmd() *cobra.Command {
	licenseCmd := &cobra.Command{
		Use:   "license",
		Short: "Manage licenses",
	}

	var (
		orgID    string
		tier     string
		products []string
		trial    bool
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a license",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(time.Minute, func(ctx context.Context, database *db.DB) error {
				org, err := lookupOrg(ctx, database, orgID)
				if err != nil {
					return err
				}

				licTier := models.LicenseTier(strings.ToUpper(tier))
				ent, ok := license.DefaultsFor(licTier)
				if !ok {
					return fmt.Errorf("unknown tier %q", tier)
				}

				key, err := license.GenerateKey()
				if err != nil {
					return err
				}

				lic := models.NewLicense(org.ID, key, licTier)
				lic.MaxUsers = ent.MaxUsers
				lic.MaxProducts = ent.MaxProducts
				lic.MaxAPICalls = ent.MaxAPICalls
				lic.MaxStorageBytes = ent.MaxStorageBytes
				lic.Features = ent.Features
				lic.AllowedProducts = products
				if trial || licTier == models.TierTrial {
					lic.StartTrial()
				}

				if err := database.CreateLicense(ctx, lic); err != nil {
					return fmt.Errorf("create license: %w", err)
				}

				fmt.Printf("License created\n  ID:   %s\n  Key:  %s\n  Tier: %s\n", lic.ID, lic.Key, lic.Tier)
				if lic.TrialEndsAt != nil {
					fmt.Printf("  Trial ends: %s\n", lic.TrialEndsAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&orgID, "org", "", "Organization ID or domain (required)")
	createCmd.Flags().StringVar(&tier, "tier", "", "License tier: TRIAL, STARTER, PROFESSIONAL, ENTERPRISE, UNLIMITED (required)")
	createCmd.Flags().StringSliceVar(&products, "products", nil, "Allowed product IDs")
	createCmd.Flags().BoolVar(&trial, "trial", false, "Start a trial window")
	_ = createCmd.MarkFlagRequired("org")
	_ = createCmd.MarkFlagRequired("tier")

	licenseCmd.AddCommand(createCmd)
	return licenseCmd
}

func newAPIKeyCmd() *cobra.Command {
	apikeyCmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage organization API keys",
	}

	var (
		orgID  string
		name   string
		scopes []string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an organization API key",
		Long:  "Issue an organization API key. The plaintext key is printed once; only its hash is stored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(time.Minute, func(ctx context.Context, database *db.DB) error {
				org, err := lookupOrg(ctx, database, orgID)
				if err != nil {
					return err
				}

				keyScopes := make([]models.APIKeyScope, 0, len(scopes))
				for _, s := range scopes {
					keyScopes = append(keyScopes, models.APIKeyScope(s))
				}

				plaintext, err := license.GenerateOrgKey()
				if err != nil {
					return err
				}

				key := models.NewAPIKey(org.ID, name, license.HashCredential(plaintext), keyScopes)
				if err := database.CreateAPIKey(ctx, key); err != nil {
					return fmt.Errorf("create API key: %w", err)
				}

				fmt.Printf("API key created\n  ID:     %s\n  Scopes: %v\n  Key:    %s\n", key.ID, key.Scopes, plaintext)
				fmt.Println("Store the key now; it cannot be shown again.")
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&orgID, "org", "", "Organization ID or domain (required)")
	createCmd.Flags().StringVar(&name, "name", "", "Key name (required)")
	createCmd.Flags().StringSliceVar(&scopes, "scopes", nil, "Scopes: validate, agents, usage, webhooks (default all)")
	_ = createCmd.MarkFlagRequired("org")
	_ = createCmd.MarkFlagRequired("name")

	apikeyCmd.AddCommand(createCmd)
	return apikeyCmd
}

func newDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the database schema",
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(5*time.Minute, func(ctx context.Context, database *db.DB) error {
				if err := database.Migrate(ctx); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				version, err := database.CurrentVersion(ctx)
				if err != nil {
					return fmt.Errorf("get schema version: %w", err)
				}
				fmt.Printf("Schema at version %d\n", version)
				return nil
			})
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(time.Minute, func(ctx context.Context, database *db.DB) error {
				version, err := database.CurrentVersion(ctx)
				if err != nil {
					return fmt.Errorf("get schema version: %w", err)
				}
				fmt.Printf("Schema at version %d\n", version)
				return nil
			})
		},
	}

	migrationsCmd := &cobra.Command{
		Use:   "migrations",
		Short: "List bundled migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrations, err := db.Migrations()
			if err != nil {
				return fmt.Errorf("list migrations: %w", err)
			}
			for _, m := range migrations {
				fmt.Printf("%03d: %s\n", m.Version, m.Name)
			}
			return nil
		},
	}

	dbCmd.AddCommand(migrateCmd, versionCmd, migrationsCmd)
	return dbCmd
}

func withDB(timeout time.Duration, fn func(ctx context.Context, database *db.DB) error) error {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	cfg := db.DefaultConfig(url)
	cfg.MaxConns = 2
	cfg.MinConns = 1

	database, err := db.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	return fn(ctx, database)
}

// lookupOrg resolves an organization by UUID or by domain.
func lookupOrg(ctx context.Context, database *db.DB, ref string) (*models.Organization, error) {
	if id, err := uuid.Parse(ref); err == nil {
		org, err := database.GetOrganization(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("look up organization: %w", err)
		}
		if org == nil {
			return nil, fmt.Errorf("organization %s not found", ref)
		}
		return org, nil
	}

	org, err := database.GetOrganizationByDomain(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("look up organization: %w", err)
	}
	if org == nil {
		return nil, fmt.Errorf("organization %s not found", ref)
	}
	return org, nil
}
