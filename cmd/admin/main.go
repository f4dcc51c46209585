package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"replayhub/internal/pkg/clock"
	"replayhub/internal/pkg/validator"
	"replayhub/internal/platform/config"
	"replayhub/internal/platform/database"
	"replayhub/internal/platform/models"
	"replayhub/internal/platform/repositories"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDB() (*sql.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

var rootCmd = &cobra.Command{
	Use:          "admin",
	Short:        "Provision replayhub tenants and users",
	SilenceUsage: true,
}

// tenant command
var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants",
}

var tenantName string

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(tenantName)
		if name == "" {
			return fmt.Errorf("--name is required")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tenant := &models.Tenant{Name: name, CreatedAt: clock.NowMillis(clock.Real{})}
		if err := repositories.NewTenantRepository(db).Create(context.Background(), tenant); err != nil {
			return fmt.Errorf("creating tenant: %w", err)
		}

		fmt.Printf("Tenant %q created with id %d\n", tenant.Name, tenant.TenantID)
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var (
	userTenantID int64
	userEmail    string
	userName     string
	userRole     string
	userPassword string
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user who can log in with a password",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch userRole {
		case models.RoleOwner, models.RoleAdmin, models.RoleMember:
		default:
			return fmt.Errorf("--role must be owner, admin or member")
		}
		if userPassword == "" {
			return fmt.Errorf("--password is required")
		}
		email, err := validator.NormalizeEmail(userEmail)
		if err != nil {
			return fmt.Errorf("--email: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		tenant, err := repositories.NewTenantRepository(db).GetByID(ctx, userTenantID)
		if err != nil {
			return fmt.Errorf("loading tenant: %w", err)
		}
		if tenant == nil {
			return fmt.Errorf("tenant %d not found", userTenantID)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(userPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		user := &models.User{
			TenantID:     tenant.TenantID,
			Email:        email,
			Name:         userName,
			PasswordHash: string(hash),
			Role:         userRole,
			CreatedAt:    clock.NowMillis(clock.Real{}),
		}
		if err := repositories.NewUserRepository(db).Create(ctx, user); err != nil {
			if err == repositories.ErrDuplicate {
				return fmt.Errorf("a user with email %s already exists", user.Email)
			}
			return fmt.Errorf("creating user: %w", err)
		}

		fmt.Printf("User %s created with id %d in tenant %q\n", user.Email, user.UserID, tenant.Name)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to config file")

	tenantCreateCmd.Flags().StringVar(&tenantName, "name", "", "Tenant name")
	tenantCmd.AddCommand(tenantCreateCmd)

	userCreateCmd.Flags().Int64Var(&userTenantID, "tenant", 0, "Tenant id")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Login email")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userCreateCmd.Flags().StringVar(&userRole, "role", models.RoleMember, "owner, admin or member")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "Initial password")
	userCmd.AddCommand(userCreateCmd)

	rootCmd.AddCommand(tenantCmd)
	rootCmd.AddCommand(userCmd)
}
