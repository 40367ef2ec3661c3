package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"waterbill/internal/auth"
)

// EnvAdminPassword supplies the password for admin create when --password is omitted.
const EnvAdminPassword = "WATERBILL_ADMIN_PASSWORD"

var (
	adminEmail    string
	adminPassword string
	adminRole     string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator account management",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an operator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		password := adminPassword
		if password == "" {
			password = os.Getenv(EnvAdminPassword)
		}
		if password == "" {
			return errors.New("--password or " + EnvAdminPassword + " is required")
		}
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return errors.New("AUTH_JWT_SECRET is required")
		}
		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		service, err := auth.NewLoginService(auth.NewAdminRepository(db), []byte(cfg.JWTSecret), cfg.TokenTTL, auth.WithLoginLogger(logger))
		if err != nil {
			return err
		}
		user, err := service.CreateAdmin(cmd.Context(), adminEmail, password, auth.Role(adminRole))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%d\n", user.Email, user.Role, user.ID)
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminCreateCmd)
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "login email [REQUIRED]")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "login password (or $"+EnvAdminPassword+")")
	adminCreateCmd.Flags().StringVar(&adminRole, "role", string(auth.RoleAdmin), "role: "+roleNames())
	_ = adminCreateCmd.MarkFlagRequired("email")
}

func roleNames() string {
	names := make([]string, 0, 3)
	for _, role := range auth.Roles() {
		names = append(names, string(role))
	}
	return strings.Join(names, ", ")
}
