package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hijo-electricity/hijo/internal/service"
	"github.com/hijo-electricity/hijo/internal/store"
)

const minPasswordLen = 8

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin users",
		Long:  "Create, list and reset the passwords of the admins who manage projects and read the contact inbox.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminPasswdCmd())

	return cmd
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin user",
		Example: `  hijo admin create --username hijo-admin --password secret123
  hijo admin create --username hijo-admin   # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(cmd.Context(), username, password)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Admin username (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runAdminCreate(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 50 {
		return fmt.Errorf("username must be between 3 and 50 characters")
	}
	password, err := resolvePassword(password)
	if err != nil {
		return err
	}

	authSvc, closeFn, err := openAuth()
	if err != nil {
		return err
	}
	defer closeFn()

	admin, err := authSvc.CreateAdmin(ctx, username, password)
	if errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("admin %q already exists", username)
	}
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Printf("Created admin user %q (id %d)\n", admin.Username, admin.ID)
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminList(cmd.Context(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminList(ctx context.Context, jsonOutput bool) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	st, err := openStore(s)
	if err != nil {
		return err
	}
	defer st.Close()

	admins, err := st.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(admins)
	}

	if len(admins) == 0 {
		fmt.Println("No admin users configured. Use 'hijo admin create' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-30s %-20s\n", "ID", "USERNAME", "CREATED")
	fmt.Printf("%-6s %-30s %-20s\n", "--", "--------", "-------")
	for _, a := range admins {
		fmt.Printf("%-6d %-30s %-20s\n", a.ID, a.Username, a.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// ---------- admin passwd ----------

func newAdminPasswdCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Set a new password for an admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminPasswd(cmd.Context(), args[0], password)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "New password (prompted if omitted)")

	return cmd
}

func runAdminPasswd(ctx context.Context, username, password string) error {
	password, err := resolvePassword(password)
	if err != nil {
		return err
	}

	authSvc, closeFn, err := openAuth()
	if err != nil {
		return err
	}
	defer closeFn()

	err = authSvc.ChangePassword(ctx, username, password)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("admin %q not found", username)
	}
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	fmt.Printf("Password updated for %q\n", username)
	return nil
}

// openAuth opens the store and an AuthService on it. Tokens are never issued
// from the CLI, so the secret only has to satisfy config validation.
func openAuth() (*service.AuthService, func(), error) {
	s, err := loadSettings()
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(s)
	if err != nil {
		return nil, nil, err
	}
	authSvc := service.NewAuthService(st, service.NewTokenService(s.Auth.JWTSecret, s.Auth.TokenTTL))
	return authSvc, func() { st.Close() }, nil
}

// resolvePassword prompts twice when password is empty and enforces the
// minimum length.
func resolvePassword(password string) (string, error) {
	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return "", fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return "", fmt.Errorf("passwords do not match")
		}
	}

	if len(password) < minPasswordLen {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	return password, nil
}
