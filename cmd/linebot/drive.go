package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kame-terry/line-bot/internal/config"
	"github.com/Kame-terry/line-bot/internal/upload"
)

// driveCmd holds the one-time, operator-run OAuth bootstrap. The server
// itself never starts an interactive authorization.
func driveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Google Drive authorization for image uploads",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "auth",
		Short: "Print the consent URL to authorize Drive uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			oc, err := upload.LoadOAuthConfig(cfg.Drive.CredentialsFile)
			if err != nil {
				return err
			}
			fmt.Println("Open this URL, approve access, then run:")
			fmt.Println("  linebot drive token --code <code>")
			fmt.Println()
			fmt.Println(upload.AuthURL(oc))
			return nil
		},
	})

	var code string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Exchange an authorization code and cache the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if code == "" {
				return errors.New("--code is required")
			}
			cfg, err := config.Read(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			oc, err := upload.LoadOAuthConfig(cfg.Drive.CredentialsFile)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			tok, err := upload.ExchangeCode(ctx, oc, code, cfg.Drive.TokenFile)
			if err != nil {
				return err
			}
			logger.Info("drive token saved",
				"file", cfg.Drive.TokenFile,
				"refreshable", tok.RefreshToken != "",
				"expiry", tok.Expiry.Format(time.RFC3339),
			)
			if tok.RefreshToken == "" {
				fmt.Fprintln(os.Stderr, "warning: no refresh token returned; uploads stop working when the token expires")
			}
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&code, "code", "", "authorization code from the consent page")
	cmd.AddCommand(tokenCmd)

	return cmd
}
