package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kame-terry/line-bot/internal/config"
	"github.com/Kame-terry/line-bot/internal/upload"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the deployment",
		Long: `Verifies configuration, credentials of the optional integrations, the
scratch directory, the SQLite archive and the listen port. Reports
pass/warn/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("linebot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			var r report

			if _, err := os.Stat(cfgPath); err != nil {
				r.warn("Config file", fmt.Sprintf("%s not found, using environment only", cfgPath))
			} else {
				r.pass("Config file", cfgPath)
			}

			cfg, err := config.Read(cfgPath)
			if err != nil {
				r.fail("Config parse", err.Error())
				return r.finish()
			}
			if err := config.Validate(cfg); err != nil {
				r.fail("Config validation", err.Error())
			} else {
				r.pass("Config validation", "valid")
			}

			if config.IsPlaceholder(cfg.LINE.AllowedUserID) {
				r.warn("Access gate", "ALLOWED_USER_ID not set, every user is authorized")
			} else {
				r.pass("Access gate", "single user")
			}

			switch cfg.Archive.Backend {
			case config.ArchiveBackendSQLite:
				if err := checkDatabase(cfg.Archive.SQLitePath); err != nil {
					r.fail("SQLite archive", err.Error())
				} else {
					r.pass("SQLite archive", cfg.Archive.SQLitePath)
				}
			case config.ArchiveBackendNotion:
				if cfg.NotionConfigured() {
					r.pass("Notion archive", "configured")
				} else {
					r.warn("Notion archive", "credentials missing, notes will not be saved")
				}
			default:
				r.warn("Archive", "disabled")
			}

			if cfg.DriveConfigured() {
				if err := checkDriveToken(cfg.Drive.TokenFile); err != nil {
					r.fail("Google Drive", err.Error())
				} else {
					r.pass("Google Drive", cfg.Drive.TokenFile)
				}
			} else {
				r.warn("Google Drive", "not configured, image notes disabled")
			}

			if cfg.ApifyConfigured() {
				r.pass("Apify", "configured")
			} else {
				r.warn("Apify", "not configured, Facebook/Threads links cannot be read")
			}

			dir := cfg.App.TempDir
			if dir == "" {
				dir = os.TempDir()
			}
			if err := checkWritable(dir); err != nil {
				r.fail("Temp dir", err.Error())
			} else {
				r.pass("Temp dir", dir)
			}

			if err := checkPort(cfg.App.Port); err != nil {
				r.warn("Port", fmt.Sprintf("port %d may be in use: %v", cfg.App.Port, err))
			} else {
				r.pass("Port", fmt.Sprintf(":%d available", cfg.App.Port))
			}

			return r.finish()
		},
	}
}

type report struct {
	passed, warned, failed int
}

func (r *report) pass(check, detail string) {
	r.passed++
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func (r *report) warn(check, detail string) {
	r.warned++
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}

func (r *report) fail(check, detail string) {
	r.failed++
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func (r *report) finish() error {
	fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	return nil
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	_, _ = db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")
	return nil
}

// checkDriveToken reports whether uploads can authenticate without an
// operator: a valid token, or an expired one that carries a refresh token.
func checkDriveToken(path string) error {
	tok, err := upload.LoadToken(path)
	if err != nil {
		return fmt.Errorf("no token at %s, run 'linebot drive auth'", path)
	}
	if !tok.Valid() && tok.RefreshToken == "" {
		return fmt.Errorf("token expired and not refreshable, run 'linebot drive auth'")
	}
	return nil
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, "doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	return ln.Close()
}
