package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var botTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

const configTemplate = `version: "1"

modules:
  analytics.sqlite:
    path: analytics.db

  observability.tracing:
    endpoint: ""

  provider.yandex:
    folder_id: %q
    api_key: ${YANDEX_API_KEY}
    model: %q

  ingest.docs:
    docs_dir: %q
    watch: true

  session.manager: {}

  gateway.http:
    bind: 127.0.0.1:8080

  maintenance.cron:
    retention:
      keep_days: 180

  channel.telegram:
    token: ${TELEGRAM_BOT_TOKEN}
`

// initCmd interactively collects the minimum viable configuration and
// writes askdocs.yaml plus a .env with the secrets.
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(_ *cobra.Command, _ []string) error {
			var (
				botToken string
				folderID string
				apiKey   string
				model    = "yandexgpt-lite/latest"
				docsDir  = "./docs"
			)

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Telegram bot token").
						Description("From @BotFather").
						EchoMode(huh.EchoModePassword).
						Value(&botToken).
						Validate(func(s string) error {
							if !botTokenPattern.MatchString(s) {
								return errors.New("expected <bot_id>:<hash>")
							}
							return nil
						}),
					huh.NewInput().
						Title("Cloud folder ID").
						Value(&folderID).
						Validate(func(s string) error {
							if strings.TrimSpace(s) == "" {
								return errors.New("folder ID is required")
							}
							return nil
						}),
					huh.NewInput().
						Title("API key").
						Description("Service account API key for the ML platform").
						EchoMode(huh.EchoModePassword).
						Value(&apiKey).
						Validate(func(s string) error {
							if strings.TrimSpace(s) == "" {
								return errors.New("API key is required")
							}
							return nil
						}),
					huh.NewInput().
						Title("Model").
						Value(&model),
					huh.NewInput().
						Title("Documents directory").
						Value(&docsDir),
				),
			)

			if err := form.Run(); err != nil {
				return err
			}

			if _, err := os.Stat("askdocs.yaml"); err == nil {
				return errors.New("askdocs.yaml already exists, refusing to overwrite")
			}

			cfg := fmt.Sprintf(configTemplate, folderID, model, docsDir)
			if err := os.WriteFile("askdocs.yaml", []byte(cfg), 0o644); err != nil {
				return err
			}

			// Secrets go into .env, referenced from the config via ${VAR}.
			env := fmt.Sprintf("TELEGRAM_BOT_TOKEN=%s\nYANDEX_API_KEY=%s\n", botToken, apiKey)
			if err := os.WriteFile(".env", []byte(env), 0o600); err != nil {
				return err
			}

			fmt.Println("Wrote askdocs.yaml and .env")
			fmt.Println("Put your documents into", docsDir, "and run: askdocs start")
			return nil
		},
	}
}
