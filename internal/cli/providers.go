package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/aicr/internal/providers"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect language model providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supported providers and their credential status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range providers.Names {
			env := providers.CredentialEnv(name)
			marker := " "
			if name == strings.ToLower(cfg.LLM.Provider) {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-10s default model: %-24s %s (%s)\n",
				marker, name, providers.DefaultModel(name), env, setOrUnset(os.Getenv(env)))
		}
		return nil
	},
}

var providersDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the configured provider accepts its credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Checking %s (%s)...\n", cfg.LLM.Provider, cfg.LLM.Model)

		p, err := providers.New(cfg.LLM.Provider, providers.Settings{
			Model:   cfg.LLM.Model,
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLMTimeout(),
		})
		if err != nil {
			fail(cmd, ExitAuthError, err)
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		_, err = p.Review(ctx, providers.ReviewRequest{
			SystemPrompt: "Respond with exactly: ok",
			UserPrompt:   "ping",
			MaxTokens:    10,
		})
		if err != nil {
			code := ExitRuntimeError
			if providers.IsAuthError(err) {
				code = ExitAuthError
			}
			fail(cmd, code, err)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s is configured and responding\n", cfg.LLM.Provider)
		return nil
	},
}

func init() {
	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersDoctorCmd)
	providersDoctorCmd.Flags().StringVar(&flagProvider, "provider", "", "Provider to check")
	providersDoctorCmd.Flags().StringVar(&flagModel, "model", "", "Model to check")
}
