package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/workhub/internal/app"
	"github.com/nhle/workhub/internal/credential"
	"github.com/nhle/workhub/internal/hubapi"
	"github.com/nhle/workhub/internal/kvsync"
	"github.com/nhle/workhub/internal/logger"
	"github.com/nhle/workhub/internal/model"
)

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var baseURL, tok string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token and sign in every running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				baseURL = opts.cfg.API.BaseURL
			}
			if tok == "" {
				if err := loginForm(&baseURL, &tok).Run(); err != nil {
					return fmt.Errorf("login canceled: %w", err)
				}
			}
			return runLogin(cmd, opts, strings.TrimSpace(baseURL), strings.TrimSpace(tok))
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Work Hub server URL")
	cmd.Flags().StringVar(&tok, "token", "", "API bearer token (prompted when omitted)")
	return cmd
}

func loginForm(baseURL, tok *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL").
				Description("Work Hub server URL (e.g., https://hub.example.com)").
				Placeholder("https://hub.example.com").
				Value(baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("API token").
				Description("Your personal access token").
				EchoMode(huh.EchoModePassword).
				Value(tok).
				Validate(validateRequired("Token")),
		),
	)
}

func runLogin(cmd *cobra.Command, opts *rootOptions, baseURL, tok string) error {
	l := logger.WithComponent("login")
	if err := validateURL(baseURL); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	client := hubapi.NewClient(baseURL, tok, hubapi.WithLogger(l))
	count, err := client.FetchUnreadCount(ctx)
	if err != nil {
		var authErr *hubapi.AuthError
		if errors.As(err, &authErr) {
			return fmt.Errorf("token rejected by %s: %s", baseURL, authErr.Message)
		}
		l.Warn("could not verify token, storing it anyway", "error", err)
	}

	if err := credential.Set(credential.TokenKey, tok); err != nil {
		return err
	}

	if baseURL != opts.cfg.API.BaseURL {
		opts.cfg.API.BaseURL = baseURL
		if err := model.SaveConfig(opts.configPath, opts.cfg); err != nil {
			return err
		}
	}

	if err := setAuthFlag(opts.cfg, true); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Signed in to %s (%d unread)\n", baseURL, count)
	return nil
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the API token and sign out every running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setAuthFlag(opts.cfg, false); err != nil {
				return err
			}
			if err := credential.Delete(credential.TokenKey); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// setAuthFlag writes the shared auth flag so running instances connect or
// disconnect.
func setAuthFlag(cfg *model.AppConfig, v bool) error {
	backend, err := app.OpenBackend(cfg.State, logger.WithComponent("kvsync"))
	if err != nil {
		return err
	}
	hub := kvsync.NewHub(backend)
	defer hub.Close()

	flag := kvsync.Bind(hub, model.KeyAuthFlag, kvsync.Options[bool]{})
	defer flag.Close()
	flag.Set(v)
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}
