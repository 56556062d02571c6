package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvcrn/bearer-proxy/internal/auth"
	"github.com/dvcrn/bearer-proxy/internal/client"
)

const envPassword = "BEARER_PROXY_PASSWORD"

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the issued credentials",
		RunE:  runLogin,
	}
	cmd.Flags().StringP("username", "u", "", "username")
	cmd.Flags().StringP("password", "p", "", "password (defaults to $"+envPassword+")")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE:  runLogout,
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored credential and its expiry",
		RunE:  runStatus,
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the stored credential now",
		RunE:  runRefresh,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(envPassword)
	}
	if password == "" {
		return fmt.Errorf("password required: pass --password or set %s", envPassword)
	}

	a, log, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, log)

	user, err := auth.LoginAt(cmd.Context(), a.Client, a.Store, resolvedCfg.Auth.LoginPath, username, password)
	if err != nil {
		return err
	}

	log.Info().Str("username", user.Username).Strs("roles", user.Roles).Msg("✅ Login successful")
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", user.Username)
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	a, log, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, log)

	if err := a.Store.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}

// statusOutput is what `status` prints.
type statusOutput struct {
	HasCredentials     bool   `json:"hasCredentials"`
	UserID             string `json:"userID,omitempty"`
	ExpiresAt          int64  `json:"expiresAt,omitempty"`
	MinutesUntilExpiry *int64 `json:"minutesUntilExpiry,omitempty"`
	IsExpired          bool   `json:"isExpired"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, log, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, log)

	rec, err := a.Store.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading credentials: %w", err)
	}

	out := statusOutput{}
	if rec != nil {
		now := time.Now()
		out.HasCredentials = true
		out.UserID = rec.UserID
		out.ExpiresAt = rec.ExpiresAt
		out.IsExpired = rec.Expired(now, 0)
		if rec.ExpiresAt != 0 {
			minutes := int64(rec.Until(now) / time.Minute)
			out.MinutesUntilExpiry = &minutes
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	a, log, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, log)

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*resolvedCfg.Upstream.Timeout)
	defer cancel()

	if _, err := a.Dispatcher.ForceRefresh(ctx); err != nil {
		if errors.Is(err, client.ErrNoSession) {
			return errors.New("not logged in")
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Credentials refreshed.")
	return nil
}
