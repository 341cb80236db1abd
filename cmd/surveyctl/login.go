package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/amirphl/callback-survey/app/dto"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newLoginCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange admin credentials for a bearer token",
		Long: `Login prints an access token for the submissions endpoints.

Use it as: export SURVEYCTL_TOKEN=$(surveyctl login --username admin)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password := v.GetString("username"), v.GetString("password")
			if username == "" || password == "" {
				return errors.New("username and password are required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
			defer cancel()

			body, err := json.Marshal(dto.AdminLoginRequest{Username: username, Password: password})
			if err != nil {
				return err
			}
			endpoint := strings.TrimRight(v.GetString("api"), "/") + "/api/admin/login"
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			var resp dto.AdminLoginResponse
			if err := doEnvelope(req, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Session.AccessToken)
			return nil
		},
	}

	cmd.Flags().String("username", "", "admin username")
	cmd.Flags().String("password", "", "admin password (prefer SURVEYCTL_PASSWORD)")
	_ = v.BindPFlag("username", cmd.Flags().Lookup("username"))
	_ = v.BindPFlag("password", cmd.Flags().Lookup("password"))

	return cmd
}
