package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/amirphl/callback-survey/app/dto"
	"github.com/amirphl/callback-survey/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newListCmd(v *viper.Viper) *cobra.Command {
	var (
		page     int
		pageSize int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := v.GetString("token")
			if token == "" {
				return errors.New("an admin token is required (--token or SURVEYCTL_TOKEN)")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
			defer cancel()

			var resp dto.ListSubmissionsResponse
			if err := getSubmissions(ctx, v.GetString("api"), token, page, pageSize, &resp); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			return printSubmissions(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().String("token", "", "admin bearer token")
	_ = v.BindPFlag("token", cmd.Flags().Lookup("token"))
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "rows per page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw page as JSON")

	return cmd
}

func getSubmissions(ctx context.Context, api, token string, page, pageSize int, out *dto.ListSubmissionsResponse) error {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	endpoint := strings.TrimRight(api, "/") + "/api/submissions?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return doEnvelope(req, out)
}

// doEnvelope sends req and decodes the data of a successful API envelope into out
func doEnvelope(req *http.Request, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
		Error   dto.ErrorDetail `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("unexpected response (HTTP %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		return fmt.Errorf("%s (HTTP %d, %s)", env.Message, resp.StatusCode, env.Error.Code)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

func printSubmissions(w io.Writer, page dto.ListSubmissionsResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tNAME\tPHONE\tCALL TIME\tMAX ATTEMPTS\tNOTES")
	for _, item := range page.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.ID, item.CreatedAt, item.Name, item.Phone, item.CallTime, item.MaxAttempts, utils.Truncate(strings.ReplaceAll(item.Notes, "\n", " "), 40))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p := page.Pagination
	_, err := fmt.Fprintf(w, "\npage %d of %d (%d total)\n", p.Page, p.TotalPages, p.Total)
	return err
}
