package main

import (
	"context"
	"fmt"

	"github.com/amirphl/callback-survey/app/surveyform"
	"github.com/amirphl/callback-survey/app/views"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSubmitCmd(v *viper.Viper) *cobra.Command {
	var (
		values = map[surveyform.Field]*string{}
		formID string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one survey through the public API",
		Long: `Submit fills a survey form from flags and posts it once.

The form id doubles as the idempotency key, so re-running with the same
--form-id never stores a second row.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if formID == "" {
				formID = surveyform.NewID()
			}

			quiet := logrus.New()
			quiet.SetOutput(cmd.ErrOrStderr())
			quiet.SetLevel(logrus.WarnLevel)

			client := surveyform.NewClient(v.GetString("api"), v.GetDuration("timeout"))
			alerter := surveyform.AlerterFunc(func(message string) {
				fmt.Fprintln(cmd.ErrOrStderr(), message)
			})
			form := surveyform.New(formID, client, alerter, surveyform.WithLogger(quiet))

			for _, field := range surveyform.Fields {
				if err := form.UpdateField(field, *values[field]); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
			defer cancel()

			result, err := form.Submit(ctx)
			if err != nil {
				return err
			}

			switch result.Outcome {
			case surveyform.OutcomeAccepted:
				fmt.Fprintln(cmd.OutOrStdout(), views.ThankYouText)
				fmt.Fprintf(cmd.OutOrStdout(), "form id: %s\n", formID)
				return nil
			case surveyform.OutcomeRejected:
				return fmt.Errorf("submission rejected with HTTP %d", result.StatusCode)
			default:
				return fmt.Errorf("submission failed: %w", result.Err)
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&formID, "form-id", "", "form id sent as the idempotency key (generated when empty)")
	for _, field := range surveyform.Fields {
		values[field] = new(string)
	}
	flags.StringVar(values[surveyform.FieldName], "name", "", "respondent name")
	flags.StringVar(values[surveyform.FieldPhone], "phone", "", "phone number")
	flags.StringVar(values[surveyform.FieldCallTime], "call-time", "", "preferred call time")
	flags.StringVar(values[surveyform.FieldMaxAttempts], "max-attempts", "", "maximum call attempts")
	flags.StringVar(values[surveyform.FieldNotes], "notes", "", "free-form notes")

	return cmd
}
