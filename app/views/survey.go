// Package views renders the survey page as templ components
package views

//go:generate templ generate -f survey.templ

import "github.com/amirphl/callback-survey/app/surveyform"

// ThankYouText is the acknowledgment shown once a form is submitted
const ThankYouText = "Thank you. We will get back to you soon regarding your request."

// Labels are the visible captions of the survey inputs
var Labels = map[surveyform.Field]string{
	surveyform.FieldName:        "Name",
	surveyform.FieldPhone:       "Phone Number",
	surveyform.FieldCallTime:    "When would you like us to call you?",
	surveyform.FieldMaxAttempts: "How many times should we call before giving up?",
	surveyform.FieldNotes:       "Anything else we should know?",
}

// PageData is everything the survey view needs for one render
type PageData struct {
	FormID string
	State  surveyform.State
	Alerts []string
	Notice string
}
