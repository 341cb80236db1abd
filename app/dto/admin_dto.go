// Package dto holds the request and response shapes of the HTTP API
package dto

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=255"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

type AdminSessionDTO struct {
	AccessToken string `json:"access_token" example:"jwt"`
	ExpiresIn   int    `json:"expires_in" example:"43200"`
	TokenType   string `json:"token_type" example:"Bearer"`
	ExpiresAt   string `json:"expires_at" example:"2024-01-15T22:30:00Z"`
}

type AdminLoginResponse struct {
	Username string          `json:"username"`
	Session  AdminSessionDTO `json:"session"`
}
