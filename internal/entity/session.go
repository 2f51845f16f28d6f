package entity

import "time"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the payload of POST /auth/login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Founder     string `json:"founder"`
}

// Identity is what GET /auth/verify confirms for a valid token.
type Identity struct {
	Username      string `json:"username"`
	Founder       string `json:"founder"`
	Authenticated bool   `json:"authenticated"`
}

// CurrentUser is the locally stored session, never verified.
type CurrentUser struct {
	Founder   string
	Token     string
	ExpiresAt *time.Time
}
