package api

import (
	"context"
	"net/http"
)

// LoginRequest is the body of POST /auth/login-sell. The backend field
// name is spelled "accesKey".
type LoginRequest struct {
	Username  string `json:"username"`
	AccessKey string `json:"accesKey"`
}

// LoginResponse is returned by a successful login. Jwt is empty when the
// backend accepted the call but issued no credential.
type LoginResponse struct {
	Jwt                string   `json:"jwt"`
	MustChangePassword bool     `json:"mustChangePassword"`
	UserID             int64    `json:"userId"`
	Username           string   `json:"username"`
	FirstName          *string  `json:"firstName"`
	SecondName         *string  `json:"secondName"`
	LastName           *string  `json:"lastName"`
	SecondLastName     *string  `json:"secondLastName"`
	Roles              []string `json:"roles"`
	AccessLevel        *int     `json:"accessLevel"`
	CompanyID          *int64   `json:"companyId"`
	CompanyName        *string  `json:"companyName"`
	CompanyNit         *string  `json:"companyNit"`
	PwdMsgToExpire     *string  `json:"pwdMsgToExpire"`
}

// LogoutRequest asks the backend whether the operator may leave.
type LogoutRequest struct {
	ServiceCode string `json:"serviceCode"`
}

// ChangePasswordRequest is the body of POST /auth/change-password.
type ChangePasswordRequest struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Login authenticates an operator through the sell-role login endpoint.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login-sell", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout asks the backend to approve ending the session. A 403 with
// apierr.CodeMustFinishShift means the shift must be closed first.
func (c *Client) Logout(ctx context.Context, req LogoutRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, req, nil)
}

// ChangePassword changes the operator's password.
func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/change-password", nil, req, nil)
}
