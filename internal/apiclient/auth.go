package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// User is the account returned by the backend on login.
type User struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// LoginResult is a successful login.
type LoginResult struct {
	Token string
	User  User
}

type loginBody struct {
	Data struct {
		Token string `json:"token"`
		User  struct {
			ID    any    `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	} `json:"data"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	const op = "auth.login"

	b, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: err}
	}

	body, err := c.do(ctx, op, "login", http.MethodPost, c.loginPath, "", bytes.NewReader(b), "application/json")
	if err != nil {
		return nil, err
	}

	var lb loginBody
	if err := json.Unmarshal(body, &lb); err != nil {
		return nil, &Error{Kind: KindUnknown, Op: op, Status: http.StatusOK, Err: fmt.Errorf("decode login: %w", err)}
	}
	if lb.Data.Token == "" {
		return nil, &Error{Kind: KindUnknown, Op: op, Status: http.StatusOK, Err: fmt.Errorf("decode login: no token")}
	}

	return &LoginResult{
		Token: lb.Data.Token,
		User: User{
			ID:    Stringify(lb.Data.User.ID),
			Name:  lb.Data.User.Name,
			Email: lb.Data.User.Email,
			Role:  lb.Data.User.Role,
		},
	}, nil
}
