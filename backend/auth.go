package backend

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTokenExpired     = errors.New("session token expired")
)

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) ClearToken() {
	c.SetToken("")
}

// Authenticated checks that a token is installed and not past its expiry
// claim. The signature is not verified here, only the backend can do that;
// the check just avoids sending calls that are guaranteed to fail.
func (c *Client) Authenticated() error {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token == "" {
		return ErrNotAuthenticated
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// Opaque non-JWT tokens are accepted as-is.
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if time.Now().After(exp.Time) {
		return ErrTokenExpired
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
