package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"accountd.io/internal/ids"
)

type envelope struct {
	Response    string          `json:"response"`
	ErrorCode   int             `json:"errorCode"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
}

type tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type client struct {
	base string
	http *http.Client
}

func (c *client) call(ctx context.Context, method, path, bearer string, body any) (int, envelope) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("encode %s: %v", path, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		log.Fatalf("request %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		log.Fatalf("decode %s: %v", path, err)
	}
	return resp.StatusCode, env
}

func expect(step string, got, want int, env envelope) {
	if got != want {
		log.Fatalf("%s: status %d, want %d (%d %s)", step, got, want, env.ErrorCode, env.Description)
	}
}

func main() {
	base := os.Getenv("ACCOUNTD_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	c := &client{base: base, http: &http.Client{Timeout: 5 * time.Second}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	username := "smoke-" + ids.NewRequestID()
	password := "smoke-pw-" + ids.NewRequestID()

	code, env := c.call(ctx, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username, "password": password, "email": username + "@example.com",
	})
	expect("register", code, http.StatusCreated, env)

	code, env = c.call(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username, "password": password,
	})
	expect("login", code, http.StatusOK, env)
	var tk tokens
	if err := json.Unmarshal(env.Data, &tk); err != nil {
		log.Fatalf("login tokens: %v", err)
	}

	code, env = c.call(ctx, http.MethodGet, "/user/me", tk.AccessToken, nil)
	expect("me", code, http.StatusOK, env)

	code, env = c.call(ctx, http.MethodGet, "/user/me", tk.RefreshToken, nil)
	expect("refresh token as bearer", code, http.StatusUnauthorized, env)
	if env.ErrorCode != 40100 {
		log.Fatalf("refresh token as bearer: errorCode %d, want 40100", env.ErrorCode)
	}

	code, env = c.call(ctx, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": tk.RefreshToken})
	expect("refresh", code, http.StatusOK, env)

	code, env = c.call(ctx, http.MethodGet, "/audit", tk.AccessToken, nil)
	expect("audit as user", code, http.StatusForbidden, env)

	fmt.Printf("accountd smoke test passed: user=%s\n", username)
}
