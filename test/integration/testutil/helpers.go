//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	pqtotp "github.com/pquerna/otp/totp"
)

// Envelope mirrors the API response shape with the payload left raw.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

// AuthPayload is the data section of register and login responses.
type AuthPayload struct {
	Admin struct {
		ID       uuid.UUID `json:"id"`
		Name     string    `json:"name"`
		Email    string    `json:"email"`
		Role     string    `json:"role"`
		Status   int16     `json:"status"`
		SchoolID uuid.UUID `json:"school_id"`
	} `json:"admin"`
	Tokens TokensPayload `json:"tokens"`
}

// TokensPayload is the issued token pair.
type TokensPayload struct {
	Access struct {
		Token   string    `json:"token"`
		Expires time.Time `json:"expires"`
	} `json:"access"`
	Refresh struct {
		Token   string    `json:"token"`
		Expires time.Time `json:"expires"`
	} `json:"refresh"`
}

// DecodeEnvelope decodes a response body into an Envelope.
func (env *TestEnv) DecodeEnvelope(resp *http.Response) Envelope {
	env.t.Helper()
	var e Envelope
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		env.t.Fatalf("decode envelope: %v", err)
	}
	return e
}

// DecodeAuthPayload decodes the data section of a register/login response.
func (env *TestEnv) DecodeAuthPayload(resp *http.Response) AuthPayload {
	env.t.Helper()
	e := env.DecodeEnvelope(resp)
	var p AuthPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		env.t.Fatalf("decode auth payload: %v", err)
	}
	return p
}

// SeedSchool inserts a school row and returns its ID.
func (env *TestEnv) SeedSchool(name string) uuid.UUID {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.New()
	_, err := env.Pool.Exec(ctx,
		`INSERT INTO schools (id, name) VALUES ($1, $2)`, id, name)
	if err != nil {
		env.t.Fatalf("SeedSchool: %v", err)
	}
	return id
}

// RegisterAdmin registers an account through the API and returns its payload.
func (env *TestEnv) RegisterAdmin(email, password, role string) AuthPayload {
	env.t.Helper()
	resp := env.POST("/v1/admin/register", map[string]interface{}{
		"name":      "Test Admin",
		"email":     email,
		"password":  password,
		"role":      role,
		"school_id": env.SchoolID,
	}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("RegisterAdmin: expected 201, got %d", resp.StatusCode)
	}
	return env.DecodeAuthPayload(resp)
}

// Login authenticates through the API and returns the auth payload.
func (env *TestEnv) Login(email, password string) AuthPayload {
	env.t.Helper()
	resp := env.POST("/v1/admin/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("Login: expected 200, got %d", resp.StatusCode)
	}
	return env.DecodeAuthPayload(resp)
}

// TOTPCode generates a valid code for the given base32 secret.
func (env *TestEnv) TOTPCode(secret string) string {
	env.t.Helper()
	code, err := pqtotp.GenerateCode(secret, time.Now())
	if err != nil {
		env.t.Fatalf("TOTPCode: %v", err)
	}
	return code
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs a POST request with optional auth token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.request("POST", path, body, token)
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	return env.request("GET", path, nil, token)
}

// AuthPATCH performs an authenticated PATCH request.
func (env *TestEnv) AuthPATCH(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.request("PATCH", path, body, token)
}

// AuthDELETE performs an authenticated DELETE request.
func (env *TestEnv) AuthDELETE(path, token string) *http.Response {
	env.t.Helper()
	return env.request("DELETE", path, nil, token)
}

func (env *TestEnv) request(method, path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("%s %s: encode: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// ResetTokenFor reads the persisted reset token for an email straight from
// the store, standing in for the email delivery channel.
func (env *TestEnv) ResetTokenFor(email string) string {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var token string
	err := env.Pool.QueryRow(ctx, `
		SELECT t.token FROM tokens t
		JOIN admins a ON a.id = t.admin_id
		WHERE lower(a.email) = lower($1) AND t.kind = 'reset_password'
		ORDER BY t.created_at DESC LIMIT 1`, email).Scan(&token)
	if err != nil {
		env.t.Fatalf("ResetTokenFor: %v", err)
	}
	return token
}

// TOTPSecrets reads the stored active and pending TOTP secrets for an admin.
func (env *TestEnv) TOTPSecrets(adminID uuid.UUID) (secret, pending string, enabled bool) {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := env.Pool.QueryRow(ctx,
		`SELECT totp_secret, totp_pending_secret, totp_enabled FROM admins WHERE id = $1`,
		adminID).Scan(&secret, &pending, &enabled)
	if err != nil {
		env.t.Fatalf("TOTPSecrets: %v", err)
	}
	return secret, pending, enabled
}
