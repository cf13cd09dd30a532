package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/golang-jwt/jwt/v5"
)

// TestContext carries state across the steps of one scenario against a
// running server.
type TestContext struct {
	BaseURL    string
	HTTPClient *http.Client

	signingKey string
	issuer     string
	audience   string
	prefix     string

	// wallets maps a scenario name ("alice") to a generated wallet address.
	wallets map[string]string
	// run keeps usernames unique across scenarios against a long-lived server.
	run string

	LastResponse     *http.Response
	LastResponseBody []byte
}

func NewTestContext() *TestContext {
	return &TestContext{
		BaseURL:    envOr("ALPINE_E2E_BASE_URL", "http://localhost:8080"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		signingKey: envOr("ALPINE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		issuer:     envOr("ALPINE_JWT_ISSUER", "alpine"),
		audience:   envOr("ALPINE_JWT_AUDIENCE", "alpine-api"),
		prefix:     envOr("ALPINE_ADDRESS_PREFIX", "juno"),
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.wallets = make(map[string]string)
	tc.run = fmt.Sprintf("%06x", time.Now().UnixNano()&0xffffff)
	tc.LastResponse = nil
	tc.LastResponseBody = nil
}

// Username makes name unique to this scenario run.
func (tc *TestContext) Username(name string) string {
	if name == "" {
		return ""
	}
	return name + "_" + tc.run
}

// Wallet returns the address for name, generating it on first use.
func (tc *TestContext) Wallet(name string) (string, error) {
	if addr, ok := tc.wallets[name]; ok {
		return addr, nil
	}
	payload := make([]byte, 20)
	copy(payload, tc.run+name)
	data, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	addr, err := bech32.Encode(tc.prefix, data)
	if err != nil {
		return "", err
	}
	tc.wallets[name] = addr
	return addr, nil
}

// Token signs a caller token for address.
func (tc *TestContext) Token(address string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   address,
		Issuer:    tc.issuer,
		Audience:  jwt.ClaimStrings{tc.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	return token.SignedString([]byte(tc.signingKey))
}

func (tc *TestContext) POST(ctx context.Context, path string, body any, headers map[string]string) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.do(req)
}

func (tc *TestContext) GET(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tc.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.LastResponse = resp
	tc.LastResponseBody = body
	return nil
}

// StatusCode is the status of the last response, or 0.
func (tc *TestContext) StatusCode() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

// ResponseField walks a dotted path ("user.username", "donations.0.id") through
// the last JSON response.
func (tc *TestContext) ResponseField(path string) (any, error) {
	var cur any
	if err := json.Unmarshal(tc.LastResponseBody, &cur); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", path, tc.LastResponseBody)
			}
			cur = v
		case []any:
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, path)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("cannot descend into %q", path)
		}
	}
	return cur, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LastBody is the raw body of the last response.
func (tc *TestContext) LastBody() string {
	return string(tc.LastResponseBody)
}
