// Package vault reads key material from a HashiCorp Vault KV v2 secret,
// authenticating with the pod's Kubernetes service account.
package vault

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const defaultServiceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"

var ErrSecretNotFound = errors.New("secret not found")

type loginResponse struct {
	Errors []string `json:"errors"`
	Auth   *struct {
		ClientToken string `json:"client_token"`
	} `json:"auth"`
}

type kvResponse struct {
	Errors []string `json:"errors"`
	Data   *struct {
		Data map[string]interface{} `json:"data"`
	} `json:"data"`
}

type Client struct {
	http         *resty.Client
	kvSecretPath string
	role         string
	tokenPath    string

	mu      sync.Mutex
	token   string
	secrets map[string]interface{}
}

type Option func(*Client)

// WithTokenPath overrides where the service account JWT is read from.
func WithTokenPath(path string) Option {
	return func(c *Client) { c.tokenPath = path }
}

// New logs in to Vault. The KV secret is fetched lazily on the first GetKV.
func New(addr, kvSecretPath, role string, opts ...Option) (*Client, error) {
	httpClient := resty.New().
		SetBaseURL(addr).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetHeader("Content-Type", "application/json")
	c := &Client{
		http:         httpClient,
		kvSecretPath: kvSecretPath,
		role:         role,
		tokenPath:    defaultServiceAccountTokenPath,
	}
	for _, opt := range opts {
		opt(c)
	}

	token, err := c.login()
	if err != nil {
		return nil, err
	}
	c.token = token
	return c, nil
}

func (c *Client) login() (string, error) {
	jwt, err := os.ReadFile(c.tokenPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to read service account token")
	}

	var out loginResponse
	resp, err := c.http.R().
		SetBody(map[string]string{"jwt": string(jwt), "role": c.role}).
		SetResult(&out).
		SetError(&out).
		Post("/v1/auth/kubernetes/login")
	if err != nil {
		return "", errors.Wrap(err, "vault login")
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("vault authentication failed with status %d: %v", resp.StatusCode(), out.Errors)
	}
	if out.Auth == nil || out.Auth.ClientToken == "" {
		return "", errors.New("vault returned empty client_token")
	}
	return out.Auth.ClientToken, nil
}

func (c *Client) load() (map[string]interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.secrets != nil {
		return c.secrets, nil
	}

	var out kvResponse
	resp, err := c.http.R().
		SetHeader("X-Vault-Token", c.token).
		SetResult(&out).
		SetError(&out).
		Get("/v1/" + c.kvSecretPath)
	if err != nil {
		return nil, errors.Wrap(err, "vault kv get")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("vault KV get failed with status %d: %v", resp.StatusCode(), out.Errors)
	}
	if out.Data == nil || out.Data.Data == nil {
		return nil, errors.New("vault response missing nested 'data' field")
	}
	c.secrets = out.Data.Data
	return c.secrets, nil
}

// GetKV returns one key of the KV v2 secret. It satisfies config.SecretSource.
func (c *Client) GetKV(secretKey string) (string, error) {
	secrets, err := c.load()
	if err != nil {
		return "", err
	}
	v, ok := secrets[secretKey]
	if !ok {
		return "", errors.Wrap(ErrSecretNotFound, secretKey)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("secret value for key '%s' is not a string", secretKey)
	}
	return s, nil
}
