// Package secrets bootstraps desk credentials from an OpenBao KV store.
// The dealer API token and the journal database password are the usual
// tenants of the configured path.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrSecretNotFound = errors.New("openbao secret path not found")

// Bootstrap reads the configured OpenBao KV path and exports every entry as
// an environment variable, so config.Load picks the values up like any other
// env. Without OPENBAO_ADDR, OPENBAO_TOKEN and OPENBAO_SECRET_PATH set it is
// a no-op; a plain .env deployment keeps working.
func Bootstrap(ctx context.Context) error {
	cfg := configFromEnv()
	if !cfg.enabled {
		return nil
	}

	values, err := fetchKV(ctx, cfg)
	if err != nil {
		return err
	}
	for key, value := range values {
		_ = os.Setenv(key, value)
	}
	return nil
}

type baoConfig struct {
	addr       string
	token      string
	mount      string
	secretPath string
	namespace  string
	enabled    bool
}

func configFromEnv() baoConfig {
	addr := strings.TrimSpace(os.Getenv("OPENBAO_ADDR"))
	token := os.Getenv("OPENBAO_TOKEN")
	secretPath := strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_SECRET_PATH")), "/")
	if addr == "" || token == "" || secretPath == "" {
		return baoConfig{enabled: false}
	}

	mount := strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_MOUNT")), "/")
	if mount == "" {
		mount = "secret"
	}

	return baoConfig{
		addr:       strings.TrimRight(addr, "/"),
		token:      token,
		mount:      mount,
		secretPath: secretPath,
		namespace:  strings.TrimSpace(os.Getenv("OPENBAO_NAMESPACE")),
		enabled:    true,
	}
}

func fetchKV(ctx context.Context, cfg baoConfig) (map[string]string, error) {
	url := fmt.Sprintf("%s/v1/%s/data/%s", cfg.addr, cfg.mount, cfg.secretPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create OpenBao request: %w", err)
	}
	req.Header.Set("X-Vault-Token", cfg.token)
	if cfg.namespace != "" {
		req.Header.Set("X-Vault-Namespace", cfg.namespace)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call OpenBao: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrSecretNotFound
	default:
		return nil, fmt.Errorf("openbao request failed: status=%d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode OpenBao response: %w", err)
	}

	out := make(map[string]string, len(payload.Data.Data))
	for key, value := range payload.Data.Data {
		switch v := value.(type) {
		case string:
			out[key] = v
		case json.Number:
			out[key] = v.String()
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[key] = strconv.FormatBool(v)
		default:
			// skip nested structures rather than failing the whole bootstrap
		}
	}
	return out, nil
}
