package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	"bindery/internal/config"
)

type commandContext struct {
	serverFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	client *http.Client
}

func newCommandContext(serverFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		configFlag: configFlag,
		client:     &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// serverBase resolves the daemon API base URL: --server flag first, then the
// api_bind from the configuration.
func (c *commandContext) serverBase() (string, error) {
	if c.serverFlag != nil {
		if base := strings.TrimSpace(*c.serverFlag); base != "" {
			return strings.TrimRight(base, "/"), nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return "", errors.New("no daemon API address: set paths.api_bind or pass --server")
	}
	return "http://" + bind, nil
}

// apiError is the daemon's structured error payload.
type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (c *commandContext) getJSON(path string, out any) error {
	return c.doJSON(http.MethodGet, path, out)
}

func (c *commandContext) postJSON(path string, out any) error {
	return c.doJSON(http.MethodPost, path, out)
}

func (c *commandContext) doJSON(method, path string, out any) error {
	resp, err := c.do(method, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// fetch streams a raw response body; the caller closes it. Error statuses are
// decoded into apiError before the body is surrendered.
func (c *commandContext) fetch(path string) (io.ReadCloser, error) {
	resp, err := c.do(http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp.Body, nil
}

func (c *commandContext) do(method, path string) (*http.Response, error) {
	base, err := c.serverBase()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(method, base+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, wrapDialError(err, base)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	var payload apiError
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Code == "" {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	return &payload
}

func wrapDialError(err error, base string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon at %s: connection refused; start the daemon with `binderyd`", base)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
