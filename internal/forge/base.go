package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/version"
)

// baseClient holds the request plumbing shared by API calls.
type baseClient struct {
	httpClient *http.Client
	apiURL     string
	token      string
	headers    map[string]string
}

func newBaseClient(httpClient *http.Client, apiURL, token string) *baseClient {
	return &baseClient{
		httpClient: httpClient,
		apiURL:     apiURL,
		token:      token,
		headers:    make(map[string]string),
	}
}

// newRequest builds an authenticated JSON request. endpoint is relative to the API URL.
func (b *baseClient) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	u, err := url.Parse(b.apiURL)
	if err != nil {
		return nil, errors.ForgeError("failed to parse API URL").
			WithCause(err).
			WithContext("api_url", b.apiURL).
			Build()
	}
	u.Path = path.Join(strings.TrimSuffix(u.Path, "/"), strings.TrimPrefix(endpoint, "/"))

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.ForgeError("failed to marshal request body").WithCause(err).Build()
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, errors.ForgeError("failed to create request").
			WithCause(err).
			WithContext("method", method).
			WithContext("url", u.String()).
			Build()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("User-Agent", "graspci/"+version.Version)
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// doRequest executes req and decodes a JSON body into result when non-nil.
// Responses >= 400 become classified errors carrying the status code in context key "code".
func (b *baseClient) doRequest(req *http.Request, result any) error {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return errors.NetworkError("failed to execute GitHub request").
			WithCause(err).
			WithContext("method", req.Method).
			WithContext("url", req.URL.String()).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		limited, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		bodyStr := strings.ReplaceAll(string(limited), "\n", " ")

		category := errors.CategoryForge
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			category = errors.CategoryAuth
		case http.StatusNotFound:
			category = errors.CategoryNotFound
		}
		builder := errors.NewError(category, fmt.Sprintf("GitHub API error: %s", resp.Status)).
			WithContext("code", resp.StatusCode).
			WithContext("url", req.URL.String()).
			WithContext("response", bodyStr)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			builder = builder.Retryable()
		}
		return builder.Build()
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return errors.ForgeError("failed to decode response").WithCause(err).Build()
		}
	}
	return nil
}

// statusCode extracts the HTTP status recorded by doRequest, or 0.
func statusCode(err error) int {
	ce, ok := errors.AsClassified(err)
	if !ok {
		return 0
	}
	v, ok := ce.Context().Get("code")
	if !ok {
		return 0
	}
	code, _ := v.(int)
	return code
}
