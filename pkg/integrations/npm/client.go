package npm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/matzehuels/deptree/pkg/buildinfo"
	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/integrations"
)

// DefaultRegistry is the public npm registry.
const DefaultRegistry = "https://registry.npmjs.org"

// Client fetches packuments from an npm-compatible registry.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a client for the registry at baseURL. An empty baseURL
// means [DefaultRegistry].
func NewClient(baseURL string, opts integrations.ClientOptions) *Client {
	if baseURL == "" {
		baseURL = DefaultRegistry
	}
	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": buildinfo.UserAgent(),
	}
	return &Client{
		Client:  integrations.NewClient(headers, opts),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the registry root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// PackumentURL returns the document URL for name.
func (c *Client) PackumentURL(name string) string {
	return c.baseURL + "/" + EncodeName(name)
}

// Packument fetches and trims the registry document for name. A missing
// package yields an error wrapping [integrations.ErrNotFound].
func (c *Client) Packument(ctx context.Context, name string) (*deps.Packument, error) {
	var data registryResponse
	if err := c.Get(ctx, c.PackumentURL(name), &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, fmt.Errorf("%w: npm package %s", err, name)
		}
		return nil, err
	}
	if data.Name == "" {
		data.Name = name
	}
	return data.packument(), nil
}

// EncodeName encodes a package name as a single URL path segment. The slash
// of a scoped name is escaped, so "@types/node" becomes "@types%2Fnode".
func EncodeName(name string) string {
	return url.PathEscape(name)
}
