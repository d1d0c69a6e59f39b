package plantuml

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// DefaultServer is the public PlantUML instance. Diagram text is sent to the
// server in the URL, so point Client at a private instance for anything
// confidential.
const DefaultServer = "https://www.plantuml.com"

type Client struct {
	server string
	httpc  *http.Client
}

// NewClient returns a render client for the given server base URL; an empty
// server selects DefaultServer.
func NewClient(server string) *Client {
	if server == "" {
		server = DefaultServer
	}
	return &Client{server: strings.TrimRight(server, "/"), httpc: http.DefaultClient}
}

// URL returns the PNG render URL for the given diagram text.
func (c *Client) URL(text string) (string, error) {
	enc, err := Encode(text)
	if err != nil {
		return "", err
	}
	return c.server + "/plantuml/png/" + enc, nil
}

// Render fetches the rendered PNG for the diagram text. Any non-200 response
// is an error.
func (c *Client) Render(ctx context.Context, text string) ([]byte, error) {
	u, err := c.URL(text)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plantuml: server returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// RenderFile reads a .puml file and writes the rendered PNG to outPath.
func (c *Client) RenderFile(ctx context.Context, inPath, outPath string) error {
	text, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	png, err := c.Render(ctx, string(text))
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, png, 0o644)
}
