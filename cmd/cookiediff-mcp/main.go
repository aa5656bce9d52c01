package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/cookiediff/models"
)

func main() {
	apiURL := os.Getenv("COOKIEDIFF_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiURL = strings.TrimRight(apiURL, "/")
	apiKey := os.Getenv("COOKIEDIFF_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "COOKIEDIFF_API_KEY is not set; requests to a server with authentication will fail")
	}

	c := &client{
		baseURL: apiURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}

	s := server.NewMCPServer("cookiediff", "1.0.0",
		server.WithToolCapabilities(false),
	)

	// compare_features tool
	compareTool := mcp.NewTool("compare_features",
		mcp.WithDescription("Score how much removing cookies changed a page. Takes one token frequency map per browser session and returns the control difference, the experimental difference and their difference-in-differences."),
		mcp.WithString("baseline",
			mcp.Required(),
			mcp.Description(`Frequency map of the baseline session as a JSON object, e.g. {"login": 2, "cart": 1}`),
		),
		mcp.WithString("control",
			mcp.Required(),
			mcp.Description("Frequency map of the control session (cookies kept) as a JSON object"),
		),
		mcp.WithString("experimental",
			mcp.Required(),
			mcp.Description("Frequency map of the experimental session (cookies removed) as a JSON object"),
		),
		mcp.WithString("feature",
			mcp.Description("Feature the maps were taken from (default: 'innerText')"),
			mcp.Enum(models.FeatureInnerText, models.FeatureLinks, models.FeatureImages),
		),
	)
	s.AddTool(compareTool, handleCompareFeatures(c))

	// site_differences tool
	differencesTool := mcp.NewTool("site_differences",
		mcp.WithDescription("Fetch the per-step differences and per-feature summaries computed for a crawled site."),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("The site's domain, e.g. 'example.com'"),
		),
		mcp.WithBoolean("include_steps",
			mcp.Description("Include every clickstream step instead of only the summaries (default: false)"),
		),
	)
	s.AddTool(differencesTool, handleSiteDifferences(c))

	// list_sites tool
	sitesTool := mcp.NewTool("list_sites",
		mcp.WithDescription("List crawled sites with their crawl outcome."),
		mcp.WithBoolean("successful_only",
			mcp.Description("Only list sites whose crawl produced analyzable data (default: false)"),
		),
	)
	s.AddTool(sitesTool, handleListSites(c))

	// crawl_status tool
	statusTool := mcp.NewTool("crawl_status",
		mcp.WithDescription("Report API health and how many sites are still queued for crawling."),
	)
	s.AddTool(statusTool, handleCrawlStatus(c))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// client talks to the cookiediff API.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// do sends a request and decodes the JSON response into out. Error
// responses of the API decode into out as well; callers check Success.
func (c *client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func failure(what string, e *models.ErrorDetail) *mcp.CallToolResult {
	if e == nil {
		return mcp.NewToolResultError(what)
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: [%s] %s", what, e.Code, e.Message))
}

func handleCompareFeatures(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := models.CompareFeaturesRequest{
			Feature: request.GetString("feature", ""),
		}
		for _, arg := range []struct {
			name string
			dst  *map[string]int
		}{
			{"baseline", &req.Baseline},
			{"control", &req.Control},
			{"experimental", &req.Experimental},
		} {
			raw, err := request.RequireString(arg.name)
			if err != nil {
				return mcp.NewToolResultError(arg.name + " is required"), nil
			}
			if err := json.Unmarshal([]byte(raw), arg.dst); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("%s must be a JSON object of token counts: %v", arg.name, err)), nil
			}
		}

		var resp models.CompareResponse
		if err := c.do(ctx, http.MethodPost, "/api/v1/compare/features", req, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return failure("comparison failed", resp.Error), nil
		}

		var sb strings.Builder
		for feature, s := range resp.Scores {
			fmt.Fprintf(&sb, "Feature: %s\n", feature)
			writeScores(&sb, s)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleSiteDifferences(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}
		includeSteps := request.GetBool("include_steps", false)

		var resp models.DifferencesResponse
		path := "/api/v1/sites/" + url.PathEscape(domain) + "/differences"
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return failure("no differences for "+domain, resp.Error), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Site: %s (%d clickstreams)\n\n", resp.Domain, len(resp.Differences))
		for _, s := range resp.Summaries {
			fmt.Fprintf(&sb, "%-10s steps=%-4d control=%.4f experimental=%.4f did=%.4f\n",
				s.Feature, s.Steps, s.ControlDiff, s.ExperimentalDiff, s.DiD)
		}
		if !includeSteps {
			return mcp.NewToolResultText(sb.String()), nil
		}

		data, err := json.MarshalIndent(resp.Differences, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode differences: %v", err)), nil
		}
		sb.WriteString("\n---\n")
		sb.Write(data)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleListSites(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := "/api/v1/sites"
		if request.GetBool("successful_only", false) {
			path += "?successful=true"
		}

		var resp models.SitesResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return failure("listing sites failed", resp.Error), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%d sites\n\n", resp.Total)
		for _, s := range resp.Sites {
			status := "ok"
			switch {
			case s.LandingPageDown:
				status = "landing page down"
			case s.TimedOut:
				status = "timed out"
			case s.UnexpectedException:
				status = "error"
			}
			fmt.Fprintf(&sb, "- %s [%s] %d clickstreams, shard %d, %.0fs\n",
				s.Domain, status, s.Clickstreams, s.Shard, s.TotalTime)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleCrawlStatus(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp models.HealthResponse
		if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Status: %s\nVersion: %s\nUptime: %s\nQueued sites: %d\n",
			resp.Status, resp.Version, resp.Uptime, resp.Queued)), nil
	}
}

func writeScores(sb *strings.Builder, s models.Scores) {
	for _, v := range []struct {
		label string
		val   *float64
	}{
		{"control difference", s.ControlDiff},
		{"experimental difference", s.ExperimentalDiff},
		{"difference-in-differences", s.DiD},
	} {
		if v.val == nil {
			fmt.Fprintf(sb, "  %s: n/a\n", v.label)
			continue
		}
		fmt.Fprintf(sb, "  %s: %.4f\n", v.label, *v.val)
	}
}
