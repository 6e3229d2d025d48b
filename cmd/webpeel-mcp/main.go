package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// fetchRequest mirrors the webpeel API request model.
type fetchRequest struct {
	URL        string `json:"url"`
	Render     bool   `json:"render,omitempty"`
	Stealth    bool   `json:"stealth,omitempty"`
	Screenshot bool   `json:"screenshot,omitempty"`
	FullPage   bool   `json:"full_page,omitempty"`
	Fresh      bool   `json:"fresh,omitempty"`
	WaitMs     int    `json:"wait,omitempty"`
	Locale     string `json:"locale,omitempty"`
}

// fetchResponse mirrors the webpeel API response envelope.
type fetchResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Content     string `json:"content"`
		ContentType string `json:"content_type"`
		FinalURL    string `json:"final_url"`
		Method      string `json:"method"`
		StatusCode  int    `json:"status_code"`
		Screenshot  string `json:"screenshot"`
		ElapsedMs   int64  `json:"elapsed_ms"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("WEBPEEL_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("WEBPEEL_API_KEY")

	s := server.NewMCPServer(
		"webpeel",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	fetchTool := mcp.NewTool("fetch_url",
		mcp.WithDescription("Fetch a web page and return its content. Starts with a plain HTTP request and escalates to a headless browser (optionally with anti-detection measures) when the page requires it."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to fetch"),
		),
		mcp.WithBoolean("render",
			mcp.Description("Force browser rendering even if a plain HTTP request would succeed"),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Use the anti-detection browser tier (implies render)"),
		),
		mcp.WithBoolean("fresh",
			mcp.Description("Bypass the cache and fetch a fresh copy"),
		),
		mcp.WithNumber("wait",
			mcp.Description("Extra milliseconds to wait after page load before capturing content (rendered tiers only)"),
		),
		mcp.WithString("locale",
			mcp.Description("BCP 47 locale for the Accept-Language header, e.g. 'de-DE'"),
		),
	)
	s.AddTool(fetchTool, handleFetchURL(apiURL, apiKey))

	screenshotTool := mcp.NewTool("screenshot_url",
		mcp.WithDescription("Render a web page in a headless browser and return a base64-encoded PNG screenshot along with the page content."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to screenshot"),
		),
		mcp.WithBoolean("full_page",
			mcp.Description("Capture the full scrollable page instead of the viewport"),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Use the anti-detection browser tier"),
		),
	)
	s.AddTool(screenshotTool, handleScreenshotURL(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiFetch posts a fetch request to the webpeel API and decodes the envelope.
func apiFetch(ctx context.Context, client *http.Client, apiURL, apiKey string, payload fetchRequest) (*fetchResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/v1/fetch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var fetchResp fetchResponse
	if err := json.Unmarshal(respBody, &fetchResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &fetchResp, nil
}

func handleFetchURL(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := fetchRequest{
			URL:     url,
			Render:  request.GetBool("render", false),
			Stealth: request.GetBool("stealth", false),
			Fresh:   request.GetBool("fresh", false),
			WaitMs:  request.GetInt("wait", 0),
			Locale:  request.GetString("locale", ""),
		}

		fetchResp, err := apiFetch(ctx, client, apiURL, apiKey, payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if !fetchResp.Success || fetchResp.Data == nil {
			errMsg := "fetch failed"
			if fetchResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", fetchResp.Error.Code, fetchResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		d := fetchResp.Data
		header := fmt.Sprintf("URL: %s\nMethod: %s\nStatus: %d\n\n", d.FinalURL, d.Method, d.StatusCode)
		return mcp.NewToolResultText(header + d.Content), nil
	}
}

func handleScreenshotURL(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := fetchRequest{
			URL:        url,
			Render:     true,
			Stealth:    request.GetBool("stealth", false),
			Screenshot: true,
			FullPage:   request.GetBool("full_page", false),
		}

		fetchResp, err := apiFetch(ctx, client, apiURL, apiKey, payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if !fetchResp.Success || fetchResp.Data == nil {
			errMsg := "screenshot failed"
			if fetchResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", fetchResp.Error.Code, fetchResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		d := fetchResp.Data
		if d.Screenshot == "" {
			return mcp.NewToolResultError("no screenshot returned"), nil
		}
		return mcp.NewToolResultImage(
			fmt.Sprintf("Screenshot of %s (status %d)", d.FinalURL, d.StatusCode),
			d.Screenshot,
			"image/png",
		), nil
	}
}
