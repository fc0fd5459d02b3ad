package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"
)

// Client queries the Jira REST API for epic progress.
type Client struct {
	baseURL    string
	email      string
	apiToken   string
	httpClient *http.Client
}

// EpicProgress is the bucketed story summary for one epic.
type EpicProgress struct {
	EpicKey            string  `json:"epic_key"`
	TotalStories       int     `json:"total_stories"`
	DoneStories        int     `json:"done_stories"`
	TodoStories        int     `json:"todo_stories"`
	POReviewStories    int     `json:"po_review_stories"`
	DeclinedStories    int     `json:"declined_stories"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// New creates a Jira client. Missing settings fail here.
func New(baseURL, email, apiToken string) (*Client, error) {
	if baseURL == "" || email == "" || apiToken == "" {
		return nil, fmt.Errorf("jira credentials/config missing")
	}
	return &Client{
		baseURL:    baseURL,
		email:      email,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jira request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("jira HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// Issue fetches one issue's summary field, verifying the epic exists.
func (c *Client) Issue(ctx context.Context, key string) (string, error) {
	body, err := c.get(ctx, "/rest/api/2/issue/"+key, nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		Fields struct {
			Summary string `json:"summary"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode issue: %w", err)
	}
	return resp.Fields.Summary, nil
}

// EpicProgress fetches the epic, searches its stories via JQL, and buckets
// them by status. Done drives the progress percentage; an epic with no
// stories yields zero, not a division error.
func (c *Client) EpicProgress(ctx context.Context, epicKey string) (*EpicProgress, error) {
	if _, err := c.Issue(ctx, epicKey); err != nil {
		return nil, fmt.Errorf("fetch epic %s: %w", epicKey, err)
	}

	query := url.Values{}
	query.Set("jql", fmt.Sprintf(`"Epic Link" = %q`, epicKey))
	query.Set("maxResults", "100")
	query.Set("fields", "summary,status,issuetype")

	body, err := c.get(ctx, "/rest/api/2/search", query)
	if err != nil {
		return nil, fmt.Errorf("search epic stories: %w", err)
	}

	var resp struct {
		Total  int `json:"total"`
		Issues []struct {
			Fields struct {
				Status struct {
					Name string `json:"name"`
				} `json:"status"`
			} `json:"fields"`
		} `json:"issues"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}

	progress := &EpicProgress{EpicKey: epicKey, TotalStories: resp.Total}
	for _, issue := range resp.Issues {
		switch issue.Fields.Status.Name {
		case "Done":
			progress.DoneStories++
		case "PO Review":
			progress.POReviewStories++
		case "Declined", "Won't Do":
			progress.DeclinedStories++
		default:
			progress.TodoStories++
		}
	}
	if progress.TotalStories > 0 {
		pct := float64(progress.DoneStories) / float64(progress.TotalStories) * 100
		progress.ProgressPercentage = math.Round(pct*100) / 100
	}
	return progress, nil
}
