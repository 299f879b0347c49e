package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bekzodov/meddist-ai-assistant/pkg/logging"
)

const defaultTimeout = 20 * time.Second

// Client is a lightweight REST client for the distributor CRM.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a CRM client. A non-positive timeout falls back to the
// default.
func NewClient(baseURL, token string, timeout time.Duration, logger *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SearchOrganizations queries organizations by free-text name.
func (c *Client) SearchOrganizations(ctx context.Context, query string) ([]Organization, error) {
	var out []Organization
	params := url.Values{"query": {query}}
	if err := c.do(ctx, http.MethodGet, "/api/organizations/search", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMarginOptions returns the valid prepayment margin options.
func (c *Client) GetMarginOptions(ctx context.Context) ([]MarginOption, error) {
	var out []MarginOption
	if err := c.do(ctx, http.MethodGet, "/api/margins", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPriceList returns the full drug price list with on-hand balances.
func (c *Client) GetPriceList(ctx context.Context) ([]PriceListItem, error) {
	var out []PriceListItem
	if err := c.do(ctx, http.MethodGet, "/api/pricelist", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCompanyDrugs returns the company's own drug list.
func (c *Client) GetCompanyDrugs(ctx context.Context) ([]CompanyDrug, error) {
	var out []CompanyDrug
	if err := c.do(ctx, http.MethodGet, "/api/company-drugs", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateVisit creates a pharmacy reservation or clinic visit.
func (c *Client) CreateVisit(ctx context.Context, req CreateVisitRequest) (*Visit, error) {
	var out Visit
	if err := c.do(ctx, http.MethodPost, "/api/visits", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDoctors returns the doctors registered for a clinic organization.
func (c *Client) GetDoctors(ctx context.Context, organizationID int64) ([]Doctor, error) {
	var out []Doctor
	path := fmt.Sprintf("/api/organizations/%d/doctors", organizationID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetVisitHistory returns a filtered page of past visits.
func (c *Client) GetVisitHistory(ctx context.Context, filter VisitHistoryFilter) (*VisitHistoryPage, error) {
	params := url.Values{}
	if filter.VisitType != "" {
		params.Set("visitType", string(filter.VisitType))
	}
	if filter.OrganizationName != "" {
		params.Set("organization", filter.OrganizationName)
	}
	if filter.DateFrom != nil {
		params.Set("dateFrom", filter.DateFrom.Format("2006-01-02"))
	}
	if filter.DateTo != nil {
		params.Set("dateTo", filter.DateTo.Format("2006-01-02"))
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	params.Set("page", strconv.Itoa(page))
	if filter.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(filter.PageSize))
	}

	var out VisitHistoryPage
	if err := c.do(ctx, http.MethodGet, "/api/visits/history", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetVisitCountsByDate returns visit counts keyed by ISO date for one month.
func (c *Client) GetVisitCountsByDate(ctx context.Context, year int, month time.Month) (map[string]int, error) {
	params := url.Values{
		"year":  {strconv.Itoa(year)},
		"month": {strconv.Itoa(int(month))},
	}
	var out map[string]int
	if err := c.do(ctx, http.MethodGet, "/api/visits/counts", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPlannedVisits returns the visits planned for a given date.
func (c *Client) GetPlannedVisits(ctx context.Context, date time.Time) ([]PlannedVisit, error) {
	params := url.Values{"date": {date.Format("2006-01-02")}}
	var out []PlannedVisit
	if err := c.do(ctx, http.MethodGet, "/api/visits/planned", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("crm: failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("crm: failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("crm: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("crm request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return fmt.Errorf("crm: %s %s returned status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("crm: failed to decode response: %w", err)
	}
	return nil
}
