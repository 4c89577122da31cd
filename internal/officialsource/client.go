package officialsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fibratrack/fibratrack-backend/internal/model"
)

// SourceName is the value recorded on distribution records that were
// confirmed against this registry.
const SourceName = "official"

// Client provides methods for fetching published distribution data from the
// official registry API. It wraps an HTTP client and handles authentication,
// window construction, and decimal-safe parsing of the response.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a registry client for the given base URL. The token is
// sent as a bearer credential on every request.
//
// Parameters:
//   - baseURL: Registry root, e.g. "https://api.fibradist.mx"
//   - token: API token issued by the registry
//
// Returns:
//   - *Client: A new client instance ready for use
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

// GetDistributions fetches the published distributions for a ticker in a
// window around the anchor date. The window starts fifteen days before the
// anchor, wide enough to cover the matching tolerance on either side of any
// imported pay date, and extends one year forward to pick up announced
// future distributions for forward yield.
//
// Parameters:
//   - ctx: Context for cancellation and deadlines
//   - ticker: Exchange ticker, e.g. "FUNO11"
//   - anchor: Date the window is built around, typically today
//
// Returns:
//   - []model.OfficialDistributionRecord: Parsed records, possibly empty
//   - error: If the HTTP request fails, the registry reports an error, or an
//     entry cannot be parsed
func (c *Client) GetDistributions(ctx context.Context, ticker string, anchor time.Time) ([]model.OfficialDistributionRecord, error) {
	from := anchor.UTC().AddDate(0, 0, -15)
	to := anchor.UTC().AddDate(1, 0, 0)
	url := fmt.Sprintf(
		"%s/v1/distributions/%s?from=%s&to=%s",
		c.baseURL,
		ticker,
		from.Format("2006-01-02"),
		to.Format("2006-01-02"),
	)

	response, err := c.query(ctx, url)
	if err != nil {
		return nil, err
	}

	records := make([]model.OfficialDistributionRecord, 0, len(response.Distributions))
	for _, entry := range response.Distributions {
		record, err := parseEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid registry entry for %s: %w", ticker, err)
		}
		records = append(records, record)
	}

	return records, nil
}

// parseEntry converts a raw registry entry into the internal record type.
// Amounts are parsed with exact decimal semantics; dates must be YYYY-MM-DD.
func parseEntry(entry Entry) (model.OfficialDistributionRecord, error) {
	payDate, err := time.ParseInLocation("2006-01-02", entry.PayDate, time.UTC)
	if err != nil {
		return model.OfficialDistributionRecord{}, fmt.Errorf("bad pay_date %q: %w", entry.PayDate, err)
	}

	var exDate *time.Time
	if entry.ExDate != nil && *entry.ExDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", *entry.ExDate, time.UTC)
		if err != nil {
			return model.OfficialDistributionRecord{}, fmt.Errorf("bad ex_date %q: %w", *entry.ExDate, err)
		}
		exDate = &parsed
	}

	gross, err := decimal.NewFromString(entry.GrossPerCBFI)
	if err != nil {
		return model.OfficialDistributionRecord{}, fmt.Errorf("bad gross_per_cbfi %q: %w", entry.GrossPerCBFI, err)
	}

	return model.OfficialDistributionRecord{
		Ticker:       entry.Ticker,
		PayDate:      payDate,
		ExDate:       exDate,
		GrossPerCBFI: gross,
		Currency:     entry.Currency,
		Type:         entry.Type,
		Source:       SourceName,
		PeriodTag:    entry.PeriodTag,
	}, nil
}

// query executes an authenticated GET against the registry and parses the
// JSON response, surfacing any registry-reported error.
func (c *Client) query(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, err
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return Response{}, err
	}

	if response.Error != nil {
		return response, fmt.Errorf("registry error: %s", *response.Error)
	}

	return response, nil
}
