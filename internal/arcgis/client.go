package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/miami-mobility/workprogram/internal/workprogram"
)

// WhereAll is the server-side filter that selects every row.
const WhereAll = "1=1"

// HTTPError reports a non-success status from the FeatureServer. The run
// aborts on the first one; pages fetched so far are discarded.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("arcgis: http %d from %s", e.StatusCode, e.URL)
}

// Options configures a Client.
type Options struct {
	// BaseURL is the full query endpoint of the FeatureServer layer.
	BaseURL string
	// PageSize is the number of records requested per call. Default 2000.
	PageSize int
	// Timeout bounds each page request. Default 60s.
	Timeout time.Duration
	// RequestsPerSec paces page requests against the public endpoint.
	// Default 4. This is politeness, not retry: a failed page still
	// fails the whole fetch.
	RequestsPerSec float64
	UserAgent      string
}

// Client fetches features from an ArcGIS FeatureServer query endpoint.
type Client struct {
	baseURL   string
	pageSize  int
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a Client for the given endpoint.
func NewClient(opts Options) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = 2000
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 4
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "workprogram/1.0"
	}
	return &Client{
		baseURL:   opts.BaseURL,
		pageSize:  opts.PageSize,
		userAgent: opts.UserAgent,
		client:    &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
	}
}

// PageSize returns the configured page size.
func (c *Client) PageSize() int {
	return c.pageSize
}

// FetchAll retrieves every feature matching the where clause, paging with
// resultOffset until the server returns an empty or short page. Pages are
// fetched strictly sequentially and concatenated in the order received.
// The returned collection is tagged WGS 84 (the request asks for
// outSR=4326).
func (c *Client) FetchAll(ctx context.Context, where string) (workprogram.Collection, error) {
	if where == "" {
		where = WhereAll
	}

	var records []workprogram.Record
	offset := 0
	pages := 0

	for {
		batch, err := c.fetchPage(ctx, where, offset)
		if err != nil {
			return workprogram.Collection{}, err
		}
		pages++

		if len(batch) == 0 {
			break
		}

		records = append(records, batch...)
		offset += len(batch)

		zap.L().Debug("arcgis: fetched page",
			zap.Int("page", pages),
			zap.Int("records", len(batch)),
			zap.Int("offset", offset),
		)

		// A short page is the last page.
		if len(batch) < c.pageSize {
			break
		}
	}

	zap.L().Info("arcgis: fetch complete",
		zap.String("where", where),
		zap.Int("pages", pages),
		zap.Int("records", len(records)),
	)

	return workprogram.NewCollection(records), nil
}

func (c *Client) fetchPage(ctx context.Context, where string, offset int) ([]workprogram.Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "arcgis: rate limiter wait")
	}

	params := url.Values{}
	params.Set("where", where)
	params.Set("outFields", "*")
	params.Set("f", "geojson")
	params.Set("outSR", strconv.Itoa(workprogram.SRIDWGS84))
	params.Set("resultRecordCount", strconv.Itoa(c.pageSize))
	params.Set("resultOffset", strconv.Itoa(offset))

	pageURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: page request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: c.baseURL}
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "arcgis: decode page")
	}

	return fc.records()
}

// CountyWhere builds a CONTYNAM equality filter for the given county name,
// escaping embedded single quotes. An empty county selects all rows.
func CountyWhere(county string) string {
	if county == "" {
		return WhereAll
	}
	return fmt.Sprintf("%s = '%s'", workprogram.FieldCounty, strings.ReplaceAll(county, "'", "''"))
}
