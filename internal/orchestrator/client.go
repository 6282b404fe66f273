package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

// BasePath of the analysis gateway routes
const BasePath = "/api/v1/super-user/analysis"

// HTTPDoer describes the HTTP client used to reach the gateway.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Doc is a session document as returned by the gateway
type Doc = map[string]any

// APIError is a non-2xx gateway response with its {msg, error} body.
type APIError struct {
	Status int
	Msg    string
	Detail string
}

func (e *APIError) Error() string {
	switch {
	case e.Msg != "" && e.Detail != "":
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Msg, e.Detail, e.Status)
	case e.Msg != "":
		return fmt.Sprintf("%s (HTTP %d)", e.Msg, e.Status)
	default:
		return fmt.Sprintf("gateway returned HTTP %d", e.Status)
	}
}

// Client talks to the analysis gateway.
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewClient builds a gateway client; a nil doer uses http.DefaultClient.
func NewClient(baseURL, apiKey string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  doer,
	}
}

func (c *Client) Create(ctx context.Context, domainName, brandName string) (Doc, error) {
	var out Doc
	err := c.do(ctx, http.MethodPost, "/create", map[string]any{"domain": domainName, "brandName": brandName}, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id string, categories, competitors []string) (Doc, error) {
	var out Doc
	body := map[string]any{"analysisId": id}
	if len(categories) > 0 {
		body["categories"] = categories
	}
	if len(competitors) > 0 {
		body["competitors"] = competitors
	}
	err := c.do(ctx, http.MethodPost, "/update", body, &out)
	return out, err
}

func (c *Client) GeneratePrompts(ctx context.Context, id string, perCategory int) (Doc, error) {
	var out Doc
	body := map[string]any{"analysisId": id}
	if perCategory > 0 {
		body["promptsPerCategory"] = perCategory
	}
	err := c.do(ctx, http.MethodPost, "/generate-prompts", body, &out)
	return out, err
}

func (c *Client) Complete(ctx context.Context, id string) (Doc, error) {
	var out Doc
	err := c.do(ctx, http.MethodPost, "/complete", map[string]any{"analysisId": id}, &out)
	return out, err
}

func (c *Client) ExtractMentions(ctx context.Context, id string) (Doc, error) {
	var out Doc
	err := c.do(ctx, http.MethodPost, "/extract-mentions", map[string]any{"analysisId": id}, &out)
	return out, err
}

func (c *Client) CalculateSOV(ctx context.Context, id string) (Doc, error) {
	var out Doc
	err := c.do(ctx, http.MethodPost, "/calculate-sov", map[string]any{"analysisId": id}, &out)
	return out, err
}

func (c *Client) Get(ctx context.Context, id string) (Doc, error) {
	var out Doc
	err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Responses returns the raw response records of an analysis.
func (c *Client) Responses(ctx context.Context, id string) ([]any, error) {
	var out []any
	err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(id)+"/responses", nil, &out)
	return out, err
}

// HistoryPage is one page of GET /history
type HistoryPage struct {
	Data       []Doc `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func (c *Client) History(ctx context.Context, page, pageSize int) (HistoryPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	p := "/history"
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	var out HistoryPage
	err := c.do(ctx, http.MethodGet, p, nil, &out)
	return out, err
}

// Events returns step events with seq greater than after.
func (c *Client) Events(ctx context.Context, id string, after int64) ([]domain.Event, error) {
	var out []domain.Event
	p := fmt.Sprintf("/%s/events?after=%d", url.PathEscape(id), after)
	err := c.do(ctx, http.MethodGet, p, nil, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/"+url.PathEscape(id), nil, nil)
}

// DownloadPDF streams the PDF report into w. Anything but a non-empty
// application/pdf body is an error.
func (c *Client) DownloadPDF(ctx context.Context, id string, w io.Writer) (int64, error) {
	return c.download(ctx, "/"+url.PathEscape(id)+"/download-pdf", "application/pdf", w)
}

// DownloadXLSX streams the spreadsheet export into w.
func (c *Client) DownloadXLSX(ctx context.Context, id string, w io.Writer) (int64, error) {
	return c.download(ctx, "/"+url.PathEscape(id)+"/download-xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w)
}

func (c *Client) download(ctx context.Context, p, wantType string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, p, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != wantType {
		return 0, eris.Errorf("download: unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, eris.Wrap(err, "download: read body")
	}
	if n == 0 {
		return 0, eris.New("download: empty body")
	}
	return n, nil
}

func (c *Client) do(ctx context.Context, method, p string, body any, out any) error {
	resp, err := c.send(ctx, method, p, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "decode %s %s", method, p)
	}
	return nil
}

// send performs the request and turns non-2xx answers into *APIError.
func (c *Client) send(ctx context.Context, method, p string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, eris.Wrap(err, "encode request")
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+BasePath+p, rdr)
	if err != nil {
		return nil, eris.Wrapf(err, "build %s %s", method, p)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var payload struct {
			Msg   string `json:"msg"`
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.Msg, apiErr.Detail = payload.Msg, payload.Error
		} else {
			apiErr.Msg = strings.TrimSpace(string(raw))
		}
		return nil, apiErr
	}
	return resp, nil
}
