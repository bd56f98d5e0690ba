package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"medrag/internal/config"
	"medrag/internal/domain"
	"medrag/internal/ports"
)

const userAgent = "medrag/1.0"

var yearPattern = regexp.MustCompile(`\d{4}`)

// Gateway is the paginated client for the external literature API.
// Listing pages are sorted newest-first by the API; full content comes
// back as JATS XML and is reduced to plain text here.
type Gateway struct {
	baseURL string
	apiUser string
	apiKey  string
	http    *http.Client

	// minInterval spaces out calls to the upstream API. Zero disables
	// the delay (tests).
	minInterval time.Duration
	mu          sync.Mutex
	lastCall    time.Time
}

var _ ports.ArticleSource = (*Gateway)(nil)

// NewGateway builds a literature API client from configuration.
func NewGateway(cfg config.SourceConfig) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiUser:     cfg.APIUser,
		apiKey:      cfg.APIKey,
		http:        &http.Client{Timeout: timeout},
		minInterval: cfg.RequestDelay,
	}
}

type listResponse struct {
	Results []listResult `json:"results"`
}

type listResult struct {
	DOI     string `json:"doi"`
	Text    string `json:"text"`
	Title   string `json:"title"`
	PubDate string `json:"pubdate"`
	Journal string `json:"journal"`
}

type contentResponse struct {
	Title           string `json:"title"`
	DisplayAbstract string `json:"displayAbstract"`
	Document        string `json:"document"`
}

// ListPage fetches one page of article stubs for a source tag, newest
// publications first.
func (g *Gateway) ListPage(ctx context.Context, sourceTag string, page, pageSize int) ([]domain.ArticleStub, error) {
	if err := g.checkCredentials(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("context", sourceTag)
	params.Set("objectType", sourceTag+"-article")
	params.Set("sortBy", "pubdate-descending")
	params.Set("pageLength", strconv.Itoa(pageSize))
	params.Set("startPage", strconv.Itoa(page))
	params.Set("showFacets", "N")

	var out listResponse
	if err := g.get(ctx, "/api/v1/simple", params, &out); err != nil {
		return nil, fmt.Errorf("list page %d: %w", page, err)
	}

	stubs := make([]domain.ArticleStub, 0, len(out.Results))
	for _, r := range out.Results {
		title := r.Text
		if title == "" {
			title = r.Title
		}
		stubs = append(stubs, domain.ArticleStub{
			DOI:     r.DOI,
			Title:   title,
			PubDate: r.PubDate,
			Journal: r.Journal,
			Year:    yearFrom(r.PubDate),
		})
	}

	logrus.WithFields(logrus.Fields{
		"source": sourceTag,
		"page":   page,
		"count":  len(stubs),
	}).Debug("fetched listing page")
	return stubs, nil
}

// FetchContent fetches the full article for a DOI and reduces the JATS
// body to plain text.
func (g *Gateway) FetchContent(ctx context.Context, doi, sourceTag string) (*domain.ArticleContent, error) {
	if err := g.checkCredentials(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("context", sourceTag)
	params.Set("doi", doi)
	params.Set("format", "json")

	var out contentResponse
	if err := g.get(ctx, "/api/v1/content", params, &out); err != nil {
		return nil, fmt.Errorf("fetch content for %s: %w", doi, err)
	}

	return &domain.ArticleContent{
		Title:    out.Title,
		Abstract: out.DisplayAbstract,
		Body:     extractJATSText(out.Document),
	}, nil
}

func (g *Gateway) checkCredentials() error {
	if g.apiUser == "" || g.apiKey == "" {
		return ports.ErrMissingCredentials
	}
	return nil
}

func (g *Gateway) get(ctx context.Context, path string, params url.Values, v any) error {
	g.throttle()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("apiuser", g.apiUser)
	req.Header.Set("apikey", g.apiKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("literature API returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// throttle enforces the configured minimum interval between calls.
func (g *Gateway) throttle() {
	if g.minInterval <= 0 {
		return
	}
	g.mu.Lock()
	wait := g.minInterval - time.Since(g.lastCall)
	if wait > 0 {
		time.Sleep(wait)
	}
	g.lastCall = time.Now()
	g.mu.Unlock()
}

func yearFrom(pubdate string) int {
	match := yearPattern.FindString(pubdate)
	if match == "" {
		return 0
	}
	year, _ := strconv.Atoi(match)
	return year
}
