package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"poe-trade-archive/internal/trade"
)

const (
	historyPath      = "/api/trade/history/"
	defaultBaseURL   = "https://www.pathofexile.com"
	sessionCookie    = "POESESSID"
	defaultUserAgent = "tradearchive/1.0"
)

// ErrUnauthorized is returned when the session cookie is missing or rejected.
var ErrUnauthorized = errors.New("trade history requires a valid session")

// HistoryOptions parameterise the trade history fetcher.
type HistoryOptions struct {
	BaseURL   string
	SessionID string
	Timeout   time.Duration
	UserAgent string
}

// History fetches the account trade history over HTTP.
type History struct {
	opts    HistoryOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHistory constructs a history fetcher.
func NewHistory(opts HistoryOptions, logger zerolog.Logger) *History {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &History{
		opts:    opts,
		logger:  logger.With().Str("component", "history_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchHistory requests the latest history page of league and decodes its entries.
func (h *History) FetchHistory(ctx context.Context, league string) (Batch, error) {
	league = strings.TrimSpace(league)
	if league == "" {
		return Batch{}, errors.New("league must not be empty")
	}

	endpoint := h.baseURL + historyPath + url.PathEscape(league)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Batch{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	if session := strings.TrimSpace(h.opts.SessionID); session != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: session})
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Batch{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Batch{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Batch{}, parseHTTPError(resp.StatusCode, payload)
	}

	entries, skipped, err := trade.DecodeBatch(payload)
	if err != nil {
		return Batch{}, err
	}
	if skipped > 0 {
		h.logger.Warn().Str("league", league).Int("skipped", skipped).Msg("skipped undecodable history entries")
	}
	h.logger.Debug().Str("league", league).Int("entries", len(entries)).Msg("history fetched")

	return Batch{League: league, Entries: entries, Skipped: skipped, Payload: json.RawMessage(payload)}, nil
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var cause error
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		cause = ErrUnauthorized
	}

	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Error.Message != "" {
		return wrapStatus(status, apiErr.Error.Message, cause)
	}
	if text := strings.TrimSpace(string(payload)); text != "" && len(text) < 512 {
		return wrapStatus(status, text, cause)
	}
	return wrapStatus(status, "", cause)
}

func wrapStatus(status int, detail string, cause error) error {
	msg := fmt.Sprintf("trade history api error (%d)", status)
	if detail != "" {
		msg += ": " + detail
	}
	if cause != nil {
		return fmt.Errorf("%s: %w", msg, cause)
	}
	return errors.New(msg)
}

var _ HistoryFetcher = (*History)(nil)
