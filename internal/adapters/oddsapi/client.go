package oddsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

const (
	defaultBase = "https://api.the-odds-api.com"

	// El feed no documenta un límite por segundo, pero responde 429 a
	// ráfagas. 1 req/s con burst 2 nos deja muy lejos de ese umbral.
	oddsRatePerSec = 1

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client del feed de cuotas con rate limiting y retries.
type Client struct {
	http    *http.Client
	base    string
	apiKey  string
	regions string
	limiter *rate.Limiter
}

// NewClient crea un Client del feed de cuotas. Si base está vacío usa el
// URL de producción.
func NewClient(base, apiKey, regions string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		base:    base,
		apiKey:  apiKey,
		regions: regions,
		limiter: rate.NewLimiter(oddsRatePerSec, 2),
	}
}

// FetchOdds descarga las cuotas moneyline de un deporte y las convierte al
// modelo de dominio. Un evento sin mercados h2h utilizables llega con la
// lista de books vacía.
func (c *Client) FetchOdds(ctx context.Context, sport string) ([]domain.MatchOdds, error) {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("regions", c.regions)
	q.Set("markets", marketH2H)
	q.Set("oddsFormat", "american")

	endpoint := fmt.Sprintf("%s/v4/sports/%s/odds/?%s", c.base, url.PathEscape(sport), q.Encode())

	var events []eventDTO
	if err := c.get(ctx, endpoint, &events); err != nil {
		return nil, fmt.Errorf("oddsapi.FetchOdds: sport %s: %w", sport, err)
	}

	out := make([]domain.MatchOdds, 0, len(events))
	for _, ev := range events {
		out = append(out, toMatchOdds(ev))
	}
	return out, nil
}

// get hace un GET con rate limiting, clasificación de errores y retries
// con backoff exponencial y jitter. Los errores no reintentables (4xx)
// cortan al primer intento.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt == maxRetries {
				break
			}
			sleepBackoff(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			apiErr := domain.ClassifyStatus(resp.StatusCode, string(body))
			if !apiErr.Retryable() || attempt == maxRetries {
				return apiErr
			}
			slog.Warn("Feed de cuotas devolvió error reintentable",
				"status", resp.StatusCode, "attempt", attempt+1)
			lastErr = apiErr
			sleepBackoff(ctx, attempt)
			continue
		}

		// El feed descuenta cuota mensual por request; dejar rastro.
		slog.Debug("Cuota del feed de odds",
			"remaining", resp.Header.Get("X-Requests-Remaining"),
			"used", resp.Header.Get("X-Requests-Used"))

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries: %w", maxRetries, lastErr)
}

// sleepBackoff espera 2^attempt * base más un jitter aleatorio de hasta
// la mitad de la espera, respetando el contexto.
func sleepBackoff(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	wait += time.Duration(rand.Int63n(int64(wait / 2)))
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
