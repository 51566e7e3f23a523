package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

const (
	defaultCLOBBase  = "https://clob.polymarket.com"
	defaultGammaBase = "https://gamma-api.polymarket.com"
	defaultDataBase  = "https://data-api.polymarket.com"

	// Rate limits al 60% de los límites reales documentados.
	// CLOB /books: 500/10s → 300/10s → 30/s
	booksRatePerSec = 30
	// Gamma /markets: 300/10s → 180/10s → 18/s
	gammaRatePerSec = 18
	// CLOB general (markets, balance, etc.): 9000/10s → 5400/10s → 540/s
	generalRatePerSec = 540
	// Data API: sin límite documentado, 10/s es más que suficiente
	dataRatePerSec = 10

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond

	// Los books son pricing sensible a latencia: mejor quedarse sin book
	// este ciclo que encadenar backoffs.
	maxRetriesBooks = 1
)

// Client es el HTTP client de Polymarket con rate limiting y retries.
// Cubre los tres servicios públicos: CLOB, Gamma y la Data API.
type Client struct {
	http         *http.Client
	clobBase     string
	gammaBase    string
	dataBase     string
	sportTags    map[string]string
	clobLimiter  *rate.Limiter
	gammaLimiter *rate.Limiter
	booksLimiter *rate.Limiter
	dataLimiter  *rate.Limiter
}

// NewClient crea un Client con los base URLs dados.
// Los URLs vacíos caen a los de producción; sportTags nil usa los tags
// por defecto de gamma.go.
func NewClient(clobBase, gammaBase, dataBase string, sportTags map[string]string) *Client {
	if clobBase == "" {
		clobBase = defaultCLOBBase
	}
	if gammaBase == "" {
		gammaBase = defaultGammaBase
	}
	if dataBase == "" {
		dataBase = defaultDataBase
	}
	tags := make(map[string]string, len(defaultSportTags)+len(sportTags))
	for k, v := range defaultSportTags {
		tags[k] = v
	}
	for k, v := range sportTags {
		tags[k] = v
	}
	return &Client{
		http:         &http.Client{Timeout: 10 * time.Second},
		clobBase:     clobBase,
		gammaBase:    gammaBase,
		dataBase:     dataBase,
		sportTags:    tags,
		clobLimiter:  rate.NewLimiter(generalRatePerSec, 50),
		gammaLimiter: rate.NewLimiter(gammaRatePerSec, 10),
		booksLimiter: rate.NewLimiter(booksRatePerSec, 5),
		dataLimiter:  rate.NewLimiter(dataRatePerSec, 5),
	}
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, retries int, url string, out any) error {
	return c.doWithRetry(ctx, limiter, retries, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// post hace un POST JSON con rate limiting y retries.
func (c *Client) post(ctx context.Context, limiter *rate.Limiter, retries int, url string, body, out any) error {
	return c.doWithRetry(ctx, limiter, retries, func() (*http.Response, error) {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial y jitter hasta
// agotar el presupuesto de retries. Los status HTTP se clasifican con la
// taxonomía de errores del dominio: 429 y 5xx se reintentan, el resto de
// 4xx corta al primer intento.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, retries int, fn func() (*http.Response, error), out any) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			lastErr = err
			if attempt == retries {
				break
			}
			sleepBackoff(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			apiErr := domain.ClassifyStatus(resp.StatusCode, string(body))
			if !apiErr.Retryable() || attempt == retries {
				return apiErr
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				slog.Warn("rate limited by API", "attempt", attempt+1)
			}
			lastErr = apiErr
			sleepBackoff(ctx, attempt)
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("request failed after %d retries: %w", retries, lastErr)
}

// sleepBackoff espera 2^attempt * base más un jitter aleatorio de hasta la
// mitad de la espera, respetando el contexto.
func sleepBackoff(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	wait += time.Duration(rand.Int63n(int64(wait / 2)))
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
