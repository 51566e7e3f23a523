// Package scores obtiene el estado en vivo de los partidos desde el
// scoreboard público de ESPN. El API no está documentado y su esquema
// cambia sin aviso, así que la respuesta se trata como JSON laxo y solo
// se extraen los campos que el árbol de take-profit necesita: marcador,
// periodo, reloj y si el partido terminó.
package scores

import (
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
	defaultBase = "https://site.api.espn.com/apis/site/v2/sports"
	userAgent   = "Mozilla/5.0 (compatible; sharpbot/1.0)"

	// ESPN no publica límites, pero es un API de cortesía: 1 req/s de
	// sobra para un sweep por deporte cada pocos minutos.
	scoresRatePerSec = 1

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// sportPaths traduce los sport keys del feed de cuotas a rutas de ESPN.
var sportPaths = map[string]string{
	"basketball_nba":       "basketball/nba",
	"basketball_ncaab":     "basketball/mens-college-basketball",
	"americanfootball_nfl": "football/nfl",
	"icehockey_nhl":        "hockey/nhl",
}

// Client es el HTTP client del scoreboard con rate limiting y retries.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

// NewClient crea un Client del scoreboard. Si base está vacío usa el URL
// público de ESPN.
func NewClient(base string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(scoresRatePerSec, 2),
	}
}

// FetchGameStates devuelve los partidos del día del sport key dado. Los
// eventos que no se pueden interpretar se descartan con log en vez de
// tumbar el sweep entero.
func (c *Client) FetchGameStates(ctx context.Context, sport string) ([]domain.GameState, error) {
	path, ok := sportPaths[sport]
	if !ok {
		return nil, fmt.Errorf("scores.FetchGameStates: no ESPN path for sport %q", sport)
	}

	endpoint := fmt.Sprintf("%s/%s/scoreboard", c.base, path)

	var payload map[string]interface{}
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("scores.FetchGameStates: sport %s: %w", sport, err)
	}

	events := extractArray(payload, "events")
	out := make([]domain.GameState, 0, len(events))
	for _, raw := range events {
		event, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		g, err := toGameState(sport, event)
		if err != nil {
			slog.Debug("Evento del scoreboard descartado", "sport", sport, "err", err)
			continue
		}
		out = append(out, g)
	}

	slog.Debug("Scoreboard descargado", "sport", sport, "games", len(out))
	return out, nil
}

// get hace un GET con rate limiting, clasificación de errores y retries
// con backoff exponencial y jitter.
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
		req.Header.Set("User-Agent", userAgent)

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
			slog.Warn("Scoreboard devolvió error reintentable",
				"status", resp.StatusCode, "attempt", attempt+1)
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
