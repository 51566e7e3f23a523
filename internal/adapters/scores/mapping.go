package scores

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// toGameState convierte un evento del scoreboard al modelo de dominio.
// Falla si el evento no trae competición con equipos home/away.
func toGameState(sport string, event map[string]interface{}) (domain.GameState, error) {
	g := domain.GameState{
		EventID: extractString(event, "id"),
		Sport:   sport,
	}

	status := extractMap(event, "status")
	statusType := extractMap(status, "type")
	g.Period = extractInt(status, "period")
	g.Clock = parseClock(status)
	g.Completed, _ = statusType["completed"].(bool)

	comps := extractArray(event, "competitions")
	if len(comps) == 0 {
		return domain.GameState{}, fmt.Errorf("event %s has no competitions", g.EventID)
	}
	comp, _ := comps[0].(map[string]interface{})
	competitors := extractArray(comp, "competitors")
	if len(competitors) < 2 {
		return domain.GameState{}, fmt.Errorf("event %s has %d competitors", g.EventID, len(competitors))
	}

	for _, raw := range competitors {
		competitor, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		team := extractMap(competitor, "team")
		name := extractString(team, "displayName")
		score := extractInt(competitor, "score")
		switch extractString(competitor, "homeAway") {
		case "home":
			g.HomeTeam = name
			g.HomeScore = score
		case "away":
			g.AwayTeam = name
			g.AwayScore = score
		}
	}
	if g.HomeTeam == "" || g.AwayTeam == "" {
		return domain.GameState{}, fmt.Errorf("event %s missing home/away teams", g.EventID)
	}
	return g, nil
}

// parseClock saca el reloj restante del periodo. ESPN manda el campo
// numérico "clock" en segundos; si falta, se interpreta "displayClock"
// ("4:35" o "24.7" bajo el minuto).
func parseClock(status map[string]interface{}) time.Duration {
	if v, ok := status["clock"]; ok {
		return time.Duration(parseFloat(v) * float64(time.Second))
	}
	return parseDisplayClock(extractString(status, "displayClock"))
}

func parseDisplayClock(s string) time.Duration {
	if s == "" {
		return 0
	}
	if strings.Contains(s, ":") {
		parts := strings.SplitN(s, ":", 2)
		mins, _ := strconv.Atoi(parts[0])
		secs, _ := strconv.Atoi(parts[1])
		return time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second
	}
	secs, _ := strconv.ParseFloat(s, 64)
	return time.Duration(secs * float64(time.Second))
}

// parseFloat interpreta un valor laxo de JSON como float.
func parseFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	case int:
		return float64(val)
	default:
		return 0
	}
}

// parseInt interpreta un valor laxo de JSON como int. ESPN manda los
// marcadores como strings ("102").
func parseInt(v interface{}) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		i, _ := strconv.Atoi(val)
		return i
	case int:
		return val
	default:
		return 0
	}
}

func extractString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func extractInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		return parseInt(v)
	}
	return 0
}

func extractMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key]; ok {
		if mv, ok := v.(map[string]interface{}); ok {
			return mv
		}
	}
	return map[string]interface{}{}
}

func extractArray(m map[string]interface{}, key string) []interface{} {
	if v, ok := m[key]; ok {
		if av, ok := v.([]interface{}); ok {
			return av
		}
	}
	return []interface{}{}
}
