package oddsapi

import "time"

// DTOs del feed de The Odds API v4. Solo los campos que usamos.

type eventDTO struct {
	ID           string         `json:"id"`
	SportKey     string         `json:"sport_key"`
	SportTitle   string         `json:"sport_title"`
	CommenceTime time.Time      `json:"commence_time"`
	HomeTeam     string         `json:"home_team"`
	AwayTeam     string         `json:"away_team"`
	Bookmakers   []bookmakerDTO `json:"bookmakers"`
}

type bookmakerDTO struct {
	Key        string      `json:"key"`
	Title      string      `json:"title"`
	LastUpdate time.Time   `json:"last_update"`
	Markets    []marketDTO `json:"markets"`
}

type marketDTO struct {
	Key        string       `json:"key"`
	LastUpdate time.Time    `json:"last_update"`
	Outcomes   []outcomeDTO `json:"outcomes"`
}

type outcomeDTO struct {
	Name  string `json:"name"`
	Price int    `json:"price"` // cuota americana (oddsFormat=american)
}
