package identity

import "strings"

// Game is a short game code used as the index key for UIDs.
type Game string

const (
	GameGenshin  Game = "gs"
	GameStarRail Game = "sr"
)

// DefaultGames is the set of games indexed when none is configured.
var DefaultGames = []Game{GameGenshin, GameStarRail}

var gameAliases = map[string]Game{
	"gs":        GameGenshin,
	"genshin":   GameGenshin,
	"ys":        GameGenshin,
	"sr":        GameStarRail,
	"starrail":  GameStarRail,
	"star_rail": GameStarRail,
	"hsr":       GameStarRail,
}

// ParseGame normalizes a game name or alias. Empty input means Genshin.
// Unknown names are returned as-is with ok=false.
func ParseGame(s string) (Game, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return GameGenshin, true
	}
	if g, ok := gameAliases[s]; ok {
		return g, true
	}
	return Game(s), false
}

// ParseGames parses a configured game list, dropping duplicates.
// An empty list yields DefaultGames.
func ParseGames(names []string) []Game {
	if len(names) == 0 {
		return append([]Game(nil), DefaultGames...)
	}
	seen := make(map[Game]struct{}, len(names))
	games := make([]Game, 0, len(names))
	for _, name := range names {
		g, _ := ParseGame(name)
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		games = append(games, g)
	}
	return games
}
