// Package search resolves free-text queries to cached members and roles.
// Numeric IDs and mention syntax bypass matching entirely; anything else goes
// through fzf's fuzzy matcher over a throwaway index built from the live
// cache, so results are always as fresh as the cache itself.
package search

import (
	"regexp"
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
	"go.uber.org/zap"

	"github.com/isahooman/rolewarden/internal/cache"
	"github.com/isahooman/rolewarden/internal/models"
)

var (
	idPattern          = regexp.MustCompile(`^\d{17,20}$`)
	userMentionPattern = regexp.MustCompile(`^<@!?(\d{17,20})>$`)
	roleMentionPattern = regexp.MustCompile(`^<@&(\d{17,20})>$`)
)

// minScorePerRune is the score floor per query rune. fzf awards 16 points
// per matched rune before bonuses and gap penalties; requiring half of that
// on average rejects scattered, low-quality matches.
const minScorePerRune = 8

// Index resolves queries against the entity cache.
type Index struct {
	cache *cache.Cache
	log   *zap.Logger
}

// New creates a search index over the cache.
func New(c *cache.Cache, log *zap.Logger) *Index {
	return &Index{cache: c, log: log}
}

// Member resolves a query to a member of the guild. Supported forms: raw
// snowflake ID, user mention, or a fuzzy match against username and nickname.
// An empty query returns no match; choosing a default actor is the caller's
// business.
func (i *Index) Member(guildID, query string) (models.CachedMember, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.CachedMember{}, false
	}

	if m := userMentionPattern.FindStringSubmatch(query); m != nil {
		query = m[1]
	}
	if idPattern.MatchString(query) {
		member, ok := i.cache.Member(query)
		if !ok || member.GuildID != guildID {
			return models.CachedMember{}, false
		}
		return member, true
	}

	members := i.cache.GuildMembers(guildID)
	i.log.Debug("fuzzy member search",
		zap.String("guild_id", guildID), zap.String("query", query), zap.Int("candidates", len(members)))

	pattern := []rune(strings.ToLower(query))
	slab := util.MakeSlab(100*1024, 2048)

	// Candidates come out of the cache in no particular order, so exact
	// score ties fall back to the lowest ID to keep results stable.
	var best models.CachedMember
	bestScore := 0
	for _, member := range members {
		score := fuzzyScore(member.Username, pattern, slab)
		if nickScore := fuzzyScore(member.Nickname, pattern, slab); nickScore > score {
			score = nickScore
		}
		if score > bestScore || (score == bestScore && score > 0 && member.ID < best.ID) {
			best = member
			bestScore = score
		}
	}

	if bestScore < len(pattern)*minScorePerRune {
		return models.CachedMember{}, false
	}
	return best, true
}

// Role resolves a query to a role of the guild. Supported forms: raw
// snowflake ID, role mention, or a fuzzy match against the role name.
func (i *Index) Role(guildID, query string) (models.CachedRole, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.CachedRole{}, false
	}

	if m := roleMentionPattern.FindStringSubmatch(query); m != nil {
		query = m[1]
	}
	if idPattern.MatchString(query) {
		role, ok := i.cache.Role(query)
		if !ok || role.GuildID != guildID {
			return models.CachedRole{}, false
		}
		return role, true
	}

	roles := i.cache.GuildRoles(guildID)
	i.log.Debug("fuzzy role search",
		zap.String("guild_id", guildID), zap.String("query", query), zap.Int("candidates", len(roles)))

	pattern := []rune(strings.ToLower(query))
	slab := util.MakeSlab(100*1024, 2048)

	var best models.CachedRole
	bestScore := 0
	for _, role := range roles {
		score := fuzzyScore(role.Name, pattern, slab)
		if score > bestScore || (score == bestScore && score > 0 && role.ID < best.ID) {
			best = role
			bestScore = score
		}
	}

	if bestScore < len(pattern)*minScorePerRune {
		return models.CachedRole{}, false
	}
	return best, true
}

// fuzzyScore runs fzf's V2 matcher. Both sides are lowercased; the pattern
// is pre-lowered by the callers.
func fuzzyScore(text string, pattern []rune, slab *util.Slab) int {
	if text == "" {
		return 0
	}
	chars := util.ToChars([]byte(strings.ToLower(text)))
	result, _ := algo.FuzzyMatchV2(false, true, true, &chars, pattern, false, slab)
	return result.Score
}
