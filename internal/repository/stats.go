package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

const (
	statsKeyPrefix   = "stats:"
	resultsKeyPrefix = "results:"

	fieldWins   = "wins"
	fieldLosses = "losses"
	fieldDraws  = "draws"

	// MaxRecentResults is how many finished games are kept per player.
	MaxRecentResults = 20
)

var ErrInvalidPlayerName = errors.New("invalid player name")

type StatsRepository struct {
	client *redis.Client
}

func NewStatsRepository(client *redis.Client) *StatsRepository {
	return &StatsRepository{
		client: client,
	}
}

// RecordResult updates the counters of both players and prepends the result to their history
// in one transaction.
func (that *StatsRepository) RecordResult(ctx context.Context, result entity.MatchResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("could not marshal match result: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, name := range []string{result.HostName, result.GuestName} {
			if name == "" {
				continue
			}

			pipe.HIncrBy(ctx, statsKey(name), outcomeField(result, name), 1)
			pipe.LPush(ctx, resultsKey(name), resultJSON)
			pipe.LTrim(ctx, resultsKey(name), 0, MaxRecentResults-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record match result: %w", err)
	}

	return nil
}

// GetByName returns zero counters for a player with no finished games.
func (that *StatsRepository) GetByName(ctx context.Context, name string) (entity.PlayerStats, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return entity.PlayerStats{}, ErrInvalidPlayerName
	}

	fields, err := that.client.HGetAll(ctx, statsKey(name)).Result()
	if err != nil {
		return entity.PlayerStats{}, fmt.Errorf("failed to get stats: %w", err)
	}

	stats := entity.PlayerStats{Name: name}

	for field, target := range map[string]*int64{
		fieldWins:   &stats.Wins,
		fieldLosses: &stats.Losses,
		fieldDraws:  &stats.Draws,
	} {
		raw, ok := fields[field]
		if !ok {
			continue
		}

		if *target, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return entity.PlayerStats{}, fmt.Errorf("failed to parse %s: %w", field, err)
		}
	}

	return stats, nil
}

// RecentResults returns up to limit results, newest first.
func (that *StatsRepository) RecentResults(ctx context.Context, name string, limit int) ([]entity.MatchResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidPlayerName
	}

	if limit <= 0 || limit > MaxRecentResults {
		limit = MaxRecentResults
	}

	response, err := that.client.LRange(ctx, resultsKey(name), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}

	results := make([]entity.MatchResult, 0, len(response))
	for _, raw := range response {
		var result entity.MatchResult
		if err = json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match result: %w", err)
		}
		results = append(results, result)
	}

	return results, nil
}

func outcomeField(result entity.MatchResult, name string) string {
	switch {
	case result.Draw || result.WinnerName == "":
		return fieldDraws
	case result.WinnerName == name:
		return fieldWins
	default:
		return fieldLosses
	}
}

// Names are case-insensitive, like seat keys.
func statsKey(name string) string {
	return statsKeyPrefix + strings.ToLower(strings.TrimSpace(name))
}

func resultsKey(name string) string {
	return resultsKeyPrefix + strings.ToLower(strings.TrimSpace(name))
}
