package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/territory-run/internal/models"
)

// Redis keeps each runner's last position in a GEO set and the per-team ping
// times in a sorted set scored by unix time, so distinct active teammates is
// a single ZCOUNT.
type Redis struct {
	client *redis.Client
	geoKey string
}

func NewRedis(addr, password, geoKey string) *Redis {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Redis{client: c, geoKey: geoKey}
}

func (r *Redis) RecordPing(ctx context.Context, ping models.PresencePing) error {
	if _, err := r.client.GeoAdd(ctx, r.geoKey, &redis.GeoLocation{
		Longitude: ping.Loc.Lon,
		Latitude:  ping.Loc.Lat,
		Name:      ping.UserID,
	}).Result(); err != nil {
		return err
	}
	if err := r.client.ZAdd(ctx, teamPingKey(ping.TeamID), redis.Z{
		Score:  float64(ping.At.Unix()),
		Member: ping.UserID,
	}).Err(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(ping.UserID), map[string]interface{}{
		"team_id":   ping.TeamID,
		"pinged_at": ping.At.Format(time.RFC3339),
	}).Err()
}

func (r *Redis) ActiveTeammates(ctx context.Context, teamID string, window time.Duration) (int, error) {
	cutoff := time.Now().Add(-window).Unix()
	n, err := r.client.ZCount(ctx, teamPingKey(teamID), strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func teamPingKey(teamID string) string { return "team:pings:" + teamID }
func metaKey(userID string) string     { return "runner:meta:" + userID }
