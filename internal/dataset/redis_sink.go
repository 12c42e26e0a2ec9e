package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyburd/redigo/redis"

	"jordanella.com/runner-collector/internal/cv"
)

// redisSample is the JSON document pushed per sample
type redisSample struct {
	Session     string    `json:"session"`
	Seq         int       `json:"seq"`
	Input       [][]int   `json:"input"`
	Output      uint8     `json:"output"`
	PlayerFound bool      `json:"player_found"`
	GameOver    bool      `json:"game_over"`
	CapturedAt  time.Time `json:"captured_at"`
}

// RedisSink appends samples to a redis list named <key>:<session> for trainers to consume
type RedisSink struct {
	pool *redis.Pool
	key  string
}

// NewRedisPool dials addr lazily, keeping at most maxIdle idle connections
func NewRedisPool(addr string, maxIdle int) *redis.Pool {
	return redis.NewPool(func() (redis.Conn, error) {
		c, err := redis.Dial("tcp", addr)
		if err != nil {
			return nil, err
		}
		return c, err
	}, maxIdle)
}

// NewRedisSink creates a sink over an existing pool
func NewRedisSink(pool *redis.Pool, key string) *RedisSink {
	return &RedisSink{pool: pool, key: key}
}

func (s *RedisSink) Name() string {
	return "redis"
}

// ListKey returns the list a session's samples are pushed to
func (s *RedisSink) ListKey(sessionID string) string {
	return s.key + ":" + sessionID
}

func (s *RedisSink) Write(ctx context.Context, ds Dataset) error {
	if len(ds.Samples) == 0 {
		return nil
	}

	conn := s.pool.Get()
	defer conn.Close()

	listKey := s.ListKey(ds.SessionID)
	for _, smp := range ds.Samples {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := encodeRedisSample(ds.SessionID, smp)
		if err != nil {
			return err
		}
		if err := conn.Send("RPUSH", listKey, data); err != nil {
			return fmt.Errorf("rpush sample %d: %w", smp.Seq, err)
		}
	}

	if _, err := conn.Do(""); err != nil {
		return fmt.Errorf("flush to %s: %w", listKey, err)
	}
	return nil
}

// gridInts widens the grid so it encodes as nested arrays rather than base64
func gridInts(g cv.OccupancyGrid) [][]int {
	out := make([][]int, len(g))
	for i, row := range g {
		out[i] = make([]int, len(row))
		for j, v := range row {
			out[i][j] = int(v)
		}
	}
	return out
}

func encodeRedisSample(sessionID string, smp Sample) ([]byte, error) {
	return json.Marshal(redisSample{
		Session:     sessionID,
		Seq:         smp.Seq,
		Input:       gridInts(smp.Grid),
		Output:      smp.Action,
		PlayerFound: smp.PlayerFound,
		GameOver:    smp.GameOver,
		CapturedAt:  smp.CapturedAt,
	})
}
