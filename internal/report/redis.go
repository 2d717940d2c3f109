package report

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/segpack/internal/config"
	"github.com/andresuchdata/segpack/internal/uploader"
)

const (
	runKeyPrefix     = "segpack:run:"
	defaultReportTTL = 7 * 24 * time.Hour
)

// RedisReporter stores run summaries in Redis so other tools can pick them up.
type RedisReporter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReporter connects to cfg.RedisURL and pings it.
func NewRedisReporter(ctx context.Context, cfg config.ReportConfig) (*RedisReporter, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultReportTTL
	}

	return &RedisReporter{client: client, ttl: ttl}, nil
}

func runKey(runID string) string {
	return runKeyPrefix + runID
}

func skippedKey(runID string) string {
	return runKey(runID) + ":skipped"
}

// Report writes the summary hash and the list of skipped paths in one transaction.
func (r *RedisReporter) Report(ctx context.Context, s *uploader.Summary) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, runKey(s.RunID), summaryFields(s))
	pipe.Expire(ctx, runKey(s.RunID), r.ttl)

	if skipped := s.SkippedOutcomes(); len(skipped) > 0 {
		paths := make([]interface{}, len(skipped))
		for i, o := range skipped {
			paths[i] = o.Path
		}
		pipe.Del(ctx, skippedKey(s.RunID))
		pipe.RPush(ctx, skippedKey(s.RunID), paths...)
		pipe.Expire(ctx, skippedKey(s.RunID), r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis report failed: %w", err)
	}
	return nil
}

func (r *RedisReporter) Close() error {
	return r.client.Close()
}

func summaryFields(s *uploader.Summary) map[string]interface{} {
	return map[string]interface{}{
		"started_at":     s.StartedAt.UTC().Format(time.RFC3339),
		"elapsed_ms":     strconv.FormatInt(s.Elapsed.Milliseconds(), 10),
		"appended":       strconv.Itoa(s.Appended),
		"copied":         strconv.Itoa(s.Copied),
		"skipped":        strconv.Itoa(s.Skipped),
		"appended_bytes": strconv.FormatInt(s.AppendedBytes, 10),
		"copied_bytes":   strconv.FormatInt(s.CopiedBytes, 10),
		"segments":       strconv.Itoa(len(s.Segments)),
	}
}
