package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const orphanSetKey = "storage:orphans"

// Orphans records object paths whose removal failed so a later sweep can retry.
type Orphans struct {
	client *redis.Client
}

func NewOrphans(client *redis.Client) *Orphans {
	return &Orphans{client: client}
}

func (o *Orphans) Track(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	members := make([]any, len(paths))
	for i, p := range paths {
		members[i] = p
	}
	if err := o.client.SAdd(ctx, orphanSetKey, members...).Err(); err != nil {
		return fmt.Errorf("track orphans: %w", err)
	}
	return nil
}

func (o *Orphans) Count(ctx context.Context) (int64, error) {
	return o.client.SCard(ctx, orphanSetKey).Result()
}

type Remover interface {
	Remove(ctx context.Context, paths []string) error
}

// Sweep removes up to batch tracked objects. Paths are dropped from the set
// only once their removal succeeds.
func (o *Orphans) Sweep(ctx context.Context, remover Remover, batch int64, log zerolog.Logger) (int, error) {
	paths, err := o.client.SRandMemberN(ctx, orphanSetKey, batch).Result()
	if err != nil {
		return 0, fmt.Errorf("list orphans: %w", err)
	}

	removed := 0
	for _, p := range paths {
		if err := remover.Remove(ctx, []string{p}); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("orphan removal failed")
			continue
		}
		if err := o.client.SRem(ctx, orphanSetKey, p).Err(); err != nil {
			return removed, fmt.Errorf("untrack orphan: %w", err)
		}
		removed++
	}
	return removed, nil
}
