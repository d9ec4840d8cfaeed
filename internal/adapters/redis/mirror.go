package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"flex_reviews/internal/domain"
)

const DefaultMirrorKey = "selectedReviews"

// ApprovalMirror keeps a local copy of the approved set as a JSON number
// array under one key. It never expires.
type ApprovalMirror struct {
	c   *redis.Client
	key string
}

func NewApprovalMirror(c *redis.Client, key string) *ApprovalMirror {
	if key == "" {
		key = DefaultMirrorKey
	}
	return &ApprovalMirror{c: c, key: key}
}

// LoadApproved returns nil, nil when nothing has been mirrored yet.
// A value that is not a JSON number array is reported as malformed.
func (m *ApprovalMirror) LoadApproved(ctx context.Context) ([]int64, error) {
	b, err := m.c.Get(ctx, m.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get %s: %v", domain.ErrTransport, m.key, err)
	}
	var ids []int64
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformed, m.key, err)
	}
	return ids, nil
}

func (m *ApprovalMirror) SaveApproved(ctx context.Context, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := m.c.Set(ctx, m.key, b, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %v", domain.ErrTransport, m.key, err)
	}
	return nil
}
