package broadcast

import (
	"context"
	"encoding/json"

	"codebattle/internal/common/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	EventSubmission = "submission"
	EventBattle     = "battle"
)

// Event is the envelope delivered on a battle topic.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Publisher fans out state snapshots to everyone watching a battle. Publish
// is fire-and-forget: delivery failures are logged, never returned, and must
// never block or roll back the state transition that triggered them.
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event)
}

// BattleTopic returns the delivery-channel topic for one battle.
func BattleTopic(battleID string) string {
	return "battle/" + battleID
}

type redisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) Publisher {
	return &redisPublisher{rdb: rdb}
}

func (p *redisPublisher) Publish(ctx context.Context, topic string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Warn("broadcast marshal failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := p.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		logger.Warn("broadcast publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
