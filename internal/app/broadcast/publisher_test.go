package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBattleTopic(t *testing.T) {
	assert.Equal(t, "battle/b42", BattleTopic("b42"))
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, BattleTopic("b1"))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx) // Wait for the subscription confirmation
	require.NoError(t, err)

	p := NewRedisPublisher(rdb)
	p.Publish(ctx, BattleTopic("b1"), Event{
		Type: EventSubmission,
		Data: map[string]string{"submission_id": "s1", "status": "RUNNING"},
	})

	select {
	case msg := <-sub.Channel():
		var event Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, EventSubmission, event.Type)
		data, ok := event.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "s1", data["submission_id"])
	case <-time.After(3 * time.Second):
		t.Fatal("no message received on battle topic")
	}
}

func TestPublishSurvivesBrokerOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	p := NewRedisPublisher(rdb)
	// Must not panic or return; failures are logged only.
	p.Publish(context.Background(), BattleTopic("b1"), Event{Type: EventBattle, Data: "snapshot"})
}
