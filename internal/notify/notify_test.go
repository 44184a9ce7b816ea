package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/goran-ethernal/ChainProcessor/pkg/notify"
	"github.com/goran-ethernal/ChainProcessor/pkg/state"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func stateNotification() notify.Notification {
	return notify.Notification{
		Type:  notify.StateChange,
		Chain: "kusama",
		RunID: "run-1",
		Time:  fixedTime,
		State: &state.ProcessorState{LastScannedBlock: 150, LastProcessedEvent: "150-2"},
	}
}

func TestRedisSink_StateChange(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	sink := NewRedisSinkFromClient(rdb, "processor", nil)

	n := stateNotification()
	payload, err := json.Marshal(n)
	require.NoError(t, err)

	mock.ExpectSet("processor:kusama:state", payload, 0).SetVal("OK")
	mock.ExpectPublish("processor:kusama:STATE_CHANGE", payload).SetVal(1)

	require.NoError(t, sink.Notify(context.Background(), n))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSink_OtherTypesOnlyPublish(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	sink := NewRedisSinkFromClient(rdb, "hydra", nil)

	size := 3
	n := notify.Notification{Type: notify.QueueSizeChange, Chain: "polkadot", Time: fixedTime, QueueSize: &size}
	payload, err := json.Marshal(n)
	require.NoError(t, err)

	mock.ExpectPublish("hydra:polkadot:QUEUE_SIZE_CHANGE", payload).SetErr(errors.New("connection refused"))

	require.ErrorContains(t, sink.Notify(context.Background(), n), "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSink_LatestState(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	sink := NewRedisSinkFromClient(rdb, "processor", nil)

	n := stateNotification()
	payload, err := json.Marshal(n)
	require.NoError(t, err)

	mock.ExpectGet("processor:kusama:state").SetVal(string(payload))
	got, err := sink.LatestState(context.Background(), "kusama")
	require.NoError(t, err)
	require.Equal(t, int64(150), got.State.LastScannedBlock)

	mock.ExpectGet("processor:polkadot:state").RedisNil()
	_, err = sink.LatestState(context.Background(), "polkadot")
	require.ErrorIs(t, err, redis.Nil)
}

type publishRecorder struct {
	subjects []string
	err      error
}

func (p *publishRecorder) Publish(subject string, _ []byte) error {
	p.subjects = append(p.subjects, subject)
	return p.err
}

func TestNATSSink(t *testing.T) {
	pub := &publishRecorder{}
	sink := NewNATSSinkFromPublisher(pub, "processor")

	require.NoError(t, sink.Notify(context.Background(), stateNotification()))
	require.Equal(t, []string{"processor.kusama.STATE_CHANGE"}, pub.subjects)

	pub.err = errors.New("nats: connection closed")
	require.ErrorContains(t, sink.Notify(context.Background(), stateNotification()), "connection closed")
	require.NoError(t, sink.Close())
}

func TestProgressLogger(t *testing.T) {
	p := NewProgressLogger(time.Hour, nil)
	ctx := context.Background()

	require.NoError(t, p.Notify(ctx, notify.Notification{Type: notify.StateChange, Chain: "kusama"}))
	require.NoError(t, p.Notify(ctx, stateNotification()))
	require.NoError(t, p.Notify(ctx, stateNotification()))

	head, ok := p.heads.Load("kusama")
	require.False(t, ok)
	require.Zero(t, head)

	_, ok = p.throttles.Load("kusama")
	require.True(t, ok)
}

func TestBehind(t *testing.T) {
	require.Equal(t, int64(50), Behind(200, 150))
	require.Zero(t, Behind(100, 150))
}
