package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/richardliu001/wallet-ledger/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingOutbox publishes into memory and can refuse one event.
type recordingOutbox struct {
	*repo.Repository
	failID    uint64
	published []uint64
}

func (o *recordingOutbox) PublishEvent(_ context.Context, evt model.OutboxEvent) error {
	if evt.ID == o.failID {
		return errors.New("broker unavailable")
	}
	o.published = append(o.published, evt.ID)
	return nil
}

func seedEvents(t *testing.T, r *repo.Repository, n int) []uint64 {
	t.Helper()
	ids := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		evt := &model.OutboxEvent{Aggregate: "wallet", AggregateID: 1, EventType: model.EventTransferCompleted, Payload: "{}"}
		require.NoError(t, r.CreateOutboxEvent(context.Background(), r.DB(context.Background()), evt))
		ids = append(ids, evt.ID)
	}
	return ids
}

func TestFlush(t *testing.T) {
	db := storetest.Open(t)
	r := repo.NewRepository(db, nil, nil, zap.NewNop().Sugar())
	ids := seedEvents(t, r, 3)
	out := &recordingOutbox{Repository: r, failID: ids[1]}
	rl := New(out, time.Second, 10, zap.NewNop().Sugar())

	sent, err := rl.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []uint64{ids[0], ids[2]}, out.published)

	// the failed event is retried on the next round
	out.failID = 0
	sent, err = rl.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, ids[1], out.published[2])

	pending, err := r.PollOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunStopsOnCancel(t *testing.T) {
	db := storetest.Open(t)
	r := repo.NewRepository(db, nil, nil, zap.NewNop().Sugar())
	seedEvents(t, r, 1)
	out := &recordingOutbox{Repository: r}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(out, 10*time.Millisecond, 10, zap.NewNop().Sugar()).Run(ctx) }()

	require.Eventually(t, func() bool {
		pending, err := r.PollOutbox(context.Background(), 10)
		return err == nil && len(pending) == 0
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
