package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deliverytrack/engine/infra/logger"
)

type fakeSession struct {
	ctx context.Context
	marked []*sarama.ConsumerMessage
}

func (f *fakeSession) Claims() map[string][]int32 { return nil }
func (f *fakeSession) MemberID() string { return "m1" }
func (f *fakeSession) GenerationID() int32 { return 1 }
func (f *fakeSession) MarkOffset(string, int32, int64, string) {}
func (f *fakeSession) Commit() {}
func (f *fakeSession) ResetOffset(string, int32, int64, string) {}
func (f *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	f.marked = append(f.marked, msg)
}
func (f *fakeSession) Context() context.Context { return f.ctx }

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (f *fakeClaim) Topic() string { return "delivery.created" }
func (f *fakeClaim) Partition() int32 { return 0 }
func (f *fakeClaim) InitialOffset() int64 { return 0 }
func (f *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (f *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return f.msgs }

// A handler failure must not block the offset: the message is marked
// consumed either way.
func TestConsumeClaimMarksRegardlessOfHandlerError(t *testing.T) {
	var seen [][]byte
	h := &groupHandler{
		topic: "delivery.created",
		handle: func(_ context.Context, payload []byte) error {
			seen = append(seen, payload)
			if len(seen) == 1 {
				return errors.New("transient store fault")
			}
			return nil
		},
		log: logger.NopLogger{},
	}

	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 2)}
	claim.msgs <- &sarama.ConsumerMessage{Value: []byte(`{"deliveryId":"d1"}`)}
	claim.msgs <- &sarama.ConsumerMessage{Value: []byte(`{"deliveryId":"d2"}`)}
	close(claim.msgs)

	sess := &fakeSession{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(sess, claim))

	assert.Len(t, seen, 2)
	assert.Len(t, sess.marked, 2)
}
