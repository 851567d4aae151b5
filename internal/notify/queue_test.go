package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmetica/clinic-booking/internal/messaging"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

func TestMemoryQueue_ReceiveBatches(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	for _, body := range []string{"a", "b", "c"} {
		require.NoError(t, q.Send(ctx, body))
	}

	msgs, err := q.Receive(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Body)
	assert.Equal(t, "b", msgs[1].Body)

	msgs, err = q.Receive(ctx, 5, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "c", msgs[0].Body)
}

func TestMemoryQueue_ReceiveHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Receive(ctx, 1, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisher_EncodesRequest(t *testing.T) {
	q := NewMemoryQueue(1)
	p := NewPublisher(q, logging.Discard())
	req := Request{Kind: KindConfirm, Phone: "9870439934", Name: "Asha", Date: "2025-06-01", Slot: "11:00-11:30"}
	require.NoError(t, p.Enqueue(context.Background(), req))

	msgs, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	payload, err := decodePayload(msgs[0].Body)
	require.NoError(t, err)
	assert.NotEmpty(t, payload.ID)
	assert.Equal(t, req, payload.Request)
}

type countingQueue struct {
	*MemoryQueue
	mu      sync.Mutex
	deleted []string
}

func (q *countingQueue) Delete(ctx context.Context, handle string) error {
	q.mu.Lock()
	q.deleted = append(q.deleted, handle)
	q.mu.Unlock()
	return nil
}

func (q *countingQueue) deletedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deleted)
}

type dispatchFunc func(ctx context.Context, req Request) (*messaging.Receipt, error)

func (f dispatchFunc) Dispatch(ctx context.Context, req Request) (*messaging.Receipt, error) {
	return f(ctx, req)
}

func TestWorker_DeliversAtMostOnce(t *testing.T) {
	q := &countingQueue{MemoryQueue: NewMemoryQueue(4)}
	p := NewPublisher(q, logging.Discard())

	var mu sync.Mutex
	var calls []Request
	done := make(chan struct{}, 4)
	dispatch := dispatchFunc(func(_ context.Context, req Request) (*messaging.Receipt, error) {
		mu.Lock()
		calls = append(calls, req)
		mu.Unlock()
		done <- struct{}{}
		if req.Kind == KindCancel {
			return nil, errors.New("provider down")
		}
		return &messaging.Receipt{SID: "SM1"}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(q, dispatch, logging.Discard(), WithReceiveWaitSeconds(1))
	w.Start(ctx)

	require.NoError(t, p.Enqueue(ctx, Request{Kind: KindCancel, Phone: "9870439934"}))
	require.NoError(t, q.Send(ctx, "not json"))
	require.NoError(t, p.Enqueue(ctx, Request{Kind: KindConfirm, Phone: "9870439934"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for dispatch")
		}
	}
	require.Eventually(t, func() bool { return q.deletedCount() == 3 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	w.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 2)
	assert.Equal(t, KindCancel, calls[0].Kind)
	assert.Equal(t, KindConfirm, calls[1].Kind)
}

func TestWorkerOptionsClamp(t *testing.T) {
	w := NewWorker(NewMemoryQueue(1), dispatchFunc(nil), nil,
		WithWorkerCount(3),
		WithReceiveWaitSeconds(60),
		WithReceiveBatchSize(50),
		WithSendTimeout(time.Second),
	)
	assert.Equal(t, 3, w.cfg.workers)
	assert.Equal(t, maxWaitSeconds, w.cfg.receiveWaitSecs)
	assert.Equal(t, maxReceiveBatchSize, w.cfg.receiveBatchSize)
	assert.Equal(t, time.Second, w.cfg.sendTimeout)
}

type fakeSQS struct {
	sent     []*sqs.SendMessageInput
	deleted  []*sqs.DeleteMessageInput
	received *sqs.ReceiveMessageInput
	messages []types.Message
	err      error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{}, f.err
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.received = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, in)
	return &sqs.DeleteMessageOutput{}, f.err
}

func TestSQSQueue(t *testing.T) {
	client := &fakeSQS{messages: []types.Message{{
		MessageId:     aws.String("m-1"),
		Body:          aws.String("{}"),
		ReceiptHandle: aws.String("rh-1"),
	}}}
	q := newSQSQueue(client, "https://sqs.ap-south-1.amazonaws.com/123/notifications")
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "payload"))
	require.Len(t, client.sent, 1)
	assert.Equal(t, "payload", aws.ToString(client.sent[0].MessageBody))

	msgs, err := q.Receive(ctx, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(5), client.received.MaxNumberOfMessages)
	assert.Equal(t, int32(10), client.received.WaitTimeSeconds)
	require.Len(t, msgs, 1)
	assert.Equal(t, "rh-1", msgs[0].ReceiptHandle)

	require.NoError(t, q.Delete(ctx, ""))
	assert.Empty(t, client.deleted)
	require.NoError(t, q.Delete(ctx, "rh-1"))
	require.Len(t, client.deleted, 1)
}

func TestSQSQueue_WrapsErrors(t *testing.T) {
	boom := errors.New("throttled")
	q := newSQSQueue(&fakeSQS{err: boom}, "https://sqs/queue")
	assert.ErrorIs(t, q.Send(context.Background(), "x"), boom)
	_, err := q.Receive(context.Background(), 1, 0)
	assert.ErrorIs(t, err, boom)
}
