package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
	"github.com/JakeFAU/job-listing-ingest/internal/publisher/pubsub"
)

func fakeServer(t *testing.T) option.ClientOption {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return option.WithGRPCConn(conn)
}

func TestPublisher_PublishRunSummary(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn := fakeServer(t)

	client, err := gpubsub.NewClient(ctx, "project-id", conn)
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "job-runs")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(ctx, "job-runs-sub", gpubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	pub := pubsub.New(client, "job-runs")
	summary := jobs.RunSummary{RunID: "run-1", Phase: jobs.PhaseList, Tier: "synthetic", Acquired: 5, Persisted: 5}
	id, err := pub.Publish(ctx, "run.completed", summary)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	recvCtx, stop := context.WithCancel(ctx)
	received := make(chan *gpubsub.Message, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(_ context.Context, msg *gpubsub.Message) {
			msg.Ack()
			select {
			case received <- msg:
			default:
			}
			stop()
		})
	}()

	select {
	case msg := <-received:
		var got jobs.RunSummary
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, summary.RunID, got.RunID)
		assert.Equal(t, 5, got.Persisted)
		assert.Equal(t, "run.completed", msg.Attributes["event"])
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
	assert.NoError(t, pub.Close())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingConfig", func(t *testing.T) {
		_, err := pubsub.Open(ctx, pubsub.Config{TopicName: "x"})
		assert.Error(t, err)
		_, err = pubsub.Open(ctx, pubsub.Config{ProjectID: "p"})
		assert.Error(t, err)
	})

	t.Run("TopicMissing", func(t *testing.T) {
		_, err := pubsub.Open(ctx, pubsub.Config{ProjectID: "project-id", TopicName: "absent"}, fakeServer(t))
		assert.ErrorContains(t, err, "does not exist")
	})

	t.Run("TopicExists", func(t *testing.T) {
		conn := fakeServer(t)
		admin, err := gpubsub.NewClient(ctx, "project-id", conn)
		require.NoError(t, err)
		defer admin.Close()
		_, err = admin.CreateTopic(ctx, "job-runs")
		require.NoError(t, err)

		pub, err := pubsub.Open(ctx, pubsub.Config{ProjectID: "project-id", TopicName: "job-runs"}, conn)
		require.NoError(t, err)
		assert.NoError(t, pub.Close())
	})
}

func TestPublisher_NotConfigured(t *testing.T) {
	var pub *pubsub.Publisher
	_, err := pub.Publish(context.Background(), "x", 1)
	assert.Error(t, err)
	assert.NoError(t, pub.Close())
}
