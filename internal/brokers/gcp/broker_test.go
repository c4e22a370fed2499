package gcp

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"clinic-console/internal/brokers"
	apperrors "clinic-console/internal/common/errors"
)

const project = "clinic-test"

func setup(t *testing.T) (*pstest.Server, []option.ClientOption) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	opts := []option.ClientOption{option.WithGRPCConn(conn), option.WithoutAuthentication()}

	admin, err := pubsub.NewClient(context.Background(), project, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { admin.Close() })
	_, err = admin.CreateTopic(context.Background(), "cti-events")
	require.NoError(t, err)

	return srv, opts
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	srv, opts := setup(t)

	b, err := NewBroker(ctx, &Config{ProjectID: project, TopicID: "cti-events", EnableOrdering: true}, opts...)
	require.NoError(t, err)
	defer b.Close()

	err = b.Publish(ctx, &brokers.Message{
		MessageID: "e1",
		Key:       "01012345678",
		Headers:   map[string]string{"event_type": "CALL_ENDED"},
		Body:      []byte(`{"id":"e1"}`),
	})
	require.NoError(t, err)

	messages := srv.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, []byte(`{"id":"e1"}`), messages[0].Data)
	assert.Equal(t, "CALL_ENDED", messages[0].Attributes["event_type"])
	assert.Equal(t, "e1", messages[0].Attributes["message_id"])

	assert.NoError(t, b.Health(ctx))
}

func TestNewBroker_MissingTopic(t *testing.T) {
	_, opts := setup(t)

	_, err := NewBroker(context.Background(), &Config{ProjectID: project, TopicID: "missing"}, opts...)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestConfig(t *testing.T) {
	assert.Error(t, (&Config{TopicID: "t"}).Validate())
	assert.Error(t, (&Config{ProjectID: "p"}).Validate())

	config := &Config{ProjectID: "p", TopicID: "t"}
	require.NoError(t, config.Validate())
	assert.Equal(t, "pubsub://p/t", config.GetConnectionString())
	assert.Contains(t, brokers.Types(), "gcp")
}
