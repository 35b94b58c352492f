package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopicResourceName(t *testing.T) {
	require.Equal(t, "projects/shop/topics/order-events", topicResourceName("shop", "order-events"))
	require.Equal(t, "projects/other/topics/x", topicResourceName("shop", "projects/other/topics/x"))
	require.Equal(t, "", topicResourceName("shop", "  "))
}

func TestNewClientRequiresProjectAndTopic(t *testing.T) {
	_, err := NewClient(context.Background(), "", "topic", nil)
	require.ErrorIs(t, err, errProjectIDRequired)
	_, err = NewClient(context.Background(), "shop", "", nil)
	require.ErrorIs(t, err, errTopicRequired)
}

func TestNilClientPublishFails(t *testing.T) {
	var c *Client
	_, err := c.Publish(context.Background(), []byte("x"), nil)
	require.Error(t, err)
	require.NoError(t, c.Close())
}
