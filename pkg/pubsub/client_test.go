package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseshare/courseshare-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/cs/topics/notifications", topicResourceName("cs", "notifications"))
	assert.Equal(t, "projects/other/topics/x", topicResourceName("cs", "projects/other/topics/x"))
	assert.Empty(t, topicResourceName("cs", " "))
	assert.Empty(t, topicResourceName("", "notifications"))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{NotificationTopic: "n"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)
}

func TestUnconfiguredPublisherErrors(t *testing.T) {
	var p *TopicPublisher
	require.Error(t, p.Publish(context.Background(), []byte("{}"), nil))
	p.Stop()
}
