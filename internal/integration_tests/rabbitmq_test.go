package integrationtests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"eda-backend/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitMQ(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	publisher, reciever := setupRabbitMQContainer(t, ctx)

	t.Run("Publish and Receive ProfileTask", func(t *testing.T) {
		payload := messaging.ProfileTaskPayload{JobId: uuid.New()}
		err := publisher.PublishProfileTask(ctx, payload)
		require.NoError(t, err)

		select {
		case task := <-reciever.Tasks():
			assert.Equal(t, messaging.ProfileQueue, task.Type())

			var receivedPayload messaging.ProfileTaskPayload
			err := json.Unmarshal(task.Payload(), &receivedPayload)
			require.NoError(t, err)
			assert.Equal(t, payload, receivedPayload)

			err = task.Ack()
			require.NoError(t, err)
		case <-time.After(4 * time.Second):
			t.Fatal("Timed out waiting for task")
		}
	})

	t.Run("Publish and Receive NarrativeTask", func(t *testing.T) {
		payload := messaging.NarrativeTaskPayload{JobId: uuid.New()}
		err := publisher.PublishNarrativeTask(ctx, payload)
		require.NoError(t, err)

		select {
		case task := <-reciever.Tasks():
			assert.Equal(t, messaging.NarrativeQueue, task.Type())

			var receivedPayload messaging.NarrativeTaskPayload
			err := json.Unmarshal(task.Payload(), &receivedPayload)
			require.NoError(t, err)
			assert.Equal(t, payload, receivedPayload)

			err = task.Ack()
			require.NoError(t, err)
		case <-time.After(4 * time.Second):
			t.Fatal("Timed out waiting for task")
		}
	})
}
