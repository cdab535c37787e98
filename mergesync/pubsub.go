package mergesync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"bitbucket.org/mmjourneys/travel_backend/config"
	"bitbucket.org/mmjourneys/travel_backend/workflow"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
)

const reconRunHandlerName = "recon_run"

// PublishReconRun enqueues one reconciliation run for the worker pool.
func PublishReconRun(ctx context.Context, runId uint, businessId string, dryRun bool) error {
	topicName := strings.TrimSpace(os.Getenv("RECON_RUN_TOPIC"))
	if topicName == "" {
		topicName = "recon-run"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if config.EnvBoolDefault("RECON_RUN_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := ReconPubSubPayload{
		RunId:      runId,
		BusinessId: businessId,
		DryRun:     dryRun,
	}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler receives run triggers pushed by the subscription.
// Delivery is at-least-once; the idempotency row keyed by message id makes
// duplicate pushes no-ops. A 204 acks; 500 nacks for redelivery.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.EnvBoolDefault("ENABLE_RECON_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload ReconPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.RunId == 0 || payload.BusinessId == "" {
			c.Status(204)
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		skip, err := workflow.BeginIdempotency(db, payload.BusinessId, reconRunHandlerName, envelope.Message.ID)
		if err != nil {
			if errors.Is(err, workflow.ErrIdempotencyInProgress) {
				c.Status(500)
				return
			}
			config.LogError(config.GetLogger(), "mergesync", "PubSubPushHandler", "idempotency begin failed", payload.RunId, err)
			c.Status(500)
			return
		}
		if skip {
			c.Status(204)
			return
		}

		if err := ProcessReconRun(c.Request.Context(), payload); err != nil {
			config.LogError(config.GetLogger(), "mergesync", "PubSubPushHandler", "recon run processing failed", payload.RunId, err)
			_ = workflow.MarkIdempotencyFailed(db, payload.BusinessId, reconRunHandlerName, envelope.Message.ID, err)
			c.Status(500)
			return
		}
		_ = workflow.MarkIdempotencySucceeded(db, payload.BusinessId, reconRunHandlerName, envelope.Message.ID)
		c.Status(204)
	}
}
