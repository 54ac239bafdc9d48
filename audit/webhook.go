/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package audit

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/krutt/endur/config"
	redis_db "github.com/krutt/endur/internal/redis-db"
	"github.com/krutt/endur/internal/request"
)

// WEBHOOK_QUEUE is the asynq queue audit events are dispatched on.
const WEBHOOK_QUEUE = "audit_webhook"

// WebhookEvent is the wire form of an audit event delivered to the
// configured webhook endpoint.
type WebhookEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// enqueueWebhook queues an audit event for webhook delivery. When no webhook
// URL is configured the event is dropped silently; the structured log entry
// already carries it.
func enqueueWebhook(eventType string, payload map[string]interface{}) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return err
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	})
	defer func() {
		_ = client.Close()
	}()

	body, err := json.Marshal(WebhookEvent{Event: eventType, Payload: payload})
	if err != nil {
		return err
	}

	task := asynq.NewTask(WEBHOOK_QUEUE, body, asynq.Queue(WEBHOOK_QUEUE))
	if _, err := client.Enqueue(task); err != nil {
		return err
	}
	return nil
}

// ProcessWebhook delivers a queued audit event to the configured webhook
// endpoint. It is registered as the asynq handler for WEBHOOK_QUEUE.
func ProcessWebhook(_ context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var event WebhookEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		logrus.WithError(err).Error("malformed audit webhook task payload")
		return err
	}

	return deliverHTTP(conf, event)
}

func deliverHTTP(conf *config.Configuration, event WebhookEvent) error {
	body, err := request.ToJsonReq(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, conf.Notification.Webhook.Url, body)
	if err != nil {
		return err
	}
	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	if _, err := request.Call(req, nil); err != nil {
		return err
	}

	logrus.Debugf("audit webhook delivered: %s", event.Event)
	return nil
}
