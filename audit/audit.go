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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event types recorded by the peg engine. Every decision and outcome is
// written, including the ones where nothing happened.
const (
	EventBalanceUpdate          = "BALANCE_UPDATE"
	EventBalanceUpdateFailed    = "BALANCE_UPDATE_FAILED"
	EventStabilitySkip          = "STABILITY_SKIP"
	EventStabilityCheck         = "STABILITY_CHECK"
	EventStabilityPaymentSent   = "STABILITY_PAYMENT_SENT"
	EventStabilityPaymentFailed = "STABILITY_PAYMENT_FAILED"
)

// Record writes one structured audit event. It is fire-and-forget: a failed
// webhook dispatch is logged and swallowed, never surfaced to the engine.
func Record(eventType string, payload map[string]interface{}) {
	logrus.WithFields(logrus.Fields{
		"audit_event": eventType,
		"event_id":    fmt.Sprintf("aud_%s", uuid.New()),
		"payload":     payload,
		"recorded_at": time.Now().UTC().Format(time.RFC3339),
	}).Info(eventType)

	if err := enqueueWebhook(eventType, payload); err != nil {
		logrus.WithError(err).Warnf("audit webhook enqueue failed for %s", eventType)
	}
}
