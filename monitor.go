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
package endur

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/krutt/endur/model"
)

// StartMonitor runs periodic stability checks against the tracked channel
// until the context is cancelled. The first check fires after one full
// interval, matching the scheduler it replaces.
func (e *Endur) StartMonitor(ctx context.Context, sc *model.StableChannel, interval time.Duration) {
	logrus.Infof("stability monitor started, checking every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("stability monitor stopped")
			return
		case <-ticker.C:
			e.CheckStability(ctx, sc, decimal.Zero)
		}
	}
}
