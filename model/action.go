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
package model

// StabilityAction is the outcome of one stability evaluation.
type StabilityAction int

const (
	// ActionStable means the deviation is within the deadband; no action.
	ActionStable StabilityAction = iota
	// ActionHighRiskNoAction means the risk policy suppressed a corrective
	// payment regardless of direction.
	ActionHighRiskNoAction
	// ActionCheckOnly means the deviation exists but a corrective payment
	// from this side would move value the wrong way; report only.
	ActionCheckOnly
	// ActionPay means a corrective payment should be sent.
	ActionPay
)

func (a StabilityAction) String() string {
	switch a {
	case ActionStable:
		return "STABLE"
	case ActionHighRiskNoAction:
		return "HIGH_RISK_NO_ACTION"
	case ActionCheckOnly:
		return "CHECK_ONLY"
	case ActionPay:
		return "PAY"
	default:
		return "UNKNOWN"
	}
}
