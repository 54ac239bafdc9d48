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

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type CreateInvoice struct {
	AmountSats  uint64 `json:"amount_sats"`
	Description string `json:"description"`
}

func (i *CreateInvoice) ValidateCreateInvoice() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.AmountSats, validation.Required, validation.Min(uint64(1))),
	)
}

// StabilityCheck optionally pins the BTC/USD price for one evaluation. A
// zero price means "use the cached quote".
type StabilityCheck struct {
	Price float64 `json:"price"`
}

func (s *StabilityCheck) ValidateStabilityCheck() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Price, validation.Min(0.0)),
	)
}
