/*
Copyright 2024 Numcheck Authors.

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
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateUUIDWithSuffix generates a UUID prefixed with a module tag.
// This keeps identifiers self-describing ("tsk_...", "pay_...") across logs and APIs.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// MinorUnits converts a decimal currency amount to int64 minor units
// (kopecks/cents). All balance arithmetic happens in minor units.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).IntPart()
}

// MajorUnits converts int64 minor units back to a decimal amount for
// presentation and gateway payloads.
func MajorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Shift(-2)
}
