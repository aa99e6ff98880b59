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

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	model2 "github.com/ightingale/numcheck/api/model"
	"github.com/ightingale/numcheck/model"
)

// CreatePayment records the payment intent and returns the provider
// redirect the customer completes the payment at. The payment id
// doubles as the provider-side order reference.
func (a Api) CreatePayment(c *gin.Context) {
	var newPayment model2.CreatePayment
	if err := c.ShouldBindJSON(&newPayment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newPayment.Provider = strings.ToUpper(newPayment.Provider)
	if err := newPayment.ValidateCreatePayment(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	g, err := a.gateways.Get(model.PaymentProvider(newPayment.Provider))
	if err != nil {
		respondError(c, err)
		return
	}

	payment := newPayment.ToPayment()
	payment.ExternalRef = model.GenerateUUIDWithSuffix("ord")

	created, err := a.numcheck.CreatePayment(c.Request.Context(), payment)
	if err != nil {
		respondError(c, err)
		return
	}

	redirect, err := g.CreatePayment(&created)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"payment": created, "redirect": redirect})
}

func (a Api) GetPaymentsByAccount(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_id query parameter is required"})
		return
	}

	limit, offset := pagination(c)
	payments, err := a.numcheck.GetPaymentsByAccount(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}
