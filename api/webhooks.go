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
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

// HandleProviderCallback verifies a provider confirmation and credits
// the account. A replayed callback answers 200 with "already processed"
// so the provider stops retrying; a bad signature answers 403 and is
// never credited.
func (a Api) HandleProviderCallback(c *gin.Context) {
	provider := model.PaymentProvider(strings.ToUpper(c.Param("provider")))

	g, err := a.gateways.Get(provider)
	if err != nil {
		respondError(c, err)
		return
	}

	raw, err := callbackValues(c)
	if err != nil {
		respondError(c, err)
		return
	}

	confirmation, err := g.VerifyCallback(raw)
	if err != nil {
		respondError(c, err)
		return
	}

	payment, err := a.numcheck.CreditTopUp(c.Request.Context(), confirmation)
	if err != nil {
		if errors.Is(err, apierror.APIError{Code: apierror.ErrAlreadyProcessed}) {
			c.JSON(http.StatusOK, gin.H{"message": "already processed", "payment": payment})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ok", "payment": payment})
}

// callbackValues normalizes the callback body: form posts pass
// through, JSON bodies (yookassa) are flattened one level so gateways
// see a single url.Values shape.
func callbackValues(c *gin.Context) (url.Values, error) {
	contentType := c.ContentType()
	if strings.Contains(contentType, "application/json") {
		var payload map[string]interface{}
		if err := c.ShouldBindJSON(&payload); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrMalformedPayload, "Cannot decode callback body", err)
		}
		values := url.Values{}
		for key, value := range payload {
			switch v := value.(type) {
			case map[string]interface{}:
				for nestedKey, nestedValue := range v {
					values.Set(key+"."+nestedKey, fmt.Sprint(nestedValue))
				}
			default:
				values.Set(key, fmt.Sprint(v))
			}
		}
		return values, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrMalformedPayload, "Cannot parse callback form", err)
	}
	return c.Request.PostForm, nil
}
