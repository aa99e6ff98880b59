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

	"github.com/gin-gonic/gin"

	"github.com/ightingale/numcheck"
	"github.com/ightingale/numcheck/api/middleware"
	"github.com/ightingale/numcheck/config"
	"github.com/ightingale/numcheck/gateway"
	"github.com/ightingale/numcheck/internal/apierror"
)

type Api struct {
	numcheck *numcheck.Numcheck
	gateways *gateway.Registry
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/accounts", a.CreateAccount)
	router.GET("/accounts/:id", a.GetAccount)
	router.GET("/accounts", a.GetAllAccounts)

	router.POST("/tasks", a.SubmitCheck)
	router.GET("/tasks/:id", a.GetTask)
	router.GET("/tasks", a.GetTasksByAccount)
	router.POST("/tasks/:id/cancel", a.CancelTask)
	router.GET("/tasks/:id/progress", a.StreamProgress)

	router.POST("/payments", a.CreatePayment)
	router.GET("/payments", a.GetPaymentsByAccount)

	router.POST("/webhooks/:provider", a.HandleProviderCallback)
	return a.router
}

func NewAPI(service *numcheck.Numcheck) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{
		numcheck: service,
		gateways: gateway.NewRegistry(conf.Payments),
		router:   r,
	}
}

// respondError writes the error with its mapped HTTP status. Unknown
// error types fall back to 400 the way most handlers here did before
// apierror existed.
func respondError(c *gin.Context, err error) {
	if apiErr, ok := err.(apierror.APIError); ok {
		c.JSON(apierror.MapErrorToHTTPStatus(apiErr), gin.H{"error": apiErr.Message, "code": apiErr.Code})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
