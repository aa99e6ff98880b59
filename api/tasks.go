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

	model2 "github.com/ightingale/numcheck/api/model"
)

func (a Api) SubmitCheck(c *gin.Context) {
	var newCheck model2.CreateCheck
	if err := c.ShouldBindJSON(&newCheck); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := newCheck.ValidateCreateCheck(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	task, err := a.numcheck.SubmitCheck(c.Request.Context(), newCheck.AccountID, int64(newCheck.ItemCount), newCheck.Settings)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (a Api) GetTask(c *gin.Context) {
	id := c.Param("id")

	task, err := a.numcheck.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (a Api) GetTasksByAccount(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_id query parameter is required"})
		return
	}

	limit, offset := pagination(c)
	tasks, err := a.numcheck.GetTasksByAccount(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (a Api) CancelTask(c *gin.Context) {
	id := c.Param("id")

	var cancel model2.CancelCheck
	if err := c.ShouldBindJSON(&cancel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := cancel.ValidateCancelCheck(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	task, err := a.numcheck.CancelTask(c.Request.Context(), id, cancel.AccountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}
