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
	"io"

	"github.com/gin-gonic/gin"

	"github.com/ightingale/numcheck/model"
)

// StreamProgress serves live task progress as server-sent events. A
// terminal task answers with one final event instead of holding the
// connection open.
func (a Api) StreamProgress(c *gin.Context) {
	id := c.Param("id")

	task, err := a.numcheck.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	if model.IsTerminal(task.Status) {
		c.SSEvent("progress", gin.H{"task_id": id, "progress": 100, "status": task.Status})
		c.Writer.Flush()
		return
	}

	updates, err := a.numcheck.Progress().Subscribe(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Stream(func(w io.Writer) bool {
		value, ok := <-updates
		if !ok {
			return false
		}
		c.SSEvent("progress", gin.H{"task_id": id, "progress": value})
		return true
	})
}
