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
package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	model2 "github.com/krutt/endur/api/model"
)

// GetChannel returns the tracked peg record, refreshed against the node
// runtime before serving.
func (a Api) GetChannel(c *gin.Context) {
	a.endur.UpdateBalances(c.Request.Context(), a.channel)
	c.JSON(http.StatusOK, a.channel)
}

// TriggerStabilityCheck runs one peg evaluation outside the monitor
// schedule. The request may pin a price; otherwise the cached quote is used.
func (a Api) TriggerStabilityCheck(c *gin.Context) {
	// An empty body runs the check at the cached price.
	var check model2.StabilityCheck
	if err := c.ShouldBindJSON(&check); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := check.ValidateStabilityCheck()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	a.endur.CheckStability(c.Request.Context(), a.channel, decimal.NewFromFloat(check.Price))
	c.JSON(http.StatusOK, a.channel)
}
