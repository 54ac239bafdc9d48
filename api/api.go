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
	"github.com/gin-gonic/gin"

	"github.com/krutt/endur"
	"github.com/krutt/endur/api/middleware"
	"github.com/krutt/endur/config"
	"github.com/krutt/endur/model"
)

type Api struct {
	endur   *endur.Endur
	channel *model.StableChannel
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/", a.GetStatus)
	router.POST("/invoice", a.CreateInvoice)
	router.GET("/address", a.NewAddress)
	router.GET("/balances", a.GetBalances)

	router.GET("/channel", a.GetChannel)
	router.POST("/stability/check", a.TriggerStabilityCheck)

	return a.router
}

func NewAPI(e *endur.Endur, sc *model.StableChannel) *Api {
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

	return &Api{endur: e, channel: sc, router: r}
}
