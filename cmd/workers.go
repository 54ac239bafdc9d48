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
package main

import (
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/krutt/endur/audit"
	"github.com/krutt/endur/config"
	redis_db "github.com/krutt/endur/internal/redis-db"
)

func initializeWorkerServer(conf *config.Configuration) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{audit.WEBHOOK_QUEUE: 3},
		},
	), nil
}

// workerCommands returns the Cobra command that runs the audit webhook
// delivery worker.
func workerCommands(e *endurInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start worker for audit webhook delivery",
		Run: func(cmd *cobra.Command, args []string) {
			srv, err := initializeWorkerServer(e.cnf)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			mux.HandleFunc(audit.WEBHOOK_QUEUE, audit.ProcessWebhook)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run worker server: %v", err)
			}
		},
	}

	return cmd
}
