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
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// checkCommands returns the Cobra command that runs a single stability
// evaluation and prints the resulting peg record.
func checkCommands(e *endurInstance) *cobra.Command {
	var price float64

	cmd := &cobra.Command{
		Use:   "check",
		Short: "run one stability check and print the peg state",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			e.endur.CheckStability(ctx, e.channel, decimal.NewFromFloat(price))

			out, err := json.MarshalIndent(e.channel, "", "  ")
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(string(out))
		},
	}

	cmd.Flags().Float64Var(&price, "price", 0, "BTC/USD price to evaluate at (0 uses the cached quote)")

	return cmd
}
