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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT           = "5050"
	DEFAULT_CHECK_INTERVAL = 30
	DEFAULT_ORACLE_TIMEOUT = 10
	DEFAULT_CACHE_TTL      = 300
	DEFAULT_RATE_CLEANUP   = 10800
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"ENDUR_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"ENDUR_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"ENDUR_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"ENDUR_SERVER_SSL_DOMAIN"`
	Email     string `json:"email" envconfig:"ENDUR_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"ENDUR_SERVER_PORT"`
}

type NodeConfig struct {
	Url       string `json:"url" envconfig:"ENDUR_NODE_URL"`
	AuthToken string `json:"auth_token" envconfig:"ENDUR_NODE_AUTH_TOKEN"`
	Network   string `json:"network" envconfig:"ENDUR_NODE_NETWORK"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"ENDUR_REDIS_DNS"`
}

// PegConfig describes the managed peg: the fixed USD target for the
// receiver's channel balance and which side of it this node plays.
type PegConfig struct {
	ExpectedUsd      float64 `json:"expected_usd" envconfig:"ENDUR_PEG_EXPECTED_USD"`
	IsReceiver       bool    `json:"is_receiver" envconfig:"ENDUR_PEG_IS_RECEIVER"`
	Counterparty     string  `json:"counterparty" envconfig:"ENDUR_PEG_COUNTERPARTY"`
	ChannelId        string  `json:"channel_id" envconfig:"ENDUR_PEG_CHANNEL_ID"`
	RiskLevel        int     `json:"risk_level" envconfig:"ENDUR_PEG_RISK_LEVEL"`
	CheckIntervalSec int     `json:"check_interval_sec" envconfig:"ENDUR_PEG_CHECK_INTERVAL_SEC"`
}

type OracleConfig struct {
	TimeoutSec  int `json:"timeout_sec" envconfig:"ENDUR_ORACLE_TIMEOUT_SEC"`
	CacheTtlSec int `json:"cache_ttl_sec" envconfig:"ENDUR_ORACLE_CACHE_TTL_SEC"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"ENDUR_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"ENDUR_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"ENDUR_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type Notification struct {
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string          `json:"project_name" envconfig:"ENDUR_PROJECT_NAME"`
	Server       ServerConfig    `json:"server"`
	Node         NodeConfig      `json:"node"`
	Redis        RedisConfig     `json:"redis"`
	Peg          PegConfig       `json:"peg"`
	Oracle       OracleConfig    `json:"oracle"`
	RateLimit    RateLimitConfig `json:"rate_limit"`
	Notification Notification    `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("endur", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called endur.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Endur"
	}

	if cnf.Node.Url == "" {
		log.Println("Error: Node URL is empty. It's a required field.")
		return errors.New("node URL is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// The peg target divides the deviation arithmetic; zero is a degenerate
	// configuration and is rejected here, never during evaluation.
	if cnf.Peg.ExpectedUsd <= 0 {
		log.Println("Error: Expected USD peg target must be positive.")
		return errors.New("expected USD peg target must be positive")
	}

	if cnf.Peg.Counterparty == "" {
		log.Println("Error: Peg counterparty node id is empty. It's a required field.")
		return errors.New("peg counterparty node id is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.Node.Url = strings.TrimSpace(cnf.Node.Url)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Peg.Counterparty = strings.TrimSpace(cnf.Peg.Counterparty)
	cnf.Peg.ChannelId = strings.TrimSpace(cnf.Peg.ChannelId)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Node.Network == "" {
		cnf.Node.Network = "bitcoin"
	}

	if cnf.Peg.CheckIntervalSec <= 0 {
		cnf.Peg.CheckIntervalSec = DEFAULT_CHECK_INTERVAL
		log.Printf("Warning: Check interval not specified. Setting default value: %d seconds", DEFAULT_CHECK_INTERVAL)
	}

	if cnf.Oracle.TimeoutSec <= 0 {
		cnf.Oracle.TimeoutSec = DEFAULT_ORACLE_TIMEOUT
	}

	if cnf.Oracle.CacheTtlSec <= 0 {
		cnf.Oracle.CacheTtlSec = DEFAULT_CACHE_TTL
	}

	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := DEFAULT_RATE_CLEANUP
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
