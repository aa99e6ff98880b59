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
	DEFAULT_PORT = "5001"

	// DEFAULT_MAX_ITEMS caps how many identifiers a single verification
	// job may carry when the config leaves it unset.
	DEFAULT_MAX_ITEMS = 10000
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"NUMCHECK_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"NUMCHECK_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"NUMCHECK_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"NUMCHECK_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"NUMCHECK_REDIS_DNS"`
}

type QueueConfig struct {
	CheckQueue        string `json:"check_queue" envconfig:"NUMCHECK_QUEUE_CHECK"`
	ResultQueue       string `json:"result_queue" envconfig:"NUMCHECK_QUEUE_RESULT"`
	NotificationQueue string `json:"notification_queue" envconfig:"NUMCHECK_QUEUE_NOTIFICATION"`
	NumberOfQueues    int    `json:"number_of_queues" envconfig:"NUMCHECK_QUEUE_NUMBER_OF_QUEUES"`
	MaxRetryAttempts  int    `json:"max_retry_attempts" envconfig:"NUMCHECK_QUEUE_MAX_RETRY_ATTEMPTS"`
}

type FreeKassaConfig struct {
	SecretKey string `json:"secret_key" envconfig:"NUMCHECK_FREEKASSA_SECRET_KEY"`
	ShopID    string `json:"shop_id" envconfig:"NUMCHECK_FREEKASSA_SHOP_ID"`
}

type UnitPayConfig struct {
	SecretKey string `json:"secret_key" envconfig:"NUMCHECK_UNITPAY_SECRET_KEY"`
	PublicKey string `json:"public_key" envconfig:"NUMCHECK_UNITPAY_PUBLIC_KEY"`
}

type YooKassaConfig struct {
	SecretKey string `json:"secret_key" envconfig:"NUMCHECK_YOOKASSA_SECRET_KEY"`
	ShopID    string `json:"shop_id" envconfig:"NUMCHECK_YOOKASSA_SHOP_ID"`
}

type PaymentsConfig struct {
	FreeKassa FreeKassaConfig `json:"freekassa"`
	UnitPay   UnitPayConfig   `json:"unitpay"`
	YooKassa  YooKassaConfig  `json:"yookassa"`
}

// TelegramConfig routes dispatcher events to a bot channel; separate
// topics keep new-user noise away from billing notifications.
type TelegramConfig struct {
	BotToken            string `json:"bot_token" envconfig:"NUMCHECK_TELEGRAM_BOT_TOKEN"`
	ChannelID           int64  `json:"channel_id" envconfig:"NUMCHECK_TELEGRAM_CHANNEL_ID"`
	NotificationsTopic  int64  `json:"notifications_topic_id" envconfig:"NUMCHECK_TELEGRAM_NOTIFICATIONS_TOPIC"`
	NewAccountsTopic    int64  `json:"new_accounts_topic_id" envconfig:"NUMCHECK_TELEGRAM_NEW_ACCOUNTS_TOPIC"`
	MaxDeliveryAttempts int    `json:"max_delivery_attempts" envconfig:"NUMCHECK_TELEGRAM_MAX_DELIVERY_ATTEMPTS"`
}

type Notification struct {
	Telegram TelegramConfig `json:"telegram"`
}

type CheckConfig struct {
	MaxItemsPerCheck int64  `json:"max_items_per_check" envconfig:"NUMCHECK_MAX_ITEMS_PER_CHECK"`
	DefaultTariffID  string `json:"default_tariff_id" envconfig:"NUMCHECK_DEFAULT_TARIFF_ID"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"NUMCHECK_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"NUMCHECK_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"NUMCHECK_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"NUMCHECK_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	Payments     PaymentsConfig   `json:"payments"`
	Notification Notification     `json:"notification"`
	Check        CheckConfig      `json:"check"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
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
	err = envconfig.Process("numcheck", &cnf)
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
		return nil, errors.New("config not loaded from file. Create a json file called numcheck.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Numcheck Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.CheckQueue == "" {
		cnf.Queue.CheckQueue = "new:check"
	}
	if cnf.Queue.ResultQueue == "" {
		cnf.Queue.ResultQueue = "new:result"
	}
	if cnf.Queue.NotificationQueue == "" {
		cnf.Queue.NotificationQueue = "new:notification"
	}
	if cnf.Queue.NumberOfQueues <= 0 {
		cnf.Queue.NumberOfQueues = 4
	}
	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 5
	}

	if cnf.Check.MaxItemsPerCheck <= 0 {
		cnf.Check.MaxItemsPerCheck = DEFAULT_MAX_ITEMS
		log.Printf("Warning: Max items per check not specified. Setting default value: %d", DEFAULT_MAX_ITEMS)
	}

	if cnf.Notification.Telegram.MaxDeliveryAttempts <= 0 {
		cnf.Notification.Telegram.MaxDeliveryAttempts = 3
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.applyTestDefaults()
	ConfigStore.Store(mockConfig)
}

func (cnf *Configuration) applyTestDefaults() {
	if cnf.Queue.CheckQueue == "" {
		cnf.Queue.CheckQueue = "new:check"
	}
	if cnf.Queue.ResultQueue == "" {
		cnf.Queue.ResultQueue = "new:result"
	}
	if cnf.Queue.NotificationQueue == "" {
		cnf.Queue.NotificationQueue = "new:notification"
	}
	if cnf.Queue.NumberOfQueues <= 0 {
		cnf.Queue.NumberOfQueues = 1
	}
	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 5
	}
	if cnf.Check.MaxItemsPerCheck <= 0 {
		cnf.Check.MaxItemsPerCheck = DEFAULT_MAX_ITEMS
	}
	if cnf.Notification.Telegram.MaxDeliveryAttempts <= 0 {
		cnf.Notification.Telegram.MaxDeliveryAttempts = 3
	}
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
