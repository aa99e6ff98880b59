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

package database

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/ightingale/numcheck/config"
	"github.com/ightingale/numcheck/internal/cache"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		ca, errCache := cache.NewCache()
		if errCache != nil {
			log.Printf("cache unavailable, tariff reads go to postgres: %v", errCache)
			ca = nil
		}
		instance = &Datasource{Conn: con, Cache: ca}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database connection error: %v", err)
		return nil, err
	}
	err = createAccountTable(db)
	if err != nil {
		return nil, err
	}
	err = createTariffTable(db)
	if err != nil {
		return nil, err
	}
	err = createTaskTable(db)
	if err != nil {
		return nil, err
	}
	err = createPaymentTable(db)
	if err != nil {
		return nil, err
	}
	err = createNotificationEventTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func createAccountTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id SERIAL PRIMARY KEY,
			account_id TEXT NOT NULL UNIQUE,
			name TEXT,
			email TEXT,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			version INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func createTariffTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tariffs (
			id SERIAL PRIMARY KEY,
			tariff_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			price_per_item BIGINT NOT NULL CHECK (price_per_item >= 0),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func createTaskTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id SERIAL PRIMARY KEY,
			task_id TEXT NOT NULL UNIQUE,
			account_id TEXT NOT NULL REFERENCES accounts(account_id),
			status TEXT NOT NULL,
			item_count BIGINT NOT NULL,
			settings JSONB,
			successful_count BIGINT,
			hold_sum BIGINT NOT NULL CHECK (hold_sum >= 0),
			final_sum BIGINT,
			result_ref TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func createPaymentTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			id SERIAL PRIMARY KEY,
			payment_id TEXT NOT NULL UNIQUE,
			provider TEXT NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			account_id TEXT NOT NULL REFERENCES accounts(account_id),
			confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			external_ref TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func createNotificationEventTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notification_events (
			id SERIAL PRIMARY KEY,
			event_id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			recipient TEXT,
			headline TEXT,
			text TEXT,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}
