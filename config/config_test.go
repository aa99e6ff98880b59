package config

import (
	"encoding/json"
	"os"
	"testing"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: ""},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	}
	err := cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "data source DNS is required" {
		t.Errorf("Expected data source DNS required error, got %v", err)
	}

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432"},
		Redis:      RedisConfig{Dns: ""},
	}
	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "redis DNS is required" {
		t.Errorf("Expected redis DNS required error, got %v", err)
	}

	cnf = Configuration{
		ProjectName: "Test Project",
		DataSource:  DataSourceConfig{Dns: "some-dns"},
		Redis:       RedisConfig{Dns: "localhost:6379"},
	}
	err = cnf.validateAndAddDefaults()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if cnf.Server.Port != DEFAULT_PORT {
		t.Errorf("Expected default port %s, got %s", DEFAULT_PORT, cnf.Server.Port)
	}
	if cnf.Check.MaxItemsPerCheck != DEFAULT_MAX_ITEMS {
		t.Errorf("Expected default max items %d, got %d", int64(DEFAULT_MAX_ITEMS), cnf.Check.MaxItemsPerCheck)
	}
	if cnf.Queue.NumberOfQueues != 4 {
		t.Errorf("Expected default queue count 4, got %d", cnf.Queue.NumberOfQueues)
	}
	if cnf.Notification.Telegram.MaxDeliveryAttempts != 3 {
		t.Errorf("Expected default delivery attempts 3, got %d", cnf.Notification.Telegram.MaxDeliveryAttempts)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "numcheck.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		DataSource:  DataSourceConfig{Dns: "temp-dns"},
		Redis:       RedisConfig{Dns: "localhost:6379"},
		Check:       CheckConfig{MaxItemsPerCheck: 500},
	}
	if err := json.NewEncoder(tmpFile).Encode(&sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("Unable to close temporary file: %v", err)
	}

	if err := loadConfigFromFile(tmpFile.Name()); err != nil {
		t.Fatalf("loadConfigFromFile returned error: %v", err)
	}

	fetched, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if fetched.ProjectName != "Temp Project" {
		t.Errorf("Expected project name 'Temp Project', got %s", fetched.ProjectName)
	}
	if fetched.Check.MaxItemsPerCheck != 500 {
		t.Errorf("Expected max items 500, got %d", fetched.Check.MaxItemsPerCheck)
	}
}
