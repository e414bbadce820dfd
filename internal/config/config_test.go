package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidation(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: "sqlite", Path: "data/outreach.db"},
		Outreach: OutreachConfig{
			SendWindowStart: "09:00",
			SendWindowEnd:   "17:00",
			MaxFollowups:    2,
		},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Database = DatabaseConfig{Driver: "mysql"}
	assert.Error(t, cfg.Validate())

	cfg.Database = DatabaseConfig{Driver: "mysql", Host: "localhost", User: "u", DBName: "outreach"}
	assert.NoError(t, cfg.Validate())

	cfg.Outreach.SendWindowEnd = "25:99"
	assert.Error(t, cfg.Validate())
}

func TestValidateTransport(t *testing.T) {
	cfg := &Config{}
	errs := cfg.ValidateTransport()
	assert.Len(t, errs, 2) // sender email and smtp credentials

	cfg.Sender.Email = "me@example.com"
	cfg.SMTP.User = "me@example.com"
	cfg.SMTP.Password = "secret"
	assert.Empty(t, cfg.ValidateTransport())

	cfg.Gmail.Enabled = true
	errs = cfg.ValidateTransport()
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "gmail")
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}
	assert.Equal(t,
		"testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DSN())
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	assert.NoError(t, err)
	assert.Equal(t, 9*60+30, m)

	_, err = ParseClock("nine")
	assert.Error(t, err)
}
