package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vivero/backend/internal/config"
	"vivero/backend/internal/store/memory"
	"vivero/backend/internal/store/sqlstore"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", ManagerPIN: "123456"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "739154"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidatePINStrengthRejectsSequences(t *testing.T) {
	for _, pin := range []string{"234567", "876543", "777777"} {
		if err := validatePINStrength(pin); err == nil {
			t.Fatalf("expected %s to be rejected", pin)
		}
	}
}

func TestOpenRepositoryDefaultsToMemory(t *testing.T) {
	repo, closeFn, err := openRepository(context.Background(), config.Config{})
	require.NoError(t, err)
	assert.Nil(t, closeFn)
	_, ok := repo.(*memory.Store)
	assert.True(t, ok)
}

func TestOpenRepositorySQLiteMigratesAndSeeds(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vivero.db")

	repo, closeFn, err := openRepository(ctx, config.Config{
		DatabaseURL:         "sqlite://" + path,
		DBMaxOpenConns:      4,
		SQLiteBusyTimeoutMS: 2000,
		SeedDemoData:        true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	db, ok := repo.(*sqlstore.Store)
	require.True(t, ok)
	assert.Equal(t, sqlstore.SQLite, db.Dialect())

	products, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, products)
}
