package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbeddedInPairs(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestMigrationsCreateEveryTable(t *testing.T) {
	var all strings.Builder
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		b, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
		require.NoError(t, err)
		all.Write(b)
	}

	for _, table := range []string{
		"business_profiles", "academias", "academia_categorias", "regras_repasse",
		"benefit_plans", "user_plan_subscriptions", "business_plan_subscriptions",
		"asaas_customers", "asaas_payments", "gym_check_ins",
		"asaas_webhook_events", "subscription_transitions",
	} {
		assert.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table+" ", table)
	}
}

func TestMigrations_AsaasCustomerSharedBySubscribers(t *testing.T) {
	b, err := fs.ReadFile(migrationsFS, "migrations/000004_shared_asaas_customers.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "DROP CONSTRAINT IF EXISTS asaas_customers_asaas_id_key")
}
