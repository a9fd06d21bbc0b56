package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexor/contexor/app/store/sqlstore"
	"github.com/contexor/contexor/pkg/testutils"
)

func TestSetupWithSQLite(t *testing.T) {
	cfg := CoreConfig{
		Database: DatabaseConfig{Driver: "sqlite", DSN: testutils.SQLiteConfig(t).DSN},
		Budget:   BudgetConfig{Timezone: "Asia/Tehran"},
	}
	core := MustSetupCore(cfg, WithoutAI())
	defer core.Shutdown()

	require.NotNil(t, core.Store())
	assert.Nil(t, core.Srv().AI())
	assert.Nil(t, core.Redis())
	assert.Nil(t, core.Queue())
	assert.Nil(t, core.Archiver())
	assert.Equal(t, "Asia/Tehran", core.Location().String())

	_, ok := core.Semaphores().Generation().(*LocalSemaphore)
	assert.True(t, ok)
}

func TestSetupWithInjectedStore(t *testing.T) {
	p, err := sqlstore.New(testutils.SQLiteConfig(t))
	require.NoError(t, err)
	require.NoError(t, p.Install())

	core := MustSetupCore(CoreConfig{}, WithStore(p), WithoutAI())
	defer core.Shutdown()
	assert.Same(t, p, core.Store())
}

func TestSetupPanicsWithoutToken(t *testing.T) {
	cfg := CoreConfig{
		Database: DatabaseConfig{Driver: "sqlite", DSN: testutils.SQLiteConfig(t).DSN},
	}
	assert.Panics(t, func() { MustSetupCore(cfg) })
}
