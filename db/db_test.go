package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agritrace/provenance-node/store"
)

func TestDB_OpenModes(t *testing.T) {
	t.Run("in-memory alias", func(t *testing.T) {
		db, err := OpenInMemoryDB(true)
		require.NoError(t, err)
		require.NotNil(t, db)

		runSampleInsertSelectTest(t, db)
		assert.NoError(t, db.Close())
	})

	t.Run("in-memory direct", func(t *testing.T) {
		db, err := openSQLite(InMemorySQLiteDSN, true)
		require.NoError(t, err)
		require.NotNil(t, db)

		runSampleInsertSelectTest(t, db)
		assert.NoError(t, db.Close())
	})

	t.Run("file-based DB", func(t *testing.T) {
		dir := t.TempDir()
		dbName := "provenance.db"

		db, err := OpenFileDB(dir, dbName, true)
		require.NoError(t, err)
		require.NotNil(t, db)

		assert.FileExists(t, filepath.Join(dir, dbName))

		runSampleInsertSelectTest(t, db)

		assert.NoError(t, db.Close())

		t.Run("close twice", func(t *testing.T) {
			assert.NoError(t, db.Close())
		})
	})

	t.Run("invalid path fails", func(t *testing.T) {
		db, err := OpenFileDB("///invalid", "db.db", true)
		require.ErrorContains(t, err, "failed to prepare database path")
		require.Nil(t, db)
	})
}

func TestDB_TxHashUniqueIndex(t *testing.T) {
	db, err := OpenInMemoryDB(true)
	require.NoError(t, err)
	defer db.Close()

	first := store.ProductEvent{
		BatchID:         1,
		BatchIdentifier: "HRV-001",
		EventType:       store.EventTypeHarvest,
		TxHash:          "0xabc",
	}
	require.NoError(t, db.Client().Create(&first).Error)

	dup := store.ProductEvent{
		BatchID:         1,
		BatchIdentifier: "HRV-001",
		EventType:       store.EventTypeHarvest,
		TxHash:          "0xabc",
	}
	assert.Error(t, db.Client().Create(&dup).Error)
}

func runSampleInsertSelectTest(t *testing.T, db *DB) {
	entry := store.Batch{
		BatchIdentifier: "HRV-001",
		ProductName:     "Arabica beans",
		Status:          store.BatchStatusPending,
		FarmerID:        7,
	}

	err := db.Client().Create(&entry).Error
	require.NoError(t, err)

	var result store.Batch
	err = db.Client().First(&result).Error
	require.NoError(t, err)
	assert.Equal(t, "HRV-001", result.BatchIdentifier)
	assert.Equal(t, store.BatchStatusPending, result.Status)
}
