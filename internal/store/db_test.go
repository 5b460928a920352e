package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBRejectsMalformedDSN(t *testing.T) {
	db, err := NewDB("://not-a-dsn")
	require.Error(t, err)
	assert.Nil(t, db)
}

func TestCloseNilSafe(t *testing.T) {
	var db *DB
	assert.NoError(t, db.Close())
	assert.NoError(t, (&DB{}).Close())
}
