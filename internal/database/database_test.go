package database

import (
	"testing"

	"whatschat/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInMemoryIsIsolated(t *testing.T) {
	a, err := OpenInMemory()
	require.NoError(t, err)
	b, err := OpenInMemory()
	require.NoError(t, err)

	require.NoError(t, a.Create(&entity.User{ID: "u1", Name: "alice", Email: "a@x.io"}).Error)

	var count int64
	require.NoError(t, b.Model(&entity.User{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, a.Model(&entity.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.Error(t, err)
}
