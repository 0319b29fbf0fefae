package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMemoryDSN(t *testing.T) {
	assert.True(t, IsMemoryDSN(":memory:"))
	assert.True(t, IsMemoryDSN("file:test?mode=memory&cache=shared"))
	assert.False(t, IsMemoryDSN("database.db"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, SplitList(" http://a, ,http://b,"))
	assert.Nil(t, SplitList(""))
}
