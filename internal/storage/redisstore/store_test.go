package redisstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "match:abc:snapshot", snapshotKey("abc"))
}
