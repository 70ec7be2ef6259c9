package containermgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexRoundTrip(t *testing.T) {
	dir := t.TempDir()

	index, err := loadIndex(dir, KindMCP)
	require.NoError(t, err)
	assert.Empty(t, index)

	index["calc"] = InstalledResource{Kind: KindMCP, Name: "calc", ContainerID: "abc123"}
	require.NoError(t, saveIndex(dir, KindMCP, index))

	reloaded, err := loadIndex(dir, KindMCP)
	require.NoError(t, err)
	require.Contains(t, reloaded, "calc")
	assert.Equal(t, "abc123", reloaded["calc"].ContainerID)
}

func TestIndexFileNamesByKind(t *testing.T) {
	assert.Equal(t, "/x/installed-mcps.json", indexFile("/x", KindMCP))
	assert.Equal(t, "/x/installed-triggers.json", indexFile("/x", KindTrigger))
}
