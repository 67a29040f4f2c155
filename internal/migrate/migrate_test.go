package migrate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesEmbedded(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "001_init.sql", files[0])

	b, err := fs.ReadFile(files[0])
	require.NoError(t, err)
	for _, table := range []string{"owners", "restaurants", "operating_hours", "availability_settings", "restaurant_tables", "reservations"} {
		assert.True(t, strings.Contains(string(b), "CREATE TABLE IF NOT EXISTS "+table+" "), table)
	}
}
