package console_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsconsole/console"
)

func TestDefaultTheme(t *testing.T) {
	t.Parallel()

	theme := console.DefaultTheme()

	assert.Equal(t, 7, theme.Answer)
	assert.Equal(t, 4, theme.Citation)
	assert.Equal(t, 3, theme.Notice)
	assert.Equal(t, 1, theme.Error)
	assert.Equal(t, 8, theme.Muted)
}
