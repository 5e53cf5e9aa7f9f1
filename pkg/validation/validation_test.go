package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	SendTime  string `validate:"required,clock"`
	FontColor string `validate:"required,hexrgb"`
	Name      string `validate:"notblank"`
}

func TestCustomTags(t *testing.T) {
	v := New()
	require.NoError(t, v.Struct(sample{SendTime: "09:30", FontColor: "#A1b2C3", Name: "x"}))

	err := v.Struct(sample{SendTime: "25:00", FontColor: "#A1b2C3", Name: "x"})
	require.Error(t, err)
	assert.Equal(t, "send_time must be a time in HH:MM format", Message(err))

	err = v.Struct(sample{SendTime: "09:00", FontColor: "#fff", Name: "x"})
	require.Error(t, err)
	assert.Equal(t, "font_color must be a color in #RRGGBB format", Message(err))

	err = v.Struct(sample{SendTime: "09:00", FontColor: "#ffffff", Name: "  "})
	require.Error(t, err)
	assert.Equal(t, "name must not be blank", Message(err))
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+30*time.Minute, d)

	_, err = ParseClock("9am")
	assert.Error(t, err)
}
