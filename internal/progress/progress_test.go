package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBar(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "📊 Прогресс: ▰▰▱▱▱▱▱ 28% (Шаг 2/7)", Bar(2, 7))
	assert.Equal(t, "📊 Прогресс: ▰▰▰▰▰▰▰ 100% (Шаг 7/7)", Bar(7, 7))
	assert.Equal(t, "📊 Прогресс: ▱▱▱▱▱▱▱ 0% (Шаг 0/7)", Bar(0, 7))
}

func TestBarClamps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Bar(7, 7), Bar(12, 7))
	assert.Equal(t, Bar(0, 7), Bar(-3, 7))
	assert.Equal(t, "📊 Прогресс:  0% (Шаг 0/0)", Bar(3, 0))
}

func TestLoading(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[==...] 40%", Loading(2, 5))
	assert.Equal(t, "[.....] 0%", Loading(0, 5))
	assert.Equal(t, "[=====] 100%", Loading(9, 5))
	assert.Equal(t, "[] 0%", Loading(1, 0))
}

func TestFrames(t *testing.T) {
	t.Parallel()

	frames := Frames(5)
	assert.Len(t, frames, 6)
	assert.Equal(t, "[.....] 0%", frames[0])
	assert.Equal(t, "[=====] 100%", frames[5])
	assert.Equal(t, []string{"[] 0%"}, Frames(0))
}
