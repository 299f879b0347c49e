package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsResetCommand(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"отмена", true},
		{"Отмена", true},
		{"отмени заказ", true},
		{"очисти контекст", true},
		{"сбрось всё", true},
		{"давай начнём заново", true},
		{"стоп", true},
		{"cancel", true},
		{"please stop", true},
		{"reset the conversation", true},
		{"clear", true},
		{"давай бронь для аптеки", false},
		{"закажи парацетамол", false},
		{"сколько визитов на неделе", false},
		{"покажи остановки", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, IsResetCommand(tt.message))
		})
	}
}
