package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLifecycleExpiryDays(t *testing.T) {
	cases := []struct {
		name  string
		ttl   time.Duration
		grace time.Duration
		want  int
	}{
		{"default five minutes", 5 * time.Minute, 10 * time.Minute, 2},
		{"exactly one day", 24 * time.Hour, 0, 2},
		{"two day ttl", 2880 * time.Minute, 10 * time.Minute, 4},
		{"ttl plus grace crosses a day", 23*time.Hour + 55*time.Minute, 10 * time.Minute, 3},
		{"zero", 0, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := LifecycleExpiryDays(tc.ttl, tc.grace)
			assert.Equal(t, tc.want, got)
			assert.Greater(t, time.Duration(got)*24*time.Hour, tc.ttl+tc.grace)
		})
	}
}
