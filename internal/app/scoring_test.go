package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-tournament-client/internal/app"
	"quiz-tournament-client/internal/domain"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name                string
		raw, total, passing int
		want                domain.Evaluation
	}{
		{"exactly at threshold", 7, 10, 70, domain.Evaluation{Passed: true, Percentage: 70.0, RequiredScore: 7}},
		{"one below threshold", 6, 10, 70, domain.Evaluation{Passed: false, Percentage: 60.0, RequiredScore: 7}},
		{"required score rounds up", 5, 7, 70, domain.Evaluation{Passed: true, Percentage: 71.4, RequiredScore: 5}},
		{"two of three at sixty", 2, 3, 60, domain.Evaluation{Passed: true, Percentage: 66.7, RequiredScore: 2}},
		{"zero passing percentage", 0, 4, 0, domain.Evaluation{Passed: true, Percentage: 0, RequiredScore: 0}},
		{"full marks required", 9, 10, 100, domain.Evaluation{Passed: false, Percentage: 90.0, RequiredScore: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := app.Evaluate(tc.raw, tc.total, tc.passing)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateRejectsMalformedConfiguration(t *testing.T) {
	_, err := app.Evaluate(3, 0, 70)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = app.Evaluate(3, 10, 101)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = app.Evaluate(3, 10, -1)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
