package app

import (
	"fmt"

	"github.com/shopspring/decimal"

	"quiz-tournament-client/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Evaluate turns a raw score into a pass/fail verdict against a passing percentage.
//
//	requiredScore = ceil(passingPercentage * totalQuestions / 100)
//	passed        = rawScore >= requiredScore
//	percentage    = rawScore / totalQuestions * 100, rounded to one decimal
//
// It never applies a default passing percentage; an empty quiz or a percentage
// outside [0,100] is a configuration error.
func Evaluate(rawScore, totalQuestions, passingPercentage int) (domain.Evaluation, error) {
	if totalQuestions <= 0 {
		return domain.Evaluation{}, fmt.Errorf("%w: tournament has %d questions", domain.ErrConfiguration, totalQuestions)
	}
	if passingPercentage < 0 || passingPercentage > 100 {
		return domain.Evaluation{}, fmt.Errorf("%w: passing percentage %d out of range", domain.ErrConfiguration, passingPercentage)
	}

	total := decimal.NewFromInt(int64(totalQuestions))
	required := decimal.NewFromInt(int64(passingPercentage)).Mul(total).Div(hundred).Ceil().IntPart()
	percentage, _ := decimal.NewFromInt(int64(rawScore)).Mul(hundred).Div(total).Round(1).Float64()

	return domain.Evaluation{
		Passed:        int64(rawScore) >= required,
		Percentage:    percentage,
		RequiredScore: int(required),
	}, nil
}

// ValidatePassingPercentage checks a tournament's passing percentage without scoring.
func ValidatePassingPercentage(p int) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("%w: passing percentage %d out of range", domain.ErrConfiguration, p)
	}
	return nil
}
