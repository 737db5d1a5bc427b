package assess

import (
	"github.com/verdano/sdgscope/internal/model"
)

// MapScoreToRating maps an average 0-100 score to a discrete contribution
// band.
func MapScoreToRating(avg float64) string {
	switch {
	case avg >= 12:
		return "5+"
	case avg >= 9:
		return "4+"
	case avg >= 6:
		return "3+"
	case avg >= 3:
		return "2+"
	default:
		return "1+"
	}
}

// Aggregate rolls factor assessments up into an overall rating and a per-SDG
// breakdown. Zero scores carry no signal and are dropped before averaging; a
// project with no positive scores gets the floor band with zero
// contributions.
func Aggregate(factors []model.FactorAssessment) model.AggregateResult {
	type bucket struct {
		sum   float64
		n     int
		byTgt map[string]*struct {
			sum float64
			n   int
		}
	}

	var overallSum float64
	var overallN int
	byGoal := make(map[string]*bucket)

	for _, f := range factors {
		if f.Score <= 0 {
			continue
		}
		overallSum += f.Score
		overallN++

		b, ok := byGoal[f.SDGGoal]
		if !ok {
			b = &bucket{byTgt: make(map[string]*struct {
				sum float64
				n   int
			})}
			byGoal[f.SDGGoal] = b
		}
		b.sum += f.Score
		b.n++

		if f.SDGTarget != "" {
			t, ok := b.byTgt[f.SDGTarget]
			if !ok {
				t = &struct {
					sum float64
					n   int
				}{}
				b.byTgt[f.SDGTarget] = t
			}
			t.sum += f.Score
			t.n++
		}
	}

	result := model.AggregateResult{
		Overall: model.BandSummary{AverageScore: 0.0, Rating: "1+", NumContributions: 0},
		BySDG:   make(map[string]model.GoalSummary),
	}
	if overallN > 0 {
		avg := round2(overallSum / float64(overallN))
		result.Overall = model.BandSummary{
			AverageScore:     avg,
			Rating:           MapScoreToRating(avg),
			NumContributions: overallN,
		}
	}

	for goal, b := range byGoal {
		avg := round2(b.sum / float64(b.n))
		summary := model.GoalSummary{
			AverageScore:     avg,
			Rating:           MapScoreToRating(avg),
			NumContributions: b.n,
		}
		if len(b.byTgt) > 0 {
			summary.Targets = make(map[string]model.BandSummary, len(b.byTgt))
			for tgt, t := range b.byTgt {
				tAvg := round2(t.sum / float64(t.n))
				summary.Targets[tgt] = model.BandSummary{
					AverageScore:     tAvg,
					Rating:           MapScoreToRating(tAvg),
					NumContributions: t.n,
				}
			}
		}
		result.BySDG[goal] = summary
	}

	return result
}
