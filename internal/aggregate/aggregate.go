package aggregate

import (
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/types"
)

// Aggregate groups records by their type tag and computes one score per
// group: the mean of present ratings for rating-protocol tags, and the
// accuracy percentage over present verdicts for everything else. Records
// missing the relevant field contribute to neither numerator nor
// denominator, and groups with zero countable records are omitted.
//
// Records with an empty type tag are reported under the "unlabeled" bucket;
// non-empty unrecognized tags keep their own tag as the bucket. The
// reduction is a commutative sum, so a permuted record list yields
// identical scores.
func Aggregate(fileName string, records []types.BatchRecord) types.AggregationRow {
	totals := make(map[string]float64)
	counts := make(map[string]int)

	for _, rec := range records {
		tag := rec.TypeTag()
		if tag == "" {
			tag = types.TypeUnlabeled
		}

		if types.IsRatingType(tag) {
			if rec.EvalRating == nil {
				continue
			}
			totals[tag] += float64(*rec.EvalRating)
			counts[tag]++
		} else {
			if rec.EvalResult == nil {
				continue
			}
			if *rec.EvalResult {
				totals[tag]++
			}
			counts[tag]++
		}
	}

	scores := make(map[string]float64, len(counts))
	for tag, count := range counts {
		if types.IsRatingType(tag) {
			scores[tag] = totals[tag] / float64(count)
		} else {
			scores[tag] = totals[tag] / float64(count) * 100
		}
	}

	return types.AggregationRow{FileName: fileName, Scores: scores}
}

// Accuracy returns the share of correct binary verdicts in records as a
// percentage, and the number of verdicts counted. Used for the per-file
// summary log line after an evaluation pass.
func Accuracy(records []types.BatchRecord) (percent float64, counted int) {
	correct := 0
	for _, rec := range records {
		if rec.EvalResult == nil {
			continue
		}
		counted++
		if *rec.EvalResult {
			correct++
		}
	}
	if counted == 0 {
		return 0, 0
	}
	return float64(correct) / float64(counted) * 100, counted
}
