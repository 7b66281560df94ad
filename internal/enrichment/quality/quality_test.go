package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"enrichd/internal/enrichment/models"
)

// =============================================================================
// Quality Scorer Test Suite
// =============================================================================
// Justification for unit tests: scoring is pure arithmetic over payload
// shapes; exercising tier contradictions and consistency penalties through
// the orchestrator would require contrived provider fixtures.

type ScorerSuite struct {
	suite.Suite
}

func TestScorerSuite(t *testing.T) {
	suite.Run(t, new(ScorerSuite))
}

func fullPayloads() map[models.DataType]models.Payload {
	return map[models.DataType]models.Payload{
		models.DataTypeDrivingRecord: {
			"license_status": "valid", "violations": 1, "accidents": 0,
			"risk_tier": "low", "reported_at": "2026-08-01T00:00:00Z",
		},
		models.DataTypePriorClaims: {
			"claim_count": 2, "open_claims": 0, "total_paid": 12500.0,
			"risk_tier": "low", "reported_at": "2026-08-01T00:00:00Z",
		},
		models.DataTypeCredit: {
			"credit_score": 710, "delinquencies": 0,
			"risk_tier": "low", "reported_at": "2026-08-01T00:00:00Z",
		},
		models.DataTypeBackground: {
			"criminal_records": 0, "bankruptcies": 0,
			"risk_tier": "low", "reported_at": "2026-08-01T00:00:00Z",
		},
	}
}

func zeroAges(data map[models.DataType]models.Payload) map[models.DataType]time.Duration {
	ages := make(map[models.DataType]time.Duration, len(data))
	for dt := range data {
		ages[dt] = 0
	}
	return ages
}

// =============================================================================
// Score Bounds
// =============================================================================

func (s *ScorerSuite) TestScoreBounds() {
	s.Run("empty input scores zero", func() {
		s.Zero(Score(Input{}))
	})

	s.Run("complete fresh agreeing data scores high and within bounds", func() {
		data := fullPayloads()
		score := Score(Input{Data: data, Ages: zeroAges(data)})
		s.GreaterOrEqual(score, 0.0)
		s.LessOrEqual(score, 100.0)
		s.Greater(score, 90.0)
	})

	s.Run("single sparse payload stays within bounds", func() {
		data := map[models.DataType]models.Payload{
			models.DataTypeCredit: {"credit_score": 480},
		}
		score := Score(Input{Data: data, Ages: zeroAges(data)})
		s.GreaterOrEqual(score, 0.0)
		s.LessOrEqual(score, 100.0)
	})
}

// =============================================================================
// Completeness
// =============================================================================

func (s *ScorerSuite) TestCompleteness() {
	s.Run("missing fields lower the score", func() {
		full := fullPayloads()
		fullScore := Score(Input{Data: full, Ages: zeroAges(full)})

		sparse := fullPayloads()
		sparse[models.DataTypeCredit] = models.Payload{"credit_score": 710, "risk_tier": "low"}
		sparseScore := Score(Input{Data: sparse, Ages: zeroAges(sparse)})

		s.Less(sparseScore, fullScore)
	})

	s.Run("nil values count as missing", func() {
		data := fullPayloads()
		data[models.DataTypeBackground]["criminal_records"] = nil
		s.Less(completeness(data), 1.0)
	})
}

// =============================================================================
// Accuracy
// =============================================================================

func (s *ScorerSuite) TestAccuracy() {
	s.Run("agreeing tiers keep the baseline", func() {
		s.InDelta(accuracyBaseline, accuracy(fullPayloads()), 0.001)
	})

	s.Run("low versus high contradiction is penalized", func() {
		data := fullPayloads()
		data[models.DataTypeCredit]["risk_tier"] = "high"
		s.Less(accuracy(data), accuracyBaseline)
	})

	s.Run("adjacent tiers are not a contradiction", func() {
		data := fullPayloads()
		data[models.DataTypeCredit]["risk_tier"] = "medium"
		s.InDelta(accuracyBaseline, accuracy(data), 0.001)
	})
}

// =============================================================================
// Freshness
// =============================================================================

func (s *ScorerSuite) TestFreshness() {
	s.Run("fresh data scores full freshness", func() {
		data := fullPayloads()
		s.InDelta(1.0, freshness(Input{Data: data, Ages: zeroAges(data)}), 0.001)
	})

	s.Run("aged data is penalized proportionally", func() {
		data := map[models.DataType]models.Payload{
			models.DataTypeDrivingRecord: fullPayloads()[models.DataTypeDrivingRecord],
		}
		// Half of the 7 day retention window consumed.
		ages := map[models.DataType]time.Duration{
			models.DataTypeDrivingRecord: 7 * 12 * time.Hour,
		}
		s.InDelta(0.5, freshness(Input{Data: data, Ages: ages}), 0.001)
	})

	s.Run("age past the window bottoms out at zero", func() {
		data := map[models.DataType]models.Payload{
			models.DataTypeDrivingRecord: fullPayloads()[models.DataTypeDrivingRecord],
		}
		ages := map[models.DataType]time.Duration{
			models.DataTypeDrivingRecord: 30 * 24 * time.Hour,
		}
		s.InDelta(0.0, freshness(Input{Data: data, Ages: ages}), 0.001)
	})
}

// =============================================================================
// Consistency
// =============================================================================

func (s *ScorerSuite) TestConsistency() {
	s.Run("plausible data stays at one", func() {
		s.InDelta(1.0, consistency(fullPayloads()), 0.001)
	})

	s.Run("low credit with zero indicators everywhere is penalized", func() {
		data := fullPayloads()
		data[models.DataTypeCredit]["credit_score"] = 430
		data[models.DataTypeDrivingRecord]["violations"] = 0
		data[models.DataTypePriorClaims]["claim_count"] = 0
		s.InDelta(1.0-lowCreditInconsistency, consistency(data), 0.001)
	})

	s.Run("low credit with corroborating risk is not penalized", func() {
		data := fullPayloads()
		data[models.DataTypeCredit]["credit_score"] = 430
		data[models.DataTypeDrivingRecord]["violations"] = 4
		s.InDelta(1.0, consistency(data), 0.001)
	})

	s.Run("more open claims than total claims is penalized", func() {
		data := fullPayloads()
		data[models.DataTypePriorClaims]["claim_count"] = 1
		data[models.DataTypePriorClaims]["open_claims"] = 3
		s.InDelta(1.0-claimShapeCost, consistency(data), 0.001)
	})
}

// =============================================================================
// Cached Confidence
// =============================================================================

func (s *ScorerSuite) TestFromCachedConfidence() {
	s.Run("empty confidences score zero", func() {
		s.Zero(FromCachedConfidence(nil))
	})

	s.Run("mean of stored confidences scaled to 100", func() {
		s.InDelta(75.0, FromCachedConfidence([]float64{0.5, 1.0}), 0.001)
	})

	s.Run("out of range confidences are clamped", func() {
		s.InDelta(100.0, FromCachedConfidence([]float64{1.5, 1.2}), 0.001)
	})
}
