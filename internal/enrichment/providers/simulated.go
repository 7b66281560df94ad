// Package providers contains stand-in provider adapters. Real network
// clients live outside this repository; the pipeline only sees the
// ports.Provider capability. The simulated set generates plausible
// payloads deterministically per entity so repeated runs agree.
package providers

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"enrichd/internal/enrichment/models"
	"enrichd/internal/enrichment/ports"
	id "enrichd/pkg/domain"
)

// Simulated generates a payload for one data type.
type Simulated struct {
	dataType models.DataType
}

func NewSimulated(dt models.DataType) *Simulated {
	return &Simulated{dataType: dt}
}

// NewSimulatedSet returns a full provider set covering every data type.
func NewSimulatedSet() ports.ProviderSet {
	set := make(ports.ProviderSet, len(models.AllDataTypes()))
	for _, dt := range models.AllDataTypes() {
		set[dt] = NewSimulated(dt)
	}
	return set
}

func (p *Simulated) Fetch(ctx context.Context, entityID id.EntityID) (models.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed(p.dataType, entityID)))
	reportedAt := time.Now().Add(-time.Duration(rng.Intn(72)) * time.Hour).UTC().Format(time.RFC3339)

	switch p.dataType {
	case models.DataTypeDrivingRecord:
		violations := rng.Intn(6)
		return models.Payload{
			"license_status": pick(rng, "valid", "valid", "valid", "suspended"),
			"violations":     violations,
			"accidents":      rng.Intn(3),
			"risk_tier":      tierFor(violations, 2, 4),
			"reported_at":    reportedAt,
		}, nil
	case models.DataTypePriorClaims:
		claims := rng.Intn(5)
		open := 0
		if claims > 0 {
			open = rng.Intn(claims + 1)
		}
		return models.Payload{
			"claim_count": claims,
			"open_claims": open,
			"total_paid":  float64(claims) * (500 + 4500*rng.Float64()),
			"risk_tier":   tierFor(claims, 2, 3),
			"reported_at": reportedAt,
		}, nil
	case models.DataTypeCredit:
		score := 400 + rng.Intn(450)
		tier := "low"
		switch {
		case score < 550:
			tier = "high"
		case score < 680:
			tier = "medium"
		}
		return models.Payload{
			"credit_score":  score,
			"delinquencies": rng.Intn(4),
			"risk_tier":     tier,
			"reported_at":   reportedAt,
		}, nil
	case models.DataTypeBackground:
		records := rng.Intn(3)
		return models.Payload{
			"criminal_records": records,
			"bankruptcies":     rng.Intn(2),
			"risk_tier":        tierFor(records, 1, 2),
			"reported_at":      reportedAt,
		}, nil
	}
	return models.Payload{"reported_at": reportedAt}, nil
}

// Failing wraps a provider and always returns the configured error. Used
// by tests and fault-injection wiring to exercise fallback behaviors.
type Failing struct {
	Err error
}

func NewFailing(err error) *Failing {
	return &Failing{Err: err}
}

func (p *Failing) Fetch(context.Context, id.EntityID) (models.Payload, error) {
	return nil, p.Err
}

func seed(dt models.DataType, entityID id.EntityID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(dt))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(entityID))
	return int64(h.Sum64())
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}

func tierFor(count, medium, high int) string {
	switch {
	case count >= high:
		return "high"
	case count >= medium:
		return "medium"
	default:
		return "low"
	}
}
