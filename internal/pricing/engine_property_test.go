package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"fairtix/internal/domain"
)

func TestProperty_CeilingIsInclusiveUpperBound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		faceCents := rapid.Int64Range(1, 10_000_000).Draw(t, "faceCents")
		ceilingPct := rapid.Int64Range(100, 300).Draw(t, "ceilingPct")

		face := decimal.New(faceCents, -2)
		c := decimal.New(ceilingPct, -2)
		ref := &domain.ReferencePrice{FaceValue: face}
		limit := MaxAllowed(face, c)

		if !Validate(limit, ref, c) {
			t.Fatalf("price equal to the maximum %s was rejected", limit)
		}
		over := limit.Add(decimal.New(1, -4))
		if Validate(over, ref, c) {
			t.Fatalf("price %s above the maximum %s was accepted", over, limit)
		}
	})
}

func TestProperty_AnyAskAtOrBelowFaceValueIsAccepted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		faceCents := rapid.Int64Range(1, 10_000_000).Draw(t, "faceCents")
		askCents := rapid.Int64Range(1, faceCents).Draw(t, "askCents")

		ref := &domain.ReferencePrice{FaceValue: decimal.New(faceCents, -2)}
		if !Validate(decimal.New(askCents, -2), ref, ceiling) {
			t.Fatalf("ask %d cents at or below face %d cents was rejected", askCents, faceCents)
		}
	})
}
