package domain

import "github.com/google/uuid"

// ListingFilter narrows listing queries; nil fields match everything.
type ListingFilter struct {
	SellerID         *uuid.UUID
	ReferencePriceID *uuid.UUID
	Status           *ListingStatus
}

type DisputeFilter struct {
	Status         *DisputeStatus
	ReporterID     *uuid.UUID
	ReportedUserID *uuid.UUID
}

type AuditFilter struct {
	ActorID *uuid.UUID
	// ActionPrefix matches entries whose action starts with the prefix.
	ActionPrefix string
}
