package model

// ReconciliationKind classifies why the fold could not apply an event as
// authored. The set is closed so it can double as a metric label.
type ReconciliationKind string

const (
	// ReconCapacityDemotion: a claim lost the merge arbitration for an
	// over-subscribed shift and was folded as cancelled.
	ReconCapacityDemotion ReconciliationKind = "capacity_demotion"
	// ReconUnknownShift: the event references a shift id missing from the
	// catalog.
	ReconUnknownShift ReconciliationKind = "unknown_shift"
	// ReconUnknownClaim: the event references a claim the fold has never
	// seen.
	ReconUnknownClaim ReconciliationKind = "unknown_claim"
	// ReconUnknownTrade: the event references a trade the fold has never
	// seen.
	ReconUnknownTrade ReconciliationKind = "unknown_trade"
	// ReconUnauthorized: the event's origin is not allowed to perform the
	// action it carries.
	ReconUnauthorized ReconciliationKind = "unauthorized_origin"
	// ReconInvalidTransition: the event names a lifecycle move the current
	// state does not allow, usually because a concurrent event won.
	ReconInvalidTransition ReconciliationKind = "invalid_transition"
	// ReconDuplicateID: the event would create an entity whose id already
	// exists.
	ReconDuplicateID ReconciliationKind = "duplicate_id"
	// ReconStaleFinalize: a trade_finalized event lost the arbitration to a
	// canonically earlier one.
	ReconStaleFinalize ReconciliationKind = "stale_finalize"
	// ReconSourceClosed: an open trade was closed because its source claim
	// was transferred or otherwise ended before the trade could finalize.
	ReconSourceClosed ReconciliationKind = "source_closed"
)

// Reconciliation records a deterministic merge decision so the UI can tell
// participants their action did not take effect. Notes are derived by the
// fold like all other state; they are not stored.
type Reconciliation struct {
	EventID   string
	EventKind Kind
	Origin    string
	Kind      ReconciliationKind
	Detail    string
}
