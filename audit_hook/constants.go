package audithook

// Action constants for audit events.
const (
	// Matching actions
	ActionRunCompleted = "run.completed"

	// Review actions
	ActionMatchApproved = "match.approved"
	ActionMatchRejected = "match.rejected"
	ActionMatchStale    = "match.stale"

	// Lifecycle actions
	ActionEngineStarted = "engine.started"
	ActionEngineStopped = "engine.stopped"
)

// Resource constants for audit events.
const (
	ResourceRun    = "run"
	ResourceMatch  = "match"
	ResourceEngine = "engine"
)

// Category constants for audit events.
const (
	CategoryReconciliation = "reconciliation"
	CategorySystem         = "system"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
