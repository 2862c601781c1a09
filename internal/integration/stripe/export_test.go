package stripe

// Test-only exports for the external stripe_test package.
var (
	SplitPayload  = splitPayload
	Classify      = classify
	DeclineReason = declineReason
)
