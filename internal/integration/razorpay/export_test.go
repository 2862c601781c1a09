package razorpay

// Test-only exports for the external razorpay_test package.
var (
	ParsePayload = parsePayload
	Classify     = classify
)
