package moyasar

const (
	// BaseURL is used when payment.moyasar.base_url is empty
	BaseURL = "https://api.moyasar.com/v1"

	DefaultCurrency = "SAR"
)

type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "initiated"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusVoided    PaymentStatus = "voided"
	PaymentStatusCaptured  PaymentStatus = "captured"
)

type PaymentSourceType string

const (
	PaymentSourceTypeToken PaymentSourceType = "token"
)

type PaymentSource struct {
	Type    PaymentSourceType `json:"type"`
	Token   string            `json:"token,omitempty"`
	Company string            `json:"company,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Payment is the provider's payment object. Amounts are in halalah.
type Payment struct {
	ID             string            `json:"id"`
	Status         PaymentStatus     `json:"status"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	RefundedAmount int64             `json:"refunded,omitempty"`
	Description    string            `json:"description,omitempty"`
	CreatedAt      string            `json:"created_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Source         *PaymentSource    `json:"source,omitempty"`
}

type CreatePaymentRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Source      *PaymentSource    `json:"source"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	// GivenID makes the create call idempotent on the provider side
	GivenID string `json:"given_id,omitempty"`
}

type RefundRequest struct {
	Amount int64 `json:"amount,omitempty"`
}

type Token struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Brand     string `json:"brand"`
	Month     string `json:"month"`
	Year      string `json:"year"`
	Last4     string `json:"last_four"`
	Message   string `json:"message,omitempty"`
	CreatedAt string `json:"created_at"`
}

// TokenStatusInactive is reported for cards that can no longer be charged
const TokenStatusInactive = "inactive"

type ErrorResponse struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Errors  map[string]interface{} `json:"errors,omitempty"`
}
