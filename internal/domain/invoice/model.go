package invoice

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/worksphere/billing/internal/types"
)

// Invoice is the fiscal document produced for one billing cycle
type Invoice struct {
	ID             string              `db:"id" json:"id"`
	BillingCycleID string              `db:"billing_cycle_id" json:"billing_cycle_id"`
	Currency       string              `db:"currency" json:"currency"`
	BaseAmount     decimal.Decimal     `db:"base_amount" json:"base_amount"`
	ProratedAmount decimal.Decimal     `db:"prorated_amount" json:"prorated_amount"`
	TaxAmount      decimal.Decimal     `db:"tax_amount" json:"tax_amount"`
	TaxRate        decimal.Decimal     `db:"tax_rate" json:"tax_rate"`
	TotalAmount    decimal.Decimal     `db:"total_amount" json:"total_amount"`
	Status         types.InvoiceStatus `db:"status" json:"status"`
	IssuedAt       time.Time           `db:"issued_at" json:"issued_at"`
	DueAt          time.Time           `db:"due_at" json:"due_at"`

	Signed          bool       `db:"signed" json:"signed"`
	SignedAt        *time.Time `db:"signed_at" json:"signed_at,omitempty"`
	SignatureFormat string     `db:"signature_format" json:"signature_format,omitempty"`
	Signature       string     `db:"signature" json:"-"`

	types.BaseModel
}

// IsSigned reports whether all signature fields are present
func (i *Invoice) IsSigned() bool {
	return i.Signed && i.SignedAt != nil && i.SignatureFormat != ""
}

func (i *Invoice) Copy() *Invoice {
	if i == nil {
		return nil
	}
	cp := *i
	if i.SignedAt != nil {
		t := *i.SignedAt
		cp.SignedAt = &t
	}
	return &cp
}
