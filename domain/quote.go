package domain

import (
	"context"
	"strings"
	"time"

	"quoteflow/common"
)

const DefaultQuoteStatus = "Draft"

// Quote is a sales quote. CurrentStage holds the title of the workflow step
// the quote is currently at, not its id.
type Quote struct {
	Id                    int64     `json:"id"`
	UserId                string    `json:"user_id"`
	Name                  string    `json:"name"`
	CustomerSlug          string    `json:"customer_slug"`
	Status                string    `json:"status"`
	Amount                string    `json:"amount"`
	Owner                 string    `json:"owner"`
	CurrentStage          *string   `json:"current_stage,omitempty"`
	GeneratedOrderFormUrl *string   `json:"generated_order_form_url,omitempty"`
	Created               time.Time `json:"created_at"`
}

// QuoteFields holds the user supplied fields of a new quote.
type QuoteFields struct {
	Name                  string  `json:"name"`
	CustomerSlug          string  `json:"customer_slug"`
	Status                string  `json:"status,omitempty"`
	Amount                string  `json:"amount"`
	Owner                 string  `json:"owner"`
	GeneratedOrderFormUrl *string `json:"generated_order_form_url,omitempty"`
}

func (f QuoteFields) Validate() error {
	missing := []string{}
	if f.Name == "" {
		missing = append(missing, "name")
	}
	if f.CustomerSlug == "" {
		missing = append(missing, "customer_slug")
	}
	if f.Amount == "" {
		missing = append(missing, "amount")
	}
	if f.Owner == "" {
		missing = append(missing, "owner")
	}
	if len(missing) > 0 {
		return common.NewValidationError(strings.Join(missing, ", "), "required")
	}
	return nil
}

// NewQuote builds an unsaved quote owned by userId; the id is assigned by
// storage.
func NewQuote(userId string, fields QuoteFields) Quote {
	status := fields.Status
	if status == "" {
		status = DefaultQuoteStatus
	}
	return Quote{
		UserId:                userId,
		Name:                  fields.Name,
		CustomerSlug:          fields.CustomerSlug,
		Status:                status,
		Amount:                fields.Amount,
		Owner:                 fields.Owner,
		GeneratedOrderFormUrl: fields.GeneratedOrderFormUrl,
		Created:               time.Now().UTC(),
	}
}

// DefaultQuotes is the sample data a new user is seeded with.
var DefaultQuotes = []QuoteFields{
	{Name: "Website Redesign Project", CustomerSlug: "acme-corp", Status: "In Progress", Amount: "$15,000", Owner: "Eddie Lake"},
	{Name: "Mobile App Development", CustomerSlug: "tech-solutions", Status: "Done", Amount: "$25,000", Owner: "Jamik Tashpulatov"},
	{Name: "Database Migration", CustomerSlug: "startup-inc", Status: "In Progress", Amount: "$8,500", Owner: "Eddie Lake"},
	{Name: "E-commerce Platform", CustomerSlug: "retail-plus", Status: "Done", Amount: "$32,000", Owner: "Jamik Tashpulatov"},
	{Name: "API Integration", CustomerSlug: "fintech-co", Status: "Not Started", Amount: "$12,000", Owner: "Assign owner"},
	{Name: "Cloud Infrastructure Setup", CustomerSlug: "enterprise-ltd", Status: "In Progress", Amount: "$18,500", Owner: "Eddie Lake"},
	{Name: "Security Audit", CustomerSlug: "healthcare-sys", Status: "Done", Amount: "$9,200", Owner: "Assign owner"},
	{Name: "Data Analytics Dashboard", CustomerSlug: "media-group", Status: "In Progress", Amount: "$21,800", Owner: "Jamik Tashpulatov"},
}

type QuoteStorage interface {
	// CreateQuote persists a new quote and returns it with its assigned id.
	CreateQuote(ctx context.Context, quote Quote) (Quote, error)
	GetQuote(ctx context.Context, userId string, quoteId int64) (Quote, error)
	GetQuotes(ctx context.Context, userId string) ([]Quote, error)
	// UpdateQuoteCurrentStage sets (or clears, when stage is nil) the quote's
	// current stage label.
	UpdateQuoteCurrentStage(ctx context.Context, userId string, quoteId int64, stage *string) error
}
