package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CompetitorAttributes are the structured attributes extracted for
// one competitor.
type CompetitorAttributes struct {
	ProductTypes              []string `json:"productTypes"`
	PricePoints               string   `json:"pricePoints"`
	UniqueSellingPropositions []string `json:"uniqueSellingPropositions"`
	ToneBranding              string   `json:"toneBranding"`
	TargetCustomer            string   `json:"targetCustomer"`
}

// Outcome messages stored when extraction does not yield structured
// attributes.
const (
	OutcomeErrorUnparsed = "Could not parse analysis"
	OutcomeErrorFailed   = "Analysis failed"
)

// AttributeOutcome is the tagged result of attribute extraction for a
// single competitor. Exactly one branch is set:
//
//   - Parsed: the model reply parsed into structured attributes
//   - Unparsed: the reply could not be parsed; the raw text is kept
//   - Failed: the model call itself failed
//
// Callers must switch on the branch rather than probing optional
// fields.
type AttributeOutcome struct {
	Parsed   *CompetitorAttributes
	Unparsed *UnparsedReply
	Failed   *FailedCall
}

// UnparsedReply keeps the raw model reply that could not be parsed
type UnparsedReply struct {
	Raw string
}

// FailedCall records a model call failure
type FailedCall struct {
	Message string
}

// ParsedOutcome wraps structured attributes
func ParsedOutcome(attrs CompetitorAttributes) AttributeOutcome {
	return AttributeOutcome{Parsed: &attrs}
}

// UnparsedOutcome wraps a reply that could not be parsed
func UnparsedOutcome(raw string) AttributeOutcome {
	return AttributeOutcome{Unparsed: &UnparsedReply{Raw: raw}}
}

// FailedOutcome wraps a model call failure
func FailedOutcome(message string) AttributeOutcome {
	return AttributeOutcome{Failed: &FailedCall{Message: message}}
}

// OK reports whether the outcome carries structured attributes
func (o AttributeOutcome) OK() bool {
	return o.Parsed != nil
}

// MarshalJSON serializes the outcome in the stored wire shape:
// structured attributes directly, or an {error, raw} / {error,
// message} object for the failure branches.
func (o AttributeOutcome) MarshalJSON() ([]byte, error) {
	switch {
	case o.Parsed != nil:
		return json.Marshal(o.Parsed)
	case o.Unparsed != nil:
		return json.Marshal(map[string]string{
			"error": OutcomeErrorUnparsed,
			"raw":   o.Unparsed.Raw,
		})
	case o.Failed != nil:
		return json.Marshal(map[string]string{
			"error":   OutcomeErrorFailed,
			"message": o.Failed.Message,
		})
	}
	return nil, errors.New("attribute outcome has no branch set")
}

// UnmarshalJSON restores the tagged branch from the stored shape
func (o *AttributeOutcome) UnmarshalJSON(data []byte) error {
	var probe struct {
		Error   *string `json:"error"`
		Raw     string  `json:"raw"`
		Message string  `json:"message"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if probe.Error == nil {
		var attrs CompetitorAttributes
		if err := json.Unmarshal(data, &attrs); err != nil {
			return err
		}
		o.Parsed = &attrs
		return nil
	}

	if *probe.Error == OutcomeErrorUnparsed || probe.Raw != "" {
		o.Unparsed = &UnparsedReply{Raw: probe.Raw}
		return nil
	}
	o.Failed = &FailedCall{Message: probe.Message}
	return nil
}

// CompetitorResult is one competitor's entry in an analysis,
// preserving the order competitors were analyzed in.
type CompetitorResult struct {
	ID         uuid.UUID        `json:"id"`
	Name       string           `json:"name"`
	URL        string           `json:"url"`
	Attributes AttributeOutcome `json:"attributes"`
}

// CompetitorAnalysis is one persisted run of per-competitor attribute
// extraction plus a cross-competitor narrative. Append-only per
// business; the latest row wins.
type CompetitorAnalysis struct {
	ID              uuid.UUID          `json:"id" db:"id"`
	BusinessID      uuid.UUID          `json:"business_id" db:"business_id"`
	Attributes      []CompetitorResult `json:"attributes_json" db:"-"`
	SummaryInsights string             `json:"summary_insights" db:"summary_insights"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
}

// NewCompetitorAnalysis creates an analysis row
func NewCompetitorAnalysis(businessID uuid.UUID, results []CompetitorResult, summaryInsights string) *CompetitorAnalysis {
	return &CompetitorAnalysis{
		ID:              uuid.New(),
		BusinessID:      businessID,
		Attributes:      results,
		SummaryInsights: summaryInsights,
		CreatedAt:       time.Now().UTC(),
	}
}
