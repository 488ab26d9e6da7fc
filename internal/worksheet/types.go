// Package worksheet manages ventures, their KPIs, and the calculation
// worksheets founders keep against them.
package worksheet

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/venture-calc/pkg/constants"
)

// ErrNotFound is returned when a venture, KPI or worksheet does not exist.
var ErrNotFound = errors.New("not found")

// Confidence describes where a number came from.
type Confidence string

// Confidence levels, from most to least trustworthy.
const (
	ConfidenceActual   Confidence = "actual"
	ConfidenceMixed    Confidence = "mixed"
	ConfidenceMock     Confidence = "mock"
	ConfidenceEstimate Confidence = "estimate"
)

// ParseConfidence validates a confidence label. An empty label means estimate.
func ParseConfidence(value string) (Confidence, error) {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(value))); c {
	case "":
		return ConfidenceEstimate, nil
	case ConfidenceActual, ConfidenceMixed, ConfidenceMock, ConfidenceEstimate:
		return c, nil
	}
	return "", &ValidationError{Field: "confidence", Message: fmt.Sprintf("must be one of actual, mixed, mock or estimate, got %q", value)}
}

// ValidationError reports a rejected field on a venture, KPI or worksheet.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// Venture is a business tracked on the dashboard.
type Venture struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Stage       string    `json:"stage,omitempty" yaml:"stage,omitempty"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// KPI is a tracked metric with an optional target.
type KPI struct {
	ID         string     `json:"id" yaml:"id"`
	VentureID  string     `json:"ventureId" yaml:"ventureId"`
	Name       string     `json:"name" yaml:"name"`
	Value      float64    `json:"value" yaml:"value"`
	Target     float64    `json:"target,omitempty" yaml:"target,omitempty"`
	Unit       string     `json:"unit,omitempty" yaml:"unit,omitempty"`
	Confidence Confidence `json:"confidence" yaml:"confidence"`
	UpdatedAt  time.Time  `json:"updatedAt" yaml:"updatedAt"`
}

// Progress is value as a percentage of target, or nil without a target.
func (k KPI) Progress() *float64 {
	if k.Target == 0 {
		return nil
	}
	progress := k.Value / k.Target * constants.PercentageMultiplier
	return &progress
}

// MarshalJSON adds the derived progress field.
func (k KPI) MarshalJSON() ([]byte, error) {
	type plain KPI
	return json.Marshal(struct {
		plain
		Progress *float64 `json:"progress,omitempty"`
	}{plain(k), k.Progress()})
}

// Worksheet is a saved calculation: its kind, the inputs a founder entered,
// and the last evaluated outputs or error.
type Worksheet struct {
	ID         string                 `json:"id" yaml:"id"`
	VentureID  string                 `json:"ventureId,omitempty" yaml:"ventureId,omitempty"`
	Name       string                 `json:"name" yaml:"name"`
	Kind       string                 `json:"kind" yaml:"kind"`
	Inputs     map[string]interface{} `json:"inputs" yaml:"inputs"`
	Outputs    json.RawMessage        `json:"outputs,omitempty" yaml:"-"`
	Error      string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Missing    []string               `json:"missing,omitempty" yaml:"missing,omitempty"`
	Confidence Confidence             `json:"confidence" yaml:"confidence"`
	CreatedAt  time.Time              `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt" yaml:"updatedAt"`
}
