package worksheet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/venture-calc/internal/cache"
	"github.com/iwvelando/venture-calc/pkg/calc"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Repository persists ventures, KPIs and worksheets. Lookups of missing rows
// return an error wrapping ErrNotFound.
type Repository interface {
	CreateVenture(ctx context.Context, v Venture) error
	UpdateVenture(ctx context.Context, v Venture) error
	GetVenture(ctx context.Context, id string) (Venture, error)
	ListVentures(ctx context.Context) ([]Venture, error)
	DeleteVenture(ctx context.Context, id string) error

	UpsertKPI(ctx context.Context, k KPI) error
	GetKPI(ctx context.Context, id string) (KPI, error)
	ListKPIs(ctx context.Context, ventureID string) ([]KPI, error)
	DeleteKPI(ctx context.Context, id string) error

	CreateWorksheet(ctx context.Context, w Worksheet) error
	UpdateWorksheet(ctx context.Context, w Worksheet) error
	GetWorksheet(ctx context.Context, id string) (Worksheet, error)
	ListWorksheets(ctx context.Context, ventureID string) ([]Worksheet, error)
	DeleteWorksheet(ctx context.Context, id string) error
}

// VentureInput is the editable part of a venture.
type VentureInput struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Stage       string `json:"stage" yaml:"stage"`
}

// KPIInput creates or replaces a KPI. An empty ID creates a new KPI.
type KPIInput struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Target     float64 `json:"target"`
	Unit       string  `json:"unit"`
	Confidence string  `json:"confidence"`
}

// WorksheetInput creates a worksheet.
type WorksheetInput struct {
	VentureID  string                 `json:"ventureId" yaml:"ventureId"`
	Name       string                 `json:"name" yaml:"name"`
	Kind       string                 `json:"kind" yaml:"kind"`
	Inputs     map[string]interface{} `json:"inputs" yaml:"inputs"`
	Confidence string                 `json:"confidence" yaml:"confidence"`
}

// WorksheetUpdate changes a worksheet. Nil fields are left alone; new inputs
// replace the old ones entirely.
type WorksheetUpdate struct {
	Name       *string                `json:"name"`
	Inputs     map[string]interface{} `json:"inputs"`
	Confidence *string                `json:"confidence"`
}

// Service implements the venture dashboard operations.
type Service struct {
	repo   Repository
	engine *calc.Engine
	cache  cache.Cache
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewService wires a service. A nil cache disables result caching.
func NewService(repo Repository, engine *calc.Engine, resultCache cache.Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = calc.NewEngine(logger)
	}
	if resultCache == nil {
		resultCache = cache.Noop{}
	}
	return &Service{
		repo:   repo,
		engine: engine,
		cache:  resultCache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// CreateVenture stores a new venture.
func (s *Service) CreateVenture(ctx context.Context, in VentureInput) (Venture, error) {
	if err := required("name", in.Name); err != nil {
		return Venture{}, err
	}
	now := s.now()
	v := Venture{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Stage:       in.Stage,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateVenture(ctx, v); err != nil {
		return Venture{}, err
	}
	s.logger.Info("created venture",
		zap.String("op", "worksheet.CreateVenture"),
		zap.String("id", v.ID),
	)
	return v, nil
}

// UpdateVenture replaces the editable fields of a venture.
func (s *Service) UpdateVenture(ctx context.Context, id string, in VentureInput) (Venture, error) {
	if err := required("name", in.Name); err != nil {
		return Venture{}, err
	}
	v, err := s.repo.GetVenture(ctx, id)
	if err != nil {
		return Venture{}, err
	}
	v.Name = strings.TrimSpace(in.Name)
	v.Description = in.Description
	v.Stage = in.Stage
	v.UpdatedAt = s.now()
	if err := s.repo.UpdateVenture(ctx, v); err != nil {
		return Venture{}, err
	}
	return v, nil
}

// GetVenture loads a venture.
func (s *Service) GetVenture(ctx context.Context, id string) (Venture, error) {
	return s.repo.GetVenture(ctx, id)
}

// ListVentures lists every venture.
func (s *Service) ListVentures(ctx context.Context) ([]Venture, error) {
	return s.repo.ListVentures(ctx)
}

// DeleteVenture removes a venture with its KPIs and worksheets.
func (s *Service) DeleteVenture(ctx context.Context, id string) error {
	if err := s.repo.DeleteVenture(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted venture",
		zap.String("op", "worksheet.DeleteVenture"),
		zap.String("id", id),
	)
	return nil
}

// UpsertKPI creates or replaces a KPI on a venture.
func (s *Service) UpsertKPI(ctx context.Context, ventureID string, in KPIInput) (KPI, error) {
	if err := required("name", in.Name); err != nil {
		return KPI{}, err
	}
	confidence, err := ParseConfidence(in.Confidence)
	if err != nil {
		return KPI{}, err
	}
	if _, err := s.repo.GetVenture(ctx, ventureID); err != nil {
		return KPI{}, err
	}

	id := in.ID
	if id == "" {
		id = s.newID()
	} else {
		existing, err := s.repo.GetKPI(ctx, id)
		switch {
		case err == nil && existing.VentureID != ventureID:
			return KPI{}, &ValidationError{Field: "id", Message: "belongs to another venture"}
		case err != nil && !errors.Is(err, ErrNotFound):
			return KPI{}, err
		}
	}

	k := KPI{
		ID:         id,
		VentureID:  ventureID,
		Name:       strings.TrimSpace(in.Name),
		Value:      in.Value,
		Target:     in.Target,
		Unit:       in.Unit,
		Confidence: confidence,
		UpdatedAt:  s.now(),
	}
	if err := s.repo.UpsertKPI(ctx, k); err != nil {
		return KPI{}, err
	}
	return k, nil
}

// ListKPIs lists the KPIs of a venture.
func (s *Service) ListKPIs(ctx context.Context, ventureID string) ([]KPI, error) {
	if _, err := s.repo.GetVenture(ctx, ventureID); err != nil {
		return nil, err
	}
	return s.repo.ListKPIs(ctx, ventureID)
}

// DeleteKPI removes a KPI.
func (s *Service) DeleteKPI(ctx context.Context, id string) error {
	return s.repo.DeleteKPI(ctx, id)
}

// Evaluate runs a calculation, serving repeated inputs from the cache.
// Cache failures are logged and otherwise ignored.
func (s *Service) Evaluate(ctx context.Context, kind calc.Kind, params map[string]interface{}) calc.Result {
	key, keyErr := cache.Key(string(kind), params)
	if keyErr == nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			s.logger.Debug("calculation cache hit",
				zap.String("op", "worksheet.Evaluate"),
				zap.String("kind", string(kind)),
			)
			return calc.Result{Kind: kind, Outputs: json.RawMessage(cached)}
		}
	} else {
		s.logger.Warn("unable to derive cache key",
			zap.String("op", "worksheet.Evaluate"),
			zap.Error(keyErr),
		)
	}

	result := s.engine.Calculate(kind, params)
	if !result.OK() || keyErr != nil {
		return result
	}

	encoded, err := json.Marshal(result.Outputs)
	if err != nil {
		s.logger.Warn("unable to encode result for cache",
			zap.String("op", "worksheet.Evaluate"),
			zap.Error(err),
		)
		return result
	}
	if err := s.cache.Set(ctx, key, string(encoded)); err != nil {
		s.logger.Warn("unable to cache calculation result",
			zap.String("op", "worksheet.Evaluate"),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	return result
}

// evaluate fills the outputs and error of w from its inputs.
func (s *Service) evaluate(ctx context.Context, w *Worksheet) {
	result := s.Evaluate(ctx, calc.Kind(w.Kind), w.Inputs)
	w.Error = result.Error
	w.Missing = result.Missing
	w.Outputs = nil
	if !result.OK() {
		return
	}
	encoded, err := json.Marshal(result.Outputs)
	if err != nil {
		w.Error = fmt.Sprintf("unable to encode outputs: %v", err)
		return
	}
	w.Outputs = encoded
}

// CreateWorksheet stores a worksheet and evaluates it. A calculation failure
// is recorded on the worksheet rather than returned.
func (s *Service) CreateWorksheet(ctx context.Context, in WorksheetInput) (Worksheet, error) {
	if err := required("name", in.Name); err != nil {
		return Worksheet{}, err
	}
	kind, err := calc.ParseKind(in.Kind)
	if err != nil {
		return Worksheet{}, err
	}
	confidence, err := ParseConfidence(in.Confidence)
	if err != nil {
		return Worksheet{}, err
	}
	if in.VentureID != "" {
		if _, err := s.repo.GetVenture(ctx, in.VentureID); err != nil {
			return Worksheet{}, err
		}
	}

	inputs := in.Inputs
	if inputs == nil {
		inputs = map[string]interface{}{}
	}
	now := s.now()
	w := Worksheet{
		ID:         s.newID(),
		VentureID:  in.VentureID,
		Name:       strings.TrimSpace(in.Name),
		Kind:       string(kind),
		Inputs:     inputs,
		Confidence: confidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.evaluate(ctx, &w)

	if err := s.repo.CreateWorksheet(ctx, w); err != nil {
		return Worksheet{}, err
	}
	s.logger.Info("created worksheet",
		zap.String("op", "worksheet.CreateWorksheet"),
		zap.String("id", w.ID),
		zap.String("kind", w.Kind),
		zap.Bool("ok", w.Error == ""),
	)
	return w, nil
}

// GetWorksheet loads a worksheet.
func (s *Service) GetWorksheet(ctx context.Context, id string) (Worksheet, error) {
	return s.repo.GetWorksheet(ctx, id)
}

// ListWorksheets lists worksheets, optionally only those of one venture.
func (s *Service) ListWorksheets(ctx context.Context, ventureID string) ([]Worksheet, error) {
	if ventureID != "" {
		if _, err := s.repo.GetVenture(ctx, ventureID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListWorksheets(ctx, ventureID)
}

// UpdateWorksheet applies upd and re-evaluates the worksheet.
func (s *Service) UpdateWorksheet(ctx context.Context, id string, upd WorksheetUpdate) (Worksheet, error) {
	w, err := s.repo.GetWorksheet(ctx, id)
	if err != nil {
		return Worksheet{}, err
	}
	if upd.Name != nil {
		if err := required("name", *upd.Name); err != nil {
			return Worksheet{}, err
		}
		w.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Confidence != nil {
		confidence, err := ParseConfidence(*upd.Confidence)
		if err != nil {
			return Worksheet{}, err
		}
		w.Confidence = confidence
	}
	if upd.Inputs != nil {
		w.Inputs = upd.Inputs
	}
	w.UpdatedAt = s.now()
	s.evaluate(ctx, &w)

	if err := s.repo.UpdateWorksheet(ctx, w); err != nil {
		return Worksheet{}, err
	}
	return w, nil
}

// DeleteWorksheet removes a worksheet.
func (s *Service) DeleteWorksheet(ctx context.Context, id string) error {
	return s.repo.DeleteWorksheet(ctx, id)
}

type exportDocument struct {
	Worksheet `yaml:",inline"`
	Outputs   interface{} `yaml:"outputs,omitempty"`
}

// ExportYAML renders a worksheet, inputs and outputs included, as YAML.
func (s *Service) ExportYAML(ctx context.Context, id string) ([]byte, error) {
	w, err := s.repo.GetWorksheet(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := exportDocument{Worksheet: w}
	if len(w.Outputs) > 0 {
		if err := json.Unmarshal(w.Outputs, &doc.Outputs); err != nil {
			return nil, fmt.Errorf("failed to decode worksheet outputs: %w", err)
		}
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode worksheet: %w", err)
	}
	return out, nil
}
