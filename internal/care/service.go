package care

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/medtriage/internal/fault"
)

var validate = newValidator()

// newValidator reports fields by their JSON names so messages match the API.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// HealthChecker assesses vitals and returns past assessments.
type HealthChecker interface {
	CheckHealth(ctx context.Context, v Vitals) (*HealthReport, error)
	GetHealthHistory(ctx context.Context) ([]HistoryRecord, error)
}

// HospitalFinder looks up hospitals near a position.
type HospitalFinder interface {
	FindHospitals(ctx context.Context, lat, lon float64) ([]Hospital, error)
}

// Service validates user input before handing it to the collaborators.
type Service struct {
	health    HealthChecker
	hospitals HospitalFinder
	logger    log.Logger
}

// NewService creates a care service.
func NewService(health HealthChecker, hospitals HospitalFinder, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		health:    health,
		hospitals: hospitals,
		logger:    logger,
	}
}

// CheckHealth validates v and asks the backend for an assessment.
func (s *Service) CheckHealth(ctx context.Context, v Vitals) (*HealthReport, error) {
	if err := validate.StructCtx(ctx, v); err != nil {
		return nil, fault.Validation("check_health", validationError(err))
	}

	report, err := s.health.CheckHealth(ctx, v)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "health check complete", "status", report.Status, "score", report.Score)
	return report, nil
}

// FindHospitals returns hospitals near lat/lon. No results is an EmptyResult failure.
func (s *Service) FindHospitals(ctx context.Context, lat, lon float64) ([]Hospital, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, fault.Validation("find_hospitals", err)
	}

	hs, err := s.hospitals.FindHospitals(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	if len(hs) == 0 {
		return nil, fault.Empty("find_hospitals", "no hospitals found nearby")
	}
	return hs, nil
}

// History returns past health checks, newest first as stored by the backend.
func (s *Service) History(ctx context.Context) ([]HistoryRecord, error) {
	return s.health.GetHealthHistory(ctx)
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}
	return nil
}

// validationError reduces validator output to the first failing field.
func validationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err
	}
	fe := ves[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "min", "max":
		return fmt.Errorf("%s must be %s %s, got %v", fe.Field(), bound(fe.Tag()), fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func bound(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}
