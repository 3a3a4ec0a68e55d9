// Package token runs allocation engine operations against the stored doctor
// schedules: it serializes writers per doctor, saves the resulting snapshot
// and records an audit event for every change.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/opd"
	redisclient "github.com/nikhilsharma0818/OPD-Token-Allocation/internal/redis"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/schedule"
)

var (
	ErrEmptyPatientName  = errors.New("patient name is required")
	ErrDoctorBusy        = errors.New("doctor schedule is being updated, please retry")
	ErrEventsUnavailable = errors.New("event history is not available")
)

var tracer = otel.Tracer("github.com/nikhilsharma0818/OPD-Token-Allocation/internal/token")

type Service struct {
	store  schedule.Store
	locker redisclient.Locker
	engine *opd.Engine
	events EventSink
}

func NewService(store schedule.Store, locker redisclient.Locker, engine *opd.Engine, events EventSink) *Service {
	if events == nil {
		events = LogSink{}
	}
	return &Service{
		store:  store,
		locker: locker,
		engine: engine,
		events: events,
	}
}

type AllocateRequest struct {
	DoctorID    string
	SlotID      string
	PatientName string
	Priority    opd.PriorityClass
}

type AllocateResult struct {
	Token    opd.Token
	Schedule *opd.Doctor
}

type DoctorSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Slots     int    `json:"slots"`
}

type DoctorStats struct {
	DoctorID string `json:"doctorId"`
	Name     string `json:"name"`
	Booked   int    `json:"booked"`
	Capacity int    `json:"capacity"`
}

// Allocate books a token for a patient in one of the doctor's slots.
func (s *Service) Allocate(ctx context.Context, req AllocateRequest) (*AllocateResult, error) {
	ctx, span := tracer.Start(ctx, "token.Allocate", trace.WithAttributes(
		attribute.String("opd.doctor_id", req.DoctorID),
		attribute.String("opd.slot_id", req.SlotID),
		attribute.String("opd.priority", req.Priority.String()),
	))
	defer span.End()

	name := strings.TrimSpace(req.PatientName)
	if name == "" {
		return nil, spanError(span, ErrEmptyPatientName)
	}

	var result *AllocateResult

	err := s.withDoctor(ctx, req.DoctorID, func(lockCtx context.Context, d *opd.Doctor) error {
		next, tok, err := s.engine.Allocate(d, req.SlotID, name, req.Priority)
		if err != nil {
			return err
		}
		if err := s.store.Put(lockCtx, next); err != nil {
			return fmt.Errorf("save schedule: %w", err)
		}

		result = &AllocateResult{Token: *tok, Schedule: next}

		s.logEvent(lockCtx, d.ID, tok.ID, EventTokenAllocated, map[string]any{
			"slot_id":  tok.SlotID,
			"sequence": tok.Sequence,
			"priority": tok.Patient.Priority,
			"patient":  tok.Patient.Name,
		})
		return nil
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	span.SetAttributes(attribute.String("opd.token_id", result.Token.ID.String()))
	return result, nil
}

// Cancel cancels a token wherever it is booked. An unknown token id is a
// silent no-op: found is false and err is nil.
func (s *Service) Cancel(ctx context.Context, tokenID uuid.UUID) (snapshot *opd.Doctor, found bool, err error) {
	ctx, span := tracer.Start(ctx, "token.Cancel", trace.WithAttributes(
		attribute.String("opd.token_id", tokenID.String()),
	))
	defer span.End()

	doctorID, ok, err := s.store.DoctorForToken(ctx, tokenID)
	if err != nil {
		return nil, false, spanError(span, fmt.Errorf("find token: %w", err))
	}
	if !ok {
		span.SetAttributes(attribute.Bool("opd.found", false))
		return nil, false, nil
	}

	err = s.withDoctor(ctx, doctorID, func(lockCtx context.Context, d *opd.Doctor) error {
		next, hit := s.engine.Cancel(d, tokenID)
		snapshot, found = next, hit
		if !hit {
			return nil
		}
		if err := s.store.Put(lockCtx, next); err != nil {
			return fmt.Errorf("save schedule: %w", err)
		}
		s.logEvent(lockCtx, doctorID, tokenID, EventTokenCancelled, map[string]any{})
		return nil
	})
	if err != nil {
		return nil, false, spanError(span, err)
	}

	span.SetAttributes(attribute.Bool("opd.found", found))
	return snapshot, found, nil
}

func (s *Service) CheckIn(ctx context.Context, tokenID uuid.UUID) (*opd.Token, error) {
	return s.apply(ctx, tokenID, opd.ActionCheckIn, EventTokenCheckedIn)
}

func (s *Service) Complete(ctx context.Context, tokenID uuid.UUID) (*opd.Token, error) {
	return s.apply(ctx, tokenID, opd.ActionComplete, EventTokenCompleted)
}

func (s *Service) MarkNoShow(ctx context.Context, tokenID uuid.UUID) (*opd.Token, error) {
	return s.apply(ctx, tokenID, opd.ActionNoShow, EventTokenNoShow)
}

func (s *Service) apply(ctx context.Context, tokenID uuid.UUID, action opd.Action, eventType string) (*opd.Token, error) {
	ctx, span := tracer.Start(ctx, "token.Apply", trace.WithAttributes(
		attribute.String("opd.token_id", tokenID.String()),
		attribute.String("opd.action", string(action)),
	))
	defer span.End()

	doctorID, ok, err := s.store.DoctorForToken(ctx, tokenID)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("find token: %w", err))
	}
	if !ok {
		return nil, spanError(span, opd.ErrTokenNotFound)
	}

	var updated *opd.Token

	err = s.withDoctor(ctx, doctorID, func(lockCtx context.Context, d *opd.Doctor) error {
		next, tok, err := s.engine.Apply(d, tokenID, action)
		if err != nil {
			return err
		}
		if err := s.store.Put(lockCtx, next); err != nil {
			return fmt.Errorf("save schedule: %w", err)
		}
		updated = tok
		s.logEvent(lockCtx, doctorID, tokenID, eventType, map[string]any{
			"status": tok.Status,
		})
		return nil
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	return updated, nil
}

// withDoctor loads the doctor's snapshot under the doctor lock and hands it to
// fn. Lock contention is reported as ErrDoctorBusy.
func (s *Service) withDoctor(ctx context.Context, doctorID string, fn func(ctx context.Context, d *opd.Doctor) error) error {
	err := s.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		d, err := s.store.Get(lockCtx, doctorID)
		if err != nil {
			if errors.Is(err, schedule.ErrDoctorNotFound) {
				return err
			}
			return fmt.Errorf("load schedule: %w", err)
		}
		return fn(lockCtx, d)
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrDoctorBusy
	}
	return err
}

// Schedule returns the doctor's full state with every slot's ordered tokens.
func (s *Service) Schedule(ctx context.Context, doctorID string) (*opd.Doctor, error) {
	d, err := s.store.Get(ctx, doctorID)
	if err != nil {
		if errors.Is(err, schedule.ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return d, nil
}

func (s *Service) Doctors(ctx context.Context) ([]DoctorSummary, error) {
	doctors, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	out := make([]DoctorSummary, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, DoctorSummary{
			ID:        d.ID,
			Name:      d.Name,
			Specialty: d.Specialty,
			Slots:     len(d.Slots),
		})
	}
	return out, nil
}

// Stats reports, per doctor, tokens that are not cancelled against the total
// nominal capacity of the doctor's slots.
func (s *Service) Stats(ctx context.Context) ([]DoctorStats, error) {
	doctors, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	out := make([]DoctorStats, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, DoctorStats{
			DoctorID: d.ID,
			Name:     d.Name,
			Booked:   d.Booked(),
			Capacity: d.Capacity(),
		})
	}
	return out, nil
}

// Events returns the audit history of a token when the sink keeps one.
func (s *Service) Events(ctx context.Context, tokenID uuid.UUID) ([]Event, error) {
	reader, ok := s.events.(EventReader)
	if !ok {
		return nil, ErrEventsUnavailable
	}
	events, err := reader.ListTokenEvents(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
