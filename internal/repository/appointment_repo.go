package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"framestudio/internal/domain"
)

func normalizeAppointment(a *domain.Appointment) {
	a.AppointmentTime = utc(a.AppointmentTime)
	a.AppointmentEnd = utc(a.AppointmentEnd)
}

func (s *Store) CreateAppointment(ctx context.Context, a *domain.Appointment) error {
	normalizeAppointment(a)
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) SaveAppointment(ctx context.Context, a *domain.Appointment) error {
	normalizeAppointment(a)
	return s.db.WithContext(ctx).Save(a).Error
}

func (s *Store) GetAppointment(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	var a domain.Appointment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListActiveAppointmentsBetween returns non-cancelled appointments whose
// [appointment_time, appointment_end) overlaps [from, to).
func (s *Store) ListActiveAppointmentsBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := s.db.WithContext(ctx).
		Where("status <> ?", domain.AppointmentCancelled).
		Where("appointment_time < ? AND appointment_end > ?", utc(to), utc(from)).
		Order("appointment_time ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) ListAppointmentsStartingBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := s.db.WithContext(ctx).
		Where("appointment_time >= ? AND appointment_time < ?", utc(from), utc(to)).
		Order("appointment_time ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) AppendHistory(ctx context.Context, h *domain.AppointmentHistory) error {
	return s.db.WithContext(ctx).Create(h).Error
}

func (s *Store) ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]domain.AppointmentHistory, error) {
	var out []domain.AppointmentHistory
	err := s.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
