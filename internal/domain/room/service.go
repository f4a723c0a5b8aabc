package room

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/apperr"
)

var (
	ErrNotFound        = apperr.NotFound("room")
	ErrBookingNotFound = apperr.NotFound("booking")
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("gateway", "rooms").Logger()}
}

func (s *Service) list(ctx context.Context, f Filter) []*Room {
	items, err := s.repo.List(ctx, f)
	if err != nil {
		s.logger.Error().Err(err).Str("status", string(f.Status)).Msg("failed to list rooms")
		return []*Room{}
	}
	if items == nil {
		items = []*Room{}
	}
	return items
}

func (s *Service) List(ctx context.Context) []*Room {
	return s.list(ctx, Filter{})
}

func (s *Service) ListAvailable(ctx context.Context) []*Room {
	return s.list(ctx, Filter{Status: StatusAvailable})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Room, error) {
	rm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to fetch room")
		return nil, err
	}
	return rm, nil
}

func validateRoom(rm *Room) error {
	rm.Number = strings.TrimSpace(rm.Number)
	if rm.Number == "" {
		return apperr.Required("room_number")
	}
	rm.RoomType = strings.TrimSpace(rm.RoomType)
	if rm.RoomType == "" {
		return apperr.Required("room_type")
	}
	if rm.DailyRate < 0 {
		return apperr.Validation("daily_rate must not be negative")
	}
	if rm.Capacity < 1 {
		rm.Capacity = 1
	}
	if rm.Status == "" {
		rm.Status = StatusAvailable
	}
	if !rm.Status.Valid() {
		return apperr.Validation("invalid status: %s", rm.Status)
	}
	if rm.Equipment == nil {
		rm.Equipment = []string{}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, rm *Room) (*Room, error) {
	if err := validateRoom(rm); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rm); err != nil {
		s.logger.Error().Err(err).Str("room_number", rm.Number).Msg("failed to create room")
		return nil, err
	}
	return rm, nil
}

func (s *Service) Update(ctx context.Context, rm *Room) (*Room, error) {
	if rm.ID == uuid.Nil {
		return nil, apperr.Required("id")
	}
	if err := validateRoom(rm); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, rm)
	if err != nil {
		s.logger.Error().Err(err).Str("id", rm.ID.String()).Msg("failed to update room")
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Room, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid status: %s", status)
	}
	rm, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to update room status")
		return nil, err
	}
	if rm == nil {
		return nil, ErrNotFound
	}
	return rm, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to delete room")
		return err
	}
	return nil
}

func (s *Service) listBookings(ctx context.Context, f BookingFilter) []*Booking {
	items, err := s.repo.ListBookings(ctx, f)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list bookings")
		return []*Booking{}
	}
	if items == nil {
		items = []*Booking{}
	}
	return items
}

func (s *Service) ListBookingsForPatient(ctx context.Context, patientID uuid.UUID) []*Booking {
	return s.listBookings(ctx, BookingFilter{PatientID: &patientID})
}

func (s *Service) ListBookings(ctx context.Context) []*Booking {
	return s.listBookings(ctx, BookingFilter{})
}

// CreateBooking reserves an available room. The total cost is the room's
// daily rate times the billable days.
func (s *Service) CreateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	if b.PatientID == uuid.Nil {
		return nil, apperr.Required("patient_id")
	}
	if b.RoomID == uuid.Nil {
		return nil, apperr.Required("room_id")
	}
	if b.CheckIn.IsZero() {
		return nil, apperr.Required("check_in_date")
	}
	if b.CheckOut.IsZero() {
		return nil, apperr.Required("check_out_date")
	}
	if !b.CheckOut.After(b.CheckIn) {
		return nil, apperr.Validation("check-out date must be after check-in date")
	}

	rm, err := s.Get(ctx, b.RoomID)
	if err != nil {
		return nil, err
	}
	if rm == nil {
		return nil, ErrNotFound
	}
	if rm.Status != StatusAvailable {
		return nil, apperr.Validation("room %s is not available", rm.Number)
	}

	b.TotalCost = math.Round(float64(Days(b.CheckIn, b.CheckOut))*rm.DailyRate*100) / 100
	if b.Status == "" {
		b.Status = BookingPending
	}
	if err := s.repo.CreateBooking(ctx, b); err != nil {
		s.logger.Error().Err(err).Str("room_id", b.RoomID.String()).Msg("failed to create booking")
		return nil, err
	}
	b.RoomNumber = rm.Number
	return b, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to fetch booking")
		return nil, err
	}
	return b, nil
}

func (s *Service) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status BookingStatus) (*Booking, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid status: %s", status)
	}
	b, err := s.repo.UpdateBookingStatus(ctx, id, status)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to update booking status")
		return nil, err
	}
	if b == nil {
		return nil, ErrBookingNotFound
	}
	return b, nil
}
