package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/roombook/internal/access"
	"github.com/diagnosis/roombook/internal/domain"
	"github.com/diagnosis/roombook/internal/repository"
	"github.com/diagnosis/roombook/pkg/config"
	"github.com/diagnosis/roombook/pkg/events"
	"github.com/diagnosis/roombook/pkg/logger"
)

type BookingService interface {
	Create(ctx context.Context, actor *domain.Account, req *domain.CreateBookingRequest) (*domain.Booking, error)
	Get(ctx context.Context, actor *domain.Account, id int64) (*domain.BookingView, error)
	// ListMine lists the actor's bookings, or every booking for elevated roles.
	ListMine(ctx context.Context, actor *domain.Account, limit, offset int) ([]domain.Booking, error)
	ListViews(ctx context.Context, actor *domain.Account, limit, offset int) ([]domain.BookingView, error)
	AuditLog(ctx context.Context, actor *domain.Account, limit, offset int) ([]domain.BookingView, error)
	Update(ctx context.Context, actor *domain.Account, id int64, patch domain.BookingPatch) (*domain.BookingUpdateResult, error)
	Delete(ctx context.Context, actor *domain.Account, id int64) (int64, error)
	RequestDeleteCode(ctx context.Context, actor *domain.Account, id int64) (*domain.IssuedOTP, error)
	VerifyDeleteCode(ctx context.Context, actor *domain.Account, id int64, code string) (*domain.OTPChallenge, error)
}

type bookingService struct {
	bookingRepo repository.BookingRepository
	otp         OTPService
	eventBus    events.Publisher
	config      config.OTPConfig
}

func NewBookingService(
	bookingRepo repository.BookingRepository,
	otp OTPService,
	eventBus events.Publisher,
	cfg config.OTPConfig,
) BookingService {
	return &bookingService{
		bookingRepo: bookingRepo,
		otp:         otp,
		eventBus:    eventBus,
		config:      cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, actor *domain.Account, req *domain.CreateBookingRequest) (*domain.Booking, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.Create(ctx, actor.ID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	event := events.BookingCreatedEvent{
		BookingID:  booking.ID,
		OwnerID:    booking.UserID,
		RoomType:   booking.RoomType,
		CheckIn:    booking.CheckIn,
		CheckOut:   booking.CheckOut,
		Guests:     booking.Guests,
		OccurredAt: booking.CreatedAt,
	}
	if err := s.eventBus.Publish(ctx, events.BookingCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking created event", "error", err, "booking_id", booking.ID)
	}

	return booking, nil
}

func (s *bookingService) Get(ctx context.Context, actor *domain.Account, id int64) (*domain.BookingView, error) {
	view, err := s.bookingRepo.GetView(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if view == nil {
		return nil, bookingNotFound(id)
	}

	decision, err := access.Authorize(access.ActorOf(actor), access.BookingRead, view.UserID)
	if err != nil {
		return nil, err
	}
	if decision != access.AllowFull {
		view.Owner = nil
	}
	return view, nil
}

func (s *bookingService) ListMine(ctx context.Context, actor *domain.Account, limit, offset int) ([]domain.Booking, error) {
	var (
		bookings []domain.Booking
		err      error
	)
	switch access.Rule(actor.Role, access.BookingList) {
	case access.AllowFull:
		bookings, err = s.bookingRepo.List(ctx, limit, offset)
	case access.AllowOwnOnly:
		bookings, err = s.bookingRepo.ListByOwner(ctx, actor.ID, limit, offset)
	default:
		return nil, fmt.Errorf("%w: cannot list bookings", domain.ErrPermissionDenied)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (s *bookingService) ListViews(ctx context.Context, actor *domain.Account, limit, offset int) ([]domain.BookingView, error) {
	if access.Rule(actor.Role, access.BookingAdminView) != access.AllowFull {
		return nil, fmt.Errorf("%w: admin privileges required", domain.ErrPermissionDenied)
	}
	views, err := s.bookingRepo.ListViews(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return views, nil
}

func (s *bookingService) AuditLog(ctx context.Context, actor *domain.Account, limit, offset int) ([]domain.BookingView, error) {
	if access.Rule(actor.Role, access.AuditView) != access.AllowFull {
		return nil, fmt.Errorf("%w: superadmin privileges required", domain.ErrPermissionDenied)
	}
	views, err := s.bookingRepo.ListAttributed(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit log: %w", err)
	}
	return views, nil
}

func (s *bookingService) Update(ctx context.Context, actor *domain.Account, id int64, patch domain.BookingPatch) (*domain.BookingUpdateResult, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if existing == nil {
		return nil, bookingNotFound(id)
	}

	decision, err := access.Authorize(access.ActorOf(actor), access.BookingUpdate, existing.UserID)
	if err != nil {
		return nil, err
	}

	var ignored []string
	if allowed := access.MutableFields(decision); allowed != nil {
		patch, ignored = patch.Restrict(allowed)
	}

	if patch.IsEmpty() {
		return &domain.BookingUpdateResult{Booking: existing, IgnoredFields: ignored}, nil
	}

	merged := patch.Apply(*existing)
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.bookingRepo.Update(ctx, id, patch, actor.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	if updated == nil {
		// Deleted between the read and the write.
		return nil, bookingNotFound(id)
	}

	event := events.BookingUpdatedEvent{
		BookingID:  updated.ID,
		OwnerID:    updated.UserID,
		UpdatedBy:  actor.Email,
		Changes:    patch.Fields(),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.eventBus.Publish(ctx, events.BookingUpdated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking updated event", "error", err, "booking_id", updated.ID)
	}

	return &domain.BookingUpdateResult{Booking: updated, IgnoredFields: ignored}, nil
}

func (s *bookingService) Delete(ctx context.Context, actor *domain.Account, id int64) (int64, error) {
	existing, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to get booking: %w", err)
	}
	if existing == nil {
		return 0, bookingNotFound(id)
	}

	decision, err := access.Authorize(access.ActorOf(actor), access.BookingDelete, existing.UserID)
	if err != nil {
		return 0, err
	}

	var gate *domain.OTPChallenge
	if s.config.RequireForBookingDelete && decision == access.AllowOwnOnly {
		gate, err = s.otp.Consumed(ctx, actor.ID, domain.ActionDeleteBooking, &id)
		if err != nil {
			return 0, err
		}
		if gate == nil {
			return 0, fmt.Errorf("%w: request and verify a deletion code for booking %d first", domain.ErrPermissionDenied, id)
		}
	}

	deleted, err := s.bookingRepo.Delete(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete booking: %w", err)
	}
	if !deleted {
		return 0, bookingNotFound(id)
	}
	// The gate challenge targets the booking and goes with it in the store;
	// discarding it explicitly covers stores without that cascade.
	if gate != nil {
		if err := s.otp.Discard(ctx, gate.ID); err != nil {
			logger.WarnContext(ctx, "Failed to discard booking deletion challenge", "error", err, "challenge_id", gate.ID)
		}
	}

	event := events.BookingDeletedEvent{
		BookingID:  id,
		OwnerID:    existing.UserID,
		DeletedBy:  actor.Email,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.eventBus.Publish(ctx, events.BookingDeleted, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking deleted event", "error", err, "booking_id", id)
	}

	return id, nil
}

func (s *bookingService) RequestDeleteCode(ctx context.Context, actor *domain.Account, id int64) (*domain.IssuedOTP, error) {
	if err := s.authorizeDelete(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.otp.Issue(ctx, actor, domain.ActionDeleteBooking, &id)
}

func (s *bookingService) VerifyDeleteCode(ctx context.Context, actor *domain.Account, id int64, code string) (*domain.OTPChallenge, error) {
	if err := s.authorizeDelete(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.otp.Verify(ctx, actor, code, domain.ActionDeleteBooking, &id)
}

func (s *bookingService) authorizeDelete(ctx context.Context, actor *domain.Account, id int64) error {
	existing, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get booking: %w", err)
	}
	if existing == nil {
		return bookingNotFound(id)
	}
	_, err = access.Authorize(access.ActorOf(actor), access.BookingDelete, existing.UserID)
	return err
}

func bookingNotFound(id int64) error {
	return fmt.Errorf("%w: booking %d", domain.ErrNotFound, id)
}
