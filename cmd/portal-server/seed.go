package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/domain/room"
	"github.com/healthportal/portal/internal/platform/backend"
)

type demoAccount struct {
	Email          string
	Password       string
	FullName       string
	Role           profile.Role
	Specialization string
	Department     string
}

// demoAccounts are the sign-ins advertised on the login page.
var demoAccounts = []demoAccount{
	{Email: "admin@healthcareportal.com", Password: "admin123", FullName: "Portal Administrator", Role: profile.RoleAdmin},
	{Email: "doctor@healthcareportal.com", Password: "doctor123", FullName: "Dr. Sarah Mitchell", Role: profile.RoleDoctor, Specialization: "Cardiology"},
	{Email: "nurse@healthcareportal.com", Password: "nurse123", FullName: "James Carter", Role: profile.RoleNurse, Department: "General Ward"},
	{Email: "patient@healthcareportal.com", Password: "patient123", FullName: "Emily Johnson", Role: profile.RolePatient},
}

var sampleRooms = []room.Room{
	{Number: "101", RoomType: "general", Floor: 1, Capacity: 2, DailyRate: 150, Equipment: []string{"bed", "oxygen"}},
	{Number: "102", RoomType: "general", Floor: 1, Capacity: 2, DailyRate: 150, Equipment: []string{"bed"}},
	{Number: "201", RoomType: "private", Floor: 2, Capacity: 1, DailyRate: 300, Equipment: []string{"bed", "tv", "oxygen"}},
	{Number: "301", RoomType: "icu", Floor: 3, Capacity: 1, DailyRate: 900, Equipment: []string{"ventilator", "monitor", "defibrillator"}},
}

type profileCreator interface {
	Create(ctx context.Context, p *profile.Profile) error
}

type roomStore interface {
	List(ctx context.Context) []*room.Room
	Create(ctx context.Context, rm *room.Room) (*room.Room, error)
}

type seedReport struct {
	Accounts int
	Rooms    int
	Skipped  int
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// seed creates the demo accounts and sample rooms. Accounts whose email is
// taken and rooms whose number exists are left alone, so it can run twice.
func seed(ctx context.Context, provider backend.Provider, profiles profileCreator, rooms roomStore, logger zerolog.Logger) (seedReport, error) {
	var report seedReport

	for _, acct := range demoAccounts {
		identity, _, err := provider.SignUp(ctx, acct.Email, acct.Password, map[string]interface{}{
			"full_name": acct.FullName,
			"role":      string(acct.Role),
		})
		if errors.Is(err, backend.ErrEmailTaken) {
			logger.Debug().Str("email", acct.Email).Msg("demo account exists")
			report.Skipped++
			continue
		}
		if err != nil {
			return report, fmt.Errorf("create %s: %w", acct.Email, err)
		}
		err = profiles.Create(ctx, &profile.Profile{
			ID:             identity.ID,
			Email:          acct.Email,
			FullName:       acct.FullName,
			Role:           acct.Role,
			Specialization: optional(acct.Specialization),
			Department:     optional(acct.Department),
		})
		if err != nil {
			return report, fmt.Errorf("create profile for %s: %w", acct.Email, err)
		}
		logger.Info().Str("email", acct.Email).Str("role", string(acct.Role)).Msg("demo account created")
		report.Accounts++
	}

	existing := map[string]bool{}
	for _, rm := range rooms.List(ctx) {
		existing[rm.Number] = true
	}
	for _, sample := range sampleRooms {
		if existing[sample.Number] {
			report.Skipped++
			continue
		}
		rm := sample
		rm.Status = room.StatusAvailable
		rm.Equipment = append([]string(nil), sample.Equipment...)
		if _, err := rooms.Create(ctx, &rm); err != nil {
			return report, fmt.Errorf("create room %s: %w", sample.Number, err)
		}
		report.Rooms++
	}
	return report, nil
}
