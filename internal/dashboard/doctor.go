package dashboard

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/healthportal/portal/internal/domain/appointment"
	"github.com/healthportal/portal/internal/domain/medicalrecord"
	"github.com/healthportal/portal/internal/domain/message"
	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/session"
	"github.com/healthportal/portal/internal/shell"
)

type DoctorStats struct {
	TodayAppointments   int `json:"todayAppointments"`
	PendingAppointments int `json:"pendingAppointments"`
	TotalPatients       int `json:"totalPatients"`
	CriticalRecords     int `json:"criticalRecords"`
	UnreadMessages      int `json:"unreadMessages"`
}

type DoctorOverview struct {
	Stats             DoctorStats                `json:"stats"`
	TodayAppointments []*appointment.Appointment `json:"today_appointments"`
	CriticalRecords   []*medicalrecord.Record    `json:"critical_records"`
}

type Doctor struct {
	base

	appointments []*appointment.Appointment
	records      []*medicalrecord.Record
	patients     []*profile.Profile
}

func NewDoctor(user *session.User, deps Deps) *Doctor {
	d := &Doctor{}
	d.init(user, deps, profile.RoleDoctor)
	return d
}

func (d *Doctor) Role() profile.Role { return profile.RoleDoctor }

func (d *Doctor) Mount(ctx context.Context) error { return d.mount(ctx, d.load) }

func (d *Doctor) Reload(ctx context.Context) error { return d.reload(ctx, d.load) }

func (d *Doctor) load(ctx context.Context) error {
	me := d.me()
	var (
		appointments []*appointment.Appointment
		records      []*medicalrecord.Record
		messages     []*message.Message
		patients     []*profile.Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { appointments = d.deps.Appointments.ListForDoctor(gctx, me); return nil })
	g.Go(func() error { records = d.deps.Records.ListForDoctor(gctx, me); return nil })
	g.Go(func() error { messages = d.deps.Messages.ListForUser(gctx, me); return nil })
	g.Go(func() error { patients = d.deps.Profiles.ListByRole(gctx, profile.RolePatient); return nil })
	if err := g.Wait(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.appointments = appointments
	d.records = records
	d.messages = messages
	d.patients = patients
	return nil
}

func (d *Doctor) Stats() DoctorStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats()
}

func (d *Doctor) stats() DoctorStats {
	now := d.now()
	s := DoctorStats{UnreadMessages: d.unreadMessages()}
	for _, a := range d.appointments {
		if a.OnDay(now) {
			s.TodayAppointments++
		}
		if a.Status == appointment.StatusPending {
			s.PendingAppointments++
		}
	}
	s.TotalPatients = len(d.myPatientIDs())
	for _, r := range d.records {
		if r.IsCritical {
			s.CriticalRecords++
		}
	}
	return s
}

// myPatientIDs is the set of patients the doctor has an appointment or a
// record with.
func (d *Doctor) myPatientIDs() map[uuid.UUID]bool {
	ids := make(map[uuid.UUID]bool, len(d.appointments))
	for _, a := range d.appointments {
		ids[a.PatientID] = true
	}
	for _, r := range d.records {
		ids[r.PatientID] = true
	}
	return ids
}

func (d *Doctor) View(section shell.Section, q Query) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkMounted(); err != nil {
		return nil, err
	}

	switch section {
	case shell.SectionDashboard:
		now := d.now()
		today := make([]*appointment.Appointment, 0)
		for _, a := range d.appointments {
			if a.OnDay(now) {
				today = append(today, a)
			}
		}
		critical := make([]*medicalrecord.Record, 0)
		for _, r := range d.records {
			if r.IsCritical {
				critical = append(critical, r)
			}
		}
		return DoctorOverview{Stats: d.stats(), TodayAppointments: today, CriticalRecords: head(critical, 5)}, nil
	case shell.SectionAppointments:
		return appointmentMatcher.apply(d.appointments, q), nil
	case shell.SectionPatients:
		mine := d.myPatientIDs()
		patients := make([]*profile.Profile, 0, len(mine))
		for _, p := range d.patients {
			if mine[p.ID] {
				patients = append(patients, p)
			}
		}
		return profileMatcher.apply(patients, q), nil
	case shell.SectionMedicalRecords:
		return recordMatcher.apply(d.records, q), nil
	}
	if v, ok := d.viewShared(section, q); ok {
		return v, nil
	}
	return nil, ErrUnknownSection
}

func (d *Doctor) Apply(ctx context.Context, a Action) Result {
	switch a.Name {
	case "update-appointment-status":
		return d.updateAppointmentStatus(ctx, a)
	case "create-medical-record":
		return d.createRecord(ctx, a)
	}
	if r, ok := d.applyShared(ctx, a); ok {
		return r
	}
	return Fail(apperr.Validation("unknown action %q", a.Name))
}

type statusInput struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (d *Doctor) updateAppointmentStatus(ctx context.Context, a Action) Result {
	var in statusInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	status := appointment.Status(in.Status)
	if !status.Valid() {
		return Fail(apperr.Validation("invalid status: %s", in.Status))
	}
	d.mu.RLock()
	i := indexOf(d.appointments, func(x *appointment.Appointment) bool { return x.ID == in.ID })
	d.mu.RUnlock()
	if i < 0 {
		return Fail(appointment.ErrNotFound)
	}

	updated, err := d.deps.Appointments.UpdateStatus(ctx, in.ID, status)
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	replaceByID(d.appointments, updated, func(x *appointment.Appointment) bool { return x.ID == updated.ID })
	d.mu.Unlock()
	return Ok(updated)
}

type recordInput struct {
	PatientID   uuid.UUID `json:"patient_id"`
	RecordType  string    `json:"record_type"`
	RecordDate  string    `json:"record_date"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	IsCritical  bool      `json:"is_critical"`
}

func (d *Doctor) createRecord(ctx context.Context, a Action) Result {
	var in recordInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	rec := &medicalrecord.Record{
		PatientID:   in.PatientID,
		DoctorID:    d.me(),
		RecordType:  in.RecordType,
		Title:       in.Title,
		Description: in.Description,
		IsCritical:  in.IsCritical,
	}
	if in.RecordDate != "" {
		date, err := parseDate("record_date", in.RecordDate)
		if err != nil {
			return Fail(err)
		}
		rec.RecordDate = date
	}

	created, err := d.deps.Records.Create(ctx, rec)
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	d.records = append([]*medicalrecord.Record{created}, d.records...)
	d.mu.Unlock()
	return Ok(created)
}
