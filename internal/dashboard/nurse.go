package dashboard

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/healthportal/portal/internal/domain/message"
	"github.com/healthportal/portal/internal/domain/nurserequest"
	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/platform/apperr"
	"github.com/healthportal/portal/internal/session"
	"github.com/healthportal/portal/internal/shell"
)

type NurseStats struct {
	OpenRequests      int `json:"openRequests"`
	MyActiveRequests  int `json:"myActiveRequests"`
	CompletedRequests int `json:"completedRequests"`
	UnreadMessages    int `json:"unreadMessages"`
}

type NurseOverview struct {
	Stats      NurseStats              `json:"stats"`
	Active     []*nurserequest.Request `json:"active_requests"`
	LatestOpen []*nurserequest.Request `json:"latest_open_requests"`
}

// RequestBoard is the view model of the nurse's requests section.
type RequestBoard struct {
	Open []*nurserequest.Request `json:"open"`
	Mine []*nurserequest.Request `json:"mine"`
}

type Nurse struct {
	base

	open     []*nurserequest.Request
	mine     []*nurserequest.Request
	patients []*profile.Profile
}

func NewNurse(user *session.User, deps Deps) *Nurse {
	d := &Nurse{}
	d.init(user, deps, profile.RoleNurse)
	return d
}

func (d *Nurse) Role() profile.Role { return profile.RoleNurse }

func (d *Nurse) Mount(ctx context.Context) error { return d.mount(ctx, d.load) }

func (d *Nurse) Reload(ctx context.Context) error { return d.reload(ctx, d.load) }

func (d *Nurse) load(ctx context.Context) error {
	me := d.me()
	var (
		open     []*nurserequest.Request
		mine     []*nurserequest.Request
		messages []*message.Message
		patients []*profile.Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { open = d.deps.NurseRequests.ListOpen(gctx); return nil })
	g.Go(func() error { mine = d.deps.NurseRequests.ListForNurse(gctx, me); return nil })
	g.Go(func() error { messages = d.deps.Messages.ListForUser(gctx, me); return nil })
	g.Go(func() error { patients = d.deps.Profiles.ListByRole(gctx, profile.RolePatient); return nil })
	if err := g.Wait(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = open
	d.mine = mine
	d.messages = messages
	d.patients = patients
	return nil
}

func (d *Nurse) Stats() NurseStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats()
}

func (d *Nurse) stats() NurseStats {
	s := NurseStats{OpenRequests: len(d.open), UnreadMessages: d.unreadMessages()}
	for _, r := range d.mine {
		switch {
		case r.Status.Active():
			s.MyActiveRequests++
		case r.Status == nurserequest.StatusCompleted:
			s.CompletedRequests++
		}
	}
	return s
}

func (d *Nurse) View(section shell.Section, q Query) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkMounted(); err != nil {
		return nil, err
	}

	switch section {
	case shell.SectionDashboard:
		active := make([]*nurserequest.Request, 0)
		for _, r := range d.mine {
			if r.Status.Active() {
				active = append(active, r)
			}
		}
		return NurseOverview{Stats: d.stats(), Active: active, LatestOpen: head(d.open, 5)}, nil
	case shell.SectionRequests:
		return RequestBoard{
			Open: nurseRequestMatcher.apply(d.open, q),
			Mine: nurseRequestMatcher.apply(d.mine, q),
		}, nil
	case shell.SectionPatients:
		served := make(map[uuid.UUID]bool, len(d.mine))
		for _, r := range d.mine {
			served[r.PatientID] = true
		}
		patients := make([]*profile.Profile, 0, len(served))
		for _, p := range d.patients {
			if served[p.ID] {
				patients = append(patients, p)
			}
		}
		return profileMatcher.apply(patients, q), nil
	}
	if v, ok := d.viewShared(section, q); ok {
		return v, nil
	}
	return nil, ErrUnknownSection
}

func (d *Nurse) Apply(ctx context.Context, a Action) Result {
	switch a.Name {
	case "accept-request":
		return d.accept(ctx, a)
	case "start-request":
		return d.advance(ctx, a, nurserequest.StatusInProgress)
	case "complete-request":
		return d.advance(ctx, a, nurserequest.StatusCompleted)
	}
	if r, ok := d.applyShared(ctx, a); ok {
		return r
	}
	return Fail(apperr.Validation("unknown action %q", a.Name))
}

func sameRequest(id uuid.UUID) func(*nurserequest.Request) bool {
	return func(r *nurserequest.Request) bool { return r.ID == id }
}

func (d *Nurse) accept(ctx context.Context, a Action) Result {
	var in idInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	accepted, err := d.deps.NurseRequests.Accept(ctx, in.ID, d.me())
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	d.open = removeAt(d.open, sameRequest(in.ID))
	d.mine = append([]*nurserequest.Request{accepted}, d.mine...)
	d.mu.Unlock()
	return Ok(accepted)
}

// advance moves one of the nurse's own requests to status.
func (d *Nurse) advance(ctx context.Context, a Action, status nurserequest.Status) Result {
	var in idInput
	if err := a.decode(&in); err != nil {
		return Fail(err)
	}
	d.mu.RLock()
	i := indexOf(d.mine, sameRequest(in.ID))
	var current nurserequest.Status
	if i >= 0 {
		current = d.mine[i].Status
	}
	d.mu.RUnlock()
	if i < 0 {
		return Fail(nurserequest.ErrNotFound)
	}
	if !current.CanMoveTo(status) {
		return Fail(apperr.Validation("cannot move request from %s to %s", current, status))
	}

	updated, err := d.deps.NurseRequests.UpdateStatus(ctx, in.ID, string(status))
	if err != nil {
		return Fail(err)
	}
	d.mu.Lock()
	replaceByID(d.mine, updated, sameRequest(updated.ID))
	d.mu.Unlock()
	return Ok(updated)
}
