// Package router decides, for every page request, whether to render a page,
// redirect, or wait for the session to finish loading.
package router

import (
	"strings"

	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/session"
)

type Kind int

const (
	KindRender Kind = iota
	KindRedirect
	KindLoading
)

func (k Kind) String() string {
	switch k {
	case KindRedirect:
		return "redirect"
	case KindLoading:
		return "loading"
	default:
		return "render"
	}
}

type Page string

const (
	PageHome           Page = "home"
	PageAbout          Page = "about"
	PageServices       Page = "services"
	PageContact        Page = "contact"
	PageLogin          Page = "login"
	PageRegister       Page = "register"
	PageForgotPassword Page = "forgot-password"
	PageDashboard      Page = "dashboard"
)

const (
	PathHome      = "/"
	PathLogin     = "/login"
	PathDashboard = "/dashboard"
)

// Decision is the outcome of routing one request. Role is set only when the
// dashboard is rendered.
type Decision struct {
	Kind     Kind
	Page     Page
	Location string
	Role     profile.Role
}

func render(p Page) Decision { return Decision{Kind: KindRender, Page: p} }

func redirect(to string) Decision { return Decision{Kind: KindRedirect, Location: to} }

func (d Decision) IsRedirect() bool { return d.Kind == KindRedirect }

var publicPages = map[string]Page{
	"/":         PageHome,
	"/about":    PageAbout,
	"/services": PageServices,
	"/contact":  PageContact,
}

var authPages = map[string]Page{
	"/login":           PageLogin,
	"/register":        PageRegister,
	"/forgot-password": PageForgotPassword,
}

// Resolve routes path for the given session snapshot.
func Resolve(path string, snap session.Snapshot) Decision {
	path = normalize(path)

	if p, ok := publicPages[path]; ok {
		return render(p)
	}
	if snap.Loading {
		return Decision{Kind: KindLoading}
	}

	if p, ok := authPages[path]; ok {
		if snap.Authenticated() {
			return redirect(PathDashboard)
		}
		return render(p)
	}

	if path == PathDashboard {
		if !snap.Authenticated() {
			return redirect(PathLogin)
		}
		role := snap.User.Role()
		if !role.Valid() {
			return redirect(PathLogin)
		}
		return Decision{Kind: KindRender, Page: PageDashboard, Role: role}
	}

	return redirect(PathHome)
}

// normalize drops a trailing slash so "/about/" routes like "/about".
func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
