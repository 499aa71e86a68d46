// Package nav is the route authorization layer: an explicit tree of route
// nodes, each optionally carrying a guard evaluated before descending.
// Guards run before any loader on the matched chain — a protected loader
// never executes against an absent session, and a denial is control flow
// (a redirect carrying the requested location), not an error.
package nav

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lt-jshipley/appcore/internal/core/domain"
	"github.com/lt-jshipley/appcore/internal/core/service"
)

// Params carries matched path parameters (":id" segments) into loaders.
type Params map[string]string

// Loader guarantees one slice of a view's data is cached before render.
// Loaders on a matched chain run in parallel; a loader needing another
// loader's output belongs in the same func.
type Loader func(ctx context.Context, p Params) error

// Guard decides whether navigation may descend into a subtree.
type Guard struct {
	// Allow is evaluated once per navigation attempt.
	Allow func() bool
	// RedirectTo is where a denied attempt is sent, e.g. "/login".
	RedirectTo string
}

// RequireAuth is the stock guard for protected subtrees.
func RequireAuth(sessions *service.SessionStore, loginPath string) *Guard {
	return &Guard{
		Allow:      func() bool { return sessions.State().IsAuthenticated },
		RedirectTo: loginPath,
	}
}

// Route is one node of the tree. Path is a single segment ("" for the
// root, ":id" for a parameter); Children nest beneath it.
type Route struct {
	Path     string
	Guard    *Guard
	Loaders  []Loader
	Children []*Route
}

// Redirect is the outcome of a denied navigation.
type Redirect struct {
	// To is the guard's redirect target.
	To string
	// From preserves the originally requested location so the caller can
	// return there after e.g. a successful login.
	From string
}

// Outcome reports where a navigation attempt ended up.
type Outcome struct {
	Allowed  bool
	Redirect *Redirect
	Params   Params
}

// Router walks navigation attempts through the tree.
type Router struct {
	roots []*Route
	log   zerolog.Logger
}

// NewRouter builds a Router over the given top-level routes.
func NewRouter(log zerolog.Logger, roots ...*Route) *Router {
	return &Router{roots: roots, log: log}
}

// Navigate resolves path against the tree, evaluates every guard on the
// matched chain, and — only when all of them allow — runs the chain's
// loaders in parallel. Returns domain.ErrNoRoute when nothing matches; a
// loader failure propagates as-is (it is a data fault, not a denial).
func (r *Router) Navigate(ctx context.Context, path string) (*Outcome, error) {
	chain, params := match(r.roots, splitPath(path))
	if chain == nil {
		return nil, domain.ErrNoRoute
	}

	// Phase one: authorization, strictly before any loader.
	for _, node := range chain {
		if node.Guard == nil || node.Guard.Allow() {
			continue
		}
		r.log.Debug().Str("path", path).Str("redirect", node.Guard.RedirectTo).Msg("navigation denied")
		return &Outcome{Redirect: &Redirect{To: node.Guard.RedirectTo, From: path}}, nil
	}

	// Phase two: data loading.
	g, gctx := errgroup.WithContext(ctx)
	for _, node := range chain {
		for _, load := range node.Loaders {
			load := load
			g.Go(func() error {
				return load(gctx, params)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Outcome{Allowed: true, Params: params}, nil
}

// match descends the tree segment by segment, collecting the node chain
// and any ":param" bindings.
func match(routes []*Route, segments []string) ([]*Route, Params) {
	if len(segments) == 0 {
		return nil, nil
	}
	for _, route := range routes {
		bound, ok := matchSegment(route.Path, segments[0])
		if !ok {
			continue
		}
		params := Params{}
		for k, v := range bound {
			params[k] = v
		}
		if len(segments) == 1 {
			return []*Route{route}, params
		}
		childChain, childParams := match(route.Children, segments[1:])
		if childChain == nil {
			continue
		}
		for k, v := range childParams {
			params[k] = v
		}
		return append([]*Route{route}, childChain...), params
	}
	return nil, nil
}

func matchSegment(pattern, segment string) (Params, bool) {
	if strings.HasPrefix(pattern, ":") {
		return Params{strings.TrimPrefix(pattern, ":"): segment}, true
	}
	if pattern == segment {
		return Params{}, true
	}
	return nil, false
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{""}
	}
	return strings.Split(trimmed, "/")
}
