// Package roles classifies a sender identity into one of the three intake
// roles. The mapping is static configuration, never computed.
package roles

import (
	"strings"

	"github.com/clubops/pobot/internal/config"
)

type Kind int

const (
	// KindAdmin may raise a PO for any department.
	KindAdmin Kind = iota
	// KindDeptBound is pinned to a single department and skips selection.
	KindDeptBound
	// KindDefault covers unrecognized senders via the fallback department.
	KindDefault
)

func (k Kind) String() string {
	switch k {
	case KindAdmin:
		return "admin"
	case KindDeptBound:
		return "dept-bound"
	default:
		return "default"
	}
}

type Role struct {
	Kind Kind
	// Department is set for DeptBound and Default roles.
	Department string
}

type Resolver struct {
	admins      map[string]struct{}
	deptBound   map[string]string
	defaultDept string
}

func NewResolver(cfg config.IntakeConfig) *Resolver {
	r := &Resolver{
		admins:      make(map[string]struct{}, len(cfg.Admins)),
		deptBound:   make(map[string]string, len(cfg.DeptBound)),
		defaultDept: cfg.DefaultDepartment,
	}
	for _, id := range cfg.Admins {
		r.admins[normalize(id)] = struct{}{}
	}
	for id, dept := range cfg.DeptBound {
		r.deptBound[normalize(id)] = dept
	}
	if r.defaultDept == "" {
		r.defaultDept = config.DefaultDepartment
	}
	return r
}

func (r *Resolver) Resolve(identity string) Role {
	id := normalize(identity)
	if _, ok := r.admins[id]; ok {
		return Role{Kind: KindAdmin}
	}
	if dept, ok := r.deptBound[id]; ok {
		return Role{Kind: KindDeptBound, Department: dept}
	}
	return Role{Kind: KindDefault, Department: r.defaultDept}
}

func normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
