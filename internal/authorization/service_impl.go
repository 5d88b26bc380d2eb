package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an in-memory enforcer whose policy is the static role table.
// No adapter is attached, so the policy cannot be saved or changed at runtime.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, perm Permission) error {
	identity, ok := orgcontext.IdentityFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	allowed, err := s.Can(identity.Role, perm)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("permission denied",
			zap.String("user_id", identity.UserID.String()),
			zap.String("org_id", identity.OrgID.String()),
			zap.String("role", identity.Role),
			zap.String("permission", perm.String()),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) Can(role string, perm Permission) (bool, error) {
	object, action := perm.Split()
	if object == "" || action == "" {
		return false, ErrInvalidPermission
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false, nil
	}
	return s.enforcer.Enforce(subject(role), object, action)
}

func subject(role string) string {
	return "role:" + role
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for _, role := range Roles() {
		for _, perm := range rolePermissions[role] {
			object, action := perm.Split()
			if _, err := enforcer.AddPolicy(subject(role), object, action); err != nil {
				return err
			}
		}
	}
	return nil
}
