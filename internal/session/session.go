// Package session keeps the portal's signed-in role and admin impersonation
// state in the persisted store.
//
// The stored role snapshots are the portal's only notion of identity: the
// keys "admin", "doctor" and "patient" hold the JSON of the signed-in entity
// and "user" holds whichever of them is active.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"healthnexus-portal/internal/store"
)

const (
	KeyUser                = "user"
	KeyPatient             = "patient"
	KeyAdmin               = "admin"
	KeyDoctor              = "doctor"
	KeyToken               = "token"
	KeyImpersonatedByAdmin = "impersonatedByAdmin"
	KeyImpersonateRole     = "impersonateRole"
	KeyImpersonateBy       = "impersonateBy"

	// ImpersonationToken marks a session opened by an admin on behalf of
	// another role.
	ImpersonationToken = "admin-impersonation"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) key() string { return string(r) }

// Valid reports whether r is one of the portal roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleDoctor || r == RolePatient
}

var (
	ErrNoAdminSession = errors.New("impersonation requires an admin session")
	ErrInvalidRole    = errors.New("invalid role")
)

// Entity is the snapshot stored for a signed-in admin, doctor or patient.
type Entity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      Role   `json:"role"`
	Specialty string `json:"specialty,omitempty"`
	// Token is the API bearer token issued when this entity signed in.
	Token string `json:"token,omitempty"`
}

// ImpersonationContext is the capability marker stored next to the
// impersonated entity's snapshot.
type ImpersonationContext struct {
	ImpersonatedByAdmin bool
	Role                Role
	By                  string
	Token               string
}

type Session struct {
	kv  store.Store
	log *logrus.Entry
}

func New(kv store.Store, logger *logrus.Logger) *Session {
	return &Session{kv: kv, log: logger.WithField("component", "session")}
}

// Login stores the entity under its role key and marks it as the active user.
func (s *Session) Login(ctx context.Context, e Entity, token string) error {
	e.Token = token
	if !e.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, e.Role)
	}
	if err := store.SetJSON(ctx, s.kv, e.Role.key(), e); err != nil {
		return fmt.Errorf("store %s session: %w", e.Role, err)
	}
	if err := store.SetJSON(ctx, s.kv, KeyUser, e); err != nil {
		return fmt.Errorf("store user session: %w", err)
	}
	if err := s.kv.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	s.log.WithFields(logrus.Fields{"role": e.Role, "email": e.Email}).Info("signed in")
	return nil
}

// Logout removes every session key.
func (s *Session) Logout(ctx context.Context) error {
	for _, key := range []string{KeyUser, KeyAdmin, KeyDoctor, KeyPatient, KeyToken,
		KeyImpersonatedByAdmin, KeyImpersonateRole, KeyImpersonateBy} {
		if err := s.kv.Remove(ctx, key); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}

// Current returns the active entity. While an admin impersonates, the
// impersonated entity is active.
func (s *Session) Current(ctx context.Context) (Entity, bool) {
	var e Entity
	if !store.GetJSON(ctx, s.kv, KeyUser, &e) || !e.Role.Valid() {
		return Entity{}, false
	}
	return e, true
}

// Entity returns the snapshot stored for role.
func (s *Session) Entity(ctx context.Context, role Role) (Entity, bool) {
	var e Entity
	if !store.GetJSON(ctx, s.kv, role.key(), &e) {
		return Entity{}, false
	}
	return e, true
}

// BearerToken returns the token to present to the API. While an admin
// impersonates, the "token" key holds the impersonation marker; the token
// issued for the impersonated entity is used if there is one, the admin's
// own token otherwise.
func (s *Session) BearerToken(ctx context.Context) string {
	token := store.GetString(ctx, s.kv, KeyToken)
	if token != ImpersonationToken {
		return token
	}
	if role := Role(store.GetString(ctx, s.kv, KeyImpersonateRole)); role.Valid() {
		if target, ok := s.Entity(ctx, role); ok && target.Token != "" {
			return target.Token
		}
	}
	admin, ok := s.Entity(ctx, RoleAdmin)
	if !ok {
		return ""
	}
	return admin.Token
}

// Impersonation reads the stored impersonation markers as they are, without
// checking them. Use Reconcile to validate.
func (s *Session) Impersonation(ctx context.Context) ImpersonationContext {
	return ImpersonationContext{
		ImpersonatedByAdmin: store.GetString(ctx, s.kv, KeyImpersonatedByAdmin) == "true",
		Role:                Role(store.GetString(ctx, s.kv, KeyImpersonateRole)),
		By:                  store.GetString(ctx, s.kv, KeyImpersonateBy),
		Token:               store.GetString(ctx, s.kv, KeyToken),
	}
}

// StartImpersonation lets the signed-in admin act as target. The admin's own
// snapshot stays under "admin"; the target's goes under its role key and
// becomes the active user.
func (s *Session) StartImpersonation(ctx context.Context, target Entity) error {
	var admin Entity
	if !store.GetJSON(ctx, s.kv, KeyAdmin, &admin) {
		return ErrNoAdminSession
	}
	if target.Role != RoleDoctor && target.Role != RolePatient {
		return fmt.Errorf("%w: cannot impersonate %q", ErrInvalidRole, target.Role)
	}

	if err := store.SetJSON(ctx, s.kv, target.Role.key(), target); err != nil {
		return err
	}
	if err := store.SetJSON(ctx, s.kv, KeyUser, target); err != nil {
		return err
	}
	writes := [][2]string{
		{KeyToken, ImpersonationToken},
		{KeyImpersonatedByAdmin, "true"},
		{KeyImpersonateRole, string(target.Role)},
		{KeyImpersonateBy, admin.Email},
	}
	for _, w := range writes {
		if err := s.kv.Set(ctx, w[0], w[1]); err != nil {
			return fmt.Errorf("store %s: %w", w[0], err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"admin":  admin.Email,
		"role":   target.Role,
		"target": target.ID,
	}).Info("impersonation started")
	return nil
}

// StopImpersonation drops the impersonated snapshot and returns the session
// to the admin.
func (s *Session) StopImpersonation(ctx context.Context) error {
	imp := s.Impersonation(ctx)
	if imp.Role == RoleDoctor || imp.Role == RolePatient {
		if err := s.kv.Remove(ctx, imp.Role.key()); err != nil {
			return err
		}
	}
	if err := s.clearImpersonation(ctx); err != nil {
		return err
	}

	var admin Entity
	if store.GetJSON(ctx, s.kv, KeyAdmin, &admin) {
		if err := store.SetJSON(ctx, s.kv, KeyUser, admin); err != nil {
			return err
		}
		if err := s.kv.Set(ctx, KeyToken, admin.Token); err != nil {
			return err
		}
	}
	return nil
}

// Reconcile validates the stored impersonation markers. A session that
// claims impersonation without the impersonation token or without an admin
// snapshot has its three marker keys cleared. It reports whether a valid
// impersonation is in effect.
func (s *Session) Reconcile(ctx context.Context) (bool, error) {
	imp := s.Impersonation(ctx)
	if !imp.ImpersonatedByAdmin {
		return false, nil
	}

	if imp.Token == ImpersonationToken && store.Has(ctx, s.kv, KeyAdmin) {
		return true, nil
	}

	s.log.WithFields(logrus.Fields{
		"role":     imp.Role,
		"hasAdmin": store.Has(ctx, s.kv, KeyAdmin),
	}).Warn("clearing inconsistent impersonation state")
	if err := s.clearImpersonation(ctx); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Session) clearImpersonation(ctx context.Context) error {
	for _, key := range []string{KeyImpersonatedByAdmin, KeyImpersonateRole, KeyImpersonateBy} {
		if err := s.kv.Remove(ctx, key); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}
