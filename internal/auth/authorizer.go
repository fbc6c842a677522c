package auth

import (
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized is returned when a caller attempts a privileged operation
// without being on the allow-list.
var ErrUnauthorized = errors.New("unauthorized")

// Authorizer tracks the administrative identity and the set of identities
// allowed to perform privileged mutations: currency minting and post-battle
// stat writes.
type Authorizer struct {
	mu             sync.RWMutex
	admin          string
	allowed        map[string]struct{}
	adminTokenHash []byte
	logger         *zap.Logger
}

// NewAuthorizer creates an authorizer seeded with the administrative
// identity. The admin is always on the allow-list.
func NewAuthorizer(admin, adminTokenHash string, logger *zap.Logger) *Authorizer {
	return &Authorizer{
		admin:          admin,
		allowed:        map[string]struct{}{admin: {}},
		adminTokenHash: []byte(adminTokenHash),
		logger:         logger,
	}
}

// Admin returns the administrative identity.
func (a *Authorizer) Admin() string {
	return a.admin
}

// Grant adds an identity to the allow-list. Only the admin may grow the
// list. Granting an already-allowed identity is a no-op.
func (a *Authorizer) Grant(caller, identity string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if caller != a.admin {
		return ErrUnauthorized
	}
	if _, ok := a.allowed[identity]; ok {
		return nil
	}
	a.allowed[identity] = struct{}{}
	a.logger.Info("privileged identity granted", zap.String("identity", identity))
	return nil
}

// Allowed reports whether an identity may perform privileged mutations.
func (a *Authorizer) Allowed(identity string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.allowed[identity]
	return ok
}

// CheckAdminToken verifies a bearer token presented on an administrative
// endpoint against the configured bcrypt hash. A missing hash disables
// admin HTTP access entirely.
func (a *Authorizer) CheckAdminToken(token string) error {
	if len(a.adminTokenHash) == 0 {
		return ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(a.adminTokenHash, []byte(token)); err != nil {
		return ErrUnauthorized
	}
	return nil
}
