/*

The access control gate classifies every operation by caller identity and
answers the "who may call what, and is the system paused" question exactly
once per operation, before any business logic runs.

Emergency mode is a manual circuit breaker: it is toggled only by the owner
and has no time- or condition-based trigger. While it is on, every normal
mutating operation is refused and only the emergency drain (owner-only) is
permitted.

*/

package access

import (
	"fmt"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/types"
)

// Role is the caller category resolved from an address.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAgent  Role = "agent"
	RolePublic Role = "public"
)

// OpClass is the authorization class of an operation.
type OpClass int

const (
	// Public operations are open to any caller outside emergency mode.
	Public OpClass = iota
	// AgentOrOwner operations move pooled capital; blocked in emergency mode.
	AgentOrOwner
	// OwnerOnly operations change policy or identities; allowed in any mode.
	OwnerOnly
	// EmergencyOnly is the drain path: owner-only and requires emergency mode.
	EmergencyOnly
)

// Gate holds the owner/agent identities and the emergency flag. The engine
// mutates it only inside its write lock.
type Gate struct {
	owner         string
	agent         string
	emergencyMode bool
}

// New returns a gate with the given identities and emergency mode off.
func New(owner, agent string) (*Gate, error) {
	if owner == "" {
		return nil, fmt.Errorf("gate: owner address cannot be empty")
	}
	return &Gate{owner: owner, agent: agent}, nil
}

// RoleOf resolves the caller category for an address.
func (g *Gate) RoleOf(caller string) Role {
	switch caller {
	case g.owner:
		return RoleOwner
	case g.agent:
		if g.agent != "" {
			return RoleAgent
		}
	}
	return RolePublic
}

// Authorize returns nil when caller may invoke an operation of the given
// class, or a typed authorization failure otherwise. It never mutates state.
func (g *Gate) Authorize(caller string, class OpClass) error {
	role := g.RoleOf(caller)

	switch class {
	case Public:
		if g.emergencyMode {
			return types.AuthorizationFailure(types.ErrEmergencyActive)
		}
		return nil
	case AgentOrOwner:
		if role != RoleAgent && role != RoleOwner {
			return types.AuthorizationFailure(fmt.Errorf("%w: %s is not the agent or owner", types.ErrUnauthorized, caller))
		}
		if g.emergencyMode {
			return types.AuthorizationFailure(types.ErrEmergencyActive)
		}
		return nil
	case OwnerOnly:
		if role != RoleOwner {
			return types.AuthorizationFailure(fmt.Errorf("%w: %s is not the owner", types.ErrUnauthorized, caller))
		}
		return nil
	case EmergencyOnly:
		if role != RoleOwner {
			return types.AuthorizationFailure(fmt.Errorf("%w: %s is not the owner", types.ErrUnauthorized, caller))
		}
		if !g.emergencyMode {
			return types.AuthorizationFailure(types.ErrEmergencyOnly)
		}
		return nil
	}
	return types.AuthorizationFailure(fmt.Errorf("%w: unknown operation class %d", types.ErrUnauthorized, class))
}

// Owner returns the owner address.
func (g *Gate) Owner() string {
	return g.owner
}

// Agent returns the current agent address.
func (g *Gate) Agent() string {
	return g.agent
}

// SetAgent reassigns the agent identity, effective immediately for
// subsequent calls. The engine authorizes the caller first.
func (g *Gate) SetAgent(agent string) {
	g.agent = agent
}

// EmergencyMode reports whether the circuit breaker is on.
func (g *Gate) EmergencyMode() bool {
	return g.emergencyMode
}

// SetEmergencyMode toggles the circuit breaker.
func (g *Gate) SetEmergencyMode(on bool) {
	g.emergencyMode = on
}
