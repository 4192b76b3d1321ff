package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/types"
)

const (
	owner    = "vault-owner"
	agent    = "vault-agent"
	stranger = "somebody-else"
)

func newGate(t *testing.T) *Gate {
	t.Helper()
	g, err := New(owner, agent)
	require.NoError(t, err)
	return g
}

func TestNewRequiresOwner(t *testing.T) {
	_, err := New("", agent)
	require.Error(t, err)

	// An empty agent is fine: the vault simply has nobody who may deploy
	// capital until the owner assigns one.
	g, err := New(owner, "")
	require.NoError(t, err)
	assert.Equal(t, RolePublic, g.RoleOf(agent))
}

func TestRoleResolution(t *testing.T) {
	g := newGate(t)

	assert.Equal(t, RoleOwner, g.RoleOf(owner))
	assert.Equal(t, RoleAgent, g.RoleOf(agent))
	assert.Equal(t, RolePublic, g.RoleOf(stranger))
	assert.Equal(t, RolePublic, g.RoleOf(""))
}

func TestAuthorizationMatrix(t *testing.T) {
	g := newGate(t)

	cases := []struct {
		name    string
		caller  string
		class   OpClass
		wantErr error
	}{
		{"public op by stranger", stranger, Public, nil},
		{"public op by owner", owner, Public, nil},
		{"agent op by agent", agent, AgentOrOwner, nil},
		{"agent op by owner", owner, AgentOrOwner, nil},
		{"agent op by stranger", stranger, AgentOrOwner, types.ErrUnauthorized},
		{"owner op by owner", owner, OwnerOnly, nil},
		{"owner op by agent", agent, OwnerOnly, types.ErrUnauthorized},
		{"owner op by stranger", stranger, OwnerOnly, types.ErrUnauthorized},
		{"drain outside emergency", owner, EmergencyOnly, types.ErrEmergencyOnly},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.Authorize(tc.caller, tc.class)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, types.ErrAuthorizationFailure)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestEmergencyModeBlocksNormalOps(t *testing.T) {
	g := newGate(t)
	g.SetEmergencyMode(true)

	err := g.Authorize(stranger, Public)
	require.ErrorIs(t, err, types.ErrEmergencyActive)

	err = g.Authorize(agent, AgentOrOwner)
	require.ErrorIs(t, err, types.ErrEmergencyActive)

	// Policy changes stay open to the owner so the breaker can be lifted.
	require.NoError(t, g.Authorize(owner, OwnerOnly))

	// The drain path opens up, for the owner only.
	require.NoError(t, g.Authorize(owner, EmergencyOnly))
	err = g.Authorize(agent, EmergencyOnly)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	g.SetEmergencyMode(false)
	require.NoError(t, g.Authorize(stranger, Public))
	err = g.Authorize(owner, EmergencyOnly)
	require.ErrorIs(t, err, types.ErrEmergencyOnly)
}

func TestAgentReassignment(t *testing.T) {
	g := newGate(t)

	g.SetAgent(stranger)

	// Effective immediately: the old agent is locked out, the new one in.
	err := g.Authorize(agent, AgentOrOwner)
	require.ErrorIs(t, err, types.ErrUnauthorized)
	require.NoError(t, g.Authorize(stranger, AgentOrOwner))
}
