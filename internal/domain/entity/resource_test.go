package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResourceRef(t *testing.T) {
	ref, err := ParseResourceRef("internship", " R1 ")
	require.NoError(t, err)
	assert.Equal(t, InternshipRef("R1"), ref)
	assert.Equal(t, "internship/R1", ref.String())

	ref, err = ParseResourceRef("resume", "student-9")
	require.NoError(t, err)
	assert.Equal(t, ResourceTypeResume, ref.Type())
	assert.Equal(t, "student-9", ref.ID())

	_, err = ParseResourceRef("company", "C1")
	assert.Error(t, err)

	_, err = ParseResourceRef("internship", "  ")
	assert.Error(t, err)

	assert.True(t, ResourceRef{}.IsZero())
}

func TestWorkflowDefinition_Steps(t *testing.T) {
	def := &WorkflowDefinition{
		Status: DefinitionStatusActive,
		Steps: []WorkflowStep{
			{Sequence: 1, RequiredRole: RoleDirector},
			{Sequence: 2, RequiredRole: RoleAdmin},
		},
	}

	assert.True(t, def.IsActive())
	require.NotNil(t, def.StepAt(2))
	assert.Equal(t, RoleAdmin, def.StepAt(2).RequiredRole)
	assert.Nil(t, def.StepAt(3))
}

func TestRoleAndActor(t *testing.T) {
	assert.True(t, RoleSuperAdmin.IsAdmin())
	assert.False(t, RoleDirector.IsAdmin())
	assert.False(t, Role("janitor").IsValid())
	assert.True(t, SystemActor("sweeper").IsAdmin())
	assert.Equal(t, "system:sweeper", SystemActor("sweeper").UserID)
}
