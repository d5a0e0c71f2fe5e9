package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/infrastructure/memory"
)

const (
	testUserID    = "00000000-0000-0000-0000-000000000001"
	testCompanyID = "00000000-0000-0000-0000-000000000002"
)

func buildEngine(t *testing.T) (*authz.Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	users := memory.NewUserRepo(store)
	require.NoError(t, users.Create(&entity.User{ID: testUserID, Email: "editor@test.com", Name: "Editor"}))
	require.NoError(t, users.AddMembership(&entity.Membership{
		UserID: testUserID, CompanyID: testCompanyID, Role: "editor",
	}))
	store.SeedPermission("editor", entity.PermInventoryEdit, true)
	store.SeedPermission("editor", entity.PermInventoryDelete, false)
	return authz.NewEngine(users, memory.NewPermissionRepo(store)), store
}

func TestCheck_AnonimoEsFallaDura(t *testing.T) {
	engine, _ := buildEngine(t)

	_, err := engine.Check(context.Background(), authz.Actor{}, testCompanyID, entity.PermInventoryEdit)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCheck_SuperUsuarioSiemprePasa(t *testing.T) {
	engine, _ := buildEngine(t)

	actor := authz.Actor{UserID: "cualquiera", CompanyID: testCompanyID, SuperUser: true}
	allowed, err := engine.Check(context.Background(), actor, testCompanyID, "clave:inexistente")
	require.NoError(t, err)
	assert.True(t, allowed, "el super-usuario salta la tabla de permisos")
}

func TestCheck_RolConPermiso(t *testing.T) {
	engine, _ := buildEngine(t)

	actor := authz.Actor{UserID: testUserID, CompanyID: testCompanyID}
	allowed, err := engine.Check(context.Background(), actor, testCompanyID, entity.PermInventoryEdit)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheck_PermisoExplicitamenteDenegado(t *testing.T) {
	engine, _ := buildEngine(t)

	actor := authz.Actor{UserID: testUserID, CompanyID: testCompanyID}
	allowed, err := engine.Check(context.Background(), actor, testCompanyID, entity.PermInventoryDelete)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCheck_ClaveDesconocidaNoEsError(t *testing.T) {
	engine, _ := buildEngine(t)

	actor := authz.Actor{UserID: testUserID, CompanyID: testCompanyID}
	allowed, err := engine.Check(context.Background(), actor, testCompanyID, "modulo:clave-nueva")
	require.NoError(t, err, "una clave ausente en el mapa del rol no es error")
	assert.False(t, allowed)
}

func TestCheck_SinMembresiaEnLaEmpresa(t *testing.T) {
	engine, _ := buildEngine(t)

	actor := authz.Actor{UserID: testUserID, CompanyID: "otra-empresa"}
	allowed, err := engine.Check(context.Background(), actor, "otra-empresa", entity.PermInventoryEdit)
	require.NoError(t, err)
	assert.False(t, allowed, "sin rol en la empresa no hay capacidad alguna")
}
