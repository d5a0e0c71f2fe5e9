package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Procura-api/internal/application/auth"
	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/infrastructure/memory"
	pkgjwt "github.com/jhoicas/Procura-api/pkg/jwt"
)

const (
	testSecret     = "test-secret-key-for-unit-tests"
	testCompanyID  = "00000000-0000-0000-0000-000000000002"
	otherCompanyID = "00000000-0000-0000-0000-000000000003"
)

func buildAuth(t *testing.T) (*auth.UseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repos()
	require.NoError(t, repos.Companies.Create(&entity.Company{
		ID: testCompanyID, Name: "Empresa Uno", BaseTier: entity.TierStarter,
		EnvironmentType: entity.EnvTest, Status: "active", BillingState: "ok",
	}))
	require.NoError(t, repos.Companies.Create(&entity.Company{
		ID: otherCompanyID, Name: "Empresa Dos", BaseTier: entity.TierStarter,
		EnvironmentType: entity.EnvTest, Status: "active", BillingState: "ok",
	}))
	uc := auth.NewUseCase(memory.NewUserRepo(store), memory.NewTxRunner(store), auth.JWTConfig{
		Secret: testSecret, ExpMinutes: 60, Issuer: "procura-api-test",
	})
	return uc, store
}

// ──────────────────────────────────────────────────────────────────────────────
// Registro y login
// ──────────────────────────────────────────────────────────────────────────────

func TestRegisterLogin_IdaYVuelta(t *testing.T) {
	uc, _ := buildAuth(t)
	ctx := context.Background()

	user, err := uc.Register(ctx, "ana@test.com", "contraseña-larga", "Ana", testCompanyID, "editor")
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	assert.NotEqual(t, "contraseña-larga", user.PasswordHash, "el password nunca se guarda en claro")

	resp, err := uc.Login(ctx, "ana@test.com", "contraseña-larga", testCompanyID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.UserID)
	assert.Equal(t, testCompanyID, resp.CompanyID)

	// El token emitido es parseable y lleva la empresa activa.
	userID, companyID, superUser, err := pkgjwt.Parse(testSecret, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, testCompanyID, companyID)
	assert.False(t, superUser)
}

func TestRegister_EmailDuplicado(t *testing.T) {
	uc, _ := buildAuth(t)
	ctx := context.Background()
	_, err := uc.Register(ctx, "ana@test.com", "contraseña-larga", "Ana", testCompanyID, "")
	require.NoError(t, err)

	_, err = uc.Register(ctx, "ana@test.com", "otra-clave-distinta", "Ana Clon", testCompanyID, "")
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestRegister_EmpresaInexistente(t *testing.T) {
	uc, _ := buildAuth(t)

	_, err := uc.Register(context.Background(), "ana@test.com", "contraseña-larga", "Ana", "empresa-fantasma", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLogin_PasswordIncorrecto(t *testing.T) {
	uc, _ := buildAuth(t)
	ctx := context.Background()
	_, err := uc.Register(ctx, "ana@test.com", "contraseña-larga", "Ana", testCompanyID, "")
	require.NoError(t, err)

	_, err = uc.Login(ctx, "ana@test.com", "clave-equivocada", testCompanyID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_UsuarioInexistente(t *testing.T) {
	uc, _ := buildAuth(t)

	_, err := uc.Login(context.Background(), "nadie@test.com", "lo-que-sea", testCompanyID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized,
		"usuario inexistente y password malo son indistinguibles")
}

func TestLogin_SinMembresiaEnLaEmpresa(t *testing.T) {
	uc, _ := buildAuth(t)
	ctx := context.Background()
	_, err := uc.Register(ctx, "ana@test.com", "contraseña-larga", "Ana", testCompanyID, "")
	require.NoError(t, err)

	_, err = uc.Login(ctx, "ana@test.com", "contraseña-larga", otherCompanyID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// ──────────────────────────────────────────────────────────────────────────────
// Cambio de empresa activa
// ──────────────────────────────────────────────────────────────────────────────

func TestSwitchCompany_EmiteTokenYAudita(t *testing.T) {
	uc, store := buildAuth(t)
	ctx := context.Background()
	user, err := uc.Register(ctx, "ana@test.com", "contraseña-larga", "Ana", testCompanyID, "editor")
	require.NoError(t, err)
	require.NoError(t, memory.NewUserRepo(store).AddMembership(&entity.Membership{
		UserID: user.ID, CompanyID: otherCompanyID, Role: "viewer",
	}))

	actor := authz.Actor{UserID: user.ID, CompanyID: testCompanyID}
	resp, err := uc.SwitchCompany(ctx, actor, otherCompanyID)
	require.NoError(t, err)
	assert.Equal(t, otherCompanyID, resp.CompanyID)

	_, companyID, _, err := pkgjwt.Parse(testSecret, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, otherCompanyID, companyID)

	// El cambio queda auditado en la empresa destino.
	entries, err := store.Repos().Audit.ListByCompany(otherCompanyID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.ActionCompanySwitch, entries[0].Action)
}

func TestSwitchCompany_SinMembresiaEnDestino(t *testing.T) {
	uc, _ := buildAuth(t)
	ctx := context.Background()
	user, err := uc.Register(ctx, "ana@test.com", "contraseña-larga", "Ana", testCompanyID, "editor")
	require.NoError(t, err)

	actor := authz.Actor{UserID: user.ID, CompanyID: testCompanyID}
	_, err = uc.SwitchCompany(ctx, actor, otherCompanyID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSwitchCompany_SuperUsuarioSinMembresia(t *testing.T) {
	uc, _ := buildAuth(t)

	actor := authz.Actor{UserID: "root", CompanyID: testCompanyID, SuperUser: true}
	resp, err := uc.SwitchCompany(context.Background(), actor, otherCompanyID)
	require.NoError(t, err)
	assert.True(t, resp.SuperUser)
	assert.Equal(t, otherCompanyID, resp.CompanyID)
}
