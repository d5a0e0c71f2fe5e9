package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/Procura-api/internal/application/audit"
	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/application/ports"
	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
	"github.com/jhoicas/Procura-api/pkg/jwt"
)

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// UseCase contexto de identidad: login y cambio de empresa activa. Es el único
// productor de actores para el núcleo; todo lo demás los consume.
type UseCase struct {
	users    repository.UserRepository
	txRunner ports.TxRunner
	jwtCfg   JWTConfig
}

// NewUseCase construye el caso de uso de identidad.
func NewUseCase(users repository.UserRepository, txRunner ports.TxRunner, jwtCfg JWTConfig) *UseCase {
	return &UseCase{users: users, txRunner: txRunner, jwtCfg: jwtCfg}
}

// LoginResponse token emitido más la identidad resuelta.
type LoginResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	SuperUser bool   `json:"super_user"`
}

// Register crea un usuario con password bcrypt y lo vincula a la empresa con
// el rol indicado (viewer por defecto). Email repetido devuelve ErrDuplicate.
func (uc *UseCase) Register(ctx context.Context, email, password, name, companyID, role string) (*entity.User, error) {
	if email == "" || password == "" || companyID == "" {
		return nil, domain.ErrInvalidInput
	}
	if role == "" {
		role = "viewer"
	}
	err := uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		company, err := repos.Companies.GetByID(companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	user := &entity.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.users.Create(user); err != nil {
		return nil, err
	}
	if err := uc.users.AddMembership(&entity.Membership{
		UserID:    user.ID,
		CompanyID: companyID,
		Role:      role,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifica email/password y emite un JWT atado a la empresa pedida.
// El usuario debe ser miembro de esa empresa (o super-usuario).
func (uc *UseCase) Login(ctx context.Context, email, password, companyID string) (*LoginResponse, error) {
	if email == "" || password == "" || companyID == "" {
		return nil, domain.ErrInvalidInput
	}
	user, err := uc.users.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	if !user.SuperUser {
		role, err := uc.users.RoleFor(user.ID, companyID)
		if err != nil {
			return nil, err
		}
		if role == "" {
			return nil, domain.ErrForbidden
		}
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, user.ID, companyID, user.SuperUser, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, UserID: user.ID, CompanyID: companyID, SuperUser: user.SuperUser}, nil
}

// SwitchCompany emite un token para otra empresa de la que el actor es miembro
// y audita el cambio (COMPANY_SWITCH) en la empresa destino.
func (uc *UseCase) SwitchCompany(ctx context.Context, actor authz.Actor, targetCompanyID string) (*LoginResponse, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if targetCompanyID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !actor.SuperUser {
		role, err := uc.users.RoleFor(actor.UserID, targetCompanyID)
		if err != nil {
			return nil, err
		}
		if role == "" {
			return nil, domain.ErrNotFound
		}
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, actor.UserID, targetCompanyID, actor.SuperUser, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		meta := entity.EventMeta{
			Event:   "company_switched",
			Version: 1,
			Extra:   map[string]string{"from_company_id": actor.CompanyID},
		}
		return audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: targetCompanyID,
			Action:    entity.ActionCompanySwitch,
			TableName: "users",
			RecordID:  actor.UserID,
			ActorID:   actor.UserID,
			Metadata:  meta.Marshal(),
			CreatedAt: now,
		}, decimal.Zero)
	})
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, UserID: actor.UserID, CompanyID: targetCompanyID, SuperUser: actor.SuperUser}, nil
}
