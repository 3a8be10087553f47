package services

import (
	"github.com/sessionbridge/sessionbridge-go/internal/domain/user"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/persistence/files"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/security"
	"github.com/sessionbridge/sessionbridge-go/pkg/config"
)

// AdminOperatorID is the synthetic identity used by administrator logins.
// It never collides with stored operator IDs, which are ULIDs.
const AdminOperatorID = "admin"

// ObserverAuthService handles observer logins and token validation.
type ObserverAuthService struct {
	operators *files.OperatorStore
	logger    *logging.ChanneledLogger
}

// NewObserverAuthService creates a new observer authentication service.
func NewObserverAuthService(operators *files.OperatorStore, logger *logging.ChanneledLogger) *ObserverAuthService {
	return &ObserverAuthService{operators: operators, logger: logger}
}

// AuthResult holds authentication result data.
type AuthResult struct {
	Token   string `json:"token"`
	Role    string `json:"role"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Authenticate checks credentials against the admin password first, then the
// operator store, and issues a signed token on success.
func (a *ObserverAuthService) Authenticate(username, credential string) *AuthResult {
	if username == AdminOperatorID && config.AdminPassword != "" && credential == config.AdminPassword {
		token, err := security.GenerateOperatorToken(AdminOperatorID, username, true, config.OperatorJWTSecret, config.OperatorTokenTTL)
		if err != nil {
			return &AuthResult{Success: false, Error: "token generation failed"}
		}
		if a.logger != nil {
			a.logger.Auth().Info("Administrator authenticated")
		}
		return &AuthResult{Token: token, Role: "admin", Success: true}
	}

	op, ok := a.operators.Authenticate(username, credential)
	if !ok {
		if a.logger != nil {
			a.logger.Auth().Warn("Authentication failed", "username", username)
		}
		return &AuthResult{Success: false, Error: "invalid credentials"}
	}

	token, err := security.GenerateOperatorToken(op.ID, op.Username, false, config.OperatorJWTSecret, config.OperatorTokenTTL)
	if err != nil {
		return &AuthResult{Success: false, Error: "token generation failed"}
	}
	if a.logger != nil {
		a.logger.Auth().Info("Operator authenticated", "operatorId", op.ID, "username", username)
	}
	return &AuthResult{Token: token, Role: "operator", Success: true}
}

// Identity is the resolved identity behind a validated token.
type Identity struct {
	OperatorID string
	Username   string
	Visibility user.Visibility
}

// ValidateToken checks a token and resolves the identity it carries. Tokens
// for operators that no longer exist are rejected, so deleting an account
// invalidates its outstanding tokens.
func (a *ObserverAuthService) ValidateToken(tokenString string) (*Identity, bool) {
	claims, err := security.ValidateOperatorToken(tokenString, config.OperatorJWTSecret)
	if err != nil {
		return nil, false
	}
	if claims.Admin {
		return &Identity{
			OperatorID: AdminOperatorID,
			Username:   claims.Username,
			Visibility: user.FullAccess(),
		}, true
	}
	if _, ok := a.operators.GetByID(claims.OperatorID); !ok {
		return nil, false
	}
	return &Identity{
		OperatorID: claims.OperatorID,
		Username:   claims.Username,
		Visibility: user.RestrictedTo(claims.OperatorID),
	}, true
}
