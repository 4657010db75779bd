package auth

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fixmarket/corelink/internal/pkg/apiclient"
	"github.com/fixmarket/corelink/internal/pkg/security"
)

// Account identifies a verified login.
type Account struct {
	ID    int
	Email string
}

// CredentialVerifier checks a login pair against the user store. A nil
// account with a nil error means the credentials are simply wrong; errors
// are reserved for transport failures.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*Account, error)
}

// APIVerifier verifies credentials against the marketplace internal API.
// The endpoint always answers 200 with a verdict so that a wrong password
// is not conflated with a broken service.
type APIVerifier struct {
	api *apiclient.Client
}

// NewAPIVerifier creates a verifier backed by the given API client.
func NewAPIVerifier(api *apiclient.Client) *APIVerifier {
	return &APIVerifier{api: api}
}

func (v *APIVerifier) Verify(ctx context.Context, email, password string) (*Account, error) {
	var verdict struct {
		Valid bool   `json:"valid"`
		ID    int    `json:"id"`
		Email string `json:"email"`
	}
	err := v.api.PostJSON(ctx, "/auth/verify", map[string]string{
		"email":    email,
		"password": password,
	}, &verdict)
	if err != nil {
		return nil, err
	}
	if !verdict.Valid {
		return nil, nil
	}
	if verdict.Email == "" {
		verdict.Email = email
	}
	return &Account{ID: verdict.ID, Email: verdict.Email}, nil
}

// Service answers users.login requests: it verifies the credentials and
// issues a signed token on success.
type Service struct {
	verifier CredentialVerifier
	secret   string
	tokenTTL time.Duration
}

// NewService creates the login service.
func NewService(verifier CredentialVerifier, secret string, tokenTTL time.Duration) *Service {
	return &Service{verifier: verifier, secret: secret, tokenTTL: tokenTTL}
}

type loginReply struct {
	OK    bool   `json:"ok"`
	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`
}

// HandleLogin processes one login request body and returns the reply
// body. It satisfies broker.HandlerFunc and never panics on bad input.
func (s *Service) HandleLogin(ctx context.Context, body []byte) []byte {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(body, &request); err != nil || request.Email == "" || request.Password == "" {
		return marshalReply(loginReply{OK: false, Error: "invalid_request"})
	}

	account, err := s.verifier.Verify(ctx, request.Email, request.Password)
	if err != nil {
		log.Errorf("[Auth] Credential check for %s failed: %v", request.Email, err)
		return marshalReply(loginReply{OK: false, Error: "server_error"})
	}
	if account == nil {
		log.Infof("[Auth] Rejected login for %s", request.Email)
		return marshalReply(loginReply{OK: false, Error: "invalid_credentials"})
	}

	token, err := security.GenerateAuthToken(strconv.Itoa(account.ID), account.Email, s.tokenTTL, s.secret)
	if err != nil {
		log.Errorf("[Auth] Could not issue token for %s: %v", account.Email, err)
		return marshalReply(loginReply{OK: false, Error: "server_error"})
	}

	log.Infof("[Auth] Issued token for %s", account.Email)
	return marshalReply(loginReply{OK: true, Token: token})
}

func marshalReply(reply loginReply) []byte {
	raw, _ := json.Marshal(reply)
	return raw
}
