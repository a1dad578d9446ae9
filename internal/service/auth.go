// Package service holds the business rules. It sits between the HTTP
// handlers and the stores:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenIssuer (JWT), PasswordHasher (bcrypt)
//
// Services never see HTTP. Expected failures come back as *apperror.AppError
// values; anything else is wrapped and left for the handler to turn into a 500.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

// TokenIssuer mints session tokens. *auth.TokenService implements it.
type TokenIssuer interface {
	Generate(userID string) (string, error)
}

// PasswordHasher hashes and checks passwords. *auth.PasswordService
// implements it; Verify returns auth.ErrPasswordMismatch on a wrong password.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) error
}

// GoogleVerifier checks a Google ID token. *auth.GoogleProvider implements it.
type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.GoogleIdentity, error)
}

// AuthResult is what register/login hand back to the handler.
type AuthResult struct {
	User    *model.PublicUser
	Token   string
	Created bool // a new account was inserted
}

type registerInput struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// AuthService handles registration, login and identity lookups.
type AuthService struct {
	users     repository.UserRepository
	tokens    TokenIssuer
	passwords PasswordHasher
	google    GoogleVerifier // nil when Google sign-in is disabled
	validate  *validator.Validate
	logger    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService wires an AuthService. google may be nil.
func NewAuthService(
	users repository.UserRepository,
	tokens TokenIssuer,
	passwords PasswordHasher,
	google GoogleVerifier,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		google:    google,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// GoogleEnabled reports whether Google sign-in is configured.
func (s *AuthService) GoogleEnabled() bool {
	return s.google != nil
}

// Register creates a password account and logs it in.
//
// The lookup by email is only a fast path. Two concurrent registrations for
// the same address can both miss it; the store's unique constraint then
// rejects the second insert and that conflict is reported as DuplicateAccount
// too, so exactly one caller succeeds.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	in := registerInput{
		Name:     strings.TrimSpace(name),
		Email:    model.NormalizeEmail(email),
		Password: password,
	}
	if err := s.validateRegister(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperror.DuplicateAccount()
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: &hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.DuplicateAccount()
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return s.issue(user, true)
}

// Login checks email and password.
//
// Unknown email, a Google-only account and a wrong password all return the
// same InvalidCredentials error. An unknown email still pays for one bcrypt
// comparison so timing does not reveal which addresses have accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: looking up email: %w", err)
		}
		s.burnComparison(password)
		return nil, apperror.InvalidCredentials()
	}

	if !user.HasPassword() {
		s.burnComparison(password)
		return nil, apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(*user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: verifying password for %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user, false)
}

// GetCurrentUser returns the public view of the user with the given id.
// No token is minted.
func (s *AuthService) GetCurrentUser(ctx context.Context, id string) (*model.PublicUser, error) {
	if id == "" {
		return nil, apperror.NotFound("user", id)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user.Public(), nil
}

// LoginWithGoogle verifies a Google ID token and signs the holder in,
// creating or linking the account as needed.
func (s *AuthService) LoginWithGoogle(ctx context.Context, credential string) (*AuthResult, error) {
	if s.google == nil {
		return nil, apperror.ValidationFailed("credential", "Google sign-in is not enabled")
	}
	if strings.TrimSpace(credential) == "" {
		return nil, apperror.ValidationFailed("credential", "Google credential is required")
	}

	identity, err := s.google.VerifyIDToken(ctx, credential)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidIDToken) {
			return nil, apperror.InvalidGoogleCredential()
		}
		return nil, fmt.Errorf("service/auth: verifying Google token: %w", err)
	}
	return s.LoginWithGoogleIdentity(ctx, identity)
}

// LoginWithGoogleIdentity signs in an already verified Google identity.
// The redirect flow calls it after exchanging the authorization code.
//
//  1. an account already bound to the Google subject logs in
//  2. an account with the same email is linked, if Google verified the email
//     and the account is not already bound to another Google subject
//  3. otherwise a new account without a password is created, again only
//     for a verified email
func (s *AuthService) LoginWithGoogleIdentity(ctx context.Context, identity *auth.GoogleIdentity) (*AuthResult, error) {
	if identity == nil || identity.Subject == "" {
		return nil, apperror.InvalidGoogleCredential()
	}
	return s.googleSignIn(ctx, identity, true)
}

func (s *AuthService) googleSignIn(ctx context.Context, identity *auth.GoogleIdentity, retry bool) (*AuthResult, error) {
	user, err := s.users.GetByGoogleID(ctx, identity.Subject)
	if err == nil {
		s.logger.Info("user logged in via Google", slog.String("userID", user.ID))
		return s.issue(user, false)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up Google id: %w", err)
	}

	email := model.NormalizeEmail(identity.Email)
	user, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.linkGoogle(ctx, user, identity)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: looking up email: %w", err)
	}

	// An unverified address must not claim an email that its real owner
	// could register later.
	if !identity.EmailVerified {
		s.logger.Warn("refusing Google sign-up with unverified email")
		return nil, apperror.InvalidGoogleCredential()
	}

	user = &model.User{
		Email:    email,
		Name:     googleDisplayName(identity, email),
		GoogleID: &identity.Subject,
	}
	if identity.Picture != "" {
		user.AvatarURL = &identity.Picture
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent sign-in for the same person won the insert.
		// Run the lookups once more and use its account.
		if errors.Is(err, apperror.ErrConflict) && retry {
			return s.googleSignIn(ctx, identity, false)
		}
		return nil, fmt.Errorf("service/auth: creating Google user: %w", err)
	}

	s.logger.Info("user registered via Google", slog.String("userID", user.ID))
	return s.issue(user, true)
}

func (s *AuthService) linkGoogle(ctx context.Context, user *model.User, identity *auth.GoogleIdentity) (*AuthResult, error) {
	if !identity.EmailVerified {
		s.logger.Warn("refusing to link Google account with unverified email",
			slog.String("userID", user.ID),
		)
		return nil, apperror.InvalidGoogleCredential()
	}
	if user.GoogleID != nil && *user.GoogleID != identity.Subject {
		s.logger.Warn("refusing to replace linked Google account",
			slog.String("userID", user.ID),
		)
		return nil, apperror.InvalidGoogleCredential()
	}

	user.GoogleID = &identity.Subject
	if user.AvatarURL == nil && identity.Picture != "" {
		user.AvatarURL = &identity.Picture
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: linking Google id to %s: %w", user.ID, err)
	}

	s.logger.Info("linked Google account", slog.String("userID", user.ID))
	return s.issue(user, false)
}

func (s *AuthService) issue(user *model.User, created bool) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user.Public(), Token: token, Created: created}, nil
}

func (s *AuthService) validateRegister(in registerInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		if len(in.Password) > auth.MaxPasswordBytes {
			return apperror.ValidationFailed("password",
				fmt.Sprintf("Password must be %d bytes or fewer", auth.MaxPasswordBytes))
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("service/auth: validating input: %w", err)
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Name":
		if fe.Tag() == "max" {
			return apperror.ValidationFailed("name", "Name must be 100 characters or fewer")
		}
		return apperror.ValidationFailed("name", "Name is required")
	case "Email":
		if fe.Tag() == "required" {
			return apperror.ValidationFailed("email", "Email is required")
		}
		return apperror.ValidationFailed("email", "Please provide a valid email address")
	default:
		if fe.Tag() == "required" {
			return apperror.ValidationFailed("password", "Password is required")
		}
		return apperror.ValidationFailed("password", "Password must be at least 6 characters long")
	}
}

// burnComparison runs one bcrypt comparison against a throwaway hash.
func (s *AuthService) burnComparison(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.passwords.Hash("not-a-real-password")
		if err != nil {
			s.logger.Error("building dummy hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_ = s.passwords.Verify(s.dummyHash, password)
	}
}

func googleDisplayName(identity *auth.GoogleIdentity, email string) string {
	if name := strings.TrimSpace(identity.Name); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return "Google user"
}
