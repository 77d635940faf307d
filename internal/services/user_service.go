package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/isdelr/notesync-be/internal/auth"
	"github.com/isdelr/notesync-be/internal/database"
	"github.com/isdelr/notesync-be/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Register(ctx context.Context, username, password string) (models.User, string, error)
	Login(ctx context.Context, username, password string) (models.User, string, error)
	Verify(ctx context.Context, token string) (models.User, error)
	ResetToken(ctx context.Context, user models.User) (string, error)
	GetGroup(ctx context.Context, userID string) (*string, error)
	InGroup(ctx context.Context, userID, group string) (bool, error)
	CreateUser(ctx context.Context, username, password string) (models.User, error)
	AddToGroup(ctx context.Context, username, group string) error
	RemoveFromGroup(ctx context.Context, username, group string) error
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// UserService provides business logic for accounts, credentials and groups.
type UserService struct {
	db                *database.DB
	signer            auth.Signer
	events            EventServiceProvider
	clock             Clock
	passwordMinLength int
}

// NewUserService creates a new UserService.
func NewUserService(db *database.DB, signer auth.Signer, events EventServiceProvider, clock Clock, passwordMinLength int) *UserService {
	return &UserService{
		db:                db,
		signer:            signer,
		events:            events,
		clock:             clock,
		passwordMinLength: passwordMinLength,
	}
}

// Register creates a new account and returns it with a signed token.
func (s *UserService) Register(ctx context.Context, username, password string) (models.User, string, error) {
	user, err := s.CreateUser(ctx, username, password)
	if err != nil {
		return models.User{}, "", err
	}

	token, err := s.signer.GenerateJWT(user)
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to sign token: %w", err)
	}

	recordEvent(ctx, s.events, "user.register", "info", fmt.Sprintf("User '%s' registered.", user.Username), &user.ID)
	return user, token, nil
}

// CreateUser validates the credentials and stores a new user with a hashed
// password.
func (s *UserService) CreateUser(ctx context.Context, username, password string) (models.User, error) {
	if err := s.validateCredentials(username, password); err != nil {
		return models.User{}, err
	}

	if _, err := s.GetUserByUsername(ctx, username); err == nil {
		return models.User{}, validationf("A user with that username already exists.")
	} else if !errors.Is(err, ErrNotFound) {
		return models.User{}, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hashedPassword),
		CreatedAt:    s.clock.Now().UnixMilli(),
	}

	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)"),
		user.ID, user.Username, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		// A concurrent registration may have taken the name in between.
		if _, lookupErr := s.GetUserByUsername(ctx, username); lookupErr == nil {
			return models.User{}, validationf("A user with that username already exists.")
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) validateCredentials(username, password string) error {
	switch {
	case username == "":
		return validationf("Username is required.")
	case utf8.RuneCountInString(username) > models.MaxUsernameLength:
		return validationf("Username must be at most %d characters.", models.MaxUsernameLength)
	case !usernamePattern.MatchString(username):
		return validationf("Username may contain only letters, digits and @/./+/-/_ characters.")
	case utf8.RuneCountInString(password) < s.passwordMinLength || password == "":
		return validationf("Password must be at least %d characters.", max(s.passwordMinLength, 1))
	}
	return nil
}

// Login checks the password and returns the user's permanent token, creating
// it on first login.
func (s *UserService) Login(ctx context.Context, username, password string) (models.User, string, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.User{}, "", authenticationf("Invalid credentials")
		}
		return models.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, "", authenticationf("Invalid credentials")
	}

	token, err := s.getOrCreateToken(ctx, user.ID)
	if err != nil {
		return models.User{}, "", err
	}

	recordEvent(ctx, s.events, "user.login", "info", fmt.Sprintf("User '%s' logged in.", user.Username), &user.ID)
	return user, token, nil
}

func (s *UserService) getOrCreateToken(ctx context.Context, userID string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT key FROM auth_tokens WHERE user_id = ?"), userID).Scan(&key)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	key, err = s.insertToken(ctx, s.db, userID)
	if err != nil {
		// Lost a race with a parallel login; the other token wins.
		var existing string
		if lookupErr := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT key FROM auth_tokens WHERE user_id = ?"), userID).Scan(&existing); lookupErr == nil {
			return existing, nil
		}
		return "", err
	}
	return key, nil
}

func (s *UserService) insertToken(ctx context.Context, db database.DBTX, userID string) (string, error) {
	key, err := auth.NewPermanentToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	_, err = db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO auth_tokens (key, user_id, created_at) VALUES (?, ?, ?)"),
		key, userID, s.clock.Now().UnixMilli(),
	)
	if err != nil {
		return "", err
	}
	return key, nil
}

// Verify resolves a bearer credential to its user. Signed tokens are checked
// by signature and expiry, anything else is looked up as a permanent token.
func (s *UserService) Verify(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, authenticationf("Invalid token")
	}

	if auth.LooksLikeJWT(token) {
		claims, err := s.signer.ValidateJWT(token)
		if err != nil {
			return models.User{}, authenticationf("Invalid token")
		}
		user, err := s.GetUserByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return models.User{}, authenticationf("Invalid token")
			}
			return models.User{}, err
		}
		if claims.Generation != user.TokenGeneration {
			return models.User{}, authenticationf("Invalid token")
		}
		return user, nil
	}

	var user models.User
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT u.id, u.username, u.created_at, u.token_generation
		FROM auth_tokens t JOIN users u ON u.id = t.user_id
		WHERE t.key = ?`), token).Scan(&user.ID, &user.Username, &user.CreatedAt, &user.TokenGeneration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, authenticationf("Invalid token")
		}
		return models.User{}, err
	}
	return user, nil
}

// ResetToken replaces the user's permanent token and revokes every signed
// token issued so far. Old credentials stop verifying as soon as this returns.
func (s *UserService) ResetToken(ctx context.Context, user models.User) (string, error) {
	var key string
	err := s.db.WithTx(ctx, func(ctx context.Context, tx database.DBTX) error {
		if _, err := tx.ExecContext(ctx, s.db.Rebind("DELETE FROM auth_tokens WHERE user_id = ?"), user.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			s.db.Rebind("UPDATE users SET token_generation = token_generation + 1 WHERE id = ?"), user.ID); err != nil {
			return err
		}
		var err error
		key, err = s.insertToken(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to reset token: %w", err)
	}

	recordEvent(ctx, s.events, "user.token_reset", "info", fmt.Sprintf("User '%s' reset their token.", user.Username), &user.ID)
	return key, nil
}

// GetGroup returns the name of the user's first group, or nil when the user
// belongs to none.
func (s *UserService) GetGroup(ctx context.Context, userID string) (*string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT g.name FROM auth_groups g
		JOIN auth_user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = ?
		ORDER BY g.id LIMIT 1`), userID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &name, nil
}

// InGroup reports whether the user is a member of the named group.
func (s *UserService) InGroup(ctx context.Context, userID, group string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT COUNT(*) FROM auth_user_groups ug
		JOIN auth_groups g ON g.id = ug.group_id
		WHERE ug.user_id = ? AND g.name = ?`), userID, group).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AddToGroup makes the user a member of the group. Adding an existing member
// is a no-op.
func (s *UserService) AddToGroup(ctx context.Context, username, group string) error {
	user, groupID, err := s.resolveMembership(ctx, username, group)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO auth_user_groups (user_id, group_id) VALUES (?, ?) ON CONFLICT DO NOTHING"),
		user.ID, groupID,
	)
	if err != nil {
		return err
	}
	log.Info().Str("username", username).Str("group", group).Msg("User added to group")
	return nil
}

// RemoveFromGroup drops the user's membership in the group.
func (s *UserService) RemoveFromGroup(ctx context.Context, username, group string) error {
	user, groupID, err := s.resolveMembership(ctx, username, group)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM auth_user_groups WHERE user_id = ? AND group_id = ?"),
		user.ID, groupID,
	)
	if err != nil {
		return err
	}
	log.Info().Str("username", username).Str("group", group).Msg("User removed from group")
	return nil
}

func (s *UserService) resolveMembership(ctx context.Context, username, group string) (models.User, int64, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return models.User{}, 0, err
	}
	var groupID int64
	err = s.db.QueryRowContext(ctx, s.db.Rebind("SELECT id FROM auth_groups WHERE name = ?"), group).Scan(&groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, 0, notFoundf("group %s not found", group)
		}
		return models.User{}, 0, err
	}
	return user, groupID, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT id, username, created_at, token_generation FROM users WHERE id = ?"), id)
	if err := row.Scan(&user.ID, &user.Username, &user.CreatedAt, &user.TokenGeneration); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, notFoundf("user with ID %s not found", id)
		}
		return models.User{}, err
	}
	return user, nil
}

// GetUserByUsername retrieves a single user by username, including the
// password hash.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT id, username, password_hash, created_at, token_generation FROM users WHERE username = ?"), username)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt, &user.TokenGeneration); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, notFoundf("user %s not found", username)
		}
		return models.User{}, err
	}
	return user, nil
}
