package identity

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
	"github.com/Kouriin1/Servicio-Comunitario/internal/queue"
	"github.com/Kouriin1/Servicio-Comunitario/internal/repository"
	"github.com/Kouriin1/Servicio-Comunitario/internal/security"
)

const (
	recoveryKeyPrefix = "identity:recovery:"
	confirmKeyPrefix  = "identity:confirm:"
)

func tokenKey(prefix, token string) string {
	return prefix + hex.EncodeToString(security.HashToken(token))
}

func withToken(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RequestRecovery queues a recovery mail. Unknown emails succeed silently.
func (s *Service) RequestRecovery(ctx context.Context, email, redirectURL string) error {
	account, err := s.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.log.Debug().Msg("recovery requested for unknown email")
			return nil
		}
		return err
	}
	if account.Status == models.AccountStatusSuspended {
		return nil
	}

	if redirectURL == "" {
		redirectURL = s.portal.RecoveryRedirectURL
	}
	token, err := s.storeToken(ctx, recoveryKeyPrefix, account.ID, s.cfg.RecoveryTTL)
	if err != nil {
		return err
	}
	link, err := withToken(redirectURL, token)
	if err != nil {
		return fmt.Errorf("recovery redirect: %w", err)
	}

	if _, err := s.queue.Enqueue(ctx, queue.TaskRecoveryMail, queue.MailPayload{To: account.Email, Link: link}); err != nil {
		return err
	}
	s.log.Info().Str("user_id", account.ID).Msg("recovery mail queued")
	return nil
}

// VerifyRecovery consumes a recovery token and opens a recovery-mode session.
func (s *Service) VerifyRecovery(ctx context.Context, token, deviceID string) (*models.AuthSession, error) {
	userID, err := s.consumeToken(ctx, recoveryKeyPrefix, token)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return s.issue(ctx, account, deviceID, true)
}

// ConfirmEmail activates a pending account and signs it in.
func (s *Service) ConfirmEmail(ctx context.Context, token, deviceID string) (*models.AuthSession, error) {
	userID, err := s.consumeToken(ctx, confirmKeyPrefix, token)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.Confirm(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, account, deviceID, false)
}

func (s *Service) sendConfirmation(ctx context.Context, account models.Account, profile models.Profile) error {
	token, err := s.storeToken(ctx, confirmKeyPrefix, account.ID, s.cfg.ConfirmationTTL)
	if err != nil {
		return err
	}
	link, err := withToken(s.portal.ConfirmRedirectURL, token)
	if err != nil {
		return err
	}
	_, err = s.queue.Enqueue(ctx, queue.TaskConfirmMail, queue.MailPayload{
		To:   account.Email,
		Name: models.DeriveUser(&profile).Name,
		Link: link,
	})
	return err
}

func (s *Service) storeToken(ctx context.Context, prefix, userID string, ttl time.Duration) (string, error) {
	token, _, err := security.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	if err := s.tokens.Set(ctx, tokenKey(prefix, token), userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

func (s *Service) consumeToken(ctx context.Context, prefix, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	userID, err := s.tokens.GetDel(ctx, tokenKey(prefix, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	return userID, nil
}
