// Package credstore persists the LibreLinkUp session ticket and account
// identity in an encrypted local database. Reads degrade instead of
// failing: a missing, partial or undecryptable record loads as "not
// logged in" and the caller re-authenticates, while writes report their
// errors so a lost ticket rotation is never silent.
package credstore

import (
	"context"
	"crypto/cipher"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/libresync/libresync/internal/models"
)

// Stored field keys.
const (
	keyAuthToken     = "auth_token"
	keyAuthDuration  = "auth_duration"
	keyAuthExpires   = "auth_expires"
	keyUserID        = "user_id"
	keyUserEmail     = "user_email"
	keyUserFirstName = "user_first_name"
	keyUserLastName  = "user_last_name"
)

// Store is a BadgerDB-backed credential store with per-value AES-GCM
// sealing.
type Store struct {
	db   *badger.DB
	aead cipher.AEAD
	log  *zap.Logger
}

// Open opens (or creates) the store at path. The sealing key is derived
// from secret, so reopening with a different secret makes existing values
// unreadable.
func Open(path, secret string, log *zap.Logger) (*Store, error) {
	aead, err := newAEAD(secret)
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	return &Store{db: db, aead: aead, log: log}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the stored ticket and identity. It never returns an error:
// fields that cannot be read or decrypted are simply absent, and a ticket
// or user with no identifying field loads as nil.
func (s *Store) Load(ctx context.Context) (*models.AuthTicket, *models.User) {
	fields := map[string]string{}

	err := s.db.View(func(txn *badger.Txn) error {
		for _, key := range []string{
			keyAuthToken, keyAuthDuration, keyAuthExpires,
			keyUserID, keyUserEmail, keyUserFirstName, keyUserLastName,
		} {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", key, err)
			}
			err = item.Value(func(val []byte) error {
				plain, err := unseal(s.aead, val)
				if err != nil {
					// Wrong secret or corrupt value. Treat the field
					// as absent so the caller falls back to login.
					s.log.Warn("dropping unreadable credential field",
						zap.String("key", key), zap.Error(err))
					return nil
				}
				fields[key] = plain
				return nil
			})
			if err != nil {
				return fmt.Errorf("read %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn("credential store read failed, treating as logged out", zap.Error(err))
		return nil, nil
	}

	var ticket *models.AuthTicket
	if token := fields[keyAuthToken]; token != "" {
		ticket = &models.AuthTicket{
			Token:    token,
			Duration: parseInt64(fields[keyAuthDuration]),
			Expires:  parseInt64(fields[keyAuthExpires]),
		}
	}

	var user *models.User
	if id := fields[keyUserID]; id != "" {
		user = &models.User{
			ID:        id,
			Email:     fields[keyUserEmail],
			FirstName: fields[keyUserFirstName],
			LastName:  fields[keyUserLastName],
		}
	}

	return ticket, user
}

// SaveTicket stores the ticket, overwriting any previous one. A nil
// ticket clears the stored fields. The write is one transaction.
func (s *Store) SaveTicket(ctx context.Context, ticket *models.AuthTicket) error {
	if ticket == nil {
		return s.deleteKeys(keyAuthToken, keyAuthDuration, keyAuthExpires)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := s.setSealed(txn, keyAuthToken, ticket.Token); err != nil {
			return err
		}
		if err := s.setSealed(txn, keyAuthDuration, strconv.FormatInt(ticket.Duration, 10)); err != nil {
			return err
		}
		return s.setSealed(txn, keyAuthExpires, strconv.FormatInt(ticket.Expires, 10))
	})
	if err != nil {
		return fmt.Errorf("failed to save ticket: %w", err)
	}
	return nil
}

// SaveUser stores the account identity. A nil user clears it.
func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return s.deleteKeys(keyUserID, keyUserEmail, keyUserFirstName, keyUserLastName)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := s.setSealed(txn, keyUserID, user.ID); err != nil {
			return err
		}
		if err := s.setSealed(txn, keyUserEmail, user.Email); err != nil {
			return err
		}
		if err := s.setSealed(txn, keyUserFirstName, user.FirstName); err != nil {
			return err
		}
		return s.setSealed(txn, keyUserLastName, user.LastName)
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) setSealed(txn *badger.Txn, key, value string) error {
	sealed, err := seal(s.aead, value)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), sealed); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) deleteKeys(keys ...string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

func parseInt64(raw string) int64 {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
