package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	sessionBucketName = "session"
	accountBucketName = "accounts"

	tokenKey = "token"
	userKey  = "user"
)

// Persisted is the session as it is stored on disk
type Persisted struct {
	Token string
	User  []byte // JSON encoded User, may be missing or corrupt
}

// Persistence stores the current session. The token and the user are
// always written and cleared together.
type Persistence interface {
	// LoadSession returns nil when no token is stored
	LoadSession() (*Persisted, error)

	// SaveSession replaces the stored session
	SaveSession(token string, user []byte) error

	// ClearSession removes the stored session
	ClearSession() error
}

// Account is a registered user with its password hash
type Account struct {
	User         User   `json:"user"`
	PasswordHash []byte `json:"passwordHash"`
}

// AccountDB stores registered accounts keyed by email
type AccountDB interface {
	// CreateAccount fails with ErrDuplicateEmail when the email is taken
	CreateAccount(account *Account) error

	// GetAccount fails with ErrAccountNotFound for unknown emails
	GetAccount(email string) (*Account, error)
}

// BoltDB implements Persistence and AccountDB using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database file
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{sessionBucketName, accountBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// LoadSession reads the stored token and user
func (b *BoltDB) LoadSession() (*Persisted, error) {
	var persisted *Persisted
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		token := bucket.Get([]byte(tokenKey))
		if token == nil {
			return nil
		}
		// values are only valid inside the transaction
		persisted = &Persisted{Token: string(token)}
		if user := bucket.Get([]byte(userKey)); user != nil {
			persisted.User = append([]byte(nil), user...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	return persisted, nil
}

// SaveSession writes both keys in one transaction
func (b *BoltDB) SaveSession(token string, user []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		if err := bucket.Put([]byte(tokenKey), []byte(token)); err != nil {
			return fmt.Errorf("writing token: %w", err)
		}
		if err := bucket.Put([]byte(userKey), user); err != nil {
			return fmt.Errorf("writing user: %w", err)
		}
		return nil
	})
}

// ClearSession deletes both keys in one transaction
func (b *BoltDB) ClearSession() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		if err := bucket.Delete([]byte(tokenKey)); err != nil {
			return fmt.Errorf("deleting token: %w", err)
		}
		if err := bucket.Delete([]byte(userKey)); err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		return nil
	})
}

func accountKey(email string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(email)))
}

// CreateAccount saves a new account unless its email is already registered
func (b *BoltDB) CreateAccount(account *Account) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountBucketName))
		key := accountKey(account.User.Email)
		if bucket.Get(key) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, account.User.Email)
		}
		data, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("marshaling account: %w", err)
		}
		return bucket.Put(key, data)
	})
}

// GetAccount retrieves an account by email
func (b *BoltDB) GetAccount(email string) (*Account, error) {
	var account *Account
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountBucketName))
		data := bucket.Get(accountKey(email))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, email)
		}
		return json.Unmarshal(data, &account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
