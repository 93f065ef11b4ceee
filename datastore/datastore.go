// Package datastore persists users and grading history.
package datastore

import (
	"log"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// storedImageLimit caps the image reference persisted per grading record.
// Inline base64 payloads get truncated; URLs fit comfortably.
const storedImageLimit = 1000

// User is a registered account.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:50;not null"`
	PasswordHash string `gorm:"not null"`
	FullName     string
	Role         string `gorm:"default:user"`
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// GradingHistory is one persisted pipeline run.
type GradingHistory struct {
	ID          uint  `gorm:"primaryKey"`
	UserID      *uint `gorm:"index"`
	ImageURL    string
	Predictions string
	TopClass    string `gorm:"index"`
	Confidence  float64
	InferenceMs int64
	CreatedAt   time.Time `gorm:"index"`
}

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path and migrates the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.AutoMigrate(&User{}, &GradingHistory{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate schema")
	}
	log.Printf("✅ Database ready at %s", path)
	return &Store{db: db}, nil
}

// ErrUserExists is returned when registering an already-taken username.
var ErrUserExists = errors.New("username already exists")

// ErrInvalidCredentials is returned on any login failure; the caller cannot
// distinguish a missing user from a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// CreateUser registers a new account with a bcrypt-hashed password.
func (s *Store) CreateUser(username, password, fullName string) (*User, error) {
	var count int64
	if err := s.db.Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "failed to check username")
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	user := &User{
		Username:     username,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         "user",
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	return user, nil
}

// VerifyUser checks credentials and stamps the last login time.
func (s *Store) VerifyUser(username, password string) (*User, error) {
	var user User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "failed to look up user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.db.Model(&user).Update("last_login", now).Error; err != nil {
		return nil, errors.Wrap(err, "failed to stamp last login")
	}
	return &user, nil
}

// SaveGrading persists one pipeline run. The image reference is truncated to
// keep inline payloads out of the database.
func (s *Store) SaveGrading(rec *GradingHistory) error {
	if len(rec.ImageURL) > storedImageLimit {
		rec.ImageURL = rec.ImageURL[:storedImageLimit]
	}
	if err := s.db.Create(rec).Error; err != nil {
		return errors.Wrap(err, "failed to save grading record")
	}
	return nil
}

// History returns the most recent grading records, newest first. A nil userID
// returns records across all users.
func (s *Store) History(userID *uint, limit int) ([]GradingHistory, error) {
	q := s.db.Order("created_at DESC").Limit(limit)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}

	var records []GradingHistory
	if err := q.Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	return records, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
