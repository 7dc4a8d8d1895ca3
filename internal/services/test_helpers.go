package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zia-mazari/go-auth/internal/models"
)

// MemoryRateLimitStore is an in-memory RateLimitStore mirroring the SQL
// semantics of the repository: atomic upsert increments, guarded block-count
// raises and conditional increments below the block-count ceiling.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	records map[string]*models.RateLimitRecord
	nextID  int
}

func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		records: make(map[string]*models.RateLimitRecord),
	}
}

func rateLimitKey(purpose models.RateLimitPurpose, clientIP, identity string) string {
	return string(purpose) + "|" + clientIP + "|" + identity
}

// Seed installs a record directly, bypassing the increment path.
func (m *MemoryRateLimitStore) Seed(purpose models.RateLimitPurpose, clientIP, identity string, attemptCount, blockCount int, blockedUntil *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := time.Now()
	m.records[rateLimitKey(purpose, clientIP, identity)] = &models.RateLimitRecord{
		ID:           fmt.Sprintf("rl_%d", m.nextID),
		Purpose:      purpose,
		ClientIP:     clientIP,
		Identity:     identity,
		AttemptCount: attemptCount,
		BlockCount:   blockCount,
		BlockedUntil: blockedUntil,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Lookup returns a copy of the stored record, or nil when absent.
func (m *MemoryRateLimitStore) Lookup(purpose models.RateLimitPurpose, clientIP, identity string) *models.RateLimitRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[rateLimitKey(purpose, clientIP, identity)]
	if !ok {
		return nil
	}
	copied := *rec
	return &copied
}

func (m *MemoryRateLimitStore) Get(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) (*models.RateLimitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[rateLimitKey(purpose, clientIP, identity)]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *MemoryRateLimitStore) IncrementAttempt(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) (*models.RateLimitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rateLimitKey(purpose, clientIP, identity)
	rec, ok := m.records[key]
	if !ok {
		m.nextID++
		now := time.Now()
		rec = &models.RateLimitRecord{
			ID:        fmt.Sprintf("rl_%d", m.nextID),
			Purpose:   purpose,
			ClientIP:  clientIP,
			Identity:  identity,
			CreatedAt: now,
		}
		m.records[key] = rec
	}

	rec.AttemptCount++
	rec.UpdatedAt = time.Now()
	copied := *rec
	return &copied, nil
}

func (m *MemoryRateLimitStore) IncrementAttemptBelow(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string, maxBlockCount int) (*models.RateLimitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[rateLimitKey(purpose, clientIP, identity)]
	if !ok || rec.BlockCount >= maxBlockCount {
		return nil, models.ErrNotFound
	}

	rec.AttemptCount++
	rec.UpdatedAt = time.Now()
	copied := *rec
	return &copied, nil
}

func (m *MemoryRateLimitStore) RaiseBlockCount(ctx context.Context, id string, blockCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.records {
		if rec.ID == id && rec.BlockCount < blockCount {
			rec.BlockCount = blockCount
			rec.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (m *MemoryRateLimitStore) SetBlockedUntil(ctx context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.records {
		if rec.ID == id {
			u := until
			rec.BlockedUntil = &u
			rec.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (m *MemoryRateLimitStore) ResetAttempts(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.records[rateLimitKey(purpose, clientIP, identity)]; ok {
		rec.AttemptCount = 0
		rec.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemoryRateLimitStore) ExpireBlock(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.records {
		if rec.ID == id {
			rec.AttemptCount = 0
			rec.BlockedUntil = nil
			rec.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (m *MemoryRateLimitStore) Delete(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, rateLimitKey(purpose, clientIP, identity))
	return nil
}

func (m *MemoryRateLimitStore) DeleteByIdentity(ctx context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, rec := range m.records {
		if rec.Identity == identity {
			delete(m.records, key)
		}
	}
	return nil
}

// MockRateLimitStore implements RateLimitStore with function fields, for
// error-injection tests.
type MockRateLimitStore struct {
	GetFunc                   func(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) (*models.RateLimitRecord, error)
	IncrementAttemptFunc      func(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) (*models.RateLimitRecord, error)
	IncrementAttemptBelowFunc func(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string, maxBlockCount int) (*models.RateLimitRecord, error)
	RaiseBlockCountFunc       func(ctx context.Context, id string, blockCount int) error
	SetBlockedUntilFunc       func(ctx context.Context, id string, until time.Time) error
	ResetAttemptsFunc         func(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) error
	ExpireBlockFunc           func(ctx context.Context, id string) error
	DeleteFunc                func(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) error
	DeleteByIdentityFunc      func(ctx context.Context, identity string) error
}

func (m *MockRateLimitStore) Get(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) (*models.RateLimitRecord, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, purpose, clientIP, identity)
	}
	return nil, models.ErrNotFound
}

func (m *MockRateLimitStore) IncrementAttempt(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) (*models.RateLimitRecord, error) {
	if m.IncrementAttemptFunc != nil {
		return m.IncrementAttemptFunc(ctx, purpose, clientIP, identity)
	}
	return nil, models.ErrInternalServer
}

func (m *MockRateLimitStore) IncrementAttemptBelow(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string, maxBlockCount int) (*models.RateLimitRecord, error) {
	if m.IncrementAttemptBelowFunc != nil {
		return m.IncrementAttemptBelowFunc(ctx, purpose, clientIP, identity, maxBlockCount)
	}
	return nil, models.ErrNotFound
}

func (m *MockRateLimitStore) RaiseBlockCount(ctx context.Context, id string, blockCount int) error {
	if m.RaiseBlockCountFunc != nil {
		return m.RaiseBlockCountFunc(ctx, id, blockCount)
	}
	return nil
}

func (m *MockRateLimitStore) SetBlockedUntil(ctx context.Context, id string, until time.Time) error {
	if m.SetBlockedUntilFunc != nil {
		return m.SetBlockedUntilFunc(ctx, id, until)
	}
	return nil
}

func (m *MockRateLimitStore) ResetAttempts(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) error {
	if m.ResetAttemptsFunc != nil {
		return m.ResetAttemptsFunc(ctx, purpose, clientIP, identity)
	}
	return nil
}

func (m *MockRateLimitStore) ExpireBlock(ctx context.Context, id string) error {
	if m.ExpireBlockFunc != nil {
		return m.ExpireBlockFunc(ctx, id)
	}
	return nil
}

func (m *MockRateLimitStore) Delete(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, purpose, clientIP, identity)
	}
	return nil
}

func (m *MockRateLimitStore) DeleteByIdentity(ctx context.Context, identity string) error {
	if m.DeleteByIdentityFunc != nil {
		return m.DeleteByIdentityFunc(ctx, identity)
	}
	return nil
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.User, error)
	GetByUsernameFunc  func(ctx context.Context, username string) (*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordFunc func(ctx context.Context, id, passwordHash string) error
	MarkVerifiedFunc   func(ctx context.Context, id string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) MarkVerified(ctx context.Context, id string) error {
	if m.MarkVerifiedFunc != nil {
		return m.MarkVerifiedFunc(ctx, id)
	}
	return nil
}

// MockPasswordResetTokenRepository implements PasswordResetTokenRepository for testing
type MockPasswordResetTokenRepository struct {
	CreateFunc              func(ctx context.Context, userID, email, code string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetActiveByCodeFunc     func(ctx context.Context, code string) (*models.PasswordResetToken, error)
	ListActiveByUserFunc    func(ctx context.Context, userID string) ([]*models.PasswordResetToken, error)
	MarkUsedFunc            func(ctx context.Context, id string) error
	DeleteByIDsFunc         func(ctx context.Context, ids []string) error
	DeleteByUserFunc        func(ctx context.Context, userID string) error
	DeleteExpiredByUserFunc func(ctx context.Context, userID string) error
	DeleteExpiredFunc       func(ctx context.Context) (int64, error)
}

func (m *MockPasswordResetTokenRepository) Create(ctx context.Context, userID, email, code string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, email, code, expiresAt)
	}
	return &models.PasswordResetToken{
		ID:        "token_123",
		UserID:    userID,
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockPasswordResetTokenRepository) GetActiveByCode(ctx context.Context, code string) (*models.PasswordResetToken, error) {
	if m.GetActiveByCodeFunc != nil {
		return m.GetActiveByCodeFunc(ctx, code)
	}
	return nil, models.ErrNotFound
}

func (m *MockPasswordResetTokenRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.PasswordResetToken, error) {
	if m.ListActiveByUserFunc != nil {
		return m.ListActiveByUserFunc(ctx, userID)
	}
	return []*models.PasswordResetToken{}, nil
}

func (m *MockPasswordResetTokenRepository) MarkUsed(ctx context.Context, id string) error {
	if m.MarkUsedFunc != nil {
		return m.MarkUsedFunc(ctx, id)
	}
	return nil
}

func (m *MockPasswordResetTokenRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if m.DeleteByIDsFunc != nil {
		return m.DeleteByIDsFunc(ctx, ids)
	}
	return nil
}

func (m *MockPasswordResetTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	if m.DeleteByUserFunc != nil {
		return m.DeleteByUserFunc(ctx, userID)
	}
	return nil
}

func (m *MockPasswordResetTokenRepository) DeleteExpiredByUser(ctx context.Context, userID string) error {
	if m.DeleteExpiredByUserFunc != nil {
		return m.DeleteExpiredByUserFunc(ctx, userID)
	}
	return nil
}

func (m *MockPasswordResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockEmailVerificationRepository implements EmailVerificationRepository for testing
type MockEmailVerificationRepository struct {
	CreateFunc            func(ctx context.Context, userID, code string, expiresAt time.Time) (*models.EmailVerification, error)
	GetPendingByUserFunc  func(ctx context.Context, userID string) (*models.EmailVerification, error)
	IncrementAttemptsFunc func(ctx context.Context, id string) (int, error)
	DeleteFunc            func(ctx context.Context, id string) error
	DeleteByUserFunc      func(ctx context.Context, userID string) error
}

func (m *MockEmailVerificationRepository) Create(ctx context.Context, userID, code string, expiresAt time.Time) (*models.EmailVerification, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, code, expiresAt)
	}
	return &models.EmailVerification{
		ID:        "verification_123",
		UserID:    userID,
		Code:      code,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockEmailVerificationRepository) GetPendingByUser(ctx context.Context, userID string) (*models.EmailVerification, error) {
	if m.GetPendingByUserFunc != nil {
		return m.GetPendingByUserFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockEmailVerificationRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	if m.IncrementAttemptsFunc != nil {
		return m.IncrementAttemptsFunc(ctx, id)
	}
	return 1, nil
}

func (m *MockEmailVerificationRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockEmailVerificationRepository) DeleteByUser(ctx context.Context, userID string) error {
	if m.DeleteByUserFunc != nil {
		return m.DeleteByUserFunc(ctx, userID)
	}
	return nil
}

// MockUserDetailRepository implements UserDetailRepository for testing
type MockUserDetailRepository struct {
	GetByUserIDFunc func(ctx context.Context, userID string) (*models.UserDetail, error)
	CreateFunc      func(ctx context.Context, userID string) (*models.UserDetail, error)
	UpdateFunc      func(ctx context.Context, detail *models.UserDetail) (*models.UserDetail, error)
}

func (m *MockUserDetailRepository) GetByUserID(ctx context.Context, userID string) (*models.UserDetail, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserDetailRepository) Create(ctx context.Context, userID string) (*models.UserDetail, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID)
	}
	return &models.UserDetail{ID: "detail_123", UserID: userID}, nil
}

func (m *MockUserDetailRepository) Update(ctx context.Context, detail *models.UserDetail) (*models.UserDetail, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, detail)
	}
	return detail, nil
}

// MockEmailSender implements EmailService for testing
type MockEmailSender struct {
	SendVerificationEmailFunc  func(ctx context.Context, email, code string, expiryMinutes int) error
	SendPasswordResetEmailFunc func(ctx context.Context, email, code string, expiryMinutes int) error
}

func (m *MockEmailSender) SendVerificationEmail(ctx context.Context, email, code string, expiryMinutes int) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, code, expiryMinutes)
	}
	return nil
}

func (m *MockEmailSender) SendPasswordResetEmail(ctx context.Context, email, code string, expiryMinutes int) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, code, expiryMinutes)
	}
	return nil
}

// NewTestUser creates a verified test user
func NewTestUser(id, username, email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:         id,
		Username:   username,
		Email:      email,
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewTestUserWithPassword creates a test user with the given password hash
func NewTestUserWithPassword(id, username, email, passwordHash string) *models.User {
	user := NewTestUser(id, username, email)
	user.PasswordHash = passwordHash
	return user
}

// NewTestUserUnverified creates a test user with an unverified email
func NewTestUserUnverified(id, username, email string) *models.User {
	user := NewTestUser(id, username, email)
	user.IsVerified = false
	return user
}

// NewTestResetToken creates an active reset token
func NewTestResetToken(id, userID, email, code string) *models.PasswordResetToken {
	return &models.PasswordResetToken{
		ID:        id,
		UserID:    userID,
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().Add(15 * time.Minute),
		CreatedAt: time.Now(),
	}
}

// NewTestVerification creates a pending verification code
func NewTestVerification(id, userID, code string, attempts int) *models.EmailVerification {
	return &models.EmailVerification{
		ID:        id,
		UserID:    userID,
		Code:      code,
		ExpiresAt: time.Now().Add(15 * time.Minute),
		Attempts:  attempts,
		CreatedAt: time.Now(),
	}
}

// NewTestVerificationExpired creates an expired verification code
func NewTestVerificationExpired(id, userID, code string) *models.EmailVerification {
	v := NewTestVerification(id, userID, code, 0)
	v.ExpiresAt = time.Now().Add(-1 * time.Hour)
	return v
}
