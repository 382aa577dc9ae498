package sqlite

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"adventai/backend/internal/domain"
	"adventai/backend/internal/storage"
)

// Store 嵌入式 SQLite 存储实现
//
// SQLite 同一时刻只允许一个写事务，所有写操作串行在互斥锁后面，
// 避免并发写入时的 SQLITE_BUSY。
type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

// NewStore 打开（或创建）SQLite 数据库并执行幂等建表
//
// 参数:
//   - path: 数据库文件路径，文件不存在时自动创建
func NewStore(path string) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 单写者约束，连接池收敛为 1
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store := &Store{db: db}

	// 自动执行数据库迁移（幂等，每次启动都可安全调用）
	if err := store.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 执行数据库迁移（使用 GORM AutoMigrate）
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.ContactSubmission{},
		&domain.AuditEvent{},
	)
}

// InsertContact 插入一条联系记录
//
// 返回值:
//   - *domain.ContactSubmission: 带自增 ID 和服务器时间戳的完整记录
//   - error: I/O 失败时包装 storage.ErrStorage
func (s *Store) InsertContact(name, email, message string) (*domain.ContactSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact := &domain.ContactSubmission{
		Name:    name,
		Email:   email,
		Message: message,
	}

	if err := s.db.Create(contact).Error; err != nil {
		return nil, fmt.Errorf("%w: insert contact: %v", storage.ErrStorage, err)
	}

	return contact, nil
}

// ListContacts 按 created_at 倒序返回联系记录
//
// 同一秒内插入的记录用 ID 倒序打破平局，保证列表顺序稳定。
func (s *Store) ListContacts(limit int) ([]domain.ContactSubmission, error) {
	var contacts []domain.ContactSubmission

	query := s.db.Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("%w: list contacts: %v", storage.ErrStorage, err)
	}

	return contacts, nil
}

// AppendAudit 追加一条审计事件
func (s *Store) AppendAudit(eventType domain.AuditEventType, referenceID *int64, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event := &domain.AuditEvent{
		EventType:   eventType,
		ReferenceID: referenceID,
		Detail:      domain.TruncateDetail(detail),
	}

	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("%w: append audit: %v", storage.ErrStorage, err)
	}

	return nil
}

// ListAuditEvents 按写入顺序返回审计事件
func (s *Store) ListAuditEvents(limit int) ([]domain.AuditEvent, error) {
	var events []domain.AuditEvent

	query := s.db.Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("%w: list audit events: %v", storage.ErrStorage, err)
	}

	return events, nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
