package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/support-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

// initializeSchema applies the embedded migration script once at
// startup. All statements are idempotent.
func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

const chatColumns = `client_id, COALESCE(manager_id, 0), status, username, client_name, client_phone, client_nickname`

func scanChat(row interface{ Scan(...any) error }) (*models.Chat, error) {
	chat := &models.Chat{}
	err := row.Scan(
		&chat.ClientID,
		&chat.ManagerID,
		&chat.Status,
		&chat.Username,
		&chat.ClientName,
		&chat.ClientPhone,
		&chat.ClientNickname,
	)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *PostgresStorage) CreateChat(ctx context.Context, clientID int64, username string) error {
	query := `
		INSERT INTO chats (client_id, username, status, is_active)
		VALUES ($1, $2, 'pending', FALSE)`

	if _, err := s.db.ExecContext(ctx, query, clientID, username); err != nil {
		return fmt.Errorf("error creating chat: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ReopenChat(ctx context.Context, clientID int64, username string) (bool, error) {
	query := `
		UPDATE chats
		SET status = 'pending', is_active = FALSE, manager_id = NULL, username = $2
		WHERE client_id = $1 AND status = 'closed'`

	result, err := s.db.ExecContext(ctx, query, clientID, username)
	if err != nil {
		return false, fmt.Errorf("error reopening chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStorage) GetChat(ctx context.Context, clientID int64) (*models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE client_id = $1`

	chat, err := scanChat(s.db.QueryRowContext(ctx, query, clientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying chat: %w", err)
	}
	return chat, nil
}

func (s *PostgresStorage) ClaimChat(ctx context.Context, clientID, managerID int64) (bool, error) {
	// The conditional update is the serialization point between racing
	// claims: at most one statement matches the pending row.
	query := `
		UPDATE chats
		SET status = 'active', is_active = TRUE, manager_id = $2
		WHERE client_id = $1
		  AND (status = 'pending' OR (status = 'active' AND manager_id IS NULL))`

	result, err := s.db.ExecContext(ctx, query, clientID, managerID)
	if err != nil {
		return false, fmt.Errorf("error claiming chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStorage) CloseChat(ctx context.Context, clientID int64) (bool, error) {
	// manager_id is kept so the rating can still be attributed; it is
	// cleared on reopen.
	query := `
		UPDATE chats
		SET status = 'closed', is_active = FALSE
		WHERE client_id = $1 AND status = 'active'`

	result, err := s.db.ExecContext(ctx, query, clientID)
	if err != nil {
		return false, fmt.Errorf("error closing chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStorage) TransferChat(ctx context.Context, clientID, newManagerID int64) (bool, error) {
	query := `
		UPDATE chats
		SET manager_id = $2
		WHERE client_id = $1 AND status = 'active'`

	result, err := s.db.ExecContext(ctx, query, clientID, newManagerID)
	if err != nil {
		return false, fmt.Errorf("error transferring chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStorage) ClientInActiveChat(ctx context.Context, clientID int64) (bool, error) {
	var active bool
	query := `SELECT EXISTS(SELECT 1 FROM chats WHERE client_id = $1 AND status = 'active')`

	if err := s.db.QueryRowContext(ctx, query, clientID).Scan(&active); err != nil {
		return false, fmt.Errorf("error checking active chat: %w", err)
	}
	return active, nil
}

func (s *PostgresStorage) queryChats(ctx context.Context, query string, args ...any) ([]*models.Chat, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying chats: %w", err)
	}
	defer rows.Close()

	var chats []*models.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chats: %w", err)
	}
	return chats, nil
}

func (s *PostgresStorage) ActiveChatsByManager(ctx context.Context, managerID int64) ([]*models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE manager_id = $1 AND status = 'active' ORDER BY client_id`
	return s.queryChats(ctx, query, managerID)
}

func (s *PostgresStorage) PendingChats(ctx context.Context) ([]*models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE status = 'pending' ORDER BY client_id`
	return s.queryChats(ctx, query)
}

func (s *PostgresStorage) ActiveChats(ctx context.Context) ([]*models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE status = 'active' ORDER BY client_id`
	return s.queryChats(ctx, query)
}

func (s *PostgresStorage) ClientIDByUsername(ctx context.Context, username string) (int64, error) {
	var clientID int64
	query := `SELECT client_id FROM chats WHERE username = $1`

	err := s.db.QueryRowContext(ctx, query, username).Scan(&clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("error querying client id: %w", err)
	}
	return clientID, nil
}

func (s *PostgresStorage) UpdateChatContact(ctx context.Context, clientID int64, name, phone, nickname string) error {
	// Empty arguments keep the stored value; contact data is filled
	// progressively and never erased by a partial update.
	query := `
		UPDATE chats
		SET client_name     = COALESCE(NULLIF($2, ''), client_name),
		    client_phone    = COALESCE(NULLIF($3, ''), client_phone),
		    client_nickname = COALESCE(NULLIF($4, ''), client_nickname)
		WHERE client_id = $1`

	result, err := s.db.ExecContext(ctx, query, clientID, name, phone, nickname)
	if err != nil {
		return fmt.Errorf("error updating chat contact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const managerColumns = `id, name, is_admin, is_active, is_available, active_chats, total_chats, rating, last_activity`

func scanManager(row interface{ Scan(...any) error }) (*models.Manager, error) {
	m := &models.Manager{}
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.IsAdmin,
		&m.IsActive,
		&m.IsAvailable,
		&m.ActiveChats,
		&m.TotalChats,
		&m.Rating,
		&m.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStorage) UpsertManager(ctx context.Context, id int64, name string, isAdmin bool) error {
	query := `
		INSERT INTO managers (id, name, is_admin, is_active, is_available)
		VALUES ($1, $2, $3, TRUE, TRUE)
		ON CONFLICT (id) DO UPDATE
		SET name      = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE managers.name END,
		    is_admin  = EXCLUDED.is_admin,
		    is_active = TRUE`

	if _, err := s.db.ExecContext(ctx, query, id, name, isAdmin); err != nil {
		return fmt.Errorf("error upserting manager: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetManager(ctx context.Context, id int64) (*models.Manager, error) {
	query := `SELECT ` + managerColumns + ` FROM managers WHERE id = $1`

	m, err := scanManager(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying manager: %w", err)
	}
	return m, nil
}

func (s *PostgresStorage) ListManagers(ctx context.Context) ([]*models.Manager, error) {
	query := `SELECT ` + managerColumns + ` FROM managers WHERE is_active ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying managers: %w", err)
	}
	defer rows.Close()

	var managers []*models.Manager
	for rows.Next() {
		m, err := scanManager(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning manager: %w", err)
		}
		managers = append(managers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating managers: %w", err)
	}
	return managers, nil
}

func (s *PostgresStorage) LeastLoadedAvailable(ctx context.Context) (*models.Manager, error) {
	// Longest idle wins ties: the manager untouched for longest is the
	// most likely to be free.
	query := `
		SELECT ` + managerColumns + `
		FROM managers
		WHERE is_active AND is_available
		ORDER BY active_chats ASC, last_activity ASC
		LIMIT 1`

	m, err := scanManager(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error picking manager: %w", err)
	}
	return m, nil
}

func (s *PostgresStorage) execManagerUpdate(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating manager: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) IncrementManagerLoad(ctx context.Context, id int64) error {
	query := `
		UPDATE managers
		SET active_chats = active_chats + 1,
		    total_chats  = total_chats + 1,
		    last_activity = NOW()
		WHERE id = $1`
	return s.execManagerUpdate(ctx, query, id)
}

func (s *PostgresStorage) DecrementManagerLoad(ctx context.Context, id int64) error {
	// GREATEST floors the counter in the statement itself, so a
	// concurrent double-decrement can never drive it below zero.
	query := `
		UPDATE managers
		SET active_chats = GREATEST(active_chats - 1, 0)
		WHERE id = $1`
	return s.execManagerUpdate(ctx, query, id)
}

func (s *PostgresStorage) SetManagerAvailability(ctx context.Context, id int64, available bool) error {
	query := `
		UPDATE managers
		SET is_available = $2, last_activity = NOW()
		WHERE id = $1`
	return s.execManagerUpdate(ctx, query, id, available)
}

func (s *PostgresStorage) TouchManagerActivity(ctx context.Context, id int64) error {
	query := `UPDATE managers SET last_activity = NOW() WHERE id = $1`
	return s.execManagerUpdate(ctx, query, id)
}

func (s *PostgresStorage) UpdateManagerRating(ctx context.Context, id int64, rating float64) error {
	query := `UPDATE managers SET rating = $2 WHERE id = $1`
	return s.execManagerUpdate(ctx, query, id, rating)
}

func (s *PostgresStorage) CountAvailableManagers(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM managers WHERE is_active AND is_available`

	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting available managers: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (chat_id, sender_id, message_text, message_type, file_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, timestamp`

	err := s.db.QueryRowContext(
		ctx,
		query,
		msg.ChatID,
		msg.SenderID,
		msg.Text,
		msg.Type,
		msg.FileID,
	).Scan(&msg.ID, &msg.Timestamp)

	if err != nil {
		return fmt.Errorf("error saving message: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecentMessages(ctx context.Context, chatID int64, limit int) ([]*models.Message, error) {
	// Most recent limit rows, handed back oldest first.
	query := `
		SELECT id, chat_id, sender_id, message_text, message_type, file_id, timestamp, is_read
		FROM (
			SELECT id, chat_id, sender_id, message_text, message_type, file_id, timestamp, is_read
			FROM messages
			WHERE chat_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.SenderID,
			&msg.Text,
			&msg.Type,
			&msg.FileID,
			&msg.Timestamp,
			&msg.IsRead,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

func (s *PostgresStorage) MarkMessagesRead(ctx context.Context, chatID, readerID int64) error {
	// Only the other party's messages are touched; a reader never
	// marks their own, and is_read only ever goes false -> true.
	query := `
		UPDATE messages
		SET is_read = TRUE
		WHERE chat_id = $1 AND sender_id <> $2 AND NOT is_read`

	if _, err := s.db.ExecContext(ctx, query, chatID, readerID); err != nil {
		return fmt.Errorf("error marking messages read: %w", err)
	}
	return nil
}

func (s *PostgresStorage) UnreadCount(ctx context.Context, chatID, readerID int64) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE chat_id = $1 AND sender_id <> $2 AND NOT is_read`

	if err := s.db.QueryRowContext(ctx, query, chatID, readerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting unread messages: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) SaveRating(ctx context.Context, r *models.Rating) error {
	query := `
		INSERT INTO chat_ratings (chat_id, rating, comment, timestamp)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (chat_id) DO UPDATE
		SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, timestamp = EXCLUDED.timestamp
		RETURNING timestamp`

	if err := s.db.QueryRowContext(ctx, query, r.ChatID, r.Rating, r.Comment).Scan(&r.Timestamp); err != nil {
		return fmt.Errorf("error saving rating: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetRating(ctx context.Context, chatID int64) (*models.Rating, error) {
	r := &models.Rating{}
	query := `SELECT chat_id, rating, comment, timestamp FROM chat_ratings WHERE chat_id = $1`

	err := s.db.QueryRowContext(ctx, query, chatID).Scan(&r.ChatID, &r.Rating, &r.Comment, &r.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying rating: %w", err)
	}
	return r, nil
}

func (s *PostgresStorage) Cities(ctx context.Context) ([]*models.City, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM cities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("error querying cities: %w", err)
	}
	defer rows.Close()

	var cities []*models.City
	for rows.Next() {
		c := &models.City{}
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("error scanning city: %w", err)
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

func (s *PostgresStorage) StreetsByCity(ctx context.Context, cityID int64) ([]*models.Street, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, city_id, name FROM streets WHERE city_id = $1 ORDER BY name`, cityID)
	if err != nil {
		return nil, fmt.Errorf("error querying streets: %w", err)
	}
	defer rows.Close()

	var streets []*models.Street
	for rows.Next() {
		st := &models.Street{}
		if err := rows.Scan(&st.ID, &st.CityID, &st.Name); err != nil {
			return nil, fmt.Errorf("error scanning street: %w", err)
		}
		streets = append(streets, st)
	}
	return streets, rows.Err()
}

func (s *PostgresStorage) PointsByStreet(ctx context.Context, streetID int64) ([]*models.ServicePoint, error) {
	query := `
		SELECT id, street_id, name, address, weekday_hours, weekend_hours, contact, geo_link
		FROM service_points
		WHERE street_id = $1
		ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, streetID)
	if err != nil {
		return nil, fmt.Errorf("error querying service points: %w", err)
	}
	defer rows.Close()

	var points []*models.ServicePoint
	for rows.Next() {
		p := &models.ServicePoint{}
		err := rows.Scan(&p.ID, &p.StreetID, &p.Name, &p.Address, &p.WeekdayHours, &p.WeekendHours, &p.Contact, &p.GeoLink)
		if err != nil {
			return nil, fmt.Errorf("error scanning service point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *PostgresStorage) ProductCategories(ctx context.Context) ([]*models.ProductCategory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM product_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("error querying product categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.ProductCategory
	for rows.Next() {
		c := &models.ProductCategory{}
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("error scanning product category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *PostgresStorage) ProductsByCategory(ctx context.Context, categoryID int64) ([]*models.Product, error) {
	query := `
		SELECT id, category_id, name, description, price
		FROM products
		WHERE category_id = $1
		ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("error querying products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price); err != nil {
			return nil, fmt.Errorf("error scanning product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *PostgresStorage) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	query := `
		SELECT
			(SELECT COUNT(*) FROM managers WHERE is_active),
			(SELECT COUNT(*) FROM managers WHERE is_active AND is_available),
			(SELECT COUNT(*) FROM chats WHERE status = 'pending'),
			(SELECT COUNT(*) FROM chats WHERE status = 'active')`

	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalManagers,
		&stats.AvailableManagers,
		&stats.PendingChats,
		&stats.ActiveChats,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying dashboard stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStorage) ManagerPerformance(ctx context.Context, since time.Time) ([]*models.ManagerPerformance, error) {
	// BoundChats recounts actual active rows so the advisory counter
	// can be compared against reality in reports.
	query := `
		SELECT m.id, m.name, m.total_chats, m.active_chats,
			(SELECT COUNT(*) FROM chats c WHERE c.manager_id = m.id AND c.status = 'active'),
			COALESCE(AVG(r.rating) FILTER (WHERE r.timestamp >= $1), 0),
			COUNT(r.rating) FILTER (WHERE r.timestamp >= $1),
			COUNT(r.rating) FILTER (WHERE r.timestamp >= $1 AND r.rating >= 4),
			COUNT(r.rating) FILTER (WHERE r.timestamp >= $1 AND r.rating <= 2)
		FROM managers m
		LEFT JOIN chats c2 ON c2.manager_id = m.id
		LEFT JOIN chat_ratings r ON r.chat_id = c2.client_id
		WHERE m.is_active
		GROUP BY m.id
		ORDER BY m.id`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("error querying manager performance: %w", err)
	}
	defer rows.Close()

	var report []*models.ManagerPerformance
	for rows.Next() {
		p := &models.ManagerPerformance{}
		err := rows.Scan(
			&p.ManagerID,
			&p.Name,
			&p.TotalChats,
			&p.ActiveCounter,
			&p.BoundChats,
			&p.AvgRating,
			&p.RatingCount,
			&p.PositiveRatings,
			&p.NegativeRatings,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning manager performance: %w", err)
		}
		report = append(report, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating manager performance: %w", err)
	}
	return report, nil
}
