package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/support-bot/internal/models"
)

// MemoryStorage mirrors the Postgres semantics with mutex-guarded maps.
// Used for tests and local runs without a database.
type MemoryStorage struct {
	mu         sync.RWMutex
	chats      map[int64]*models.Chat
	managers   map[int64]*models.Manager
	messages   []*models.Message
	nextMsgID  int64
	ratings    map[int64]*models.Rating
	cities     []*models.City
	streets    []*models.Street
	points     []*models.ServicePoint
	categories []*models.ProductCategory
	products   []*models.Product
	nextDirID  int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		chats:     make(map[int64]*models.Chat),
		managers:  make(map[int64]*models.Manager),
		ratings:   make(map[int64]*models.Rating),
		nextMsgID: 1,
		nextDirID: 1,
	}
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// Chat methods

func (s *MemoryStorage) CreateChat(ctx context.Context, clientID int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats[clientID] = &models.Chat{
		ClientID: clientID,
		Username: username,
		Status:   models.ChatPending,
	}
	return nil
}

func (s *MemoryStorage) ReopenChat(ctx context.Context, clientID int64, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, exists := s.chats[clientID]
	if !exists || chat.Status != models.ChatClosed {
		return false, nil
	}
	chat.Status = models.ChatPending
	chat.ManagerID = 0
	chat.Username = username
	return true, nil
}

func (s *MemoryStorage) GetChat(ctx context.Context, clientID int64) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, exists := s.chats[clientID]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *chat
	return &copied, nil
}

func (s *MemoryStorage) ClaimChat(ctx context.Context, clientID, managerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, exists := s.chats[clientID]
	if !exists {
		return false, nil
	}
	claimable := chat.Status == models.ChatPending ||
		(chat.Status == models.ChatActive && chat.ManagerID == 0)
	if !claimable {
		return false, nil
	}
	chat.Status = models.ChatActive
	chat.ManagerID = managerID
	return true, nil
}

func (s *MemoryStorage) CloseChat(ctx context.Context, clientID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, exists := s.chats[clientID]
	if !exists || chat.Status != models.ChatActive {
		return false, nil
	}
	// Manager binding lingers until reopen, as in the SQL store.
	chat.Status = models.ChatClosed
	return true, nil
}

func (s *MemoryStorage) TransferChat(ctx context.Context, clientID, newManagerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, exists := s.chats[clientID]
	if !exists || chat.Status != models.ChatActive {
		return false, nil
	}
	chat.ManagerID = newManagerID
	return true, nil
}

func (s *MemoryStorage) ClientInActiveChat(ctx context.Context, clientID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, exists := s.chats[clientID]
	return exists && chat.Status == models.ChatActive, nil
}

func (s *MemoryStorage) chatsWhere(match func(*models.Chat) bool) []*models.Chat {
	var chats []*models.Chat
	for _, chat := range s.chats {
		if match(chat) {
			copied := *chat
			chats = append(chats, &copied)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ClientID < chats[j].ClientID })
	return chats
}

func (s *MemoryStorage) ActiveChatsByManager(ctx context.Context, managerID int64) ([]*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chatsWhere(func(c *models.Chat) bool {
		return c.Status == models.ChatActive && c.ManagerID == managerID
	}), nil
}

func (s *MemoryStorage) PendingChats(ctx context.Context) ([]*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chatsWhere(func(c *models.Chat) bool { return c.Status == models.ChatPending }), nil
}

func (s *MemoryStorage) ActiveChats(ctx context.Context) ([]*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chatsWhere(func(c *models.Chat) bool { return c.Status == models.ChatActive }), nil
}

func (s *MemoryStorage) ClientIDByUsername(ctx context.Context, username string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, chat := range s.chats {
		if chat.Username == username {
			return chat.ClientID, nil
		}
	}
	return 0, ErrNotFound
}

func (s *MemoryStorage) UpdateChatContact(ctx context.Context, clientID int64, name, phone, nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, exists := s.chats[clientID]
	if !exists {
		return ErrNotFound
	}
	if name != "" {
		chat.ClientName = name
	}
	if phone != "" {
		chat.ClientPhone = phone
	}
	if nickname != "" {
		chat.ClientNickname = nickname
	}
	return nil
}

// Manager methods

func (s *MemoryStorage) UpsertManager(ctx context.Context, id int64, name string, isAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, exists := s.managers[id]; exists {
		if name != "" {
			m.Name = name
		}
		m.IsAdmin = isAdmin
		m.IsActive = true
		return nil
	}
	s.managers[id] = &models.Manager{
		ID:           id,
		Name:         name,
		IsAdmin:      isAdmin,
		IsActive:     true,
		IsAvailable:  true,
		LastActivity: time.Now(),
	}
	return nil
}

func (s *MemoryStorage) GetManager(ctx context.Context, id int64) (*models.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.managers[id]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *MemoryStorage) ListManagers(ctx context.Context) ([]*models.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var managers []*models.Manager
	for _, m := range s.managers {
		if !m.IsActive {
			continue
		}
		copied := *m
		managers = append(managers, &copied)
	}
	sort.Slice(managers, func(i, j int) bool { return managers[i].ID < managers[j].ID })
	return managers, nil
}

func (s *MemoryStorage) LeastLoadedAvailable(ctx context.Context) (*models.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.Manager
	for _, m := range s.managers {
		if !m.IsActive || !m.IsAvailable {
			continue
		}
		if best == nil ||
			m.ActiveChats < best.ActiveChats ||
			(m.ActiveChats == best.ActiveChats && m.LastActivity.Before(best.LastActivity)) {
			best = m
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	copied := *best
	return &copied, nil
}

func (s *MemoryStorage) IncrementManagerLoad(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, exists := s.managers[id]
	if !exists {
		return ErrNotFound
	}
	m.ActiveChats++
	m.TotalChats++
	m.LastActivity = time.Now()
	return nil
}

func (s *MemoryStorage) DecrementManagerLoad(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, exists := s.managers[id]
	if !exists {
		return ErrNotFound
	}
	if m.ActiveChats > 0 {
		m.ActiveChats--
	}
	return nil
}

func (s *MemoryStorage) SetManagerAvailability(ctx context.Context, id int64, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, exists := s.managers[id]
	if !exists {
		return ErrNotFound
	}
	m.IsAvailable = available
	m.LastActivity = time.Now()
	return nil
}

func (s *MemoryStorage) TouchManagerActivity(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, exists := s.managers[id]
	if !exists {
		return ErrNotFound
	}
	m.LastActivity = time.Now()
	return nil
}

func (s *MemoryStorage) UpdateManagerRating(ctx context.Context, id int64, rating float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, exists := s.managers[id]
	if !exists {
		return ErrNotFound
	}
	m.Rating = rating
	return nil
}

func (s *MemoryStorage) CountAvailableManagers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.managers {
		if m.IsActive && m.IsAvailable {
			count++
		}
	}
	return count, nil
}

// Message methods

func (s *MemoryStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = s.nextMsgID
	s.nextMsgID++
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	copied := *msg
	s.messages = append(s.messages, &copied)
	return nil
}

func (s *MemoryStorage) RecentMessages(ctx context.Context, chatID int64, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*models.Message
	for _, msg := range s.messages {
		if msg.ChatID == chatID {
			all = append(all, msg)
		}
	}
	if limit >= 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}

	messages := make([]*models.Message, 0, len(all))
	for _, msg := range all {
		copied := *msg
		messages = append(messages, &copied)
	}
	return messages, nil
}

func (s *MemoryStorage) MarkMessagesRead(ctx context.Context, chatID, readerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.messages {
		if msg.ChatID == chatID && msg.SenderID != readerID {
			msg.IsRead = true
		}
	}
	return nil
}

func (s *MemoryStorage) UnreadCount(ctx context.Context, chatID, readerID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, msg := range s.messages {
		if msg.ChatID == chatID && msg.SenderID != readerID && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

// Rating methods

func (s *MemoryStorage) SaveRating(ctx context.Context, r *models.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.Timestamp = time.Now()
	copied := *r
	s.ratings[r.ChatID] = &copied
	return nil
}

func (s *MemoryStorage) GetRating(ctx context.Context, chatID int64) (*models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.ratings[chatID]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *r
	return &copied, nil
}

// Directory methods. The Add* helpers seed fixture data for tests and
// local runs; Postgres gets the same rows from migrations.

func (s *MemoryStorage) AddCity(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextDirID
	s.nextDirID++
	s.cities = append(s.cities, &models.City{ID: id, Name: name})
	return id
}

func (s *MemoryStorage) AddStreet(cityID int64, name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextDirID
	s.nextDirID++
	s.streets = append(s.streets, &models.Street{ID: id, CityID: cityID, Name: name})
	return id
}

func (s *MemoryStorage) AddServicePoint(p models.ServicePoint) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextDirID
	s.nextDirID++
	s.points = append(s.points, &p)
	return p.ID
}

func (s *MemoryStorage) AddProductCategory(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextDirID
	s.nextDirID++
	s.categories = append(s.categories, &models.ProductCategory{ID: id, Name: name})
	return id
}

func (s *MemoryStorage) AddProduct(p models.Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextDirID
	s.nextDirID++
	s.products = append(s.products, &p)
	return p.ID
}

func (s *MemoryStorage) Cities(ctx context.Context) ([]*models.City, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cities := make([]*models.City, len(s.cities))
	copy(cities, s.cities)
	return cities, nil
}

func (s *MemoryStorage) StreetsByCity(ctx context.Context, cityID int64) ([]*models.Street, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var streets []*models.Street
	for _, st := range s.streets {
		if st.CityID == cityID {
			streets = append(streets, st)
		}
	}
	return streets, nil
}

func (s *MemoryStorage) PointsByStreet(ctx context.Context, streetID int64) ([]*models.ServicePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var points []*models.ServicePoint
	for _, p := range s.points {
		if p.StreetID == streetID {
			points = append(points, p)
		}
	}
	return points, nil
}

func (s *MemoryStorage) ProductCategories(ctx context.Context) ([]*models.ProductCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]*models.ProductCategory, len(s.categories))
	copy(categories, s.categories)
	return categories, nil
}

func (s *MemoryStorage) ProductsByCategory(ctx context.Context, categoryID int64) ([]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var products []*models.Product
	for _, p := range s.products {
		if p.CategoryID == categoryID {
			products = append(products, p)
		}
	}
	return products, nil
}

// Report methods

func (s *MemoryStorage) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.DashboardStats{}
	for _, m := range s.managers {
		if !m.IsActive {
			continue
		}
		stats.TotalManagers++
		if m.IsAvailable {
			stats.AvailableManagers++
		}
	}
	for _, chat := range s.chats {
		switch chat.Status {
		case models.ChatPending:
			stats.PendingChats++
		case models.ChatActive:
			stats.ActiveChats++
		}
	}
	return stats, nil
}

func (s *MemoryStorage) ManagerPerformance(ctx context.Context, since time.Time) ([]*models.ManagerPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var report []*models.ManagerPerformance
	for _, m := range s.managers {
		if !m.IsActive {
			continue
		}
		p := &models.ManagerPerformance{
			ManagerID:     m.ID,
			Name:          m.Name,
			TotalChats:    m.TotalChats,
			ActiveCounter: m.ActiveChats,
		}
		ratingSum := 0
		for _, chat := range s.chats {
			if chat.ManagerID != m.ID {
				continue
			}
			if chat.Status == models.ChatActive {
				p.BoundChats++
			}
			r, rated := s.ratings[chat.ClientID]
			if !rated || r.Timestamp.Before(since) {
				continue
			}
			p.RatingCount++
			ratingSum += r.Rating
			if r.Rating >= 4 {
				p.PositiveRatings++
			}
			if r.Rating <= 2 {
				p.NegativeRatings++
			}
		}
		if p.RatingCount > 0 {
			p.AvgRating = float64(ratingSum) / float64(p.RatingCount)
		}
		report = append(report, p)
	}
	sort.Slice(report, func(i, j int) bool { return report[i].ManagerID < report[j].ManagerID })
	return report, nil
}
