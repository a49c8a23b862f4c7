package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"document_notifier/internal/domain/contact"
	"document_notifier/internal/domain/document"
)

// Application-level errors for the admin service
var (
	ErrEntityIDRequired  = errors.New("entity id is required")
	ErrRecipientRequired = errors.New("at least one \"to\" address is required")
	ErrMappingNotFound   = errors.New("contact mapping not found")
	ErrSearchUnavailable = errors.New("party search is not configured")
)

// MappingView is one override as shown to the admin.
type MappingView struct {
	EntityID   string `json:"entity_id"`
	To         string `json:"to"`
	CC         string `json:"cc"`
	Suppressed bool   `json:"suppressed,omitempty"`
}

// AdminService edits the contact override mappings and the global CC config.
type AdminService struct {
	repo     contact.Repository
	searcher document.PartySearcher // optional
	mu       sync.Mutex             // one read-modify-write at a time
}

func NewAdminService(repo contact.Repository, searcher document.PartySearcher) *AdminService {
	return &AdminService{repo: repo, searcher: searcher}
}

// ListMappings returns every override of kind sorted by entity id.
func (s *AdminService) ListMappings(ctx context.Context, kind document.Kind) ([]MappingView, error) {
	m, err := s.repo.Mappings(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	out := make([]MappingView, 0, len(m))
	for id, e := range m {
		out = append(out, toView(id, e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

// SaveMapping merges to and cc into the override of entityID. Addresses already present
// are kept in place; new ones are appended.
func (s *AdminService) SaveMapping(ctx context.Context, kind document.Kind, entityID, to, cc string) (MappingView, error) {
	id := strings.ToUpper(strings.TrimSpace(entityID))
	if id == "" {
		return MappingView{}, ErrEntityIDRequired
	}
	toList := contact.SplitAddresses(to)
	if len(toList) == 0 {
		return MappingView{}, ErrRecipientRequired
	}
	ccList := contact.SplitAddresses(cc)

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.repo.Mappings(ctx, kind)
	if err != nil {
		return MappingView{}, fmt.Errorf("failed to load mappings: %w", err)
	}
	entry := m[id].Merge(toList, ccList)
	m[id] = entry
	if err := s.repo.SaveMappings(ctx, kind, m); err != nil {
		return MappingView{}, fmt.Errorf("failed to save mappings: %w", err)
	}
	return toView(id, entry), nil
}

func (s *AdminService) DeleteMapping(ctx context.Context, kind document.Kind, entityID string) error {
	id := strings.TrimSpace(entityID)
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.repo.Mappings(ctx, kind)
	if err != nil {
		return fmt.Errorf("failed to load mappings: %w", err)
	}
	if _, ok := m[id]; !ok {
		return ErrMappingNotFound
	}
	delete(m, id)
	if err := s.repo.SaveMappings(ctx, kind, m); err != nil {
		return fmt.Errorf("failed to save mappings: %w", err)
	}
	return nil
}

func (s *AdminService) GlobalCC(ctx context.Context) (contact.GlobalCC, error) {
	return s.repo.GlobalConfig(ctx)
}

// SetGlobalCC replaces the global CC value of kind.
func (s *AdminService) SetGlobalCC(ctx context.Context, kind document.Kind, value string) (contact.GlobalCC, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.repo.GlobalConfig(ctx)
	if err != nil {
		return contact.GlobalCC{}, fmt.Errorf("failed to load global config: %w", err)
	}
	cfg = cfg.With(kind, strings.TrimSpace(value))
	if err := s.repo.SaveGlobalConfig(ctx, cfg); err != nil {
		return contact.GlobalCC{}, fmt.Errorf("failed to save global config: %w", err)
	}
	return cfg, nil
}

// SearchParties looks up customers or vendors by id or name in the source system.
func (s *AdminService) SearchParties(ctx context.Context, kind document.Kind, query string) ([]document.Party, error) {
	if s.searcher == nil {
		return nil, ErrSearchUnavailable
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []document.Party{}, nil
	}
	return s.searcher.SearchParties(ctx, kind, query)
}

func toView(id string, e contact.Entry) MappingView {
	return MappingView{
		EntityID:   id,
		To:         contact.JoinAddresses(e.To),
		CC:         contact.JoinAddresses(e.CC),
		Suppressed: e.Suppressed,
	}
}
