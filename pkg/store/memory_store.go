package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"creatorlab/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local
// development; production uses GormStore.
type MemoryStore struct {
	mu          sync.RWMutex
	profiles    map[string]domain.ClientProfile
	templates   map[string]domain.PromptTemplate
	documents   map[string]domain.Document
	sections    map[string]domain.Section
	checkpoints map[string]domain.Checkpoint
	budgets     map[string]domain.TokenBudget
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:    make(map[string]domain.ClientProfile),
		templates:   make(map[string]domain.PromptTemplate),
		documents:   make(map[string]domain.Document),
		sections:    make(map[string]domain.Section),
		checkpoints: make(map[string]domain.Checkpoint),
		budgets:     make(map[string]domain.TokenBudget),
	}
}

func (m *MemoryStore) SaveClientProfile(p domain.ClientProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ClientID] = p
	return nil
}

func (m *MemoryStore) GetClientProfile(clientID string) (domain.ClientProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[clientID]
	return p, ok, nil
}

func (m *MemoryStore) SaveTemplate(t domain.PromptTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	return nil
}

func (m *MemoryStore) GetTemplate(id string) (domain.PromptTemplate, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	return t, ok, nil
}

func (m *MemoryStore) GetActiveTemplate(docType domain.DocumentType) (domain.PromptTemplate, bool, error) {
	return m.findTemplate(docType, func(t domain.PromptTemplate) bool { return t.IsActive })
}

func (m *MemoryStore) GetDefaultTemplate(docType domain.DocumentType) (domain.PromptTemplate, bool, error) {
	return m.findTemplate(docType, func(t domain.PromptTemplate) bool { return t.IsDefault })
}

func (m *MemoryStore) findTemplate(docType domain.DocumentType, match func(domain.PromptTemplate) bool) (domain.PromptTemplate, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.templates {
		if t.DocumentType == docType && match(t) {
			return t, true, nil
		}
	}
	return domain.PromptTemplate{}, false, nil
}

func (m *MemoryStore) ListTemplates(docType domain.DocumentType) ([]domain.PromptTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.PromptTemplate, 0)
	for _, t := range m.templates {
		if t.DocumentType == docType {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SetTemplateActive(id string) error {
	return m.setTemplateFlag(id, true)
}

func (m *MemoryStore) SetTemplateDefault(id string) error {
	return m.setTemplateFlag(id, false)
}

func (m *MemoryStore) setTemplateFlag(id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.templates[id]
	if !ok {
		return ErrConflict
	}
	for key, t := range m.templates {
		if key == id || t.DocumentType != target.DocumentType {
			continue
		}
		if active {
			t.IsActive = false
		} else {
			t.IsDefault = false
		}
		m.templates[key] = t
	}
	if active {
		target.IsActive = true
	} else {
		target.IsDefault = true
	}
	target.UpdatedAt = time.Now().UTC()
	m.templates[id] = target
	return nil
}

func (m *MemoryStore) CreateDocument(d domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.documents {
		if existing.ClientID == d.ClientID && existing.Type == d.Type && existing.Month == d.Month {
			return ErrConflict
		}
	}
	m.documents[d.ID] = d
	return nil
}

func (m *MemoryStore) GetDocument(id string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	return d, ok, nil
}

func (m *MemoryStore) GetClientBusinessPlan(clientID string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.documents {
		if d.ClientID == clientID && d.Type == domain.DocBusinessPlan {
			return d, true, nil
		}
	}
	return domain.Document{}, false, nil
}

func (m *MemoryStore) GetClientDeliverable(clientID string, month int) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.documents {
		if d.ClientID == clientID && d.Type == domain.DocDeliverable && d.Month == month {
			return d, true, nil
		}
	}
	return domain.Document{}, false, nil
}

func (m *MemoryStore) ListClientDeliverables(clientID string) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Document, 0)
	for _, d := range m.documents {
		if d.ClientID == clientID && d.Type == domain.DocDeliverable {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (m *MemoryStore) UpdateDocumentContent(id, contentMarkdown, storageKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return nil
	}
	d.ContentMarkdown = contentMarkdown
	d.Version++
	if strings.TrimSpace(storageKey) != "" {
		d.StorageKey = storageKey
	}
	d.UpdatedAt = time.Now().UTC()
	m.documents[id] = d
	return nil
}

func (m *MemoryStore) SetDocumentStatus(id string, status domain.DocumentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return nil
	}
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	m.documents[id] = d
	return nil
}

func (m *MemoryStore) ReplaceSections(documentID string, docType domain.DocumentType, secs []domain.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sec := range m.sections {
		if sec.DocumentID == documentID && sec.DocumentType == docType {
			delete(m.sections, id)
		}
	}
	for _, sec := range secs {
		sec.DocumentID = documentID
		sec.DocumentType = docType
		m.sections[sec.ID] = sec
	}
	return nil
}

func (m *MemoryStore) ListSections(documentID string, docType domain.DocumentType) ([]domain.Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Section, 0)
	for _, sec := range m.sections {
		if sec.DocumentID == documentID && sec.DocumentType == docType {
			out = append(out, sec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *MemoryStore) UpdateSection(id, content string, tokensUsed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sec, ok := m.sections[id]
	if !ok {
		return nil
	}
	sec.Content = content
	sec.TokensUsed = tokensUsed
	sec.Version++
	sec.UpdatedAt = time.Now().UTC()
	m.sections[id] = sec
	return nil
}

func (m *MemoryStore) UpsertCheckpoint(cp domain.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.checkpoints[cp.JobID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	m.checkpoints[cp.JobID] = cp
	return nil
}

func (m *MemoryStore) GetCheckpoint(jobID string) (domain.Checkpoint, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[jobID]
	return cp, ok, nil
}

func (m *MemoryStore) SetCheckpointState(jobID string, status domain.CheckpointStatus, canResume bool, errMsg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[jobID]
	if !ok {
		return false, nil
	}
	cp.Status = status
	cp.CanResume = canResume
	cp.ErrorMessage = errMsg
	cp.UpdatedAt = time.Now().UTC()
	m.checkpoints[jobID] = cp
	return true, nil
}

func (m *MemoryStore) ListResumableCheckpoints(clientID string) ([]domain.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Checkpoint, 0)
	for _, cp := range m.checkpoints {
		if !cp.CanResume {
			continue
		}
		if cp.Status != domain.CheckpointInProgress && cp.Status != domain.CheckpointFailed {
			continue
		}
		if clientID != "" && cp.ClientID != clientID {
			continue
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteCheckpoint(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, jobID)
	return nil
}

func (m *MemoryStore) DeleteCompletedCheckpointsBefore(cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, cp := range m.checkpoints {
		if cp.Status == domain.CheckpointCompleted && cp.UpdatedAt.Before(cutoff) {
			delete(m.checkpoints, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) CreateBudget(b domain.TokenBudget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.IsActive {
		for id, existing := range m.budgets {
			if existing.Period == b.Period && existing.IsActive {
				existing.IsActive = false
				existing.UpdatedAt = time.Now().UTC()
				m.budgets[id] = existing
			}
		}
	}
	m.budgets[b.ID] = b
	return nil
}

func (m *MemoryStore) GetActiveBudget(period domain.BudgetPeriod) (domain.TokenBudget, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.budgets {
		if b.Period == period && b.IsActive {
			return b, true, nil
		}
	}
	return domain.TokenBudget{}, false, nil
}

func (m *MemoryStore) ListActiveBudgets() ([]domain.TokenBudget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.TokenBudget, 0)
	for _, b := range m.budgets {
		if b.IsActive {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func (m *MemoryStore) ChargeBudget(id string, tokens int64, cost float64) (domain.TokenBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok {
		return domain.TokenBudget{}, ErrConflict
	}
	b.TokensUsed += tokens
	b.CostUsed += cost
	tokensHit := b.TokenLimit > 0 && b.TokensUsed >= b.TokenLimit
	costHit := b.CostLimit > 0 && b.CostUsed >= b.CostLimit
	if b.AutoPauseAtLimit && (tokensHit || costHit) {
		b.IsPaused = true
	}
	b.UpdatedAt = time.Now().UTC()
	m.budgets[id] = b
	return b, nil
}

func (m *MemoryStore) SetBudgetPaused(id string, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok {
		return nil
	}
	b.IsPaused = paused
	b.UpdatedAt = time.Now().UTC()
	m.budgets[id] = b
	return nil
}

func (m *MemoryStore) MarkBudgetAlert(id string, threshold int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok {
		return nil
	}
	for _, t := range b.AlertsFired {
		if t == threshold {
			return nil
		}
	}
	b.AlertsFired = append(b.AlertsFired, threshold)
	b.UpdatedAt = time.Now().UTC()
	m.budgets[id] = b
	return nil
}
