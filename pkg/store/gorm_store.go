package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"creatorlab/pkg/domain"
)

const migrateLockID int64 = 52815281

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent replicas do not race the schema.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&ClientProfileModel{},
			&PromptTemplateModel{},
			&DocumentModel{},
			&SectionModel{},
			&CheckpointModel{},
			&TokenBudgetModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveClientProfile registers or updates a client profile.
func (s *GormStore) SaveClientProfile(p domain.ClientProfile) error {
	model := profileToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

// GetClientProfile returns a client profile by ID.
func (s *GormStore) GetClientProfile(clientID string) (domain.ClientProfile, bool, error) {
	var model ClientProfileModel
	if err := s.db.First(&model, "client_id = ?", clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ClientProfile{}, false, nil
		}
		return domain.ClientProfile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// SaveTemplate stores or updates a prompt template.
func (s *GormStore) SaveTemplate(t domain.PromptTemplate) error {
	model := templateToModel(t)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

// GetTemplate returns one template by ID.
func (s *GormStore) GetTemplate(id string) (domain.PromptTemplate, bool, error) {
	var model PromptTemplateModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PromptTemplate{}, false, nil
		}
		return domain.PromptTemplate{}, false, err
	}
	return templateFromModel(model), true, nil
}

// GetActiveTemplate returns the template marked active for a document type.
func (s *GormStore) GetActiveTemplate(docType domain.DocumentType) (domain.PromptTemplate, bool, error) {
	return s.findTemplate("document_type = ? AND is_active", docType)
}

// GetDefaultTemplate returns the template marked default for a document type.
func (s *GormStore) GetDefaultTemplate(docType domain.DocumentType) (domain.PromptTemplate, bool, error) {
	return s.findTemplate("document_type = ? AND is_default", docType)
}

func (s *GormStore) findTemplate(cond string, args ...any) (domain.PromptTemplate, bool, error) {
	var model PromptTemplateModel
	if err := s.db.Where(cond, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PromptTemplate{}, false, nil
		}
		return domain.PromptTemplate{}, false, err
	}
	return templateFromModel(model), true, nil
}

// ListTemplates returns templates for a type ordered by creation time.
func (s *GormStore) ListTemplates(docType domain.DocumentType) ([]domain.PromptTemplate, error) {
	var models []PromptTemplateModel
	if err := s.db.Where("document_type = ?", string(docType)).
		Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PromptTemplate, 0, len(models))
	for _, m := range models {
		out = append(out, templateFromModel(m))
	}
	return out, nil
}

// SetTemplateActive flips the active flag to the given template, clearing
// the previous holder for the same type first.
func (s *GormStore) SetTemplateActive(id string) error {
	return s.setTemplateFlag(id, "is_active")
}

// SetTemplateDefault flips the default flag to the given template.
func (s *GormStore) SetTemplateDefault(id string) error {
	return s.setTemplateFlag(id, "is_default")
}

func (s *GormStore) setTemplateFlag(id, column string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var model PromptTemplateModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.Model(&PromptTemplateModel{}).
			Where("document_type = ? AND "+column+" AND id <> ?", model.DocumentType, id).
			Updates(map[string]any{column: false, "updated_at": now}).Error; err != nil {
			return err
		}
		return tx.Model(&PromptTemplateModel{}).
			Where("id = ?", id).
			Updates(map[string]any{column: true, "updated_at": now}).Error
	})
}

// CreateDocument inserts a new document. The composite unique index on
// (client_id, type, month) turns duplicate creates into ErrConflict.
func (s *GormStore) CreateDocument(d domain.Document) error {
	model := documentToModel(d)
	err := s.db.Create(&model).Error
	if err != nil && isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetDocument retrieves a document by ID.
func (s *GormStore) GetDocument(id string) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// GetClientBusinessPlan returns the client's business plan, if any.
func (s *GormStore) GetClientBusinessPlan(clientID string) (domain.Document, bool, error) {
	return s.findDocument("client_id = ? AND type = ?", clientID, string(domain.DocBusinessPlan))
}

// GetClientDeliverable returns the client's deliverable for one program month.
func (s *GormStore) GetClientDeliverable(clientID string, month int) (domain.Document, bool, error) {
	return s.findDocument("client_id = ? AND type = ? AND month = ?", clientID, string(domain.DocDeliverable), month)
}

func (s *GormStore) findDocument(cond string, args ...any) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.Where(cond, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// ListClientDeliverables returns a client's deliverables ordered by month.
func (s *GormStore) ListClientDeliverables(clientID string) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Where("client_id = ? AND type = ?", clientID, string(domain.DocDeliverable)).
		Order("month ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(models))
	for _, m := range models {
		out = append(out, documentFromModel(m))
	}
	return out, nil
}

// UpdateDocumentContent replaces the combined markdown and bumps the version.
func (s *GormStore) UpdateDocumentContent(id, contentMarkdown, storageKey string) error {
	updates := map[string]any{
		"content_markdown": contentMarkdown,
		"version":          gorm.Expr("version + 1"),
		"updated_at":       time.Now().UTC(),
	}
	if strings.TrimSpace(storageKey) != "" {
		updates["storage_key"] = storageKey
	}
	return s.db.Model(&DocumentModel{}).Where("id = ?", id).Updates(updates).Error
}

// SetDocumentStatus updates the review status.
func (s *GormStore) SetDocumentStatus(id string, status domain.DocumentStatus) error {
	return s.db.Model(&DocumentModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		}).Error
}

// ReplaceSections deletes all sections for a document and inserts fresh rows.
func (s *GormStore) ReplaceSections(documentID string, docType domain.DocumentType, secs []domain.Section) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&SectionModel{}, "document_id = ? AND document_type = ?", documentID, string(docType)).Error; err != nil {
			return err
		}
		if len(secs) == 0 {
			return nil
		}
		models := make([]SectionModel, 0, len(secs))
		for _, sec := range secs {
			model := sectionToModel(sec)
			model.DocumentID = documentID
			model.DocumentType = string(docType)
			models = append(models, model)
		}
		return tx.CreateInBatches(&models, 100).Error
	})
}

// ListSections returns a document's sections in reading order.
func (s *GormStore) ListSections(documentID string, docType domain.DocumentType) ([]domain.Section, error) {
	var models []SectionModel
	if err := s.db.Where("document_id = ? AND document_type = ?", documentID, string(docType)).
		Order("section_order ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Section, 0, len(models))
	for _, m := range models {
		out = append(out, sectionFromModel(m))
	}
	return out, nil
}

// UpdateSection rewrites a section's content in place and increments its version.
func (s *GormStore) UpdateSection(id, content string, tokensUsed int) error {
	return s.db.Model(&SectionModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"content":     content,
			"tokens_used": tokensUsed,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  time.Now().UTC(),
		}).Error
}

// UpsertCheckpoint creates or updates the progress row for a job.
func (s *GormStore) UpsertCheckpoint(cp domain.Checkpoint) error {
	model := checkpointToModel(cp)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "total_sections", "completed_sections", "current_section",
			"document_id", "generated_content", "prompt_context", "can_resume",
			"error_message", "updated_at",
		}),
	}).Create(&model).Error
}

// GetCheckpoint returns one checkpoint by job ID.
func (s *GormStore) GetCheckpoint(jobID string) (domain.Checkpoint, bool, error) {
	var model CheckpointModel
	if err := s.db.First(&model, "job_id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Checkpoint{}, false, nil
		}
		return domain.Checkpoint{}, false, err
	}
	return checkpointFromModel(model), true, nil
}

// SetCheckpointState transitions a checkpoint's status. The bool reports
// whether a row was actually updated, so callers can tell a missing job from
// a successful transition.
func (s *GormStore) SetCheckpointState(jobID string, status domain.CheckpointStatus, canResume bool, errMsg string) (bool, error) {
	res := s.db.Model(&CheckpointModel{}).Where("job_id = ?", jobID).
		Updates(map[string]any{
			"status":        string(status),
			"can_resume":    canResume,
			"error_message": errMsg,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListResumableCheckpoints returns checkpoints a retry can pick up, newest
// first, optionally filtered by client.
func (s *GormStore) ListResumableCheckpoints(clientID string) ([]domain.Checkpoint, error) {
	tx := s.db.Where("can_resume AND status IN ?", []string{
		string(domain.CheckpointInProgress),
		string(domain.CheckpointFailed),
	})
	if strings.TrimSpace(clientID) != "" {
		tx = tx.Where("client_id = ?", clientID)
	}
	var models []CheckpointModel
	if err := tx.Order("updated_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Checkpoint, 0, len(models))
	for _, m := range models {
		out = append(out, checkpointFromModel(m))
	}
	return out, nil
}

// DeleteCheckpoint removes a checkpoint row.
func (s *GormStore) DeleteCheckpoint(jobID string) error {
	return s.db.Delete(&CheckpointModel{}, "job_id = ?", jobID).Error
}

// DeleteCompletedCheckpointsBefore removes COMPLETED checkpoints older than
// the cutoff and reports how many went away.
func (s *GormStore) DeleteCompletedCheckpointsBefore(cutoff time.Time) (int64, error) {
	res := s.db.Delete(&CheckpointModel{},
		"status = ? AND updated_at < ?", string(domain.CheckpointCompleted), cutoff.UTC())
	return res.RowsAffected, res.Error
}

// CreateBudget inserts a budget and deactivates the prior active budget for
// the same period in one transaction.
func (s *GormStore) CreateBudget(b domain.TokenBudget) error {
	model := budgetToModel(b)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if model.IsActive {
			if err := tx.Model(&TokenBudgetModel{}).
				Where("period = ? AND is_active", model.Period).
				Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&model).Error
	})
}

// GetActiveBudget returns the active budget for a period.
func (s *GormStore) GetActiveBudget(period domain.BudgetPeriod) (domain.TokenBudget, bool, error) {
	var model TokenBudgetModel
	if err := s.db.Where("period = ? AND is_active", string(period)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.TokenBudget{}, false, nil
		}
		return domain.TokenBudget{}, false, err
	}
	return budgetFromModel(model), true, nil
}

// ListActiveBudgets returns the active budget of every period.
func (s *GormStore) ListActiveBudgets() ([]domain.TokenBudget, error) {
	var models []TokenBudgetModel
	if err := s.db.Where("is_active").Order("period ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.TokenBudget, 0, len(models))
	for _, m := range models {
		out = append(out, budgetFromModel(m))
	}
	return out, nil
}

// ChargeBudget adds usage in a single conditional UPDATE so the increment and
// the auto-pause decision cannot race each other across concurrent calls.
func (s *GormStore) ChargeBudget(id string, tokens int64, cost float64) (domain.TokenBudget, error) {
	now := time.Now().UTC()
	if err := s.db.Exec(`
		UPDATE token_budget_models
		SET tokens_used = tokens_used + ?,
		    cost_used = cost_used + ?,
		    is_paused = CASE
		        WHEN auto_pause_at_limit
		             AND ((token_limit > 0 AND tokens_used + ? >= token_limit)
		               OR (cost_limit > 0 AND cost_used + ? >= cost_limit))
		        THEN TRUE
		        ELSE is_paused
		    END,
		    updated_at = ?
		WHERE id = ?`,
		tokens, cost, tokens, cost, now, id).Error; err != nil {
		return domain.TokenBudget{}, err
	}
	var model TokenBudgetModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		return domain.TokenBudget{}, err
	}
	return budgetFromModel(model), nil
}

// SetBudgetPaused pauses or unpauses a budget.
func (s *GormStore) SetBudgetPaused(id string, paused bool) error {
	return s.db.Model(&TokenBudgetModel{}).Where("id = ?", id).
		Updates(map[string]any{"is_paused": paused, "updated_at": time.Now().UTC()}).Error
}

// MarkBudgetAlert records that an alert threshold fired for a budget.
func (s *GormStore) MarkBudgetAlert(id string, threshold int) error {
	var model TokenBudgetModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		return err
	}
	fired := intsFromJSON(model.AlertsFired)
	for _, t := range fired {
		if t == threshold {
			return nil
		}
	}
	fired = append(fired, threshold)
	raw, _ := json.Marshal(fired)
	return s.db.Model(&TokenBudgetModel{}).Where("id = ?", id).
		Updates(map[string]any{"alerts_fired": datatypes.JSON(raw), "updated_at": time.Now().UTC()}).Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}

func profileToModel(p domain.ClientProfile) ClientProfileModel {
	return ClientProfileModel{
		ClientID:           p.ClientID,
		Name:               p.Name,
		BusinessName:       p.BusinessName,
		Niche:              p.Niche,
		VisionStatement:    p.VisionStatement,
		TargetAudience:     p.TargetAudience,
		AudienceAge:        p.AudienceAge,
		AudiencePainPoints: stringsToJSON(p.AudiencePainPoints),
		BrandPersonality:   stringsToJSON(p.BrandPersonality),
		BrandValues:        stringsToJSON(p.BrandValues),
		ContentPillars:     stringsToJSON(p.ContentPillars),
		CurrentPlatforms:   stringsToJSON(p.CurrentPlatforms),
		CurrentFollowers:   p.CurrentFollowers,
		MonthlyRevenue:     p.MonthlyRevenue,
		RevenueGoal:        p.RevenueGoal,
		ScalingGoals:       stringsToJSON(p.ScalingGoals),
		BiggestChallenge:   p.BiggestChallenge,
		OnboardedAt:        p.OnboardedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func profileFromModel(m ClientProfileModel) domain.ClientProfile {
	return domain.ClientProfile{
		ClientID:           m.ClientID,
		Name:               m.Name,
		BusinessName:       m.BusinessName,
		Niche:              m.Niche,
		VisionStatement:    m.VisionStatement,
		TargetAudience:     m.TargetAudience,
		AudienceAge:        m.AudienceAge,
		AudiencePainPoints: stringsFromJSON(m.AudiencePainPoints),
		BrandPersonality:   stringsFromJSON(m.BrandPersonality),
		BrandValues:        stringsFromJSON(m.BrandValues),
		ContentPillars:     stringsFromJSON(m.ContentPillars),
		CurrentPlatforms:   stringsFromJSON(m.CurrentPlatforms),
		CurrentFollowers:   m.CurrentFollowers,
		MonthlyRevenue:     m.MonthlyRevenue,
		RevenueGoal:        m.RevenueGoal,
		ScalingGoals:       stringsFromJSON(m.ScalingGoals),
		BiggestChallenge:   m.BiggestChallenge,
		OnboardedAt:        m.OnboardedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func templateToModel(t domain.PromptTemplate) PromptTemplateModel {
	return PromptTemplateModel{
		ID:           t.ID,
		DocumentType: string(t.DocumentType),
		Name:         t.Name,
		SystemPrompt: t.SystemPrompt,
		Content:      t.Content,
		Variables:    stringsToJSON(t.Variables),
		IsActive:     t.IsActive,
		IsDefault:    t.IsDefault,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func templateFromModel(m PromptTemplateModel) domain.PromptTemplate {
	return domain.PromptTemplate{
		ID:           m.ID,
		DocumentType: domain.DocumentType(m.DocumentType),
		Name:         m.Name,
		SystemPrompt: m.SystemPrompt,
		Content:      m.Content,
		Variables:    stringsFromJSON(m.Variables),
		IsActive:     m.IsActive,
		IsDefault:    m.IsDefault,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func documentToModel(d domain.Document) DocumentModel {
	return DocumentModel{
		ID:              d.ID,
		ClientID:        d.ClientID,
		Type:            string(d.Type),
		Month:           d.Month,
		Title:           d.Title,
		Version:         d.Version,
		Status:          string(d.Status),
		ContentMarkdown: d.ContentMarkdown,
		StorageKey:      d.StorageKey,
		GeneratedBy:     d.GeneratedBy,
		GeneratedAt:     d.GeneratedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	return domain.Document{
		ID:              m.ID,
		ClientID:        m.ClientID,
		Type:            domain.DocumentType(m.Type),
		Month:           m.Month,
		Title:           m.Title,
		Version:         m.Version,
		Status:          domain.DocumentStatus(m.Status),
		ContentMarkdown: m.ContentMarkdown,
		StorageKey:      m.StorageKey,
		GeneratedBy:     m.GeneratedBy,
		GeneratedAt:     m.GeneratedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func sectionToModel(sec domain.Section) SectionModel {
	return SectionModel{
		ID:           sec.ID,
		DocumentID:   sec.DocumentID,
		DocumentType: string(sec.DocumentType),
		Name:         sec.Name,
		SectionOrder: sec.Order,
		Content:      sec.Content,
		Version:      sec.Version,
		TokensUsed:   sec.TokensUsed,
		CreatedAt:    sec.CreatedAt,
		UpdatedAt:    sec.UpdatedAt,
	}
}

func sectionFromModel(m SectionModel) domain.Section {
	return domain.Section{
		ID:           m.ID,
		DocumentID:   m.DocumentID,
		DocumentType: domain.DocumentType(m.DocumentType),
		Name:         m.Name,
		Order:        m.SectionOrder,
		Content:      m.Content,
		Version:      m.Version,
		TokensUsed:   m.TokensUsed,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func checkpointToModel(cp domain.Checkpoint) CheckpointModel {
	content, _ := json.Marshal(cp.GeneratedContent)
	promptCtx, _ := json.Marshal(cp.PromptContext)
	return CheckpointModel{
		JobID:             cp.JobID,
		JobType:           string(cp.JobType),
		ClientID:          cp.ClientID,
		Month:             cp.Month,
		Status:            string(cp.Status),
		TotalSections:     cp.TotalSections,
		CompletedSections: cp.CompletedSections,
		CurrentSection:    cp.CurrentSection,
		DocumentID:        cp.DocumentID,
		GeneratedContent:  content,
		PromptContext:     promptCtx,
		CanResume:         cp.CanResume,
		ErrorMessage:      cp.ErrorMessage,
		RequestedBy:       cp.RequestedBy,
		CreatedAt:         cp.CreatedAt,
		UpdatedAt:         cp.UpdatedAt,
	}
}

func checkpointFromModel(m CheckpointModel) domain.Checkpoint {
	var content, promptCtx map[string]string
	if len(m.GeneratedContent) > 0 {
		_ = json.Unmarshal(m.GeneratedContent, &content)
	}
	if len(m.PromptContext) > 0 {
		_ = json.Unmarshal(m.PromptContext, &promptCtx)
	}
	return domain.Checkpoint{
		JobID:             m.JobID,
		JobType:           domain.DocumentType(m.JobType),
		ClientID:          m.ClientID,
		Month:             m.Month,
		Status:            domain.CheckpointStatus(m.Status),
		TotalSections:     m.TotalSections,
		CompletedSections: m.CompletedSections,
		CurrentSection:    m.CurrentSection,
		DocumentID:        m.DocumentID,
		GeneratedContent:  content,
		PromptContext:     promptCtx,
		CanResume:         m.CanResume,
		ErrorMessage:      m.ErrorMessage,
		RequestedBy:       m.RequestedBy,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func budgetToModel(b domain.TokenBudget) TokenBudgetModel {
	alerts, _ := json.Marshal(b.AlertsFired)
	return TokenBudgetModel{
		ID:               b.ID,
		Period:           string(b.Period),
		TokenLimit:       b.TokenLimit,
		CostLimit:        b.CostLimit,
		TokensUsed:       b.TokensUsed,
		CostUsed:         b.CostUsed,
		IsActive:         b.IsActive,
		IsPaused:         b.IsPaused,
		AlertsFired:      alerts,
		AutoPauseAtLimit: b.AutoPauseAtLimit,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func budgetFromModel(m TokenBudgetModel) domain.TokenBudget {
	return domain.TokenBudget{
		ID:               m.ID,
		Period:           domain.BudgetPeriod(m.Period),
		TokenLimit:       m.TokenLimit,
		CostLimit:        m.CostLimit,
		TokensUsed:       m.TokensUsed,
		CostUsed:         m.CostUsed,
		IsActive:         m.IsActive,
		IsPaused:         m.IsPaused,
		AlertsFired:      intsFromJSON(m.AlertsFired),
		AutoPauseAtLimit: m.AutoPauseAtLimit,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func stringsToJSON(values []string) []byte {
	raw, _ := json.Marshal(values)
	return raw
}

func stringsFromJSON(raw []byte) []string {
	var out []string
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

func intsFromJSON(raw []byte) []int {
	var out []int
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}
