// Package app is the generation orchestrator: it builds prompt context,
// renders templates, drives per-section completion calls with checkpointed
// progress, and persists the resulting documents and sections.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"creatorlab/internal/doclock"
	"creatorlab/pkg/ai"
	"creatorlab/pkg/checkpoint"
	"creatorlab/pkg/completion"
	"creatorlab/pkg/domain"
	"creatorlab/pkg/notify"
	"creatorlab/pkg/queue"
	"creatorlab/pkg/sections"
	"creatorlab/pkg/storage"
	"creatorlab/pkg/store"
)

// DocumentLocker serializes writers per target document.
type DocumentLocker interface {
	Acquire(ctx context.Context, clientID string, docType string, month int, owner string) (func(), error)
}

// Config holds runtime configuration. Store, Completion, and the other
// collaborators may be injected directly; otherwise they are built from the
// connection settings.
type Config struct {
	DatabaseURL string
	Store       store.Store

	Completion *completion.Service
	Checkpoint *checkpoint.Manager
	Locker     DocumentLocker
	Objects    storage.ObjectStore
	Notifier   notify.Publisher
	Queue      *queue.RedisJobQueue

	RedisAddr     string
	RedisPassword string

	QueueStream            string
	QueueGroup             string
	QueueConcurrency       int
	QueueMaxRetries        int
	QueueRetryDelaySeconds int

	Provider        string
	ProviderBaseURL string
	ProviderAPIKey  string
	Model           string
	PricePerKTokens float64
	CacheTTLHours   int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	AMQPURL      string
	AMQPExchange string
}

// App drives document generation end to end.
type App struct {
	store       store.Store
	completion  *completion.Service
	checkpoints *checkpoint.Manager
	locker      DocumentLocker
	objects     storage.ObjectStore
	notifier    notify.Publisher
	queue       *queue.RedisJobQueue
	cacheTTL    time.Duration
}

// New constructs the generation service with persistence and providers.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	svc := cfg.Completion
	if svc == nil {
		generator, err := buildGenerator(cfg)
		if err != nil {
			return nil, err
		}
		var cache completion.Cache
		if cfg.RedisAddr != "" {
			cache, err = completion.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, "")
			if err != nil {
				return nil, fmt.Errorf("init completion cache: %w", err)
			}
		}
		svc, err = completion.NewService(generator, cache, dataStore, cfg.PricePerKTokens)
		if err != nil {
			return nil, err
		}
	}

	checkpoints := cfg.Checkpoint
	if checkpoints == nil {
		checkpoints = checkpoint.NewManager(dataStore)
	}

	objects := cfg.Objects
	if objects == nil && cfg.MinioEndpoint != "" {
		var err error
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}

	notifier := cfg.Notifier
	if notifier == nil && cfg.AMQPURL != "" {
		var err error
		notifier, err = notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, fmt.Errorf("init notifier: %w", err)
		}
	}
	if notifier == nil {
		notifier = notify.NopPublisher{}
	}

	jobQueue := cfg.Queue
	if jobQueue == nil && cfg.RedisAddr != "" {
		var err error
		jobQueue, err = queue.NewRedisJobQueue(queue.RedisQueueConfig{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			Stream:     defaultQueueStream(cfg.QueueStream),
			Group:      defaultQueueGroup(cfg.QueueGroup),
			MaxRetries: cfg.QueueMaxRetries,
			RetryDelay: time.Duration(cfg.QueueRetryDelaySeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
	}

	cacheTTL := time.Duration(cfg.CacheTTLHours) * time.Hour
	if cacheTTL <= 0 {
		cacheTTL = completion.DefaultCacheTTL
	}

	return &App{
		store:       dataStore,
		completion:  svc,
		checkpoints: checkpoints,
		locker:      cfg.Locker,
		objects:     objects,
		notifier:    notifier,
		queue:       jobQueue,
		cacheTTL:    cacheTTL,
	}, nil
}

func buildGenerator(cfg Config) (ai.TextGenerator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "openai":
		if cfg.ProviderAPIKey == "" {
			return nil, fmt.Errorf("provider api key required")
		}
		return ai.NewOpenAICompatGenerator(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.Model), nil
	case "ollama":
		return ai.NewOllamaGenerator(ai.NewOllamaClient(cfg.ProviderBaseURL), cfg.Model), nil
	case "gemini":
		client, err := ai.NewGeminiClient(cfg.ProviderAPIKey)
		if err != nil {
			return nil, err
		}
		return ai.NewGeminiGenerator(client, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown completion provider: %s", provider)
	}
}

func defaultQueueStream(name string) string {
	if strings.TrimSpace(name) == "" {
		return "creatorlab:generation"
	}
	return name
}

func defaultQueueGroup(name string) string {
	if strings.TrimSpace(name) == "" {
		return "generation"
	}
	return name
}

// GenerateBusinessPlan produces a client's business plan. A client has at
// most one; a second request fails with ErrBusinessPlanExists.
func (a *App) GenerateBusinessPlan(ctx context.Context, clientID, requestedBy string) (domain.Document, error) {
	return a.generate(ctx, genRequest{
		jobID:       uuid.NewString(),
		docType:     domain.DocBusinessPlan,
		clientID:    clientID,
		requestedBy: requestedBy,
	})
}

// GenerateDeliverable produces the deliverable for one program month.
func (a *App) GenerateDeliverable(ctx context.Context, clientID string, month int, requestedBy string) (domain.Document, error) {
	if month < 1 || month > domain.ProgramMonths {
		return domain.Document{}, fmt.Errorf("%w: got %d", ErrInvalidMonth, month)
	}
	return a.generate(ctx, genRequest{
		jobID:       uuid.NewString(),
		docType:     domain.DocDeliverable,
		clientID:    clientID,
		month:       month,
		requestedBy: requestedBy,
	})
}

// ResumeJob picks a checkpointed generation back up from the last completed
// section, reusing the prompt context snapshotted at the original start.
func (a *App) ResumeJob(ctx context.Context, jobID string) (domain.Document, error) {
	cp, err := a.checkpoints.Get(jobID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return domain.Document{}, fmt.Errorf("%w: %s", ErrCheckpointNotFound, jobID)
		}
		return domain.Document{}, err
	}
	if !cp.CanResume {
		return domain.Document{}, fmt.Errorf("%w: %s", ErrJobNotResumable, jobID)
	}
	return a.generate(ctx, genRequest{
		jobID:       cp.JobID,
		docType:     cp.JobType,
		clientID:    cp.ClientID,
		month:       cp.Month,
		requestedBy: cp.RequestedBy,
		resume:      &cp,
	})
}

type genRequest struct {
	jobID       string
	docType     domain.DocumentType
	clientID    string
	month       int
	requestedBy string
	resume      *domain.Checkpoint
}

// generate runs the checkpointed per-section pipeline: plan sections from
// the rendered template, generate each missing one, then persist sections,
// document, and archive snapshot under the document lock.
func (a *App) generate(ctx context.Context, req genRequest) (domain.Document, error) {
	if err := a.checkConflict(req.clientID, req.docType, req.month); err != nil {
		return domain.Document{}, err
	}

	release, err := a.lock(ctx, req.clientID, req.docType, req.month, req.jobID)
	if err != nil {
		return domain.Document{}, err
	}
	defer release()

	vars, err := a.contextFor(ctx, req)
	if err != nil {
		return domain.Document{}, err
	}
	tpl, err := a.LoadTemplate(req.docType)
	if err != nil {
		return domain.Document{}, err
	}

	rendered := RenderTemplate(tpl.Content, vars)
	planned := sections.Parse(rendered)
	if len(planned) == 0 {
		// Template without headings: treat the whole prompt as one section.
		planned = []sections.Section{{Title: documentTitle(req.docType, req.month, vars), Content: rendered, Order: 1}}
	}

	cp := domain.Checkpoint{
		JobID:            req.jobID,
		JobType:          req.docType,
		ClientID:         req.clientID,
		Month:            req.month,
		TotalSections:    len(planned),
		GeneratedContent: map[string]string{},
		PromptContext:    vars,
		RequestedBy:      req.requestedBy,
	}
	if req.resume != nil {
		cp = *req.resume
		cp.TotalSections = len(planned)
		if cp.GeneratedContent == nil {
			cp.GeneratedContent = map[string]string{}
		}
	}

	generated := make([]sections.Section, 0, len(planned))
	tokensBySection := make(map[string]int, len(planned))
	for _, plan := range planned {
		if body, ok := cp.GeneratedContent[plan.Title]; ok {
			generated = append(generated, sections.Section{Title: plan.Title, Content: body, Order: plan.Order})
			continue
		}
		cp.CurrentSection = plan.Title
		if err := a.checkpoints.Save(cp); err != nil {
			return domain.Document{}, err
		}
		result, err := a.completion.Generate(ctx, completion.Request{
			Prompt:       sectionPrompt(plan),
			SystemPrompt: tpl.SystemPrompt,
			Operation:    "section:" + plan.Title,
			ClientID:     req.clientID,
			RequestedBy:  req.requestedBy,
			UseCache:     true,
			CacheTTL:     a.cacheTTL,
		})
		if err != nil {
			if failErr := a.checkpoints.Fail(req.jobID, err.Error()); failErr != nil && !errors.Is(failErr, checkpoint.ErrNotFound) {
				slog.Error("checkpoint fail mark failed", "job", req.jobID, "err", failErr)
			}
			a.notifier.Publish(ctx, notify.Event{
				Kind:         notify.EventJobFailed,
				ClientID:     req.clientID,
				DocumentType: req.docType,
				JobID:        req.jobID,
				Message:      err.Error(),
			})
			return domain.Document{}, err
		}
		body := sections.StripEchoedHeading(result.Text)
		cp.GeneratedContent[plan.Title] = body
		cp.CompletedSections++
		tokensBySection[plan.Title] = result.TokensUsed
		generated = append(generated, sections.Section{Title: plan.Title, Content: body, Order: plan.Order})
		if err := a.checkpoints.Save(cp); err != nil {
			return domain.Document{}, err
		}
	}

	doc, err := a.persistGenerated(ctx, req, vars, generated, tokensBySection)
	if err != nil {
		if failErr := a.checkpoints.Fail(req.jobID, err.Error()); failErr != nil && !errors.Is(failErr, checkpoint.ErrNotFound) {
			slog.Error("checkpoint fail mark failed", "job", req.jobID, "err", failErr)
		}
		return domain.Document{}, err
	}
	if err := a.checkpoints.Complete(req.jobID); err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
		slog.Error("checkpoint complete mark failed", "job", req.jobID, "err", err)
	}
	a.notifier.Publish(ctx, notify.Event{
		Kind:         notify.EventDocumentGenerated,
		ClientID:     req.clientID,
		DocumentID:   doc.ID,
		DocumentType: req.docType,
		JobID:        req.jobID,
	})
	return doc, nil
}

func (a *App) checkConflict(clientID string, docType domain.DocumentType, month int) error {
	switch docType {
	case domain.DocBusinessPlan:
		if _, ok, err := a.store.GetClientBusinessPlan(clientID); err != nil {
			return fmt.Errorf("check existing business plan: %w", err)
		} else if ok {
			return fmt.Errorf("%w: %s", ErrBusinessPlanExists, clientID)
		}
	case domain.DocDeliverable:
		if _, ok, err := a.store.GetClientDeliverable(clientID, month); err != nil {
			return fmt.Errorf("check existing deliverable: %w", err)
		} else if ok {
			return fmt.Errorf("%w: %s month %d", ErrDeliverableExists, clientID, month)
		}
	}
	return nil
}

func (a *App) contextFor(ctx context.Context, req genRequest) (map[string]string, error) {
	if req.resume != nil && len(req.resume.PromptContext) > 0 {
		return req.resume.PromptContext, nil
	}
	if req.docType == domain.DocDeliverable {
		return a.BuildDeliverableContext(ctx, req.clientID, req.month)
	}
	return a.BuildContext(ctx, req.clientID)
}

func (a *App) lock(ctx context.Context, clientID string, docType domain.DocumentType, month int, owner string) (func(), error) {
	if a.locker == nil {
		return func() {}, nil
	}
	release, err := a.locker.Acquire(ctx, clientID, string(docType), month, owner)
	if err != nil {
		if errors.Is(err, doclock.ErrLocked) {
			return nil, fmt.Errorf("%w: %s %s", ErrDocumentBusy, clientID, docType)
		}
		return nil, err
	}
	return release, nil
}

func (a *App) persistGenerated(ctx context.Context, req genRequest, vars map[string]string, generated []sections.Section, tokensBySection map[string]int) (domain.Document, error) {
	markdown := sections.Combine(generated)
	now := time.Now().UTC()
	doc := domain.Document{
		ID:              uuid.NewString(),
		ClientID:        req.clientID,
		Type:            req.docType,
		Month:           req.month,
		Title:           documentTitle(req.docType, req.month, vars),
		Version:         1,
		Status:          domain.StatusDraft,
		ContentMarkdown: markdown,
		GeneratedBy:     req.requestedBy,
		GeneratedAt:     now,
		UpdatedAt:       now,
	}
	doc.StorageKey = storage.ArchiveKey(doc.ClientID, doc.ID, doc.Version)
	if err := a.store.CreateDocument(doc); err != nil {
		if errors.Is(err, store.ErrConflict) {
			if req.docType == domain.DocBusinessPlan {
				return domain.Document{}, fmt.Errorf("%w: %s", ErrBusinessPlanExists, req.clientID)
			}
			return domain.Document{}, fmt.Errorf("%w: %s month %d", ErrDeliverableExists, req.clientID, req.month)
		}
		return domain.Document{}, fmt.Errorf("persist document: %w", err)
	}

	rows := make([]domain.Section, 0, len(generated))
	for _, s := range generated {
		rows = append(rows, domain.Section{
			ID:           uuid.NewString(),
			DocumentID:   doc.ID,
			DocumentType: req.docType,
			Name:         s.Title,
			Order:        s.Order,
			Content:      s.Content,
			Version:      1,
			TokensUsed:   tokensBySection[s.Title],
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if err := a.store.ReplaceSections(doc.ID, req.docType, rows); err != nil {
		return domain.Document{}, fmt.Errorf("persist sections: %w", err)
	}
	a.archive(ctx, doc)
	return doc, nil
}

// archive writes an immutable markdown snapshot of the document version.
// Best effort: the database row is the source of truth.
func (a *App) archive(ctx context.Context, doc domain.Document) {
	if a.objects == nil {
		return
	}
	key := storage.ArchiveKey(doc.ClientID, doc.ID, doc.Version)
	if err := storage.PutMarkdown(ctx, a.objects, key, doc.ContentMarkdown); err != nil {
		slog.Warn("document archive failed", "document", doc.ID, "key", key, "err", err)
	}
}

func documentTitle(docType domain.DocumentType, month int, vars map[string]string) string {
	name := vars["business_name"]
	if name == "" {
		name = vars["client_name"]
	}
	if docType == domain.DocDeliverable {
		return fmt.Sprintf("Month %d: %s", month, monthTitles[month])
	}
	if name == "" {
		return "Business Plan"
	}
	return name + " Business Plan"
}

func sectionPrompt(plan sections.Section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the %q section of the document.\n\n", plan.Title)
	b.WriteString(plan.Content)
	b.WriteString("\n\nReturn only the section body in markdown, without repeating the section heading.")
	return b.String()
}

// RegenerateSections regenerates the named sections of a document in place
// and recombines the full markdown. Names not present among the stored
// sections are skipped; the count of sections actually regenerated is
// returned, which may be smaller than requested.
func (a *App) RegenerateSections(ctx context.Context, documentID string, names []string, requestedBy string) (int, domain.Document, error) {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return 0, domain.Document{}, ErrEmptySectionList
	}
	doc, ok, err := a.store.GetDocument(documentID)
	if err != nil {
		return 0, domain.Document{}, fmt.Errorf("load document: %w", err)
	}
	if !ok {
		return 0, domain.Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}

	release, err := a.lock(ctx, doc.ClientID, doc.Type, doc.Month, uuid.NewString())
	if err != nil {
		return 0, domain.Document{}, err
	}
	defer release()

	stored, err := a.ensureSections(doc)
	if err != nil {
		return 0, domain.Document{}, err
	}

	var vars map[string]string
	if doc.Type == domain.DocDeliverable {
		vars, err = a.BuildDeliverableContext(ctx, doc.ClientID, doc.Month)
	} else {
		vars, err = a.BuildContext(ctx, doc.ClientID)
	}
	if err != nil {
		return 0, domain.Document{}, err
	}
	tpl, err := a.LoadTemplate(doc.Type)
	if err != nil {
		return 0, domain.Document{}, err
	}

	byName := make(map[string]domain.Section, len(stored))
	for _, s := range stored {
		byName[s.Name] = s
	}

	count := 0
	for _, name := range cleaned {
		sec, ok := byName[name]
		if !ok {
			slog.Info("skipping unknown section", "document", documentID, "section", name)
			continue
		}
		result, err := a.completion.Generate(ctx, completion.Request{
			Prompt:       regenPrompt(sec, doc, vars),
			SystemPrompt: tpl.SystemPrompt,
			Operation:    "regenerate:" + name,
			ClientID:     doc.ClientID,
			RequestedBy:  requestedBy,
		})
		if err != nil {
			return count, domain.Document{}, err
		}
		body := sections.StripEchoedHeading(result.Text)
		if err := a.store.UpdateSection(sec.ID, body, result.TokensUsed); err != nil {
			return count, domain.Document{}, fmt.Errorf("update section %q: %w", name, err)
		}
		count++
	}

	// Nothing was regenerated: leave the document untouched rather than
	// recombining (and, for a document with no parseable sections, wiping
	// its markdown with an empty combine).
	if count == 0 {
		return 0, doc, nil
	}

	updated, err := a.store.ListSections(doc.ID, doc.Type)
	if err != nil {
		return count, domain.Document{}, fmt.Errorf("reload sections: %w", err)
	}
	parts := make([]sections.Section, 0, len(updated))
	for _, s := range updated {
		parts = append(parts, sections.Section{Title: s.Name, Content: s.Content, Order: s.Order})
	}
	markdown := sections.Combine(parts)
	storageKey := storage.ArchiveKey(doc.ClientID, doc.ID, doc.Version+1)
	if err := a.store.UpdateDocumentContent(doc.ID, markdown, storageKey); err != nil {
		return count, domain.Document{}, fmt.Errorf("persist recombined document: %w", err)
	}
	doc, _, err = a.store.GetDocument(doc.ID)
	if err != nil {
		return count, domain.Document{}, fmt.Errorf("reload document: %w", err)
	}
	a.archive(ctx, doc)
	a.notifier.Publish(ctx, notify.Event{
		Kind:         notify.EventSectionsRegenerated,
		ClientID:     doc.ClientID,
		DocumentID:   doc.ID,
		DocumentType: doc.Type,
		Sections:     cleaned,
	})
	return count, doc, nil
}

// ensureSections returns the stored sections for a document, parsing and
// storing them from the current markdown when none exist yet.
func (a *App) ensureSections(doc domain.Document) ([]domain.Section, error) {
	stored, err := a.store.ListSections(doc.ID, doc.Type)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	if len(stored) > 0 {
		return stored, nil
	}
	return a.StoreSections(doc, doc.ContentMarkdown, 0)
}

// StoreSections parses markdown and replaces the document's stored sections
// wholesale. tokensUsed is apportioned evenly across sections by integer
// division; any remainder is not assigned.
func (a *App) StoreSections(doc domain.Document, markdown string, tokensUsed int) ([]domain.Section, error) {
	parsed := sections.Parse(markdown)
	if len(parsed) == 0 {
		return nil, nil
	}
	perSection := tokensUsed / len(parsed)
	now := time.Now().UTC()
	rows := make([]domain.Section, 0, len(parsed))
	for _, s := range parsed {
		rows = append(rows, domain.Section{
			ID:           uuid.NewString(),
			DocumentID:   doc.ID,
			DocumentType: doc.Type,
			Name:         s.Title,
			Order:        s.Order,
			Content:      s.Content,
			Version:      1,
			TokensUsed:   perSection,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if err := a.store.ReplaceSections(doc.ID, doc.Type, rows); err != nil {
		return nil, fmt.Errorf("store parsed sections: %w", err)
	}
	return a.store.ListSections(doc.ID, doc.Type)
}

func regenPrompt(sec domain.Section, doc domain.Document, vars map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Regenerate the %q section of %q.\n\n", sec.Name, doc.Title)
	fmt.Fprintf(&b, "Client: %s. Niche: %s.\n", vars["client_name"], vars["niche"])
	b.WriteString("Current section content:\n\n")
	b.WriteString(sec.Content)
	b.WriteString("\n\nReturn only the improved section body in markdown, without repeating the section heading.")
	return b.String()
}

// RegenerateForProfileChange regenerates the sections derived from the given
// client profile fields. Fields with no mapped section contribute nothing; if
// no field maps to a section the document is returned unchanged.
func (a *App) RegenerateForProfileChange(ctx context.Context, documentID string, changedFields []string, requestedBy string) (int, domain.Document, error) {
	names := sections.Affected(changedFields)
	if len(names) == 0 {
		doc, err := a.GetDocument(documentID)
		if err != nil {
			return 0, domain.Document{}, err
		}
		return 0, doc, nil
	}
	return a.RegenerateSections(ctx, documentID, names, requestedBy)
}

// GetDocument returns one document by ID.
func (a *App) GetDocument(id string) (domain.Document, error) {
	doc, ok, err := a.store.GetDocument(id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("load document: %w", err)
	}
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc, nil
}

// DownloadURL returns a presigned URL for the archived markdown snapshot.
func (a *App) DownloadURL(ctx context.Context, id string) (string, error) {
	doc, err := a.GetDocument(id)
	if err != nil {
		return "", err
	}
	if a.objects == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	key := doc.StorageKey
	if key == "" {
		key = storage.ArchiveKey(doc.ClientID, doc.ID, doc.Version)
	}
	url, err := a.objects.PresignGet(ctx, key, 15*time.Minute)
	if err != nil {
		return "", fmt.Errorf("presign document download: %w", err)
	}
	return url, nil
}

// CheckpointView is a resumable checkpoint with derived progress.
type CheckpointView struct {
	domain.Checkpoint
	Progress int `json:"progress"`
}

// ResumableCheckpoints lists checkpoints a retry can pick up, newest first.
func (a *App) ResumableCheckpoints(clientID string) ([]CheckpointView, error) {
	cps, err := a.checkpoints.Resumable(clientID)
	if err != nil {
		return nil, err
	}
	out := make([]CheckpointView, 0, len(cps))
	for _, cp := range cps {
		out = append(out, CheckpointView{Checkpoint: cp, Progress: checkpoint.Progress(cp)})
	}
	return out, nil
}

// DeleteCheckpoint removes a checkpoint row.
func (a *App) DeleteCheckpoint(jobID string) error {
	return a.checkpoints.Delete(jobID)
}

// CleanupCheckpoints removes completed checkpoints past the retention
// window. Run periodically by the janitor in main.
func (a *App) CleanupCheckpoints() {
	removed, err := a.checkpoints.Cleanup(time.Now().UTC())
	if err != nil {
		slog.Error("checkpoint cleanup failed", "err", err)
		return
	}
	if removed > 0 {
		slog.Info("checkpoint cleanup", "removed", removed)
	}
}

// ActiveBudgets lists the active token budgets.
func (a *App) ActiveBudgets() ([]domain.TokenBudget, error) {
	return a.store.ListActiveBudgets()
}

// CreateBudget activates a new budget for a period; the prior active budget
// for that period is deactivated by the store in the same transaction.
func (a *App) CreateBudget(period domain.BudgetPeriod, tokenLimit int64, costLimit float64, autoPause bool) (domain.TokenBudget, error) {
	switch period {
	case domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodMonthly:
	default:
		return domain.TokenBudget{}, fmt.Errorf("%w: %s", ErrBudgetPeriodInvalid, period)
	}
	now := time.Now().UTC()
	budget := domain.TokenBudget{
		ID:               uuid.NewString(),
		Period:           period,
		TokenLimit:       tokenLimit,
		CostLimit:        costLimit,
		IsActive:         true,
		AutoPauseAtLimit: autoPause,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := a.store.CreateBudget(budget); err != nil {
		return domain.TokenBudget{}, fmt.Errorf("create budget: %w", err)
	}
	return budget, nil
}

// EnqueueGeneration queues an async generation job.
func (a *App) EnqueueGeneration(ctx context.Context, docType domain.DocumentType, clientID string, month int, requestedBy string) (queue.Job, error) {
	if a.queue == nil {
		return queue.Job{}, fmt.Errorf("job queue not configured")
	}
	return a.queue.Enqueue(ctx, uuid.NewString(), docType, clientID, month, requestedBy)
}

// GetJob returns the tracked status of a queued job.
func (a *App) GetJob(ctx context.Context, jobID string) (queue.Job, bool, error) {
	if a.queue == nil {
		return queue.Job{}, false, nil
	}
	return a.queue.GetJob(ctx, jobID)
}

// StartWorkers launches the queue consumers.
func (a *App) StartWorkers(ctx context.Context, concurrency int) {
	if a.queue == nil {
		return
	}
	a.queue.Start(ctx, concurrency, a.processJob)
}

func (a *App) processJob(ctx context.Context, job queue.Job) error {
	// A retried job resumes its own checkpoint instead of starting over.
	if cp, err := a.checkpoints.Get(job.ID); err == nil && cp.CanResume {
		_, err := a.ResumeJob(ctx, job.ID)
		return err
	}
	req := genRequest{
		jobID:       job.ID,
		docType:     job.JobType,
		clientID:    job.ClientID,
		month:       job.Month,
		requestedBy: job.RequestedBy,
	}
	_, err := a.generate(ctx, req)
	return err
}
