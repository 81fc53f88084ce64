package app

import "errors"

var (
	ErrClientNotFound      = errors.New("client not found")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrCheckpointNotFound  = errors.New("checkpoint not found")
	ErrBusinessPlanExists  = errors.New("client already has a business plan")
	ErrDeliverableExists   = errors.New("client already has a deliverable for that month")
	ErrInvalidMonth        = errors.New("month must be between 1 and 8")
	ErrEmptySectionList    = errors.New("at least one section name is required")
	ErrDocumentBusy        = errors.New("another generation is running for this document")
	ErrJobNotResumable     = errors.New("job is not resumable")
	ErrBudgetPeriodInvalid = errors.New("budget period must be daily, weekly, or monthly")
)
