package app

import (
	"fmt"
	"strings"

	"creatorlab/pkg/domain"
)

// LoadTemplate resolves the prompt template for a document type: the active
// one wins, the default is the fallback.
func (a *App) LoadTemplate(docType domain.DocumentType) (domain.PromptTemplate, error) {
	tpl, ok, err := a.store.GetActiveTemplate(docType)
	if err != nil {
		return domain.PromptTemplate{}, fmt.Errorf("load active template: %w", err)
	}
	if ok {
		return tpl, nil
	}
	tpl, ok, err = a.store.GetDefaultTemplate(docType)
	if err != nil {
		return domain.PromptTemplate{}, fmt.Errorf("load default template: %w", err)
	}
	if !ok {
		return domain.PromptTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, docType)
	}
	return tpl, nil
}

// RenderTemplate substitutes every {{key}} placeholder with its value.
// Placeholders with no matching key stay verbatim, so a typo in a template
// degrades visibly in the output instead of failing the job.
func RenderTemplate(content string, vars map[string]string) string {
	out := content
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}

// ActivateTemplate marks a template active for its document type, clearing
// the previous holder.
func (a *App) ActivateTemplate(id string) error {
	if _, ok, err := a.store.GetTemplate(id); err != nil {
		return fmt.Errorf("load template: %w", err)
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err := a.store.SetTemplateActive(id); err != nil {
		return fmt.Errorf("activate template: %w", err)
	}
	return nil
}
