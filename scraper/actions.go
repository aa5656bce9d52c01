package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/cookiediff/models"
)

// actionTimeout is the per-action deadline.
const actionTimeout = 10 * time.Second

// Click finds the element matching selector and clicks it, then waits
// settle for the page to react.
func (s *Session) Click(ctx context.Context, selector string, settle time.Duration) error {
	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	p := s.page.Context(actionCtx)
	el, err := p.Element(selector)
	if err != nil {
		return models.NewAnalysisError(models.ErrCodeActionFailed, fmt.Sprintf("element %q not found", selector), err)
	}
	if err := el.ScrollIntoView(); err != nil {
		return models.NewAnalysisError(models.ErrCodeActionFailed, fmt.Sprintf("element %q not scrollable into view", selector), err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return models.NewAnalysisError(models.ErrCodeActionFailed, fmt.Sprintf("click on %q failed", selector), err)
	}
	return sleep(ctx, settle)
}
