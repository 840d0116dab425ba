package page

import (
	"go.uber.org/zap"

	"github.com/jetsetgo/till-bridge/internal/notify"
)

// Surface renders notices on the page
type Surface struct {
	doc    Document
	logger *zap.Logger
}

// NewSurface creates a notice surface for doc
func NewSurface(doc Document, logger *zap.Logger) *Surface {
	return &Surface{doc: doc, logger: logger}
}

// Render shows n on the page
func (s *Surface) Render(n notify.Notice) {
	if err := s.doc.ShowNotice(string(n.Level), n.Message); err != nil {
		s.logger.Debug("failed to render notice on page", zap.Error(err))
	}
}

var _ notify.Surface = (*Surface)(nil)
