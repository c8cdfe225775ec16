package scanning

import (
	"context"

	"go.opentelemetry.io/otel/codes"

	"github.com/ahrav/cxscan/internal/domain/scanning"
)

// Projects lists the projects visible to the session.
func (s *Session) Projects(ctx context.Context) ([]scanning.ProjectDisplayData, error) {
	return catalogQuery(ctx, s, "get projects display data", s.svc.ProjectsDisplayData)
}

// Presets lists the presets scans can be configured with.
func (s *Session) Presets(ctx context.Context) ([]scanning.Preset, error) {
	return catalogQuery(ctx, s, "get presets", s.svc.PresetList)
}

// ConfigurationSets lists the source encoding configurations.
func (s *Session) ConfigurationSets(ctx context.Context) ([]scanning.ConfigurationSet, error) {
	return catalogQuery(ctx, s, "get configuration sets", s.svc.ConfigurationSetList)
}

// ValidateProjectName checks whether name is free for a new project in
// groupID. A nil error means the name can be used.
func (s *Session) ValidateProjectName(ctx context.Context, name, groupID string) error {
	const op = "validate project name"
	if err := s.requireSession(op); err != nil {
		return err
	}

	ctx, span := s.startSpan(ctx, "scan_session.validate_project_name")
	defer span.End()

	err := s.call(ctx, op, func(ctx context.Context) error {
		return s.svc.IsValidProjectName(ctx, s.token, name, groupID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "project name rejected")
		return err
	}
	return nil
}

func catalogQuery[T any](
	ctx context.Context,
	s *Session,
	op string,
	query func(ctx context.Context, sessionID string) ([]T, error),
) ([]T, error) {
	if err := s.requireSession(op); err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, "scan_session.catalog")
	defer span.End()

	var items []T
	err := s.call(ctx, op, func(ctx context.Context) error {
		var err error
		items, err = query(ctx, s.token)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		return nil, err
	}

	s.logger.Debug(ctx, "Catalog query completed", "operation", op, "count", len(items))
	return items, nil
}
