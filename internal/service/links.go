package service

import (
	"context"

	"github.com/emrgen/notebook/internal/linkparse"
	"github.com/emrgen/notebook/internal/model"
)

// LiveLinkCount counts the associations of a field. Soft deleted associations are
// counted until a save or cancel erases or undeletes them.
func (e *EditService) LiveLinkCount(ctx context.Context, fieldID string) (int, error) {
	if _, err := e.store.GetField(ctx, fieldID); err != nil {
		return 0, err
	}

	count, err := e.store.CountLinks(ctx, fieldID)
	if err != nil {
		return 0, err
	}

	return int(count), nil
}

// LinkTargets returns the targets of the associations of a field that are not soft
// deleted.
func (e *EditService) LinkTargets(ctx context.Context, fieldID string) (linkparse.Set, error) {
	links, err := e.Links(ctx, fieldID)
	if err != nil {
		return nil, err
	}

	targets := linkparse.NewSet()
	for _, link := range links {
		if link.Deleted() {
			continue
		}
		targets.Add(linkparse.Reference{Kind: link.Kind, TargetID: link.TargetID})
	}

	return targets, nil
}

// Links returns every association row of a field.
func (e *EditService) Links(ctx context.Context, fieldID string) ([]*model.LinkAssociation, error) {
	if _, err := e.store.GetField(ctx, fieldID); err != nil {
		return nil, err
	}

	return e.store.ListLinks(ctx, fieldID)
}
