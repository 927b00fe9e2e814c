package services

import (
	"context"

	"golang.org/x/sync/errgroup"
)

func errgroupWithLimit(ctx context.Context, limit int) (*errgroup.Group, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	return g, ctx
}
