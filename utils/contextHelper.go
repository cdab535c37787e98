package utils

import (
	"context"

	"bitbucket.org/mmjourneys/travel_backend/appctx"
)

var (
	ContextKeyBusinessId    = appctx.ContextKeyBusinessId
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyDryRun        = appctx.ContextKeyDryRun
)

func GetBusinessIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyBusinessId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetDryRunFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyDryRun)
}

func SetBusinessIdInContext(ctx context.Context, businessId string) context.Context {
	return appctx.Set(ctx, ContextKeyBusinessId, businessId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetDryRunInContext(ctx context.Context, dryRun bool) context.Context {
	return appctx.Set(ctx, ContextKeyDryRun, dryRun)
}
