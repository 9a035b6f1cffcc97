package utils

import (
	"context"

	"github.com/mmdatafocus/mdm_backend/appctx"
)

func GetSchoolIdFromContext(ctx context.Context) (string, bool) {
	return appctx.SchoolId(ctx)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	s := appctx.ScopeFrom(ctx)
	return s.UserId, s.UserId != 0
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	s := appctx.ScopeFrom(ctx)
	return s.UserName, s.UserName != ""
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	s := appctx.ScopeFrom(ctx)
	return s.CorrelationId, s.CorrelationId != ""
}

func SetSchoolIdInContext(ctx context.Context, schoolId string) context.Context {
	return appctx.Update(ctx, func(s *appctx.Scope) { s.SchoolId = schoolId })
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Update(ctx, func(s *appctx.Scope) { s.UserId = userId })
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Update(ctx, func(s *appctx.Scope) { s.UserName = userName })
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Update(ctx, func(s *appctx.Scope) { s.CorrelationId = correlationId })
}
