package v1

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/contexor/contexor/app/core"
	"github.com/contexor/contexor/pkg/errors"
	"github.com/contexor/contexor/pkg/i18n"
	"github.com/contexor/contexor/pkg/types"
)

type ScopeLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewScopeLogic(ctx context.Context, core *core.Core) *ScopeLogic {
	return &ScopeLogic{
		ctx:  ctx,
		core: core,
	}
}

// ResolveOrganization 将组织 / 工作区 / 项目统一解析为组织 id
func (l *ScopeLogic) ResolveOrganization(scope types.Scope) (string, error) {
	if scope.ID == "" {
		return "", errors.New("ScopeLogic.ResolveOrganization.EmptyID", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	switch scope.Level {
	case types.SCOPE_LEVEL_ORGANIZATION:
		return scope.ID, nil
	case types.SCOPE_LEVEL_WORKSPACE, types.SCOPE_LEVEL_PROJECT:
	default:
		return "", errors.New("ScopeLogic.ResolveOrganization.UnknownLevel", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	owner, err := l.core.Store().ContentStore().GetOwnership(l.ctx, scope.Level, scope.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", errors.New("ScopeLogic.ResolveOrganization.NotFound", i18n.ERROR_NOT_FOUND, err).Code(http.StatusNotFound)
		}
		return "", errors.New("ScopeLogic.ResolveOrganization.ContentStore.GetOwnership", i18n.ERROR_INTERNAL, err)
	}
	return owner.OrganizationID, nil
}
