package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/contexor/contexor/app/logic/v1"
	"github.com/contexor/contexor/app/response"
	"github.com/contexor/contexor/pkg/types"
	"github.com/contexor/contexor/pkg/utils"
)

func (s *HttpSrv) CheckBudget(c *gin.Context) {
	decision, err := v1.NewBudgetLogic(c, s.Core).CheckBudget(types.ScopeKind(c.Param("scope")), c.Param("scopeid"))
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, decision)
}

type UsageSummaryRequest struct {
	UserID         string       `form:"user_id"`
	WorkspaceID    string       `form:"workspace_id"`
	OrganizationID string       `form:"organization_id"`
	ProjectID      string       `form:"project_id"`
	Period         types.Period `form:"period"`
}

func (s *HttpSrv) GetUsageSummary(c *gin.Context) {
	var (
		err error
		req UsageSummaryRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	filter := types.UsageFilter{
		UserID:         req.UserID,
		WorkspaceID:    req.WorkspaceID,
		OrganizationID: req.OrganizationID,
	}
	// 项目只能通过所属组织统计
	if req.ProjectID != "" {
		if filter.OrganizationID, err = v1.NewScopeLogic(c, s.Core).ResolveOrganization(types.ProjectScope(req.ProjectID)); err != nil {
			response.APIError(c, err)
			return
		}
	}
	if req.Period == "" {
		req.Period = types.PERIOD_MONTHLY
	}

	summary, err := v1.NewUsageLogic(c, s.Core).GetUsageSummary(filter, req.Period)
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, summary)
}
