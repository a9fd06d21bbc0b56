package types

// ScopeLevel 资源归属层级
type ScopeLevel string

const (
	SCOPE_LEVEL_ORGANIZATION ScopeLevel = "organization"
	SCOPE_LEVEL_WORKSPACE    ScopeLevel = "workspace"
	SCOPE_LEVEL_PROJECT      ScopeLevel = "project"
)

// Scope 组织 / 工作区 / 项目 三选一，在入口处解析为组织 ID 后统一使用
type Scope struct {
	Level ScopeLevel
	ID    string
}

func OrganizationScope(id string) Scope { return Scope{Level: SCOPE_LEVEL_ORGANIZATION, ID: id} }
func WorkspaceScope(id string) Scope    { return Scope{Level: SCOPE_LEVEL_WORKSPACE, ID: id} }
func ProjectScope(id string) Scope      { return Scope{Level: SCOPE_LEVEL_PROJECT, ID: id} }

// Ownership 工作区与项目的归属关系
type Ownership struct {
	ProjectID      string `db:"project_id"`
	WorkspaceID    string `db:"workspace_id"`
	OrganizationID string `db:"organization_id"`
}
