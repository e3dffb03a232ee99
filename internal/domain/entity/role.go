// Package entity 定义领域实体
package entity

// Role 对话角色
type Role string

const (
	RoleModel Role = "model"
	RoleUser  Role = "user"
)

// Valid 是否为已知角色
func (r Role) Valid() bool {
	return r == RoleModel || r == RoleUser
}
