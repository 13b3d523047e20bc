// Package rap implements the resource access policy. Every protected
// read composes the same predicate over the shared ownership columns
// (tenant_id, user_id, project_id, access_level, acl_groups), so
// documents, chunks, graph records and connectors cannot drift apart
// in how they gate visibility.
package rap

import (
	"fmt"
	"strings"

	"github.com/ctxeco/backend/pkg/common"
)

// systemRoles may read resources owned by the system actor.
var systemRoles = []common.Role{common.RoleAdmin, common.RoleAnalyst, common.RolePM}

func hasSystemRole(ctx common.SecurityContext) bool {
	for _, r := range systemRoles {
		if ctx.HasRole(r) {
			return true
		}
	}
	return false
}

// Filter builds the caller's access predicate as one SQL condition
// with placeholders numbered from argOffset. alias prefixes the
// ownership columns; pass "" for bare column names.
//
// The tenant clause comes first and holds for every caller, admins
// included. Administrators get no further restriction. Everyone else
// must match at least one sharing branch; private resources only ever
// satisfy the owner branch.
func Filter(ctx common.SecurityContext, alias string, argOffset int) (string, []any) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", argOffset+len(args)-1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s = %s", col("tenant_id"), arg(ctx.TenantID))

	if ctx.IsAdmin() {
		return b.String(), args
	}

	branches := []string{
		fmt.Sprintf("%s = %s", col("user_id"), arg(ctx.UserID)),
	}
	if hasSystemRole(ctx) {
		branches = append(branches,
			fmt.Sprintf("%s = %s", col("user_id"), arg(common.SystemOwnerID)))
	}
	branches = append(branches,
		fmt.Sprintf("%s = '%s'", col("access_level"), common.AccessTenant))
	if ctx.ProjectID != nil {
		branches = append(branches,
			fmt.Sprintf("(%s = '%s' AND %s = %s)",
				col("access_level"), common.AccessProject, col("project_id"), arg(*ctx.ProjectID)))
	}
	if len(ctx.Groups) > 0 {
		branches = append(branches,
			fmt.Sprintf("(%s = '%s' AND %s && %s)",
				col("access_level"), common.AccessTeam, col("acl_groups"), arg(ctx.Groups)))
	}

	fmt.Fprintf(&b, " AND (%s)", strings.Join(branches, " OR "))
	return b.String(), args
}

// CanAccess applies the same rule to an in-memory resource. Used for
// result shapes assembled outside the store query, like traversed
// subgraphs, before anything is returned to the caller.
func CanAccess(ctx common.SecurityContext, own common.Ownership) bool {
	if own.TenantID != ctx.TenantID {
		return false
	}
	if ctx.IsAdmin() {
		return true
	}
	if own.UserID == ctx.UserID {
		return true
	}
	if own.UserID == common.SystemOwnerID && hasSystemRole(ctx) {
		return true
	}

	switch own.AccessLevel {
	case common.AccessTenant:
		return true
	case common.AccessProject:
		return own.ProjectID != nil && ctx.ProjectID != nil &&
			*own.ProjectID == *ctx.ProjectID
	case common.AccessTeam:
		for _, g := range own.ACLGroups {
			for _, have := range ctx.Groups {
				if g == have {
					return true
				}
			}
		}
	}
	return false
}

// CanModify reports whether the caller may delete or rewrite a
// resource. Mutation is tighter than visibility: owner or tenant
// admin only.
func CanModify(ctx common.SecurityContext, own common.Ownership) bool {
	if own.TenantID != ctx.TenantID {
		return false
	}
	return ctx.IsAdmin() || own.UserID == ctx.UserID
}
