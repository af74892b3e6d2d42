package rbac

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
	RoleExternal = "external"
)

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	RoleEmployee: {
		"evaluation:view-own",
		"evaluation:answer",
		"evaluation:submit",
		"evaluation:request-removal",
		"result:view-own",
	},
	RoleExternal: {
		"evaluation:view-own",
		"evaluation:answer",
		"evaluation:submit",
	},
	RoleAdmin: {
		"*", // everything
	},
}
