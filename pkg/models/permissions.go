package models

// Resource is a permission-checked surface of the API.
type Resource string

const (
	ResWorkspace Resource = "workspace"
	ResTask      Resource = "task"
	ResComment   Resource = "comment"
	ResMember    Resource = "member"
	ResInvite    Resource = "invitation"
	ResRecurring Resource = "recurring_pattern"
	ResDashboard Resource = "dashboard"
	ResAI        Resource = "ai"
)

// Action is what a role attempts against a resource.
type Action string

const (
	ActCreate Action = "create"
	ActRead   Action = "read"
	ActUpdate Action = "update"
	ActDelete Action = "delete"
	ActManage Action = "manage" // role changes, member removal, workspace settings
)

// permissionMatrix is the role x resource x action grant table. Absent
// entries deny. Guests are read-only; members own the day-to-day task
// and comment surface; managers additionally run recurring patterns and
// AI analysis; admins and owners manage people.
var permissionMatrix = map[WorkspaceRole]map[Resource]map[Action]bool{
	RoleOwner: allGrants(),
	RoleAdmin: merge(allGrants(), map[Resource]map[Action]bool{
		// Admins cannot delete the workspace itself.
		ResWorkspace: {ActCreate: true, ActRead: true, ActUpdate: true, ActManage: true},
	}),
	RoleManager: {
		ResWorkspace: {ActRead: true},
		ResTask:      {ActCreate: true, ActRead: true, ActUpdate: true, ActDelete: true},
		ResComment:   {ActCreate: true, ActRead: true, ActUpdate: true, ActDelete: true},
		ResMember:    {ActRead: true},
		ResInvite:    {ActCreate: true, ActRead: true},
		ResRecurring: {ActCreate: true, ActRead: true, ActUpdate: true, ActDelete: true},
		ResDashboard: {ActCreate: true, ActRead: true, ActUpdate: true, ActDelete: true},
		ResAI:        {ActCreate: true, ActRead: true},
	},
	RoleMember: {
		ResWorkspace: {ActRead: true},
		ResTask:      {ActCreate: true, ActRead: true, ActUpdate: true},
		ResComment:   {ActCreate: true, ActRead: true, ActUpdate: true, ActDelete: true},
		ResMember:    {ActRead: true},
		ResRecurring: {ActRead: true},
		ResDashboard: {ActCreate: true, ActRead: true, ActUpdate: true, ActDelete: true},
		ResAI:        {ActRead: true},
	},
	RoleGuest: {
		ResWorkspace: {ActRead: true},
		ResTask:      {ActRead: true},
		ResComment:   {ActRead: true},
		ResMember:    {ActRead: true},
		ResDashboard: {ActRead: true},
	},
}

func allGrants() map[Resource]map[Action]bool {
	resources := []Resource{ResWorkspace, ResTask, ResComment, ResMember, ResInvite, ResRecurring, ResDashboard, ResAI}
	actions := []Action{ActCreate, ActRead, ActUpdate, ActDelete, ActManage}
	out := make(map[Resource]map[Action]bool, len(resources))
	for _, res := range resources {
		grants := make(map[Action]bool, len(actions))
		for _, act := range actions {
			grants[act] = true
		}
		out[res] = grants
	}
	return out
}

func merge(base, override map[Resource]map[Action]bool) map[Resource]map[Action]bool {
	for res, grants := range override {
		base[res] = grants
	}
	return base
}

// RoleCan reports whether role may perform action on resource.
func RoleCan(role WorkspaceRole, res Resource, act Action) bool {
	grants, ok := permissionMatrix[role]
	if !ok {
		return false
	}
	return grants[res][act]
}
