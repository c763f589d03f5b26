package auth

const (
	PermOrgRead           = "org.read"
	PermOrgWrite          = "org.write"
	PermEmployeesRead     = "directory.employees.read"
	PermEmployeesWrite    = "directory.employees.write"
	PermKpisRead          = "kpis.read"
	PermKpisWrite         = "kpis.write"
	PermAssignmentsWrite  = "kpis.assignments.write"
	PermResultsRead       = "results.read"
	PermResultsCapture    = "results.capture"
	PermResultsApprove    = "results.approve"
	PermResultsReview     = "results.review"
	PermReportsRead       = "reports.read"
	PermReportsRun        = "reports.run"
	PermNotificationsRead = "notifications.read"
	PermAuditRead         = "audit.read"
	PermJobsRun           = "jobs.run"
)

var DefaultPermissions = []string{
	PermOrgRead,
	PermOrgWrite,
	PermEmployeesRead,
	PermEmployeesWrite,
	PermKpisRead,
	PermKpisWrite,
	PermAssignmentsWrite,
	PermResultsRead,
	PermResultsCapture,
	PermResultsApprove,
	PermResultsReview,
	PermReportsRead,
	PermReportsRun,
	PermNotificationsRead,
	PermAuditRead,
	PermJobsRun,
}

var RolePermissions = map[string][]string{
	RoleUser: {
		PermOrgRead,
		PermEmployeesRead,
		PermKpisRead,
		PermResultsRead,
		PermResultsCapture,
		PermResultsApprove,
		PermReportsRead,
		PermNotificationsRead,
	},
	RoleManager: {
		PermOrgRead,
		PermEmployeesRead,
		PermKpisRead,
		PermKpisWrite,
		PermAssignmentsWrite,
		PermResultsRead,
		PermResultsCapture,
		PermResultsApprove,
		PermResultsReview,
		PermReportsRead,
		PermReportsRun,
		PermNotificationsRead,
	},
	RoleAdmin: DefaultPermissions,
}
