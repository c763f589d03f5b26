package notifications

const (
	TypeResultApproved = "result_approved"
	TypeResultSentBack = "result_sent_back"
	TypeReportReady    = "report_ready"
)
