package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MStockDecrementRejected  MetricKey = "stock_decrement_rejected_total"
	MFulfillmentRisk         MetricKey = "fulfillment_risk_total"
	MNotifications           MetricKey = "notifications_total"
	MSagaReconciled          MetricKey = "saga_reconciled_total"
)
