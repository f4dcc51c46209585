package context

type Key string

const (
	Claims    Key = "claims"
	Tenant    Key = "tenant"
	User      Key = "user"
	Params    Key = "params"
	RequestID Key = "request_id"
)
