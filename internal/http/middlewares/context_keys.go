package middlewares

const (
	CtxRequestID = "request_id"
	ctxUserKey   = "identity.user"
	ctxSubject   = "identity.subject"
	ctxSection   = "access.section"
)
