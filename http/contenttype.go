package http

// ContentType is a short list of well-known MIME types, offered as a
// convenience for handlers that would otherwise hand-type the same few
// strings repeatedly. Grounded on the original HttpResponse::setContentType
// setter this module's distillation dropped — restored here as a thin
// typed wrapper over the same plain header-set operation.
type ContentType string

const (
	TextPlain       ContentType = "text/plain; charset=utf-8"
	TextHTML        ContentType = "text/html; charset=utf-8"
	ApplicationJSON ContentType = "application/json"
	ApplicationForm ContentType = "application/x-www-form-urlencoded"
	OctetStream     ContentType = "application/octet-stream"
)
