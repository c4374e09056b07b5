package whatsapp

// Message is one outbound WhatsApp text.
type Message struct {
	To   string
	Body string
}

// MessageResponse is the subset of the gateway's message resource we read.
type MessageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
}

// ErrorResponse is the gateway's error body.
type ErrorResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}
