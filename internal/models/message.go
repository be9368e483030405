package models

// Message is one outbound e-mail.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	// Invite, when set, is attached as an iCalendar REQUEST.
	Invite []byte
}
