package domain

// Session is what the dashboard keeps after login: the bearer credential and
// the phone number SMS reminders go to.
type Session struct {
	Token    string `json:"token"`
	Phone    string `json:"phone"`
	Username string `json:"username,omitempty"`
}

func (s Session) Active() bool {
	return s.Token != ""
}
