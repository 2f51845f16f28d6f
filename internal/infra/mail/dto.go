package mail

type FollowUpEmailData struct {
	Founder     string
	CompanyName string
	Sector      string
	Status      string
	When        string
	ConsoleURL  string
}

type EmailSender struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	ConsoleURL string
}
