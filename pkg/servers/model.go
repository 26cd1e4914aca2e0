package servers

// Server represents one managed panel server whose settings we synchronize.
type Server struct {
	ID       string // uuid
	Name     string // display name (web01)
	BaseURL  string // panel admin API base, e.g. https://web01.example.com:8443
	Username string // panel admin login
}

// Credentials is the decrypted admin login for a server, handed to the panel
// client per call and never cached by it.
type Credentials struct {
	Username string
	Password string
}
