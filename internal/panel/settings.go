package panel

import (
	"encoding/json"
)

// Category is one of the fixed settings groupings the panel exposes, each
// behind its own endpoint (webPublishing behind one endpoint per technology).
type Category string

const (
	CategoryGeneral       Category = "general"
	CategorySecurity      Category = "security"
	CategoryEmail         Category = "email"
	CategoryWebPublishing Category = "webPublishing"
)

// WebTech is an independently toggleable web publishing technology.
type WebTech string

const (
	TechPHP    WebTech = "php"
	TechCGI    WebTech = "cgi"
	TechPerl   WebTech = "perl"
	TechPython WebTech = "python"
	TechSSI    WebTech = "ssi"
	TechWebDAV WebTech = "webdav"
)

// WebTechs lists all technologies in catalog order.
var WebTechs = []WebTech{TechPHP, TechCGI, TechPerl, TechPython, TechSSI, TechWebDAV}

// webTechByKey routes webPublishing update keys to their technology endpoint.
var webTechByKey = map[string]WebTech{
	"phpEnabled":    TechPHP,
	"cgiEnabled":    TechCGI,
	"perlEnabled":   TechPerl,
	"pythonEnabled": TechPython,
	"ssiEnabled":    TechSSI,
	"webdavEnabled": TechWebDAV,
}

type GeneralSettings struct {
	HostName     string `json:"hostName"`
	ContactEmail string `json:"contactEmail"`
	TimeZone     string `json:"timeZone"`
	AutoUpdate   bool   `json:"autoUpdate"`
}

type SecuritySettings struct {
	MinPasswordStrength string `json:"minPasswordStrength"`
	SessionIdleMinutes  int    `json:"sessionIdleMinutes"`
	LockoutEnabled      bool   `json:"lockoutEnabled"`
	LockoutAttempts     int    `json:"lockoutAttempts"`
}

// EmailSettings is the notification settings object. The panel only accepts
// full rewrites of it, and never returns the SMTP password on fetch.
type EmailSettings struct {
	Enabled  bool   `json:"enabled"`
	SMTPHost string `json:"smtpHost"`
	SMTPPort int    `json:"smtpPort"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Sender   string `json:"sender"`
	UseTLS   bool   `json:"useTLS"`
}

type WebPublishingSettings struct {
	PHP    bool `json:"php"`
	CGI    bool `json:"cgi"`
	Perl   bool `json:"perl"`
	Python bool `json:"python"`
	SSI    bool `json:"ssi"`
	WebDAV bool `json:"webdav"`
}

// Settings is the total aggregate: every leaf always carries a value, either
// fetched from the panel or the documented default. Never partial.
type Settings struct {
	General       GeneralSettings       `json:"general"`
	Security      SecuritySettings      `json:"security"`
	Email         EmailSettings         `json:"email"`
	WebPublishing WebPublishingSettings `json:"webPublishing"`
}

// DefaultSettings returns the per-field defaults substituted for endpoints
// that could not be fetched.
func DefaultSettings() Settings {
	return Settings{
		General: GeneralSettings{
			TimeZone: "UTC",
		},
		Security: SecuritySettings{
			MinPasswordStrength: "strong",
			SessionIdleMinutes:  30,
			LockoutEnabled:      true,
			LockoutAttempts:     5,
		},
		Email: EmailSettings{
			SMTPPort: 25,
		},
		// all technologies off
	}
}

func (w *WebPublishingSettings) set(tech WebTech, enabled bool) {
	switch tech {
	case TechPHP:
		w.PHP = enabled
	case TechCGI:
		w.CGI = enabled
	case TechPerl:
		w.Perl = enabled
	case TechPython:
		w.Python = enabled
	case TechSSI:
		w.SSI = enabled
	case TechWebDAV:
		w.WebDAV = enabled
	}
}

// decodeInto copies an unwrapped envelope payload onto dst. Fields the panel
// omitted keep whatever dst already holds (the defaults).
func decodeInto(payload any, dst any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// toMap flattens a typed settings struct back into the wire shape.
func toMap(v any) map[string]any {
	b, _ := json.Marshal(v)
	m := map[string]any{}
	_ = json.Unmarshal(b, &m)
	return m
}
