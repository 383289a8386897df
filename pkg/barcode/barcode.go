package barcode

import (
	"fmt"
	"image"
	"net/url"
	"strconv"
	"strings"
)

// ValueType tags what the raw value of a barcode encodes.
type ValueType int

const (
	TypeUnknown ValueType = iota
	TypeText
	TypeURL
	TypeWiFi
	TypeEmail
	TypePhone
	TypeSMS
	TypeGeo
)

var valueTypeNames = map[ValueType]string{
	TypeUnknown: "unknown",
	TypeText:    "text",
	TypeURL:     "url",
	TypeWiFi:    "wifi",
	TypeEmail:   "email",
	TypePhone:   "phone",
	TypeSMS:     "sms",
	TypeGeo:     "geo",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalText lets ValueType appear by name in JSON.
func (t ValueType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (t *ValueType) UnmarshalText(b []byte) error {
	for vt, name := range valueTypeNames {
		if name == string(b) {
			*t = vt
			return nil
		}
	}
	return fmt.Errorf("unknown value type %q", b)
}

// Encryption of a Wi-Fi network.
type Encryption int

const (
	EncryptionOpen Encryption = iota + 1
	EncryptionWPA
	EncryptionWEP
)

func (e Encryption) String() string {
	switch e {
	case EncryptionWPA:
		return "WPA"
	case EncryptionWEP:
		return "WEP"
	default:
		return "Open"
	}
}

type WiFi struct {
	SSID       string     `json:"ssid"`
	Password   string     `json:"password,omitempty"`
	Encryption Encryption `json:"encryption"`
	Hidden     bool       `json:"hidden,omitempty"`
}

type URLBookmark struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

type Email struct {
	Address string `json:"address"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

type Phone struct {
	Number string `json:"number"`
}

type SMS struct {
	Number  string `json:"number"`
	Message string `json:"message,omitempty"`
}

type Geo struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Barcode is one decoded symbol.
type Barcode struct {
	RawValue string        `json:"rawValue"`
	Format   string        `json:"format"`
	Type     ValueType     `json:"type"`
	Corners  []image.Point `json:"corners,omitempty"`

	WiFi  *WiFi        `json:"wifi,omitempty"`
	URL   *URLBookmark `json:"url,omitempty"`
	Email *Email       `json:"email,omitempty"`
	Phone *Phone       `json:"phone,omitempty"`
	SMS   *SMS         `json:"sms,omitempty"`
	Geo   *Geo         `json:"geo,omitempty"`
}

// New builds a Barcode from a decoder result, classifying its raw value.
func New(raw, format string, corners []image.Point) Barcode {
	b := Parse(raw)
	b.Format = format
	b.Corners = corners
	return b
}

// Parse classifies raw and fills the matching typed payload.
func Parse(raw string) Barcode {
	b := Barcode{RawValue: raw, Type: TypeText}
	if raw == "" {
		b.Type = TypeUnknown
		return b
	}

	upper := strings.ToUpper(raw)
	switch {
	case strings.HasPrefix(upper, "WIFI:"):
		if w, ok := parseWiFi(raw[len("WIFI:"):]); ok {
			b.Type, b.WiFi = TypeWiFi, w
		}
	case strings.HasPrefix(upper, "MEBKM:"):
		fields := parseFields(raw[len("MEBKM:"):])
		if u := fields["URL"]; u != "" {
			b.Type, b.URL = TypeURL, &URLBookmark{Title: fields["TITLE"], URL: u}
		}
	case strings.HasPrefix(upper, "MATMSG:"):
		fields := parseFields(raw[len("MATMSG:"):])
		if to := fields["TO"]; to != "" {
			b.Type, b.Email = TypeEmail, &Email{Address: to, Subject: fields["SUB"], Body: fields["BODY"]}
		}
	case strings.HasPrefix(upper, "MAILTO:"):
		if e, ok := parseMailto(raw); ok {
			b.Type, b.Email = TypeEmail, e
		}
	case strings.HasPrefix(upper, "TEL:"):
		if n := strings.TrimSpace(raw[len("TEL:"):]); n != "" {
			b.Type, b.Phone = TypePhone, &Phone{Number: n}
		}
	case strings.HasPrefix(upper, "SMSTO:"):
		number, message, _ := strings.Cut(raw[len("SMSTO:"):], ":")
		if number != "" {
			b.Type, b.SMS = TypeSMS, &SMS{Number: number, Message: message}
		}
	case strings.HasPrefix(upper, "SMS:"):
		number, query, _ := strings.Cut(raw[len("SMS:"):], "?")
		if number != "" {
			q, _ := url.ParseQuery(query)
			b.Type, b.SMS = TypeSMS, &SMS{Number: number, Message: q.Get("body")}
		}
	case strings.HasPrefix(upper, "GEO:"):
		if g, ok := parseGeo(raw[len("GEO:"):]); ok {
			b.Type, b.Geo = TypeGeo, g
		}
	case strings.HasPrefix(upper, "HTTP://"), strings.HasPrefix(upper, "HTTPS://"):
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			b.Type, b.URL = TypeURL, &URLBookmark{URL: raw}
		}
	case strings.HasPrefix(upper, "WWW."):
		b.Type, b.URL = TypeURL, &URLBookmark{URL: "http://" + raw}
	}
	return b
}

// Describe renders the barcode for a person, shaped by its value type.
func (b Barcode) Describe() string {
	switch {
	case b.Type == TypeWiFi && b.WiFi != nil:
		var sb strings.Builder
		fmt.Fprintf(&sb, "Network: %s\nSecurity: %s", b.WiFi.SSID, b.WiFi.Encryption)
		if b.WiFi.Password != "" {
			fmt.Fprintf(&sb, "\nPassword: %s", b.WiFi.Password)
		}
		return sb.String()
	case b.Type == TypeURL && b.URL != nil:
		if b.URL.Title != "" {
			return b.URL.Title + "\n" + b.URL.URL
		}
		return b.URL.URL
	case b.Type == TypeEmail && b.Email != nil:
		var sb strings.Builder
		sb.WriteString("To: " + b.Email.Address)
		if b.Email.Subject != "" {
			sb.WriteString("\nSubject: " + b.Email.Subject)
		}
		if b.Email.Body != "" {
			sb.WriteString("\n\n" + b.Email.Body)
		}
		return sb.String()
	case b.Type == TypePhone && b.Phone != nil:
		return "Phone: " + b.Phone.Number
	case b.Type == TypeSMS && b.SMS != nil:
		if b.SMS.Message != "" {
			return "SMS to " + b.SMS.Number + "\n\n" + b.SMS.Message
		}
		return "SMS to " + b.SMS.Number
	case b.Type == TypeGeo && b.Geo != nil:
		return fmt.Sprintf("Location: %g, %g", b.Geo.Lat, b.Geo.Lng)
	}
	return b.RawValue
}

func parseWiFi(body string) (*WiFi, bool) {
	fields := parseFields(body)
	ssid := fields["S"]
	if ssid == "" {
		return nil, false
	}
	w := &WiFi{SSID: ssid, Password: fields["P"], Encryption: EncryptionOpen}
	switch strings.ToUpper(fields["T"]) {
	case "WPA", "WPA2", "WPA3", "SAE":
		w.Encryption = EncryptionWPA
	case "WEP":
		w.Encryption = EncryptionWEP
	}
	w.Hidden = strings.EqualFold(fields["H"], "true")
	return w, true
}

// parseFields splits "K:V;K:V;;" honoring backslash escapes. Keys are
// upper-cased.
func parseFields(body string) map[string]string {
	fields := make(map[string]string)
	var (
		cur     strings.Builder
		escaped bool
	)
	flush := func() {
		if k, v, ok := strings.Cut(cur.String(), ":"); ok {
			fields[strings.ToUpper(k)] = unescape(v)
		}
		cur.Reset()
	}
	for _, r := range body {
		switch {
		case escaped:
			cur.WriteRune('\\')
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ';':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return fields
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		sb.WriteRune(r)
	}
	return sb.String()
}

func parseMailto(raw string) (*Email, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Opaque == "" {
		return nil, false
	}
	q := u.Query()
	return &Email{Address: u.Opaque, Subject: q.Get("subject"), Body: q.Get("body")}, true
}

func parseGeo(body string) (*Geo, bool) {
	body, _, _ = strings.Cut(body, "?")
	latStr, rest, ok := strings.Cut(body, ",")
	if !ok {
		return nil, false
	}
	lngStr, _, _ := strings.Cut(rest, ",")
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return nil, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return nil, false
	}
	return &Geo{Lat: lat, Lng: lng}, true
}
