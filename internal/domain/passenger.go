package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Role distinguishes the lead passenger (strict contact validation) from
// everyone else. It is fixed when the manifest is built, not re-derived
// from slice position at validation sites.
type Role int

const (
	RoleLead Role = iota
	RoleAdditional
)

type Passenger struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Nationality     string `json:"nationality"`
	BirthDate       string `json:"birth_date"`
	PassportNumber  string `json:"passport_number"`
	PassportCountry string `json:"passport_country"`
	PassportExpiry  string `json:"passport_expiry"`
	SocialHandle    string `json:"social_handle"`
	EmergencyName   string `json:"emergency_contact_name"`
	EmergencyPhone  string `json:"emergency_contact_phone"`
	DietaryNotes    string `json:"dietary_notes"`
	Allergies       string `json:"allergies"`
	Notes           string `json:"notes"`
	IsAdult         bool   `json:"is_adult"`

	Role Role `json:"-"`
}

// NewManifest builds the passenger records for a booking: adults first,
// record 0 is the lead seeded with the booking's customer name/email.
func NewManifest(b Booking) []Passenger {
	ps := make([]Passenger, 0, b.Seats())
	for i := 0; i < b.Adults; i++ {
		p := Passenger{IsAdult: true, Role: RoleAdditional}
		if i == 0 {
			p.Role = RoleLead
			p.FullName = b.CustomerName
			p.Email = b.CustomerEmail
		}
		ps = append(ps, p)
	}
	for i := 0; i < b.Children; i++ {
		ps = append(ps, Passenger{IsAdult: false, Role: RoleAdditional})
	}
	return ps
}

// basic local@domain.tld shape; intentionally loose beyond that
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate applies the role-dependent rules: every passenger needs a
// full name; the lead additionally needs an email-shaped email and a
// non-empty phone.
func (p Passenger) Validate() error {
	if strings.TrimSpace(p.FullName) == "" {
		return fmt.Errorf("full name is required")
	}
	if p.Role == RoleLead {
		if !emailShape.MatchString(strings.TrimSpace(p.Email)) {
			return fmt.Errorf("a valid email is required")
		}
		if strings.TrimSpace(p.Phone) == "" {
			return fmt.Errorf("a contact phone is required")
		}
	}
	return nil
}

// ValidateManifest re-checks every record and reports the first failure
// with its index, so callers can focus the offending passenger.
func ValidateManifest(ps []Passenger) (int, error) {
	for i, p := range ps {
		if err := p.Validate(); err != nil {
			return i, fmt.Errorf("%s: %w", Label(ps, i), err)
		}
	}
	return -1, nil
}

// Label computes the display name for position i: the first record is
// always "Titular"; other adults and children are numbered by ordinal
// among their own category. Computed on every read, never stored.
func Label(ps []Passenger, i int) string {
	if i < 0 || i >= len(ps) {
		return ""
	}
	if i == 0 {
		return "Titular"
	}
	n := 0
	for j := 0; j <= i; j++ {
		if ps[j].IsAdult == ps[i].IsAdult {
			n++
		}
	}
	if ps[i].IsAdult {
		return fmt.Sprintf("Adulto %d", n)
	}
	return fmt.Sprintf("Niño %d", n)
}
