package booking

import (
	"strings"
	"time"
)

// Request describes one appointment to be booked. It is treated as immutable
// for the lifetime of a booking attempt; Normalized returns the validated
// copy the orchestrator works with.
type Request struct {
	CustomerName  string
	CustomerPhone string
	CustomerEmail string

	VehicleID        string
	IssueType        string
	IssueDescription string
	Severity         string

	PreferredDate time.Time
	PreferredTime string

	ServiceCenterName  string
	ServiceCenterPhone string
}

// Normalized validates the request and returns a copy with canonical phone
// numbers and a resolved service-center destination. The service center must
// either resolve through the directory or carry an explicit phone number.
func (r Request) Normalized(dir Directory, now time.Time) (Request, error) {
	if strings.TrimSpace(r.CustomerName) == "" {
		return Request{}, &InvalidRequestError{Field: "customer_name", Reason: "is required"}
	}
	customerPhone, err := CanonicalPhone(r.CustomerPhone)
	if err != nil {
		return Request{}, &InvalidRequestError{Field: "customer_phone", Reason: err.Error()}
	}
	r.CustomerPhone = customerPhone

	if r.PreferredDate.IsZero() {
		return Request{}, &InvalidRequestError{Field: "preferred_date", Reason: "is required"}
	}
	if r.PreferredDate.Before(now.Truncate(24 * time.Hour)) {
		return Request{}, &InvalidRequestError{Field: "preferred_date", Reason: "must not be in the past"}
	}

	if r.ServiceCenterPhone == "" {
		center, ok := dir.Resolve(r.ServiceCenterName)
		if !ok {
			return Request{}, &InvalidRequestError{Field: "service_center", Reason: "unknown center and no phone number given"}
		}
		r.ServiceCenterPhone = center.Phone
		if r.ServiceCenterName == "" {
			r.ServiceCenterName = center.Name
		}
	}
	centerPhone, err := CanonicalPhone(r.ServiceCenterPhone)
	if err != nil {
		// An undialable destination is a dial failure, not a shape problem
		// with the request itself.
		return Request{}, &DialError{Destination: r.ServiceCenterPhone, Reason: err.Error()}
	}
	r.ServiceCenterPhone = centerPhone

	return r, nil
}

// CanonicalPhone reduces a phone number to dialable form: an optional leading
// plus followed by 7 to 15 digits. Separators commonly found in directory
// entries (spaces, dashes, dots, parentheses) are stripped.
func CanonicalPhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errEmptyPhone
	}
	var b strings.Builder
	for i, ch := range trimmed {
		switch {
		case ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '+' && i == 0:
			b.WriteRune(ch)
		case ch == ' ' || ch == '-' || ch == '.' || ch == '(' || ch == ')':
		default:
			return "", errPhoneChars
		}
	}
	canonical := b.String()
	digits := strings.TrimPrefix(canonical, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", errPhoneLength
	}
	return canonical, nil
}

var (
	errEmptyPhone  = phoneError("phone number is empty")
	errPhoneChars  = phoneError("phone number contains undialable characters")
	errPhoneLength = phoneError("phone number must have 7 to 15 digits")
)

type phoneError string

func (e phoneError) Error() string { return string(e) }
