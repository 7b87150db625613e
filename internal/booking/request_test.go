package booking

import (
	"errors"
	"testing"
	"time"
)

func testDirectory() Directory {
	return NewDirectory([]ServiceCenter{
		{Name: "VehicleCare Certified Center - Downtown", Phone: "+1-555-0101", Address: "123 Main Street", Hours: "8:00 AM - 6:00 PM"},
		{Name: "VehicleCare Certified Center - Uptown", Phone: "+1-555-0102", Address: "456 Oak Avenue", Hours: "8:00 AM - 6:00 PM"},
	})
}

func validRequest() Request {
	return Request{
		CustomerName:      "Jordan Baker",
		CustomerPhone:     "+1 (555) 867-5309",
		CustomerEmail:     "jordan@example.com",
		VehicleID:         "VH-1042",
		IssueType:         "Engine Overheating",
		IssueDescription:  "Coolant temperature repeatedly above 120C",
		Severity:          "high",
		PreferredDate:     time.Now().Add(48 * time.Hour),
		PreferredTime:     "10:00 AM",
		ServiceCenterName: "VehicleCare Certified Center - Downtown",
	}
}

func TestNormalized_ResolvesDirectoryPhone(t *testing.T) {
	req, err := validRequest().Normalized(testDirectory(), time.Now())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.ServiceCenterPhone != "+15550101" {
		t.Fatalf("unexpected center phone: %s", req.ServiceCenterPhone)
	}
	if req.CustomerPhone != "+15558675309" {
		t.Fatalf("unexpected customer phone: %s", req.CustomerPhone)
	}
}

func TestNormalized_ExplicitPhoneSkipsDirectory(t *testing.T) {
	r := validRequest()
	r.ServiceCenterName = "Some Independent Garage"
	r.ServiceCenterPhone = "555-0199"
	req, err := r.Normalized(testDirectory(), time.Now())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.ServiceCenterPhone != "5550199" {
		t.Fatalf("unexpected center phone: %s", req.ServiceCenterPhone)
	}
}

func TestNormalized_UnknownCenter(t *testing.T) {
	r := validRequest()
	r.ServiceCenterName = "Nowhere Motors"
	_, err := r.Normalized(testDirectory(), time.Now())
	var invalid *InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}
	if invalid.Field != "service_center" {
		t.Fatalf("unexpected field: %s", invalid.Field)
	}
}

func TestNormalized_PastPreferredDate(t *testing.T) {
	r := validRequest()
	r.PreferredDate = time.Now().Add(-72 * time.Hour)
	_, err := r.Normalized(testDirectory(), time.Now())
	var invalid *InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}
}

func TestNormalized_UndialableCustomerPhone(t *testing.T) {
	r := validRequest()
	r.CustomerPhone = "call me maybe"
	if _, err := r.Normalized(testDirectory(), time.Now()); err == nil {
		t.Fatal("expected error for undialable phone")
	}
}

func TestNormalized_UndialableCenterPhone(t *testing.T) {
	r := validRequest()
	r.ServiceCenterName = "Some Independent Garage"
	r.ServiceCenterPhone = "ask reception"
	_, err := r.Normalized(testDirectory(), time.Now())
	var dialErr *DialError
	if !errors.As(err, &dialErr) {
		t.Fatalf("expected DialError, got %v", err)
	}
	if dialErr.Destination != "ask reception" {
		t.Fatalf("unexpected destination: %s", dialErr.Destination)
	}
}

func TestCanonicalPhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "+1-555-0101", want: "+15550101"},
		{in: "(555) 010.1234", want: "5550101234"},
		{in: "+49 30 901820", want: "+4930901820"},
		{in: "123", wantErr: true},
		{in: "555-0101x22", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := CanonicalPhone(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("CanonicalPhone(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CanonicalPhone(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("CanonicalPhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDirectoryResolve_CaseInsensitive(t *testing.T) {
	dir := testDirectory()
	c, ok := dir.Resolve("vehiclecare certified center - uptown")
	if !ok {
		t.Fatal("expected center to resolve")
	}
	if c.Phone != "+1-555-0102" {
		t.Fatalf("unexpected phone: %s", c.Phone)
	}
	if _, ok := dir.Resolve("missing"); ok {
		t.Fatal("expected unknown center to miss")
	}
}
