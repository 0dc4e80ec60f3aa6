package web

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/amenity-reservations/internal/domain/attendance"
	"github.com/example/amenity-reservations/internal/domain/blackout"
	"github.com/example/amenity-reservations/internal/internaltypes"
)

type createReservationRequest struct {
	CondominiumID string    `json:"condominiumId" validate:"required,max=64"`
	AmenityID     string    `json:"amenityId" validate:"required,max=64"`
	StartTime     time.Time `json:"startTime" validate:"required"`
	EndTime       time.Time `json:"endTime" validate:"required"`
	PartySize     int       `json:"partySize" validate:"required,min=1,max=1000"`
}

type cancelReservationRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type locationRequest struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

type checkInRequest struct {
	Method   string           `json:"method" validate:"required,oneof=QR BIOMETRIC SMS MANUAL qr biometric sms manual"`
	Payload  string           `json:"payload" validate:"max=4096"`
	Location *locationRequest `json:"location" validate:"omitempty"`
	// UserID lets an administrator record a manual check-in for the owner.
	UserID string `json:"userId" validate:"max=64"`
}

func (r checkInRequest) location() *attendance.Location {
	if r.Location == nil {
		return nil
	}
	return &attendance.Location{Latitude: r.Location.Latitude, Longitude: r.Location.Longitude}
}

type createBlackoutRequest struct {
	CondominiumID string    `json:"condominiumId" validate:"required,max=64"`
	AmenityID     string    `json:"amenityId" validate:"max=64"`
	StartTime     time.Time `json:"startTime" validate:"required"`
	EndTime       time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	Reason        string    `json:"reason" validate:"max=500"`
	Source        string    `json:"source" validate:"omitempty,oneof=MAINTENANCE ADMIN SYSTEM"`
}

type passResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type conflictsResponse struct {
	HasConflicts bool            `json:"hasConflicts"`
	Conflicts    []blackout.View `json:"conflicts"`
}

// requestValidator adapts validator/v10 to echo.Validator and reports
// failures with the JSON field names clients sent.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v}
}

func (rv *requestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return internaltypes.Wrap(internaltypes.KindInvalidRequest, err, "invalid request")
	}
	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	sort.Strings(missing)
	sort.Strings(invalid)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}
	return internaltypes.New(internaltypes.KindInvalidRequest, "%s", strings.Join(parts, "; "))
}
