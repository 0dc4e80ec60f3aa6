package policy

import (
	"encoding/json"
	"testing"
)

func TestFeeOverride(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  string
		ok    bool
	}{
		{"number", `25.5`, "25.5", true},
		{"string", `"40"`, "40", true},
		{"zero", `0`, "0", true},
		{"negative", `"-5"`, "0", false},
		{"garbage", `{"x":1}`, "0", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decision{Effect: Permit, Obligations: []Obligation{{Type: ObligationFeeRequired, Value: json.RawMessage(tc.value)}}}
			got, ok := d.FeeOverride()
			if ok != tc.ok || got.String() != tc.want {
				t.Fatalf("FeeOverride() = %s,%v want %s,%v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestRequiresApproval(t *testing.T) {
	if (Decision{Effect: Permit}).RequiresApproval() {
		t.Fatalf("plain permit must not require approval")
	}
	if !(Decision{Effect: Permit, Obligations: []Obligation{{Type: ObligationRequiresApproval}}}).RequiresApproval() {
		t.Fatalf("REQUIRES_APPROVAL obligation ignored")
	}
	if !(Decision{Effect: Indeterminate}).RequiresApproval() {
		t.Fatalf("indeterminate must require approval")
	}
}
