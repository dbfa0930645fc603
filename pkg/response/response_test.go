package response

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestErrorWithKindCarriesClassification(t *testing.T) {
	r := ErrorWithKind(409, "policy already issued", "conflict")
	if r.Status != "error" || r.StatusCode != 409 {
		t.Errorf("envelope = %+v", r)
	}

	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"error_kind":"conflict"`) {
		t.Errorf("kind not serialized: %s", raw)
	}
}

func TestSuccessOmitsErrorFields(t *testing.T) {
	raw, err := json.Marshal(Success(200, map[string]string{"id": "1"}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(raw), "error") {
		t.Errorf("success envelope leaks error fields: %s", raw)
	}
}
