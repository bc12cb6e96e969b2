package event

import (
	"encoding/json"
	"testing"
	"time"

	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{name: "valid - case assigned", eventType: TypeCaseAssigned, want: true},
		{name: "valid - case approved", eventType: TypeCaseApproved, want: true},
		{name: "valid - notification", eventType: TypeNotificationRequested, want: true},
		{name: "invalid - unknown type", eventType: Type("case.deleted"), want: false},
		{name: "invalid - empty string", eventType: Type(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestType_IsAudit(t *testing.T) {
	if !TypeCaseRejected.IsAudit() {
		t.Error("case.rejected should be an audit event")
	}
	if TypeNotificationRequested.IsAudit() {
		t.Error("notification.requested should not be an audit event")
	}
}

func TestForTrigger(t *testing.T) {
	tests := []struct {
		trigger domainwf.Trigger
		want    Type
	}{
		{domainwf.TriggerAssign, TypeCaseAssigned},
		{domainwf.TriggerReassign, TypeCaseAssigned},
		{domainwf.TriggerAccept, TypeCaseAccepted},
		{domainwf.TriggerReject, TypeCaseRejected},
		{domainwf.TriggerRequestCompletion, TypeCompletionRequested},
		{domainwf.TriggerApprove, TypeCaseApproved},
		{domainwf.TriggerRejectCompletion, TypeCompletionRejected},
	}

	for _, tt := range tests {
		got, ok := ForTrigger(tt.trigger)
		if !ok || got != tt.want {
			t.Errorf("ForTrigger(%s) = %v, %v; want %v", tt.trigger, got, ok, tt.want)
		}
	}

	if _, ok := ForTrigger(domainwf.Trigger("ARCHIVE")); ok {
		t.Error("ForTrigger(ARCHIVE) should not map")
	}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeCaseApproved, "case-1", "manager-1", map[string]interface{}{
		"from_status": "PENDING_COMPLETION",
	})

	if evt.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if evt.Type != TypeCaseApproved {
		t.Errorf("Event Type = %v, want %v", evt.Type, TypeCaseApproved)
	}
	if evt.CaseID != "case-1" || evt.ActorID != "manager-1" {
		t.Errorf("Event case/actor = %s/%s", evt.CaseID, evt.ActorID)
	}
	if evt.GetPayloadString("from_status") != "PENDING_COMPLETION" {
		t.Error("payload not preserved")
	}
	if evt.CorrelationID == "" {
		t.Error("Event CorrelationID should not be empty")
	}
	if time.Since(evt.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEvent_NilPayload(t *testing.T) {
	evt := NewEvent(TypeCaseAccepted, "case-1", "w1", nil)
	if evt.Payload == nil {
		t.Fatal("nil payload should be replaced by an empty map")
	}
}

func TestEvent_CorrelationChain(t *testing.T) {
	first := NewEvent(TypeCaseApproved, "case-1", "m1", nil)
	second := NewEventWithCorrelation(TypeNotificationRequested, "case-1", "m1", nil, first.CorrelationID)

	if second.CorrelationID != first.CorrelationID {
		t.Error("events should share correlation ID")
	}
	if first.ID == second.ID {
		t.Error("events should have unique IDs even with same correlation ID")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeCaseAssigned, "case-1", "m1", map[string]interface{}{"key1": "value1"})
	modified := original.WithPayload("key2", "value2")

	if _, exists := original.Payload["key2"]; exists {
		t.Error("Original event should not be modified")
	}
	if modified.GetPayloadString("key1") != "value1" || modified.GetPayloadString("key2") != "value2" {
		t.Error("Modified event should have both keys")
	}
	if modified.ID != original.ID || modified.CorrelationID != original.CorrelationID {
		t.Error("Modified event should keep identity")
	}
}

func TestEvent_PayloadAccessorsAfterJSON(t *testing.T) {
	evt := NewEvent(TypeNotificationRequested, "case-1", "m1", map[string]interface{}{
		"recipients": []string{"clerk-1", "w1"},
		"count":      3,
	})

	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Event
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got := decoded.GetPayloadStrings("recipients"); len(got) != 2 || got[0] != "clerk-1" {
		t.Errorf("GetPayloadStrings() = %v", got)
	}
	if got := decoded.GetPayloadInt("count"); got != 3 {
		t.Errorf("GetPayloadInt() = %d, want 3", got)
	}
	if got := decoded.GetPayloadString("missing"); got != "" {
		t.Errorf("GetPayloadString(missing) = %q", got)
	}
}
