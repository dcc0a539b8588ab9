package model

import "testing"

func TestTierOf(t *testing.T) {
	tests := []struct {
		memType Type
		want    Tier
	}{
		{TypeWorking, TierSTM},
		{TypeSemanticCache, TierSTM},
		{TypeProceduralTool, TierLTM},
		{TypeProceduralWorkflow, TierLTM},
		{TypeEpisodicConversation, TierLTM},
		{TypeEpisodicSummary, TierLTM},
		{TypeSemanticKnowledge, TierLTM},
		{TypeSharedEntity, TierLTM},
		{TypeSharedPersona, TierLTM},
	}
	for _, tt := range tests {
		if got := TierOf(tt.memType); got != tt.want {
			t.Errorf("TierOf(%s) = %s, want %s", tt.memType, got, tt.want)
		}
	}
}

func TestValidTypes(t *testing.T) {
	if !ValidTypes[TypeWorking] {
		t.Error("working should be valid")
	}
	if ValidTypes["daydream"] {
		t.Error("unknown type should be invalid")
	}
}

func TestRecordHelpers(t *testing.T) {
	stm := Record{Tier: TierSTM}
	if !stm.IsSTM() {
		t.Error("IsSTM() false for short-term record")
	}

	ltm := Record{Tier: TierLTM}
	if ltm.IsSTM() {
		t.Error("IsSTM() true for long-term record")
	}

	fresh := Record{}
	if fresh.Superseded() {
		t.Error("fresh record should not be superseded")
	}
	linked := Record{ConsolidatedInto: "summary-1"}
	if !linked.Superseded() {
		t.Error("linked record should be superseded")
	}
}
