package observer

import (
	"testing"
	"time"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
)

func TestCollector_Aggregates(t *testing.T) {
	c := NewCollector()
	c.Record(domain.Outcome{ItemID: "a", Succeeded: true, Duration: 2 * time.Second, TokensInput: 100, TokensOutput: 50})
	c.Record(domain.Outcome{ItemID: "b", Succeeded: false, Duration: 4 * time.Second, TokensInput: 30, TokensOutput: 10})

	m := c.Metrics()
	if m.TotalCompleted != 1 || m.TotalFailed != 1 {
		t.Errorf("Completed/Failed = %d/%d, want 1/1", m.TotalCompleted, m.TotalFailed)
	}
	if m.TotalTokensInput != 130 || m.TotalTokensOutput != 60 {
		t.Errorf("Tokens = %d/%d, want 130/60", m.TotalTokensInput, m.TotalTokensOutput)
	}
	if m.AvgDuration != 3*time.Second {
		t.Errorf("AvgDuration = %v, want 3s", m.AvgDuration)
	}
}

func TestCollector_Empty(t *testing.T) {
	m := NewCollector().Metrics()
	if m.TotalCompleted != 0 || m.AvgDuration != 0 {
		t.Errorf("Empty collector metrics = %+v", m)
	}
}
