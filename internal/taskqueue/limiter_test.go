package taskqueue

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLimiter_IsFree(t *testing.T) {
	l := NewLimiter("q1", 2, []string{"a", "b"})

	tests := []struct {
		name   string
		task   string
		active ActiveCounts
		want   bool
	}{
		{"non-member always free", "c", ActiveCounts{"a": 5, "b": 5}, true},
		{"member under limit", "a", ActiveCounts{"a": 1}, true},
		{"members summed", "a", ActiveCounts{"a": 1, "b": 1}, false},
		{"counts of non-members ignored", "b", ActiveCounts{"c": 10}, true},
		{"empty counts", "b", ActiveCounts{}, true},
		{"over limit", "b", ActiveCounts{"b": 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.IsFree(newTask("x", tt.task), tt.active); got != tt.want {
				t.Errorf("IsFree(%s, %v) = %v, want %v", tt.task, tt.active, got, tt.want)
			}
		})
	}
}

func TestLimiter_Monotonic(t *testing.T) {
	l := NewLimiter("q", 3, []string{"a", "b"})
	task := newTask("1/a", "a")

	active := ActiveCounts{}
	wasFree := true
	for i := 0; i < 6; i++ {
		member := "a"
		if i%2 == 1 {
			member = "b"
		}
		active[member]++
		free := l.IsFree(task, active)
		if free && !wasFree {
			t.Fatalf("IsFree became true again after increasing %s to %d", member, active[member])
		}
		wasFree = free
	}
	if wasFree {
		t.Error("limiter should be saturated after 6 active members")
	}
}

func TestLimiter_Adopt(t *testing.T) {
	l := NewLimiter(DefaultQueue, 1, []string{"a"})
	orphan := newTask("1/z", "z")

	if !l.IsFree(orphan, ActiveCounts{"a": 1}) {
		t.Fatal("orphan should be unrestricted before adoption")
	}
	l.Adopt(DefaultQueue, []string{"z"})
	if l.IsFree(orphan, ActiveCounts{"a": 1}) {
		t.Error("adopted orphan should be limited by existing members")
	}
	if diff := cmp.Diff([]string{"a", "z"}, l.Members()); diff != "" {
		t.Errorf("Members() mismatch (-want +got):\n%s", diff)
	}
}

func TestLimiter_AdoptIgnoresOtherTargets(t *testing.T) {
	l := NewLimiter("q", 1, []string{"a"})
	l.Adopt(DefaultQueue, []string{"z"})

	if l.Has("z") {
		t.Error("named limiter must not adopt orphans meant for the default queue")
	}
	if !l.IsFree(newTask("1/z", "z"), ActiveCounts{"a": 1}) {
		t.Error("orphan should stay unrestricted by a named limiter")
	}
}

func TestExpandMembers(t *testing.T) {
	descendants := map[string][]string{
		"FAM":   {"a", "SUB"},
		"SUB":   {"b", "DEEP"},
		"DEEP":  {"c"},
		"EMPTY": {},
		"LOOP":  {"LOOP", "d"},
	}
	tests := []struct {
		name    string
		members []string
		want    []string
	}{
		{"plain tasks", []string{"x", "y"}, []string{"x", "y"}},
		{"nested family", []string{"FAM"}, []string{"a", "b", "c"}},
		{"mixed with duplicates", []string{"SUB", "b", "z"}, []string{"b", "c", "z"}},
		{"empty family", []string{"EMPTY"}, []string{}},
		{"cycle tolerated", []string{"LOOP"}, []string{"d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandMembers(tt.members, descendants)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExpandMembers mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
