package flow

import (
	"errors"
	"testing"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		name        string
		values      []string
		description string
		wait        bool
		wantKind    SelectorKind
		wantNumbers string
		wantErr     error
	}{
		{name: "default is all", wantKind: SelectAll},
		{name: "explicit all", values: []string{"all"}, wantKind: SelectAll},
		{name: "new with meta", values: []string{"new"}, description: "rerun", wantKind: SelectNew},
		{name: "none", values: []string{"none"}, wantKind: SelectNone},
		{name: "numbers", values: []string{"3", "1", "3"}, wantKind: SelectNumbers, wantNumbers: "1,3"},
		{name: "numbers with wait", values: []string{"2"}, wait: true, wantKind: SelectNumbers, wantNumbers: "2"},
		{name: "keyword mixed with int", values: []string{"1", "new"}, wantErr: ErrFlowInt},
		{name: "two keywords", values: []string{"all", "none"}, wantErr: ErrFlowInt},
		{name: "garbage", values: []string{"blue"}, wantErr: ErrFlowValue},
		{name: "zero is not a flow", values: []string{"0"}, wantErr: ErrFlowNumber},
		{name: "negative flow", values: []string{"-3"}, wantErr: ErrFlowNumber},
		{name: "meta without new", values: []string{"1"}, description: "x", wantErr: ErrFlowMeta},
		{name: "wait with new", values: []string{"new"}, wait: true, wantErr: ErrFlowWait},
		{name: "wait with none", values: []string{"none"}, wait: true, wantErr: ErrFlowWait},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := ParseSelector(tt.values, tt.description, tt.wait)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sel.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", sel.Kind, tt.wantKind)
			}
			if sel.Numbers.String() != tt.wantNumbers {
				t.Errorf("Numbers = %q, want %q", sel.Numbers.String(), tt.wantNumbers)
			}
			if sel.Description != tt.description {
				t.Errorf("Description = %q, want %q", sel.Description, tt.description)
			}
		})
	}
}

func TestParseSelector_Default(t *testing.T) {
	sel, err := ParseSelector(nil, "", true)
	if err != nil {
		t.Fatalf("ParseSelector: %v", err)
	}
	if !sel.Default || sel.Kind != SelectAll || !sel.Wait {
		t.Errorf("unexpected selector %+v", sel)
	}
	explicit, _ := ParseSelector([]string{"all"}, "", false)
	if explicit.Default {
		t.Error("explicit --flow=all must not be marked default")
	}
}

func TestResolve(t *testing.T) {
	m := newNumbers(t)
	active := NewID(1, 2)

	got, err := m.Resolve(Selector{Kind: SelectAll}, active)
	if err != nil || !got.Equal(active) {
		t.Errorf("all: got %v, %v", got, err)
	}

	got, err = m.Resolve(Selector{Kind: SelectNone}, active)
	if err != nil || !got.IsEmpty() {
		t.Errorf("none: got %v, %v", got, err)
	}

	got, err = m.Resolve(Selector{Kind: SelectNumbers, Numbers: NewID(5)}, active)
	if err != nil || !got.Equal(NewID(5)) {
		t.Errorf("numbers: got %v, %v", got, err)
	}

	got, err = m.Resolve(Selector{Kind: SelectNew, Description: "fresh"}, active)
	if err != nil || !got.Equal(NewID(1)) {
		t.Errorf("new: got %v, %v", got, err)
	}
	if m.Flows()[1].Description != "fresh" {
		t.Errorf("new flow description = %q", m.Flows()[1].Description)
	}
}
