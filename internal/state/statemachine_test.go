package state

import "testing"

func TestNextState(t *testing.T) {
	cases := []struct {
		cur     string
		evt     string
		want    string
		wantErr bool
	}{
		{StateNoResult, EvtDeclareTwoDigit, StateFull, false},
		{StateNoResult, EvtDeclareOpen, StatePartial, false},
		{StateNoResult, EvtDeclareClose, StatePartial, false},
		{StatePartial, EvtDeclareTwoDigit, StateFull, false},
		{StatePartial, EvtDeclareOpen, StatePartial, false},
		{StatePartial, EvtDeclareClose, StatePartial, false},
		// 齐备后幂等重报，状态不回退
		{StateFull, EvtDeclareTwoDigit, StateFull, false},
		{StateFull, EvtDeclareOpen, StateFull, false},
		{StateFull, EvtDeclareClose, StateFull, false},
		// 非法事件
		{StateNoResult, "bogus", StateNoResult, true},
		{"unknown", EvtDeclareOpen, "unknown", true},
	}

	for _, c := range cases {
		got, err := NextState(c.cur, c.evt)
		if c.wantErr {
			if err == nil {
				t.Fatalf("%s --%s--> expect error, got %s", c.cur, c.evt, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s --%s--> unexpected error: %v", c.cur, c.evt, err)
		}
		if got != c.want {
			t.Fatalf("%s --%s--> got %s, want %s", c.cur, c.evt, got, c.want)
		}
	}
}
