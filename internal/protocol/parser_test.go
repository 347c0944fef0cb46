package protocol

import (
	"reflect"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   Kind
		verify func(t *testing.T, u Update)
	}{
		{
			name: "model announcement 4x4",
			line: "INT-44HDX",
			want: KindModel,
			verify: func(t *testing.T, u Update) {
				if m := u.(*ModelAnnouncement).Model; m != Model4x4 {
					t.Errorf("Model = %v, want 4x4", m)
				}
			},
		},
		{
			name: "model announcement 8x8",
			line: "INT-88HDX\r\n",
			want: KindModel,
			verify: func(t *testing.T, u Update) {
				if m := u.(*ModelAnnouncement).Model; m != Model8x8 {
					t.Errorf("Model = %v, want 8x8", m)
				}
			},
		},
		{
			name: "version",
			line: "V1.0.3",
			want: KindVersion,
			verify: func(t *testing.T, u Update) {
				if v := u.(*VersionReport).Version; v != "V1.0.3" {
					t.Errorf("Version = %q", v)
				}
			},
		},
		{
			name: "locked",
			line: "System Locked!",
			want: KindLock,
			verify: func(t *testing.T, u Update) {
				if !u.(*LockReport).Locked {
					t.Error("expected locked")
				}
			},
		},
		{
			name: "unlocked",
			line: "System Unlock!",
			want: KindLock,
			verify: func(t *testing.T, u Update) {
				if u.(*LockReport).Locked {
					t.Error("expected unlocked")
				}
			},
		},
		{
			name:   "route 4x4 zero padded",
			line:   "AV:01->02",
			want:   KindRoute,
			verify: wantRoute(1, 2),
		},
		{
			name:   "route 6x6 space padded",
			line:   "AV:  5-> 3",
			want:   KindRoute,
			verify: wantRoute(5, 3),
		},
		{
			name:   "route 8x8",
			line:   "AV:  8-> 7",
			want:   KindRoute,
			verify: wantRoute(8, 7),
		},
		{
			name: "route-all 6x6",
			line: "2 To All",
			want: KindRouteAll,
			verify: func(t *testing.T, u Update) {
				if in := u.(*RouteAllReport).Input; in != 2 {
					t.Errorf("Input = %d, want 2", in)
				}
			},
		},
		{
			name: "route-all 4x4",
			line: "02 To Al",
			want: KindRouteAll,
			verify: func(t *testing.T, u Update) {
				if in := u.(*RouteAllReport).Input; in != 2 {
					t.Errorf("Input = %d, want 2", in)
				}
			},
		},
		{
			name:   "route echo single output",
			line:   "3B2.",
			want:   KindRoute,
			verify: wantRoute(3, 2),
		},
		{
			name:   "route echo output list",
			line:   "4B1,2,3.",
			want:   KindRoute,
			verify: wantRoute(4, 1, 2, 3),
		},
		{
			name: "pass-through",
			line: "All Through.",
			want: KindPassThrough,
		},
		{
			name: "unknown text",
			line: "Hello",
			want: KindUnknown,
		},
		{
			name: "unknown model digit",
			line: "INT-55HDX",
			want: KindUnknown,
		},
		{
			name: "short announcement",
			line: "INT-",
			want: KindUnknown,
		},
		{
			name: "route with misplaced arrow",
			line: "AV:1->2xx",
			want: KindUnknown,
		},
		{
			name: "route with garbage field",
			line: "AV:xx->02",
			want: KindUnknown,
		},
		{
			name: "digit line without a rule",
			line: "12345",
			want: KindUnknown,
		},
		{
			name: "echo with bad list",
			line: "3B1,,2.",
			want: KindUnknown,
		},
		{
			name: "short lock line",
			line: "System",
			want: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := ParseLine(tt.line)
			if u == nil {
				t.Fatalf("ParseLine(%q) = nil", tt.line)
			}
			if u.Kind() != tt.want {
				t.Fatalf("ParseLine(%q).Kind() = %v, want %v (%s)", tt.line, u.Kind(), tt.want, u)
			}
			if tt.verify != nil {
				tt.verify(t, u)
			}
		})
	}
}

func TestParseLine_Blank(t *testing.T) {
	for _, line := range []string{"", "\r\n", "   "} {
		if u := ParseLine(line); u != nil {
			t.Errorf("ParseLine(%q) = %v, want nil", line, u)
		}
	}
}

func TestParseLine_RulePrecedence(t *testing.T) {
	// "AV" lines are never mistaken for version lines.
	if k := ParseLine("AV:03->04").Kind(); k != KindRoute {
		t.Errorf("AV line kind = %v", k)
	}
	// Pass-through starts with "All" but no digit, so the route-all rule can't claim it.
	if k := ParseLine("All Through.").Kind(); k != KindPassThrough {
		t.Errorf("All Through kind = %v", k)
	}
}

func TestParseLine_OutOfRangeStillDecodes(t *testing.T) {
	// Range checks are the store's job; the decoder reports what it saw.
	u := ParseLine("AV:01->09")
	r, ok := u.(*RouteReport)
	if !ok {
		t.Fatalf("got %T, want *RouteReport", u)
	}
	if !reflect.DeepEqual(r.Outputs, []int{9}) {
		t.Errorf("Outputs = %v", r.Outputs)
	}
}

func wantRoute(input int, outputs ...int) func(t *testing.T, u Update) {
	return func(t *testing.T, u Update) {
		t.Helper()
		r := u.(*RouteReport)
		if r.Input != input {
			t.Errorf("Input = %d, want %d", r.Input, input)
		}
		if !reflect.DeepEqual(r.Outputs, outputs) {
			t.Errorf("Outputs = %v, want %v", r.Outputs, outputs)
		}
	}
}

func TestParseLine_SignedPortsAreUnknown(t *testing.T) {
	for _, line := range []string{"AV:+1->02", "AV:01->-2", "+2 To All", "3B+1,2."} {
		if k := ParseLine(line).Kind(); k != KindUnknown {
			t.Errorf("ParseLine(%q) kind = %v, want unknown", line, k)
		}
	}
}
