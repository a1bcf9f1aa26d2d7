package cache

import (
	"reflect"
	"testing"
)

func TestMergeSkipNull(t *testing.T) {
	tests := []struct {
		name string
		old  Record
		new  Record
		want Record
	}{
		{
			name: "null fields keep old values",
			old:  Record{"name": "Bob", "bio": nil},
			new:  Record{"name": nil, "bio": "hi"},
			want: Record{"name": "Bob", "bio": "hi"},
		},
		{
			name: "non-null overwrites",
			old:  Record{"name": "Bob"},
			new:  Record{"name": "Alice"},
			want: Record{"name": "Alice"},
		},
		{
			name: "new fields added",
			old:  Record{"id": "usr_1"},
			new:  Record{"status": "online"},
			want: Record{"id": "usr_1", "status": "online"},
		},
		{
			name: "empty string and zero are values",
			old:  Record{"bio": "hi", "count": 3.0},
			new:  Record{"bio": "", "count": 0.0},
			want: Record{"bio": "", "count": 0.0},
		},
		{
			name: "nil old",
			old:  nil,
			new:  Record{"id": "usr_1", "bio": nil},
			want: Record{"id": "usr_1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeSkipNull(tt.old, tt.new)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergeSkipNull() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeSkipNull_DoesNotMutateInputs(t *testing.T) {
	old := Record{"name": "Bob"}
	new := Record{"bio": "hi"}

	MergeSkipNull(old, new)

	if len(old) != 1 || len(new) != 1 {
		t.Errorf("inputs mutated: old=%v new=%v", old, new)
	}
}

func TestMergeWithMembership(t *testing.T) {
	tests := []struct {
		name string
		old  Record
		new  Record
		want Record
	}{
		{
			name: "nested membership merged one level",
			old: Record{
				"id":       "grp_1",
				"myMember": Record{"roleIds": []any{"r1"}, "isRepresenting": true},
			},
			new: Record{
				"id":       "grp_1",
				"myMember": Record{"roleIds": nil, "joinedAt": "2024-01-01"},
			},
			want: Record{
				"id": "grp_1",
				"myMember": Record{
					"roleIds":        []any{"r1"},
					"isRepresenting": true,
					"joinedAt":       "2024-01-01",
				},
			},
		},
		{
			name: "membership only on old side kept",
			old:  Record{"myMember": Record{"id": "m1"}},
			new:  Record{"name": "Group"},
			want: Record{"name": "Group", "myMember": Record{"id": "m1"}},
		},
		{
			name: "membership only on new side taken",
			old:  Record{"name": "Group"},
			new:  Record{"myMember": Record{"id": "m1"}},
			want: Record{"name": "Group", "myMember": Record{"id": "m1"}},
		},
		{
			name: "null membership does not clobber",
			old:  Record{"myMember": Record{"id": "m1"}},
			new:  Record{"myMember": nil},
			want: Record{"myMember": Record{"id": "m1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeWithMembership(tt.old, tt.new)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergeWithMembership() = %v, want %v", got, tt.want)
			}
		})
	}
}
