package core

import (
	"testing"
	"time"
)

func TestNewWhereBuilder(t *testing.T) {
	wb := NewWhereBuilder()

	if wb == nil {
		t.Fatal("expected non-nil WhereBuilder")
	}
	if wb.NextArgIndex() != 1 {
		t.Errorf("expected argIndex to be 1, got %d", wb.NextArgIndex())
	}
	if len(wb.conditions) != 0 {
		t.Errorf("expected empty conditions, got %d", len(wb.conditions))
	}
}

func TestWhereBuilder_Build_Empty(t *testing.T) {
	wb := NewWhereBuilder()
	whereClause, args := wb.Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}
	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
}

func TestWhereBuilder_Add(t *testing.T) {
	tests := []struct {
		name       string
		adds       [][2]string
		wantClause string
		wantArgs   []any
	}{
		{
			name:       "single condition",
			adds:       [][2]string{{"action_type", "IMPORT_FILE"}},
			wantClause: " WHERE action_type = $1",
			wantArgs:   []any{"IMPORT_FILE"},
		},
		{
			name:       "multiple conditions",
			adds:       [][2]string{{"action_type", "IMPORT_FILE"}, {"result", "FAILED"}},
			wantClause: " WHERE action_type = $1 AND result = $2",
			wantArgs:   []any{"IMPORT_FILE", "FAILED"},
		},
		{
			name:       "empty value skipped",
			adds:       [][2]string{{"action_type", ""}, {"result", "SUCCESS"}},
			wantClause: " WHERE result = $1",
			wantArgs:   []any{"SUCCESS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			for _, a := range tt.adds {
				wb.Add(a[0], a[1])
			}

			whereClause, args := wb.Build()
			if whereClause != tt.wantClause {
				t.Errorf("expected %q, got %q", tt.wantClause, whereClause)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("expected %d args, got %d", len(tt.wantArgs), len(args))
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("arg %d = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestWhereBuilder_AddExpr(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddExpr("fc.voyage_id::text = %s", "v-1")
	wb.AddExpr("COALESCE(s.imo_number, fc.imo_number) = ANY(%s)", []string{"9876543"})
	wb.AddExpr("ignored = %s", []string{})
	wb.AddExpr("ignored = %s", nil)

	whereClause, args := wb.Build()

	expected := " WHERE fc.voyage_id::text = $1 AND COALESCE(s.imo_number, fc.imo_number) = ANY($2)"
	if whereClause != expected {
		t.Errorf("expected %q, got %q", expected, whereClause)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}

func TestWhereBuilder_AddTimestampRange(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddTimestampRange("created_at", "2024-01-01", "2024-12-31")

	whereClause, args := wb.Build()

	expectedClause := " WHERE created_at >= $1 AND created_at <= $2"
	if whereClause != expectedClause {
		t.Errorf("expected %q, got %q", expectedClause, whereClause)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
	if args[0] != "2024-01-01" || args[1] != "2024-12-31" {
		t.Errorf("expected args ['2024-01-01', '2024-12-31'], got %v", args)
	}
}

func TestWhereBuilder_AddTimestampRange_OpenEnded(t *testing.T) {
	wb := NewWhereBuilder()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wb.AddTimestampRange("created_at", start, time.Time{})

	whereClause, args := wb.Build()

	if whereClause != " WHERE created_at >= $1" {
		t.Errorf("unexpected clause %q", whereClause)
	}
	if len(args) != 1 {
		t.Fatalf("expected 1 arg, got %d", len(args))
	}
}

func TestWhereBuilder_NextArgIndex(t *testing.T) {
	wb := NewWhereBuilder()

	if wb.NextArgIndex() != 1 {
		t.Errorf("expected initial NextArgIndex to be 1, got %d", wb.NextArgIndex())
	}

	wb.Add("col1", "val1")
	if wb.NextArgIndex() != 2 {
		t.Errorf("expected NextArgIndex after 1 add to be 2, got %d", wb.NextArgIndex())
	}

	wb.Add("col2", "val2")
	if wb.NextArgIndex() != 3 {
		t.Errorf("expected NextArgIndex after 2 adds to be 3, got %d", wb.NextArgIndex())
	}

	wb.AddTimestampRange("created_at", "start", "end")
	if wb.NextArgIndex() != 5 {
		t.Errorf("expected NextArgIndex after timestamp range to be 5, got %d", wb.NextArgIndex())
	}
}
