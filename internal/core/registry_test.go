package core

import (
	"errors"
	"testing"
)

func registerTestTables(t *testing.T) {
	t.Helper()
	Clear()
	t.Cleanup(Clear)

	Register(TableDefinition{Info: TableInfo{Key: "vouchers", Group: "Transactions", RecordTag: "VOUCHER", Order: 30}})
	Register(TableDefinition{Info: TableInfo{Key: "ledgers", Group: "Masters", RecordTag: "LEDGER", Order: 20}})
	Register(TableDefinition{Info: TableInfo{Key: "groups", Group: "Masters", RecordTag: "GROUP", Order: 10}})
}

func TestRegistry_AllInOrder(t *testing.T) {
	registerTestTables(t)

	all := All()
	want := []string{"groups", "ledgers", "vouchers"}
	if len(all) != len(want) {
		t.Fatalf("len(All()) = %d, want %d", len(all), len(want))
	}
	for i, def := range all {
		if def.Info.Key != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, def.Info.Key, want[i])
		}
	}
	if TableCount() != 3 {
		t.Errorf("TableCount() = %d, want 3", TableCount())
	}
	if groups := Groups(); len(groups) != 2 || groups[0] != "Masters" {
		t.Errorf("Groups() = %v, want [Masters Transactions]", groups)
	}
}

func TestRegistry_Select(t *testing.T) {
	registerTestTables(t)

	defs, err := Select([]string{"vouchers", " groups", "vouchers"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(defs) != 2 || defs[0].Info.Key != "groups" || defs[1].Info.Key != "vouchers" {
		t.Errorf("Select() = %v, want [groups vouchers] in registry order", defs)
	}

	if _, err := Select([]string{"widgets"}); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("Select(unknown) err = %v, want ErrUnknownTable", err)
	}

	all, err := Select(nil)
	if err != nil || len(all) != 3 {
		t.Errorf("Select(nil) = %d tables, %v; want all 3", len(all), err)
	}
}

func TestRegister_Panics(t *testing.T) {
	registerTestTables(t)

	tests := []struct {
		name string
		def  TableDefinition
	}{
		{"duplicate key", TableDefinition{Info: TableInfo{Key: "ledgers", RecordTag: "LEDGER"}}},
		{"missing record tag", TableDefinition{Info: TableInfo{Key: "units"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			Register(tt.def)
		})
	}
}
