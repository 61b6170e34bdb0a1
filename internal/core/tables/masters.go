package tables

import "github.com/OnlyOnCloud/TallySyncService/internal/core"

// Masters are small reference tables. They are always extracted whole and
// are processed before inventory and transactions.
func init() {
	registerGroups()
	registerLedgers()
	registerCostCentres()
	registerVoucherTypes()
}

func registerGroups() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:        "groups",
			Group:      GroupMasters,
			Label:      "Account Groups",
			Collection: "Group",
			RecordTag:  "GROUP",
			Order:      10,
		},
		Fetch: []string{
			"GUID", "MASTERID", "ALTERID", "NAME", "PARENT",
			"ISREVENUE", "ISDEEMEDPOSITIVE", "AFFECTSGROSSPROFIT", "SORTPOSITION",
		},
	})
}

func registerLedgers() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:        "ledgers",
			Group:      GroupMasters,
			Label:      "Ledgers",
			Collection: "Ledger",
			RecordTag:  "LEDGER",
			Order:      20,
		},
		Fetch: []string{
			"GUID", "MASTERID", "ALTERID", "NAME", "PARENT", "ALIAS",
			"OPENINGBALANCE", "CLOSINGBALANCE", "ISBILLWISEON", "ISCOSTCENTRESON",
			"LEDGERPHONE", "LEDGEREMAIL", "PARTYGSTIN", "INCOMETAXNUMBER",
			"LEDSTATENAME", "COUNTRYNAME", "PINCODE", "ADDRESS.LIST",
			"CREDITPERIOD", "CREDITLIMIT",
		},
	})
}

func registerCostCentres() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:        "cost_centres",
			Group:      GroupMasters,
			Label:      "Cost Centres",
			Collection: "CostCentre",
			RecordTag:  "COSTCENTRE",
			Order:      30,
		},
		Fetch: []string{"GUID", "MASTERID", "ALTERID", "NAME", "PARENT", "CATEGORY"},
	})
}

func registerVoucherTypes() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:        "voucher_types",
			Group:      GroupMasters,
			Label:      "Voucher Types",
			Collection: "VoucherType",
			RecordTag:  "VOUCHERTYPE",
			Order:      40,
		},
		Fetch: []string{"GUID", "MASTERID", "ALTERID", "NAME", "PARENT", "NUMBERINGMETHOD", "ISACTIVE"},
	})
}
