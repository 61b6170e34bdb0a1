package tables

import "github.com/OnlyOnCloud/TallySyncService/internal/core"

func init() {
	registerUnits()
	registerGodowns()
	registerStockGroups()
	registerStockItems()
}

func registerUnits() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:        "units",
			Group:      GroupInventory,
			Label:      "Units of Measure",
			Collection: "Unit",
			RecordTag:  "UNIT",
			Order:      50,
		},
		Fetch: []string{"GUID", "MASTERID", "ALTERID", "NAME", "ORIGINALNAME", "ISSIMPLEUNIT", "DECIMALPLACES", "BASEUNITS", "ADDITIONALUNITS", "CONVERSION"},
	})
}

func registerGodowns() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:        "godowns",
			Group:      GroupInventory,
			Label:      "Godowns",
			Collection: "Godown",
			RecordTag:  "GODOWN",
			Order:      60,
		},
		Fetch: []string{"GUID", "MASTERID", "ALTERID", "NAME", "PARENT", "ADDRESS.LIST"},
	})
}

func registerStockGroups() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:        "stock_groups",
			Group:      GroupInventory,
			Label:      "Stock Groups",
			Collection: "StockGroup",
			RecordTag:  "STOCKGROUP",
			Order:      70,
		},
		Fetch: []string{"GUID", "MASTERID", "ALTERID", "NAME", "PARENT", "ISADDABLE"},
	})
}

func registerStockItems() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:        "stock_items",
			Group:      GroupInventory,
			Label:      "Stock Items",
			Collection: "StockItem",
			RecordTag:  "STOCKITEM",
			Order:      80,
		},
		Fetch: []string{
			"GUID", "MASTERID", "ALTERID", "NAME", "PARENT", "CATEGORY", "BASEUNITS",
			"OPENINGBALANCE", "OPENINGVALUE", "OPENINGRATE",
			"CLOSINGBALANCE", "CLOSINGVALUE", "GSTAPPLICABLE", "HSNCODE",
		},
	})
}
