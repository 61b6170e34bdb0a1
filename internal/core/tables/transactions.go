package tables

import "github.com/OnlyOnCloud/TallySyncService/internal/core"

// Group names used to organize tables for display.
const (
	GroupMasters      = "Masters"
	GroupInventory    = "Inventory"
	GroupTransactions = "Transactions"
)

func init() {
	registerVouchers()
}

// Vouchers are the only date-filtered table. Vouchers without a GUID are
// identified by type and number.
func registerVouchers() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:        "vouchers",
			Group:      GroupTransactions,
			Label:      "Vouchers",
			Collection: "Voucher",
			RecordTag:  "VOUCHER",
			Order:      100,
		},
		Fetch: []string{
			"GUID", "MASTERID", "ALTERID", "ALTEREDON", "DATE", "EFFECTIVEDATE",
			"VOUCHERTYPENAME", "VOUCHERNUMBER", "REFERENCE", "NARRATION",
			"PARTYLEDGERNAME", "PARTYNAME", "AMOUNT", "ISCANCELLED", "ISOPTIONAL",
			"ALLLEDGERENTRIES.LIST", "ALLINVENTORYENTRIES.LIST",
		},
		Transactional: true,
		DateFiltered:  true,
	})
}
