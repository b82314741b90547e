// Package writer holds the row layout shared by the tabular export writers.
package writer

import (
	"github.com/ArionMiles/pocketledger/pkg/api"
)

// Headers are the column names of an exported record.
var Headers = []string{"Date", "Description", "Type", "Amount", "Category", "Account", "ID"}

// Row renders r in Headers order. Amount is signed by type, two decimals.
func Row(r *api.Record) []string {
	return []string{
		r.Date.String(),
		r.Description,
		string(r.Type),
		r.SignedAmount().StringFixed(2),
		r.Category,
		r.Account,
		r.ID.String(),
	}
}
